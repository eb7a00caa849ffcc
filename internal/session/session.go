// Package session holds one cart cache and realtime listener per
// authenticated sales rep.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/ledger"
	"github.com/lounge-pos/api/internal/prefs"
	"github.com/lounge-pos/api/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Notification types pushed to the rep.
const (
	EventCartUpdated         = "cart.updated"
	EventFulfillmentModified = "fulfillment.modified"
)

// Errors returned by sessions.
var (
	ErrNothingToRequest   = errors.New("no unrequested pending lines on table")
	ErrTagFailed          = errors.New("could not attach lines to bar request")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrPendingLines       = errors.New("table has lines awaiting bar approval")
	ErrRequestOpen        = errors.New("table has a bar request awaiting the bar")
	ErrApproveFailed      = errors.New("some lines could not be approved")
	ErrNoRequestLines     = errors.New("no lines tagged with bar request")
	ErrRequestLinesActive = errors.New("only rejected request lines can be dismissed")
)

// BarRequests is the rep side of the bar workflow.
// Satisfied by *service.BarService.
type BarRequests interface {
	OpenRequest(ctx context.Context, table string, repID uuid.UUID) (database.BarRequest, error)
	Cancel(ctx context.Context, requestID, repID uuid.UUID) (database.BarRequest, error)
	HasPendingRequest(ctx context.Context, table string) (bool, error)
}

// Notifier pushes an event to every connection of a rep.
type Notifier func(repID uuid.UUID, eventType string, payload any)

// Deps are the collaborators shared by every session.
type Deps struct {
	Orders       cart.OrderStore
	Fulfillments realtime.FulfillmentStore
	Broker       *realtime.Broker
	Bar          BarRequests
	Prefs        prefs.Store
	Ledger       ledger.Recorder
	Notify       Notifier
	Now          func() time.Time
}

// Manager creates sessions on first use and keeps them until Close.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a Manager. Nil Notify and Now get no-op / time.Now.
func NewManager(deps Deps) *Manager {
	if deps.Notify == nil {
		deps.Notify = func(uuid.UUID, string, any) {}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{deps: deps, sessions: make(map[uuid.UUID]*Session)}
}

// Get returns the session of rep, creating it if needed. The first Get
// restores the rep's carts and selected table outside the manager lock;
// concurrent Gets for the same rep wait for that restore. A restore failure
// is logged; the session still works and syncs lazily.
func (m *Manager) Get(ctx context.Context, rep cart.Rep) *Session {
	m.mu.Lock()
	s, ok := m.sessions[rep.ID]
	if !ok {
		s = newSession(rep, &m.deps)
		m.sessions[rep.ID] = s
	}
	m.mu.Unlock()

	s.restored.Do(func() { s.restore(ctx) })
	return s
}

// ApproveTable approves the pending lines of repID on table without a bar
// request. productIDs narrows it to those products. A table with a pending
// request is approved through that request instead. A live session of the
// rep has its cache synced and the rep is notified.
func (m *Manager) ApproveTable(ctx context.Context, repID uuid.UUID, table string, productIDs []uuid.UUID) error {
	pending, err := m.deps.Bar.HasPendingRequest(ctx, table)
	if err != nil {
		return err
	}
	if pending {
		return ErrRequestOpen
	}

	m.mu.Lock()
	s, live := m.sessions[repID]
	m.mu.Unlock()

	var store *cart.Store
	if live {
		store = s.cart
	} else {
		store = cart.NewStore(m.deps.Orders)
		store.SetCurrentUser(cart.Rep{ID: repID})
	}

	var ok bool
	if len(productIDs) == 0 {
		ok = store.MoveItemsToApproved(ctx, table)
	} else {
		ok = store.MoveSpecificItemsToApproved(ctx, table, productIDs)
	}
	if !ok {
		return ErrApproveFailed
	}
	if live {
		s.notifyCart(table)
	}
	return nil
}

// Close stops every session's listener.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.listener.Stop()
		delete(m.sessions, id)
	}
}

// Session is one rep's cart cache, selected table and realtime listener.
type Session struct {
	rep      cart.Rep
	deps     *Deps
	cart     *cart.Store
	listener *realtime.Listener

	restored sync.Once

	mu       sync.Mutex
	selected string
}

func newSession(rep cart.Rep, deps *Deps) *Session {
	s := &Session{rep: rep, deps: deps, cart: cart.NewStore(deps.Orders)}
	s.cart.SetCurrentUser(rep)
	s.listener = realtime.NewListener(deps.Broker, s.cart, deps.Fulfillments, rep.ID, realtime.Callbacks{
		Modified: func(e realtime.FulfillmentModified) {
			deps.Notify(rep.ID, EventFulfillmentModified, e)
		},
		Changed: s.notifyCart,
	})
	return s
}

func (s *Session) restore(ctx context.Context) {
	if err := s.cart.Restore(ctx); err != nil {
		log.Warn().Err(err).Str("rep", s.rep.ID.String()).Msg("restore carts failed")
	}
	table, err := s.deps.Prefs.SelectedTable(ctx, s.rep.ID)
	if err != nil {
		log.Warn().Err(err).Str("rep", s.rep.ID.String()).Msg("load selected table failed")
	}
	if table != "" {
		if err := s.watch(ctx, table); err != nil {
			log.Warn().Err(err).Str("table", table).Msg("sync selected table failed")
		}
	}
}

func (s *Session) notifyCart(table string) {
	if tc, ok := s.cart.Cart(table); ok {
		s.deps.Notify(s.rep.ID, EventCartUpdated, tc)
	}
}

// Rep returns the session owner.
func (s *Session) Rep() cart.Rep { return s.rep }

// Cart returns the rep's cart cache.
func (s *Session) Cart() *cart.Store { return s.cart }

// SelectedTable returns the table currently being worked on, or "".
func (s *Session) SelectedTable() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectTable persists the selection, syncs the table and moves the
// realtime subscription to it. An empty table clears the selection.
func (s *Session) SelectTable(ctx context.Context, table string) error {
	if err := s.deps.Prefs.SetSelectedTable(ctx, s.rep.ID, table); err != nil {
		return err
	}
	if table == "" {
		s.mu.Lock()
		s.selected = ""
		s.mu.Unlock()
		s.listener.Stop()
		return nil
	}
	return s.watch(ctx, table)
}

func (s *Session) watch(ctx context.Context, table string) error {
	s.mu.Lock()
	s.selected = table
	s.mu.Unlock()
	s.listener.Watch(table)
	return s.cart.Sync(ctx, table)
}

// SubmitBarRequest opens a bar request for the rep's unrequested pending
// lines on table and tags each of them with it.
func (s *Session) SubmitBarRequest(ctx context.Context, table string) (database.BarRequest, error) {
	if err := s.cart.Sync(ctx, table); err != nil {
		return database.BarRequest{}, err
	}
	var open []cart.Line
	for _, l := range s.cart.PendingLines(table) {
		if !l.RequestID.Valid {
			open = append(open, l)
		}
	}
	if len(open) == 0 {
		return database.BarRequest{}, ErrNothingToRequest
	}

	req, err := s.deps.Bar.OpenRequest(ctx, table, s.rep.ID)
	if err != nil {
		return database.BarRequest{}, err
	}

	tagged := 0
	for _, l := range open {
		if s.cart.UpdateLineRequestID(ctx, table, l.ProductID, l.UnitPrice, req.ID) {
			tagged++
		}
	}
	if tagged == 0 {
		if _, err := s.deps.Bar.Cancel(ctx, req.ID, s.rep.ID); err != nil {
			log.Error().Err(err).Str("request", req.ID.String()).Msg("cancel untagged bar request failed")
		}
		return database.BarRequest{}, ErrTagFailed
	}

	s.cart.SetBarRequestStatus(table, enum.TableBarStatusPending)
	if err := s.cart.Sync(ctx, table); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("sync after bar request failed")
	}
	return req, nil
}

// CancelBarRequest withdraws the rep's pending request.
func (s *Session) CancelBarRequest(ctx context.Context, table string, requestID uuid.UUID) (database.BarRequest, error) {
	req, err := s.deps.Bar.Cancel(ctx, requestID, s.rep.ID)
	if err != nil {
		return database.BarRequest{}, err
	}
	s.cart.SetBarRequestStatus(table, enum.TableBarStatusNone)
	if err := s.cart.Sync(ctx, table); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("sync after cancel failed")
	}
	return req, nil
}

// DismissRequestLines deletes the lines of a rejected bar request from
// table. Lines still pending or approved under the request stay.
func (s *Session) DismissRequestLines(ctx context.Context, table string, requestID uuid.UUID) error {
	if err := s.cart.Sync(ctx, table); err != nil {
		return err
	}
	found := false
	for _, l := range s.cart.Lines(table) {
		if !l.RequestID.Valid || l.RequestID.UUID != requestID {
			continue
		}
		if l.ApprovalStatus != enum.ApprovalStatusRejected {
			return ErrRequestLinesActive
		}
		found = true
	}
	if !found {
		return ErrNoRequestLines
	}

	if !s.cart.RemoveLineByRequestID(ctx, table, requestID) {
		return fmt.Errorf("remove lines of request %s failed", requestID)
	}
	return s.cart.Sync(ctx, table)
}

// Checkout records the table's sale and clears it. Tables with lines still
// awaiting the bar cannot be checked out. The cart is only cleared after
// the sale was recorded.
func (s *Session) Checkout(ctx context.Context, table string) (*ledger.Sale, error) {
	if err := s.cart.Sync(ctx, table); err != nil {
		return nil, err
	}
	if len(s.cart.PendingLines(table)) > 0 {
		return nil, ErrPendingLines
	}
	lines := s.cart.ApprovedLines(table)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	sale := ledger.NewSale(table, s.rep, lines, s.deps.Now())
	if err := s.deps.Ledger.RecordSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	if _, err := s.cart.FinalizeSale(ctx, table); err != nil {
		log.Error().Err(err).Str("sale_id", sale.ID.String()).Str("table", table).Msg("sale recorded but cart not cleared")
		return nil, err
	}

	if s.SelectedTable() == table {
		if err := s.SelectTable(ctx, ""); err != nil {
			log.Warn().Err(err).Msg("clear selected table failed")
		}
	}
	return &sale, nil
}
