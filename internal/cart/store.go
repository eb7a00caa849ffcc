// Package cart keeps a sales rep's per-table carts as a read-through cache of
// the order store. Every mutation writes to the store and then re-reads the
// table (Sync); the cache is never authoritative.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderStore defines the DB methods the cart needs.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	ListCartItems(ctx context.Context, arg database.ListCartItemsParams) ([]database.CartItem, error)
	ListCartItemsByProduct(ctx context.Context, arg database.ListCartItemsByProductParams) ([]database.CartItem, error)
	ListTablesForSalesRep(ctx context.Context, salesRepID uuid.UUID) ([]string, error)
	UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItems(ctx context.Context, arg database.DeleteCartItemsParams) (int64, error)
	ClearCartItems(ctx context.Context, arg database.ClearCartItemsParams) (int64, error)
	DeleteCartItemsByRequest(ctx context.Context, arg database.DeleteCartItemsByRequestParams) (int64, error)
	MoveCartItems(ctx context.Context, arg database.MoveCartItemsParams) (int64, error)
	SetCartItemsRequest(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error)
}

// Rep identifies the authenticated sales rep that owns the cached carts.
type Rep struct {
	ID   uuid.UUID
	Name string
}

// Store is the cache of one rep's table carts. The mutex only guards the
// cache; it is never held across an order store call, so a realtime patch
// and a Sync can interleave. The next Sync always reconciles.
type Store struct {
	db  OrderStore
	now func() time.Time

	mu     sync.RWMutex
	rep    Rep
	tables map[string]*TableCart
	order  []string
}

// NewStore creates an empty Store backed by db.
func NewStore(db OrderStore) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		tables: make(map[string]*TableCart),
	}
}

// SetCurrentUser sets the rep whose lines are read and written. Switching to
// a different rep drops every cached cart.
func (s *Store) SetCurrentUser(rep Rep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rep.ID != rep.ID {
		s.tables = make(map[string]*TableCart)
		s.order = nil
	}
	s.rep = rep
}

// CurrentUser returns the rep, or false when none is set.
func (s *Store) CurrentUser() (Rep, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rep, s.rep.ID != uuid.Nil
}

// Sync replaces the cached lines of table with the order store's rows for
// the current rep. Without a current rep it does nothing. On a read error
// the cache is left untouched.
func (s *Store) Sync(ctx context.Context, table string) error {
	rep, ok := s.CurrentUser()
	if !ok {
		return nil
	}

	items, err := s.db.ListCartItems(ctx, database.ListCartItemsParams{
		TableID:    table,
		SalesRepID: rep.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("rep", rep.ID.String()).Msg("cart sync failed")
		return &StoreError{Op: "sync", Err: err}
	}

	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = LineFromItem(item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The rep may have changed while the read was in flight.
	if s.rep.ID != rep.ID {
		return nil
	}
	tc := s.ensureLocked(table)
	tc.Lines = lines
	tc.UpdatedAt = s.now()
	return nil
}

// Restore syncs every table the current rep has rows on.
func (s *Store) Restore(ctx context.Context) error {
	rep, ok := s.CurrentUser()
	if !ok {
		return nil
	}
	tables, err := s.db.ListTablesForSalesRep(ctx, rep.ID)
	if err != nil {
		return &StoreError{Op: "restore", Err: err}
	}
	for _, t := range tables {
		if err := s.Sync(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// ensureLocked returns the cached cart for table, creating it with now and
// no bar request. Caller holds s.mu.
func (s *Store) ensureLocked(table string) *TableCart {
	tc, ok := s.tables[table]
	if ok {
		return tc
	}
	now := s.now()
	tc = &TableCart{
		TableID:          table,
		Lines:            []Line{},
		CreatedAt:        now,
		UpdatedAt:        now,
		BarRequestStatus: enum.TableBarStatusNone,
	}
	s.tables[table] = tc
	s.order = append(s.order, table)
	return tc
}

// dropLocked removes a table from the cache. Caller holds s.mu.
func (s *Store) dropLocked(table string) {
	if _, ok := s.tables[table]; !ok {
		return
	}
	delete(s.tables, table)
	for i, t := range s.order {
		if t == table {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// --- Accessors (snapshots) ---

// Cart returns a copy of the cached cart for table.
func (s *Store) Cart(table string) (TableCart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc, ok := s.tables[table]
	if !ok {
		return TableCart{}, false
	}
	cp := *tc
	cp.Lines = append([]Line(nil), tc.Lines...)
	return cp, true
}

// Lines returns every cached line of table, in store order.
func (s *Store) Lines(table string) []Line {
	return s.filter(table, func(Line) bool { return true })
}

// ApprovedLines returns the lines the bar approved.
func (s *Store) ApprovedLines(table string) []Line {
	return s.filter(table, Line.IsApproved)
}

// PendingLines returns lines awaiting approval, including ones without a status.
func (s *Store) PendingLines(table string) []Line {
	return s.filter(table, Line.IsPending)
}

func (s *Store) filter(table string, keep func(Line) bool) []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Line{}
	tc, ok := s.tables[table]
	if !ok {
		return out
	}
	for _, l := range tc.Lines {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Total sums total_price over every line of table.
func (s *Store) Total(table string) decimal.Decimal {
	return sumPrice(s.Lines(table))
}

// ApprovedTotal sums total_price over the approved lines.
func (s *Store) ApprovedTotal(table string) decimal.Decimal {
	return sumPrice(s.ApprovedLines(table))
}

// PendingTotal sums total_price over the pending lines.
func (s *Store) PendingTotal(table string) decimal.Decimal {
	return sumPrice(s.PendingLines(table))
}

// ActiveTables lists cached tables holding at least one line, in the order
// they were first cached.
func (s *Store) ActiveTables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, t := range s.order {
		if len(s.tables[t].Lines) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// BarRequestStatus returns the mirrored bar request status of table.
func (s *Store) BarRequestStatus(table string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tc, ok := s.tables[table]; ok {
		return tc.BarRequestStatus
	}
	return enum.TableBarStatusNone
}

// SetBarRequestStatus mirrors the latest bar request status onto table,
// creating the cached cart if needed.
func (s *Store) SetBarRequestStatus(table, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc := s.ensureLocked(table)
	tc.BarRequestStatus = status
	tc.UpdatedAt = s.now()
}
