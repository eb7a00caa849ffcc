package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const handleTimeout = 10 * time.Second

// CartReconciler is the part of *cart.Store the listener patches.
type CartReconciler interface {
	Sync(ctx context.Context, table string) error
	ApplyApprovedIncrement(table string, requestID, productID uuid.UUID, unitPrice decimal.Decimal, qty int32) bool
	UpdateLineByRequestID(ctx context.Context, table string, requestID uuid.UUID, status string) bool
	SetBarRequestStatus(table, status string)
}

// FulfillmentStore is satisfied by *database.Queries.
type FulfillmentStore interface {
	ListFulfillmentsByRequest(ctx context.Context, arg database.ListFulfillmentsByRequestParams) ([]database.BarFulfillment, error)
}

// Callbacks are invoked from the listener goroutine after an event has been
// applied. Either may be nil.
type Callbacks struct {
	// Modified receives bar edits to approved fulfillments. The cart is
	// not touched for these.
	Modified func(FulfillmentModified)
	// Changed is called after the cached cart of table was patched or synced.
	Changed func(table string)
}

// Listener keeps one rep's cart in step with bar-side changes on the
// selected table.
type Listener struct {
	broker       *Broker
	cart         CartReconciler
	fulfillments FulfillmentStore
	rep          uuid.UUID
	cb           Callbacks

	mu    sync.Mutex
	table string
	sub   *Subscription
	done  chan struct{}
}

// NewListener creates an idle listener for rep. Call Watch to start it.
func NewListener(broker *Broker, c CartReconciler, fulfillments FulfillmentStore, rep uuid.UUID, cb Callbacks) *Listener {
	return &Listener{broker: broker, cart: c, fulfillments: fulfillments, rep: rep, cb: cb}
}

// Watch subscribes to table, tearing any previous subscription down first.
func (l *Listener) Watch(table string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()

	sub := l.broker.Subscribe(table)
	done := make(chan struct{})
	l.table, l.sub, l.done = table, sub, done
	go l.run(sub, done)
}

// Stop removes the subscription and waits for in-flight handling to finish.
// Must not be called from a callback.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

// Table returns the watched table, or "" when stopped.
func (l *Listener) Table() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.table
}

func (l *Listener) stopLocked() {
	if l.sub == nil {
		return
	}
	l.sub.Close()
	<-l.done
	l.table, l.sub, l.done = "", nil, nil
}

func (l *Listener) run(sub *Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		l.handle(ctx, ev)
		cancel()
	}
}

func (l *Listener) handle(ctx context.Context, ev Event) {
	if ev.Rep() != l.rep {
		return
	}
	table := ev.Table()

	switch e := ev.(type) {
	case RequestApproved:
		l.applyApproval(ctx, e)

	case RequestStatusChanged:
		switch e.Status {
		case enum.BarRequestStatusRejected:
			// Lines tagged after the bar transaction committed are still
			// pending under the rejected request.
			if !l.cart.UpdateLineByRequestID(ctx, table, e.RequestID, enum.ApprovalStatusRejected) {
				log.Warn().Str("request", e.RequestID.String()).Msg("reject late request lines failed")
			}
			l.cart.SetBarRequestStatus(table, enum.TableBarStatusNone)
			l.sync(ctx, table)
		case enum.BarRequestStatusCancelled:
			l.cart.SetBarRequestStatus(table, enum.TableBarStatusNone)
			l.sync(ctx, table)
		case enum.BarRequestStatusPending:
			l.cart.SetBarRequestStatus(table, enum.TableBarStatusPending)
		default:
			return
		}

	case FulfillmentModified:
		if l.cb.Modified != nil {
			l.cb.Modified(e)
		}
		return

	case ModificationResolved:
		if e.Status != enum.ModificationStatusApproved {
			return
		}
		l.sync(ctx, table)

	default:
		return
	}

	if l.cb.Changed != nil {
		l.cb.Changed(table)
	}
}

// applyApproval adds the approved fulfillment quantities to the cached
// approved lines. The bar approval moved the same quantities in the Order
// Store, so a full Sync is only needed when the cache cannot be patched. A
// cache synced after the approval committed already holds the quantities
// and the patch is skipped per line.
func (l *Listener) applyApproval(ctx context.Context, e RequestApproved) {
	rows, err := l.fulfillments.ListFulfillmentsByRequest(ctx, database.ListFulfillmentsByRequestParams{
		BarRequestID: e.RequestID,
		Status:       enum.FulfillmentStatusApproved,
	})
	if err != nil {
		log.Error().Err(err).Str("request", e.RequestID.String()).Msg("load approved fulfillments failed")
		l.sync(ctx, e.TableID)
		l.cart.SetBarRequestStatus(e.TableID, enum.TableBarStatusGiven)
		return
	}

	patched := true
	for _, f := range rows {
		if f.ApprovedQuantity <= 0 {
			continue
		}
		if !l.cart.ApplyApprovedIncrement(e.TableID, e.RequestID, f.ProductID, money.FromNumeric(f.UnitPrice), f.ApprovedQuantity) {
			patched = false
		}
	}
	if !patched {
		l.sync(ctx, e.TableID)
	}
	l.cart.SetBarRequestStatus(e.TableID, enum.TableBarStatusGiven)
}

func (l *Listener) sync(ctx context.Context, table string) {
	if err := l.cart.Sync(ctx, table); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("realtime resync failed")
	}
}
