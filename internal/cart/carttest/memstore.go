// Package carttest provides an in-memory cart.OrderStore for tests.
package carttest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
)

// MemStore is an in-memory cart.OrderStore with the same merge-key semantics as
// the SQL in internal/database. Fail* hooks inject errors per method.
type MemStore struct {
	mu    sync.Mutex
	rows  []database.CartItem
	clock time.Time

	FailList   error
	FailUpsert error
	FailUpdate error
	FailDelete error
	FailClear  error
	FailMove   func(arg database.MoveCartItemsParams) error
	FailTag    error

	ListCalls   int
	UpsertCalls int
	MoveCalls   int
}

// ErrStore is a generic failure for the Fail* hooks.
var ErrStore = errors.New("store unavailable")

// NewMemStore returns an empty store with a deterministic clock.
func NewMemStore() *MemStore {
	return &MemStore{clock: time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)}
}

func (m *MemStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func sameNumeric(a, b pgtype.Numeric) bool {
	return money.FromNumeric(a).Equal(money.FromNumeric(b))
}

// Recompute sets the derived totals of r from its quantity.
func Recompute(r *database.CartItem) {
	t := cart.ComputeTotals(r.Quantity, money.FromNumeric(r.UnitPrice), money.FromNumeric(r.UnitCost))
	r.TotalPrice = money.ToNumeric(t.Price)
	r.TotalCost = money.ToNumeric(t.Cost)
	r.ProfitAmount = money.ToNumeric(t.Profit)
}

func (m *MemStore) ListCartItems(ctx context.Context, arg database.ListCartItemsParams) ([]database.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.FailList != nil {
		return nil, m.FailList
	}
	out := []database.CartItem{}
	for _, r := range m.rows {
		if r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) ListCartItemsByProduct(ctx context.Context, arg database.ListCartItemsByProductParams) ([]database.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.CartItem{}
	for _, r := range m.rows {
		if r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID && r.ProductID == arg.ProductID &&
			sameNumeric(r.UnitPrice, arg.UnitPrice) && r.ApprovalStatus == arg.ApprovalStatus {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) ListTablesForSalesRep(ctx context.Context, salesRepID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, r := range m.rows {
		if r.SalesRepID == salesRepID && !seen[r.TableID] {
			seen[r.TableID] = true
			out = append(out, r.TableID)
		}
	}
	return out, nil
}

func (m *MemStore) UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.FailUpsert != nil {
		return database.CartItem{}, m.FailUpsert
	}
	for i, r := range m.rows {
		if r.TableID == arg.TableID && r.ProductID == arg.ProductID && sameNumeric(r.UnitPrice, arg.UnitPrice) &&
			r.SalesRepID == arg.SalesRepID && r.ApprovalStatus == arg.ApprovalStatus {
			m.rows[i].Quantity += arg.Quantity
			if arg.RequestID.Valid {
				m.rows[i].RequestID = arg.RequestID
			}
			Recompute(&m.rows[i])
			m.rows[i].UpdatedAt = m.tick()
			return m.rows[i], nil
		}
	}
	now := m.tick()
	row := database.CartItem{
		ID:             uuid.New(),
		TableID:        arg.TableID,
		ProductID:      arg.ProductID,
		ProductName:    arg.ProductName,
		Quantity:       arg.Quantity,
		UnitPrice:      arg.UnitPrice,
		UnitCost:       arg.UnitCost,
		ApprovalStatus: arg.ApprovalStatus,
		RequestID:      arg.RequestID,
		SalesRepID:     arg.SalesRepID,
		SalesRepName:   arg.SalesRepName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	Recompute(&row)
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *MemStore) UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		return database.CartItem{}, m.FailUpdate
	}
	for i, r := range m.rows {
		if r.ID == arg.ID {
			m.rows[i].Quantity = arg.Quantity
			m.rows[i].TotalPrice = arg.TotalPrice
			m.rows[i].TotalCost = arg.TotalCost
			m.rows[i].ProfitAmount = arg.ProfitAmount
			return m.rows[i], nil
		}
	}
	return database.CartItem{}, pgx.ErrNoRows
}

func (m *MemStore) deleteWhere(keep func(database.CartItem) bool) int64 {
	var n int64
	kept := m.rows[:0]
	for _, r := range m.rows {
		if keep(r) {
			kept = append(kept, r)
		} else {
			n++
		}
	}
	m.rows = kept
	return n
}

func (m *MemStore) DeleteCartItems(ctx context.Context, arg database.DeleteCartItemsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return 0, m.FailDelete
	}
	return m.deleteWhere(func(r database.CartItem) bool {
		return !(r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID && r.ProductID == arg.ProductID && sameNumeric(r.UnitPrice, arg.UnitPrice))
	}), nil
}

func (m *MemStore) ClearCartItems(ctx context.Context, arg database.ClearCartItemsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClear != nil {
		return 0, m.FailClear
	}
	return m.deleteWhere(func(r database.CartItem) bool {
		return !(r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID)
	}), nil
}

func (m *MemStore) DeleteCartItemsByRequest(ctx context.Context, arg database.DeleteCartItemsByRequestParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return 0, m.FailDelete
	}
	return m.deleteWhere(func(r database.CartItem) bool {
		return !(r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID && r.RequestID.Valid && uuid.UUID(r.RequestID.Bytes) == arg.RequestID)
	}), nil
}

func (m *MemStore) MoveCartItems(ctx context.Context, arg database.MoveCartItemsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MoveCalls++
	if m.FailMove != nil {
		if err := m.FailMove(arg); err != nil {
			return 0, err
		}
	}
	var moved []database.CartItem
	m.deleteWhere(func(r database.CartItem) bool {
		match := r.TableID == arg.TableID && r.SalesRepID == arg.SalesRepID && r.ApprovalStatus == enum.ApprovalStatusPending &&
			(!arg.ProductID.Valid || r.ProductID == uuid.UUID(arg.ProductID.Bytes)) &&
			(!arg.RequestID.Valid || (r.RequestID.Valid && r.RequestID.Bytes == arg.RequestID.Bytes))
		if match {
			moved = append(moved, r)
		}
		return !match
	})
	for _, r := range moved {
		merged := false
		for i, existing := range m.rows {
			if existing.TableID == r.TableID && existing.ProductID == r.ProductID && sameNumeric(existing.UnitPrice, r.UnitPrice) &&
				existing.SalesRepID == r.SalesRepID && existing.ApprovalStatus == arg.ToStatus {
				m.rows[i].Quantity += r.Quantity
				if r.RequestID.Valid {
					m.rows[i].RequestID = r.RequestID
				}
				Recompute(&m.rows[i])
				merged = true
				break
			}
		}
		if !merged {
			r.ApprovalStatus = arg.ToStatus
			m.rows = append(m.rows, r)
		}
	}
	return int64(len(moved)), nil
}

func (m *MemStore) SetCartItemsRequest(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTag != nil {
		return 0, m.FailTag
	}
	var n int64
	for i, r := range m.rows {
		if r.TableID != arg.TableID || r.SalesRepID != arg.SalesRepID || r.ApprovalStatus != enum.ApprovalStatusPending {
			continue
		}
		if arg.ProductID.Valid && r.ProductID != uuid.UUID(arg.ProductID.Bytes) {
			continue
		}
		if arg.UnitPrice.Valid && !sameNumeric(r.UnitPrice, arg.UnitPrice) {
			continue
		}
		m.rows[i].RequestID = arg.RequestID
		n++
	}
	return n, nil
}

// ApprovedQty returns the approved quantity of a product held in the store.
func (m *MemStore) ApprovedQty(table string, productID uuid.UUID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var q int32
	for _, r := range m.rows {
		if r.TableID == table && r.ProductID == productID && r.ApprovalStatus == enum.ApprovalStatusApproved {
			q += r.Quantity
		}
	}
	return q
}

// Rows returns a copy of every stored row.
func (m *MemStore) Rows() []database.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.CartItem(nil), m.rows...)
}
