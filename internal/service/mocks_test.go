package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/money"
	"github.com/shopspring/decimal"
)

// --- Transaction mocks ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- Store mocks ---

// mockStore implements BarStore and ModificationStore. Unset functions
// panic so a test fails loudly on an unexpected call.
type mockStore struct {
	createBarRequestFn             func(ctx context.Context, arg database.CreateBarRequestParams) (database.BarRequest, error)
	getBarRequestForUpdateFn       func(ctx context.Context, id uuid.UUID) (database.BarRequest, error)
	getPendingBarRequestForTableFn func(ctx context.Context, tableID string) (database.BarRequest, error)
	listBarRequestsFn              func(ctx context.Context, arg database.ListBarRequestsParams) ([]database.BarRequest, error)
	updateBarRequestStatusFn       func(ctx context.Context, arg database.UpdateBarRequestStatusParams) (database.BarRequest, error)
	createBarFulfillmentFn         func(ctx context.Context, arg database.CreateBarFulfillmentParams) (database.BarFulfillment, error)
	getBarFulfillmentFn            func(ctx context.Context, id uuid.UUID) (database.BarFulfillment, error)
	updateBarFulfillmentFn         func(ctx context.Context, arg database.UpdateBarFulfillmentParams) (database.BarFulfillment, error)
	listPendingByRequestFn         func(ctx context.Context, requestID uuid.UUID) ([]database.CartItem, error)
	getCartItemFn                  func(ctx context.Context, id uuid.UUID) (database.CartItem, error)
	upsertCartItemFn               func(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error)
	updateCartItemQuantityFn       func(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	deleteCartItemFn               func(ctx context.Context, id uuid.UUID) error
	moveCartItemsFn                func(ctx context.Context, arg database.MoveCartItemsParams) (int64, error)
	setCartItemsRequestFn          func(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error)
	createModificationFn           func(ctx context.Context, arg database.CreateModificationRequestParams) (database.ModificationRequest, error)
	getModificationFn              func(ctx context.Context, id uuid.UUID) (database.ModificationRequest, error)
	listModificationsFn            func(ctx context.Context, arg database.ListModificationRequestsParams) ([]database.ModificationRequest, error)
	resolveModificationFn          func(ctx context.Context, arg database.ResolveModificationRequestParams) (database.ModificationRequest, error)
}

func (m *mockStore) CreateBarRequest(ctx context.Context, arg database.CreateBarRequestParams) (database.BarRequest, error) {
	return m.createBarRequestFn(ctx, arg)
}
func (m *mockStore) GetBarRequestForUpdate(ctx context.Context, id uuid.UUID) (database.BarRequest, error) {
	return m.getBarRequestForUpdateFn(ctx, id)
}
func (m *mockStore) GetPendingBarRequestForTable(ctx context.Context, tableID string) (database.BarRequest, error) {
	return m.getPendingBarRequestForTableFn(ctx, tableID)
}
func (m *mockStore) ListBarRequests(ctx context.Context, arg database.ListBarRequestsParams) ([]database.BarRequest, error) {
	return m.listBarRequestsFn(ctx, arg)
}
func (m *mockStore) UpdateBarRequestStatus(ctx context.Context, arg database.UpdateBarRequestStatusParams) (database.BarRequest, error) {
	return m.updateBarRequestStatusFn(ctx, arg)
}
func (m *mockStore) CreateBarFulfillment(ctx context.Context, arg database.CreateBarFulfillmentParams) (database.BarFulfillment, error) {
	return m.createBarFulfillmentFn(ctx, arg)
}
func (m *mockStore) GetBarFulfillment(ctx context.Context, id uuid.UUID) (database.BarFulfillment, error) {
	return m.getBarFulfillmentFn(ctx, id)
}
func (m *mockStore) UpdateBarFulfillment(ctx context.Context, arg database.UpdateBarFulfillmentParams) (database.BarFulfillment, error) {
	return m.updateBarFulfillmentFn(ctx, arg)
}
func (m *mockStore) ListPendingCartItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]database.CartItem, error) {
	return m.listPendingByRequestFn(ctx, requestID)
}
func (m *mockStore) GetCartItem(ctx context.Context, id uuid.UUID) (database.CartItem, error) {
	return m.getCartItemFn(ctx, id)
}
func (m *mockStore) UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error) {
	return m.upsertCartItemFn(ctx, arg)
}
func (m *mockStore) UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error) {
	return m.updateCartItemQuantityFn(ctx, arg)
}
func (m *mockStore) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	return m.deleteCartItemFn(ctx, id)
}
func (m *mockStore) MoveCartItems(ctx context.Context, arg database.MoveCartItemsParams) (int64, error) {
	return m.moveCartItemsFn(ctx, arg)
}
func (m *mockStore) SetCartItemsRequest(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error) {
	return m.setCartItemsRequestFn(ctx, arg)
}
func (m *mockStore) CreateModificationRequest(ctx context.Context, arg database.CreateModificationRequestParams) (database.ModificationRequest, error) {
	return m.createModificationFn(ctx, arg)
}
func (m *mockStore) GetModificationRequest(ctx context.Context, id uuid.UUID) (database.ModificationRequest, error) {
	return m.getModificationFn(ctx, id)
}
func (m *mockStore) ListModificationRequests(ctx context.Context, arg database.ListModificationRequestsParams) ([]database.ModificationRequest, error) {
	return m.listModificationsFn(ctx, arg)
}
func (m *mockStore) ResolveModificationRequest(ctx context.Context, arg database.ResolveModificationRequestParams) (database.ModificationRequest, error) {
	return m.resolveModificationFn(ctx, arg)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	return money.ToNumeric(decimal.RequireFromString(val))
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return money.FromNumeric(n).Equal(decimal.RequireFromString(expected))
}

func newTestBarService(store *mockStore) (*BarService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) BarStore { return store }
	return NewBarService(pool, nil, newStore), tx
}

func newTestModificationService(store *mockStore) (*ModificationService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) ModificationStore { return store }
	return NewModificationService(pool, nil, newStore), tx
}
