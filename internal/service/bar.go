package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
	"github.com/shopspring/decimal"
)

const defaultListLimit = 100

// Errors returned by the bar service.
var (
	ErrRequestNotFound          = errors.New("bar request not found")
	ErrRequestNotPending        = errors.New("bar request is not pending")
	ErrRequestAlreadyPending    = errors.New("table already has a pending bar request")
	ErrNotRequestOwner          = errors.New("bar request belongs to another sales rep")
	ErrItemNotRequested         = errors.New("item is not part of the bar request")
	ErrQuantityExceedsRequested = errors.New("approved quantity exceeds requested quantity")
	ErrInvalidQuantity          = errors.New("quantity must be > 0")
	ErrFulfillmentNotFound      = errors.New("fulfillment not found")
	ErrInvalidStatusFilter      = errors.New("invalid status filter")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BarStore defines the DB methods the bar workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type BarStore interface {
	CreateBarRequest(ctx context.Context, arg database.CreateBarRequestParams) (database.BarRequest, error)
	GetBarRequestForUpdate(ctx context.Context, id uuid.UUID) (database.BarRequest, error)
	GetPendingBarRequestForTable(ctx context.Context, tableID string) (database.BarRequest, error)
	ListBarRequests(ctx context.Context, arg database.ListBarRequestsParams) ([]database.BarRequest, error)
	UpdateBarRequestStatus(ctx context.Context, arg database.UpdateBarRequestStatusParams) (database.BarRequest, error)
	CreateBarFulfillment(ctx context.Context, arg database.CreateBarFulfillmentParams) (database.BarFulfillment, error)
	GetBarFulfillment(ctx context.Context, id uuid.UUID) (database.BarFulfillment, error)
	UpdateBarFulfillment(ctx context.Context, arg database.UpdateBarFulfillmentParams) (database.BarFulfillment, error)
	ListPendingCartItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]database.CartItem, error)
	UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	MoveCartItems(ctx context.Context, arg database.MoveCartItemsParams) (int64, error)
	SetCartItemsRequest(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error)
}

// NewBarStore creates a BarStore from a DBTX (pool or tx).
type NewBarStore func(db database.DBTX) BarStore

// ApproveRequest is the bar's decision on a pending request. An empty Items
// approves every requested line at its full quantity.
type ApproveRequest struct {
	RequestID uuid.UUID
	BarUserID uuid.UUID
	Items     []ApproveItem
}

// ApproveItem approves Quantity of one requested line.
type ApproveItem struct {
	ProductID uuid.UUID
	UnitPrice decimal.Decimal
	Quantity  int32
}

// ApproveResult is the approved request with its fulfillments.
type ApproveResult struct {
	Request      database.BarRequest
	Fulfillments []database.BarFulfillment
}

// BarService runs the bar side of the request workflow.
type BarService struct {
	pool     TxBeginner
	db       database.DBTX
	newStore NewBarStore
}

// NewBarService creates a new BarService. db serves reads outside a
// transaction; it is usually the same pool.
func NewBarService(pool TxBeginner, db database.DBTX, newStore NewBarStore) *BarService {
	return &BarService{pool: pool, db: db, newStore: newStore}
}

// isPendingRequestConflict reports whether err is a unique violation on the
// one-pending-request-per-table index.
func isPendingRequestConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "bar_requests_one_pending_per_table"
	}
	return false
}

// OpenRequest creates a pending bar request for table. The caller tags the
// lines it covers.
func (s *BarService) OpenRequest(ctx context.Context, table string, repID uuid.UUID) (database.BarRequest, error) {
	store := s.newStore(s.db)
	if _, err := store.GetPendingBarRequestForTable(ctx, table); err == nil {
		return database.BarRequest{}, ErrRequestAlreadyPending
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.BarRequest{}, fmt.Errorf("check pending request: %w", err)
	}

	req, err := store.CreateBarRequest(ctx, database.CreateBarRequestParams{TableID: table, SalesRepID: repID})
	if err != nil {
		if isPendingRequestConflict(err) {
			return database.BarRequest{}, ErrRequestAlreadyPending
		}
		return database.BarRequest{}, fmt.Errorf("create bar request: %w", err)
	}
	return req, nil
}

// HasPendingRequest reports whether table has a request awaiting the bar.
func (s *BarService) HasPendingRequest(ctx context.Context, table string) (bool, error) {
	_, err := s.newStore(s.db).GetPendingBarRequestForTable(ctx, table)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check pending request: %w", err)
}

// Cancel withdraws a pending request on behalf of the rep who opened it and
// untags its lines so they can be requested again.
func (s *BarService) Cancel(ctx context.Context, requestID, repID uuid.UUID) (database.BarRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.BarRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	req, err := lockPendingRequest(ctx, store, requestID)
	if err != nil {
		return database.BarRequest{}, err
	}
	if req.SalesRepID != repID {
		return database.BarRequest{}, ErrNotRequestOwner
	}

	updated, err := store.UpdateBarRequestStatus(ctx, database.UpdateBarRequestStatusParams{
		ID:          req.ID,
		Status:      enum.BarRequestStatusCancelled,
		FromStatus:  enum.BarRequestStatusPending,
		ProcessedBy: pgtype.UUID{Bytes: repID, Valid: true},
	})
	if err != nil {
		return database.BarRequest{}, fmt.Errorf("cancel request: %w", err)
	}
	if err := untagPending(ctx, store, req); err != nil {
		return database.BarRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.BarRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// Approve writes one fulfillment per approved line and moves the same
// quantity pending -> approved in the order store, in one transaction.
// Unapproved remainders stay pending and untagged.
func (s *BarService) Approve(ctx context.Context, in ApproveRequest) (*ApproveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	req, err := lockPendingRequest(ctx, store, in.RequestID)
	if err != nil {
		return nil, err
	}

	lines, err := store.ListPendingCartItemsByRequest(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list requested lines: %w", err)
	}

	items := in.Items
	if len(items) == 0 {
		items = make([]ApproveItem, len(lines))
		for i, l := range lines {
			items[i] = ApproveItem{ProductID: l.ProductID, UnitPrice: money.FromNumeric(l.UnitPrice), Quantity: l.Quantity}
		}
	}

	result := &ApproveResult{Fulfillments: make([]database.BarFulfillment, 0, len(items))}
	for _, item := range items {
		line, err := findRequestedLine(lines, item)
		if err != nil {
			return nil, err
		}
		f, err := approveLine(ctx, store, req, line, item.Quantity)
		if err != nil {
			return nil, err
		}
		result.Fulfillments = append(result.Fulfillments, f)
	}

	if err := untagPending(ctx, store, req); err != nil {
		return nil, err
	}
	result.Request, err = store.UpdateBarRequestStatus(ctx, database.UpdateBarRequestStatusParams{
		ID:          req.ID,
		Status:      enum.BarRequestStatusApproved,
		FromStatus:  enum.BarRequestStatusPending,
		ProcessedBy: pgtype.UUID{Bytes: in.BarUserID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func findRequestedLine(lines []database.CartItem, item ApproveItem) (database.CartItem, error) {
	if item.Quantity <= 0 {
		return database.CartItem{}, ErrInvalidQuantity
	}
	for _, l := range lines {
		if l.ProductID == item.ProductID && money.FromNumeric(l.UnitPrice).Equal(item.UnitPrice) {
			if item.Quantity > l.Quantity {
				return database.CartItem{}, ErrQuantityExceedsRequested
			}
			return l, nil
		}
	}
	return database.CartItem{}, ErrItemNotRequested
}

// approveLine records the fulfillment, adds qty to the approved row and
// takes it off the pending row.
func approveLine(ctx context.Context, store BarStore, req database.BarRequest, line database.CartItem, qty int32) (database.BarFulfillment, error) {
	f, err := store.CreateBarFulfillment(ctx, database.CreateBarFulfillmentParams{
		BarRequestID:     req.ID,
		TableID:          req.TableID,
		SalesRepID:       line.SalesRepID,
		ProductID:        line.ProductID,
		ProductName:      line.ProductName,
		UnitPrice:        line.UnitPrice,
		ApprovedQuantity: qty,
		Status:           enum.FulfillmentStatusApproved,
	})
	if err != nil {
		return database.BarFulfillment{}, fmt.Errorf("create fulfillment: %w", err)
	}

	_, err = store.UpsertCartItem(ctx, database.UpsertCartItemParams{
		TableID:        line.TableID,
		ProductID:      line.ProductID,
		ProductName:    line.ProductName,
		Quantity:       qty,
		UnitPrice:      line.UnitPrice,
		UnitCost:       line.UnitCost,
		ApprovalStatus: enum.ApprovalStatusApproved,
		RequestID:      pgtype.UUID{Bytes: req.ID, Valid: true},
		SalesRepID:     line.SalesRepID,
		SalesRepName:   line.SalesRepName,
	})
	if err != nil {
		return database.BarFulfillment{}, fmt.Errorf("add approved line: %w", err)
	}

	remaining := line.Quantity - qty
	if remaining == 0 {
		if err := store.DeleteCartItem(ctx, line.ID); err != nil {
			return database.BarFulfillment{}, fmt.Errorf("remove pending line: %w", err)
		}
		return f, nil
	}
	t := cart.ComputeTotals(remaining, money.FromNumeric(line.UnitPrice), money.FromNumeric(line.UnitCost))
	_, err = store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
		ID:           line.ID,
		Quantity:     remaining,
		TotalPrice:   money.ToNumeric(t.Price),
		TotalCost:    money.ToNumeric(t.Cost),
		ProfitAmount: money.ToNumeric(t.Profit),
	})
	if err != nil {
		return database.BarFulfillment{}, fmt.Errorf("reduce pending line: %w", err)
	}
	return f, nil
}

// Reject marks a pending request and its lines rejected.
func (s *BarService) Reject(ctx context.Context, requestID, barUserID uuid.UUID) (database.BarRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.BarRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	req, err := lockPendingRequest(ctx, store, requestID)
	if err != nil {
		return database.BarRequest{}, err
	}

	_, err = store.MoveCartItems(ctx, database.MoveCartItemsParams{
		TableID:    req.TableID,
		SalesRepID: req.SalesRepID,
		RequestID:  pgtype.UUID{Bytes: req.ID, Valid: true},
		ToStatus:   enum.ApprovalStatusRejected,
	})
	if err != nil {
		return database.BarRequest{}, fmt.Errorf("reject lines: %w", err)
	}
	updated, err := store.UpdateBarRequestStatus(ctx, database.UpdateBarRequestStatusParams{
		ID:          req.ID,
		Status:      enum.BarRequestStatusRejected,
		FromStatus:  enum.BarRequestStatusPending,
		ProcessedBy: pgtype.UUID{Bytes: barUserID, Valid: true},
	})
	if err != nil {
		return database.BarRequest{}, fmt.Errorf("reject request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.BarRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// ModifyFulfillment changes the approved quantity of a fulfillment and
// stamps the modified marker the rep is notified on. A zero quantity marks
// it rejected. Cart lines are not touched.
func (s *BarService) ModifyFulfillment(ctx context.Context, id uuid.UUID, qty int32, barUserID uuid.UUID) (database.BarFulfillment, error) {
	if qty < 0 {
		return database.BarFulfillment{}, ErrInvalidQuantity
	}
	store := s.newStore(s.db)
	if _, err := store.GetBarFulfillment(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.BarFulfillment{}, ErrFulfillmentNotFound
		}
		return database.BarFulfillment{}, fmt.Errorf("get fulfillment: %w", err)
	}

	status := enum.FulfillmentStatusApproved
	if qty == 0 {
		status = enum.FulfillmentStatusRejected
	}
	f, err := store.UpdateBarFulfillment(ctx, database.UpdateBarFulfillmentParams{
		ID:               id,
		ApprovedQuantity: qty,
		Status:           status,
		ModifiedBy:       barUserID,
	})
	if err != nil {
		return database.BarFulfillment{}, fmt.Errorf("update fulfillment: %w", err)
	}
	return f, nil
}

// ListRequests returns bar requests oldest first. An empty status lists all.
func (s *BarService) ListRequests(ctx context.Context, status string) ([]database.BarRequest, error) {
	filter := pgtype.Text{}
	if status != "" {
		switch status {
		case enum.BarRequestStatusPending, enum.BarRequestStatusApproved,
			enum.BarRequestStatusRejected, enum.BarRequestStatusCancelled:
		default:
			return nil, ErrInvalidStatusFilter
		}
		filter = pgtype.Text{String: status, Valid: true}
	}
	reqs, err := s.newStore(s.db).ListBarRequests(ctx, database.ListBarRequestsParams{Status: filter, Limit: defaultListLimit})
	if err != nil {
		return nil, fmt.Errorf("list bar requests: %w", err)
	}
	return reqs, nil
}

func lockPendingRequest(ctx context.Context, store BarStore, id uuid.UUID) (database.BarRequest, error) {
	req, err := store.GetBarRequestForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.BarRequest{}, ErrRequestNotFound
		}
		return database.BarRequest{}, fmt.Errorf("get bar request: %w", err)
	}
	if req.Status != enum.BarRequestStatusPending {
		return database.BarRequest{}, ErrRequestNotPending
	}
	return req, nil
}

// untagPending clears the request id from the rep's remaining pending lines
// on the request's table.
func untagPending(ctx context.Context, store BarStore, req database.BarRequest) error {
	_, err := store.SetCartItemsRequest(ctx, database.SetCartItemsRequestParams{
		TableID:    req.TableID,
		SalesRepID: req.SalesRepID,
	})
	if err != nil {
		return fmt.Errorf("untag pending lines: %w", err)
	}
	return nil
}
