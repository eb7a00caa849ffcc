package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
	"github.com/shopspring/decimal"
)

// Errors returned by the modification service.
var (
	ErrOriginalRequired        = errors.New("original line is required")
	ErrReasonRequired          = errors.New("reason is required")
	ErrInvalidModificationType = errors.New("invalid modification type")
	ErrReplacementRequired     = errors.New("replacement product is required for an exchange")
	ErrNegativePrice           = errors.New("replacement price and cost must not be negative")
	ErrQuantityExceedsApproved = errors.New("new quantity exceeds approved quantity")
	ErrOriginalNotFound        = errors.New("original line not found")
	ErrOriginalNotApproved     = errors.New("only approved lines can be modified")
	ErrModificationNotFound    = errors.New("modification request not found")
	ErrModificationNotPending  = errors.New("modification request is not pending")
)

// ModificationStore defines the DB methods the modification workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type ModificationStore interface {
	GetCartItem(ctx context.Context, id uuid.UUID) (database.CartItem, error)
	UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	CreateModificationRequest(ctx context.Context, arg database.CreateModificationRequestParams) (database.ModificationRequest, error)
	GetModificationRequest(ctx context.Context, id uuid.UUID) (database.ModificationRequest, error)
	ListModificationRequests(ctx context.Context, arg database.ListModificationRequestsParams) ([]database.ModificationRequest, error)
	ResolveModificationRequest(ctx context.Context, arg database.ResolveModificationRequestParams) (database.ModificationRequest, error)
}

// NewModificationStore creates a ModificationStore from a DBTX (pool or tx).
type NewModificationStore func(db database.DBTX) ModificationStore

// SubmitModificationRequest is a rep's ask to change an approved line.
// NewQuantity is the quantity the rep wants to keep for quantity_change and
// the replacement quantity for exchange (0 means the original quantity).
type SubmitModificationRequest struct {
	TableID        string
	SalesRepID     uuid.UUID
	Type           string
	OriginalItemID uuid.UUID
	NewProductID   uuid.UUID
	NewProductName string
	NewUnitPrice   decimal.Decimal
	NewUnitCost    decimal.Decimal
	NewQuantity    int32
	Reason         string
}

// ModificationService handles modification requests against approved lines.
type ModificationService struct {
	pool     TxBeginner
	db       database.DBTX
	newStore NewModificationStore
}

// NewModificationService creates a new ModificationService.
func NewModificationService(pool TxBeginner, db database.DBTX, newStore NewModificationStore) *ModificationService {
	return &ModificationService{pool: pool, db: db, newStore: newStore}
}

// validate checks the preconditions that need no store access.
func (r *SubmitModificationRequest) validate() error {
	if r.OriginalItemID == uuid.Nil {
		return ErrOriginalRequired
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return ErrReasonRequired
	}
	switch r.Type {
	case enum.ModificationTypeExchange:
		if r.NewProductID == uuid.Nil || strings.TrimSpace(r.NewProductName) == "" {
			return ErrReplacementRequired
		}
		if r.NewUnitPrice.IsNegative() || r.NewUnitCost.IsNegative() {
			return ErrNegativePrice
		}
		if r.NewQuantity < 0 {
			return ErrInvalidQuantity
		}
	case enum.ModificationTypeQuantityChange:
		if r.NewQuantity <= 0 {
			return ErrInvalidQuantity
		}
	case enum.ModificationTypeReturn:
	default:
		return ErrInvalidModificationType
	}
	return nil
}

// Submit validates req and writes one pending modification request.
func (s *ModificationService) Submit(ctx context.Context, req SubmitModificationRequest) (database.ModificationRequest, error) {
	if err := req.validate(); err != nil {
		return database.ModificationRequest{}, err
	}

	store := s.newStore(s.db)
	orig, err := store.GetCartItem(ctx, req.OriginalItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ModificationRequest{}, ErrOriginalNotFound
		}
		return database.ModificationRequest{}, fmt.Errorf("get original line: %w", err)
	}
	if orig.SalesRepID != req.SalesRepID || orig.TableID != req.TableID {
		return database.ModificationRequest{}, ErrOriginalNotFound
	}
	if orig.ApprovalStatus != enum.ApprovalStatusApproved {
		return database.ModificationRequest{}, ErrOriginalNotApproved
	}

	params := database.CreateModificationRequestParams{
		TableID:             req.TableID,
		SalesRepID:          req.SalesRepID,
		Type:                req.Type,
		OriginalItemID:      pgtype.UUID{Bytes: orig.ID, Valid: true},
		OriginalProductID:   orig.ProductID,
		OriginalProductName: orig.ProductName,
		OriginalQuantity:    orig.Quantity,
		Reason:              req.Reason,
	}
	switch req.Type {
	case enum.ModificationTypeExchange:
		qty := req.NewQuantity
		if qty == 0 {
			qty = orig.Quantity
		}
		params.NewProductID = pgtype.UUID{Bytes: req.NewProductID, Valid: true}
		params.NewProductName = pgtype.Text{String: strings.TrimSpace(req.NewProductName), Valid: true}
		params.NewUnitPrice = money.ToNumeric(req.NewUnitPrice)
		params.NewUnitCost = money.ToNumeric(req.NewUnitCost)
		params.NewQuantity = pgtype.Int4{Int32: qty, Valid: true}
	case enum.ModificationTypeQuantityChange:
		if req.NewQuantity > orig.Quantity {
			return database.ModificationRequest{}, ErrQuantityExceedsApproved
		}
		params.NewQuantity = pgtype.Int4{Int32: req.NewQuantity, Valid: true}
	}

	m, err := store.CreateModificationRequest(ctx, params)
	if err != nil {
		return database.ModificationRequest{}, fmt.Errorf("create modification request: %w", err)
	}
	return m, nil
}

// Approve resolves a pending modification and adjusts the original line in
// the same transaction. Quantities are applied as deltas against the line's
// current quantity, so approvals merged into it since submission are kept.
func (s *ModificationService) Approve(ctx context.Context, id, barUserID uuid.UUID) (database.ModificationRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ModificationRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	m, err := resolve(ctx, store, id, enum.ModificationStatusApproved, barUserID)
	if err != nil {
		return database.ModificationRequest{}, err
	}
	if !m.OriginalItemID.Valid {
		return database.ModificationRequest{}, ErrOriginalNotFound
	}
	orig, err := store.GetCartItem(ctx, m.OriginalItemID.Bytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ModificationRequest{}, ErrOriginalNotFound
		}
		return database.ModificationRequest{}, fmt.Errorf("get original line: %w", err)
	}

	switch m.Type {
	case enum.ModificationTypeExchange:
		if err := reduceLine(ctx, store, orig, m.OriginalQuantity); err != nil {
			return database.ModificationRequest{}, err
		}
		_, err = store.UpsertCartItem(ctx, database.UpsertCartItemParams{
			TableID:        orig.TableID,
			ProductID:      m.NewProductID.Bytes,
			ProductName:    m.NewProductName.String,
			Quantity:       m.NewQuantity.Int32,
			UnitPrice:      m.NewUnitPrice,
			UnitCost:       m.NewUnitCost,
			ApprovalStatus: enum.ApprovalStatusApproved,
			RequestID:      orig.RequestID,
			SalesRepID:     orig.SalesRepID,
			SalesRepName:   orig.SalesRepName,
		})
		if err != nil {
			return database.ModificationRequest{}, fmt.Errorf("add replacement line: %w", err)
		}
	case enum.ModificationTypeQuantityChange:
		if err := reduceLine(ctx, store, orig, m.OriginalQuantity-m.NewQuantity.Int32); err != nil {
			return database.ModificationRequest{}, err
		}
	case enum.ModificationTypeReturn:
		if err := reduceLine(ctx, store, orig, m.OriginalQuantity); err != nil {
			return database.ModificationRequest{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ModificationRequest{}, fmt.Errorf("commit tx: %w", err)
	}
	return m, nil
}

// Reject resolves a pending modification without touching any line.
func (s *ModificationService) Reject(ctx context.Context, id, barUserID uuid.UUID) (database.ModificationRequest, error) {
	return resolve(ctx, s.newStore(s.db), id, enum.ModificationStatusRejected, barUserID)
}

// List returns modification requests oldest first, optionally filtered.
func (s *ModificationService) List(ctx context.Context, status, table string) ([]database.ModificationRequest, error) {
	arg := database.ListModificationRequestsParams{Limit: defaultListLimit}
	if status != "" {
		switch status {
		case enum.ModificationStatusPending, enum.ModificationStatusApproved, enum.ModificationStatusRejected:
		default:
			return nil, ErrInvalidStatusFilter
		}
		arg.Status = pgtype.Text{String: status, Valid: true}
	}
	if table != "" {
		arg.TableID = pgtype.Text{String: table, Valid: true}
	}
	ms, err := s.newStore(s.db).ListModificationRequests(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list modification requests: %w", err)
	}
	return ms, nil
}

func resolve(ctx context.Context, store ModificationStore, id uuid.UUID, status string, by uuid.UUID) (database.ModificationRequest, error) {
	m, err := store.ResolveModificationRequest(ctx, database.ResolveModificationRequestParams{
		ID:         id,
		Status:     status,
		ResolvedBy: by,
	})
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.ModificationRequest{}, fmt.Errorf("resolve modification request: %w", err)
	}
	if _, err := store.GetModificationRequest(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ModificationRequest{}, ErrModificationNotFound
		}
		return database.ModificationRequest{}, fmt.Errorf("get modification request: %w", err)
	}
	return database.ModificationRequest{}, ErrModificationNotPending
}

// reduceLine takes by off item's quantity and deletes the row when nothing
// is left.
func reduceLine(ctx context.Context, store ModificationStore, item database.CartItem, by int32) error {
	if by <= 0 {
		return nil
	}
	remaining := item.Quantity - by
	if remaining <= 0 {
		if err := store.DeleteCartItem(ctx, item.ID); err != nil {
			return fmt.Errorf("delete line: %w", err)
		}
		return nil
	}
	t := cart.ComputeTotals(remaining, money.FromNumeric(item.UnitPrice), money.FromNumeric(item.UnitCost))
	_, err := store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
		ID:           item.ID,
		Quantity:     remaining,
		TotalPrice:   money.ToNumeric(t.Price),
		TotalCost:    money.ToNumeric(t.Cost),
		ProfitAmount: money.ToNumeric(t.Profit),
	})
	if err != nil {
		return fmt.Errorf("update line quantity: %w", err)
	}
	return nil
}
