package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// requireRep fails fast before any store I/O.
func (s *Store) requireRep() (Rep, error) {
	rep, ok := s.CurrentUser()
	if !ok {
		return Rep{}, ErrAuthRequired
	}
	return rep, nil
}

// AddLine merges nl into table: a row on the same (product, unit price,
// approval status) gets its quantity incremented, otherwise a row is
// inserted. The merge is a single upsert in the order store.
func (s *Store) AddLine(ctx context.Context, table string, nl NewLine) error {
	rep, err := s.requireRep()
	if err != nil {
		return err
	}
	if nl.ProductID == uuid.Nil || nl.ProductName == "" {
		return ErrInvalidLine
	}
	if nl.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	status := nl.ApprovalStatus
	if status == "" {
		status = enum.ApprovalStatusPending
	}
	if !isValidStatus(status) {
		return ErrInvalidStatus
	}

	_, err = s.db.UpsertCartItem(ctx, database.UpsertCartItemParams{
		TableID:        table,
		ProductID:      nl.ProductID,
		ProductName:    nl.ProductName,
		Quantity:       nl.Quantity,
		UnitPrice:      money.ToNumeric(nl.UnitPrice),
		UnitCost:       money.ToNumeric(nl.UnitCost),
		ApprovalStatus: status,
		RequestID:      nullUUID(nl.RequestID),
		SalesRepID:     rep.ID,
		SalesRepName:   rep.Name,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("product", nl.ProductID.String()).Msg("add cart line failed")
		return &StoreError{Op: "add line", Err: err}
	}
	return s.Sync(ctx, table)
}

// RemoveLine deletes every row of the rep on (table, product, unit price).
func (s *Store) RemoveLine(ctx context.Context, table string, productID uuid.UUID, unitPrice decimal.Decimal) error {
	rep, err := s.requireRep()
	if err != nil {
		return err
	}
	_, err = s.db.DeleteCartItems(ctx, database.DeleteCartItemsParams{
		TableID:    table,
		SalesRepID: rep.ID,
		ProductID:  productID,
		UnitPrice:  money.ToNumeric(unitPrice),
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("product", productID.String()).Msg("remove cart line failed")
		return &StoreError{Op: "remove line", Err: err}
	}
	return s.Sync(ctx, table)
}

// UpdateQuantity sets the quantity of the pending row on (product, unit
// price) and recomputes its totals from the row's unit cost. A quantity <= 0
// removes the line. Approved rows only change through a modification
// request; ErrNotPending is returned when no pending row matches.
func (s *Store) UpdateQuantity(ctx context.Context, table string, productID uuid.UUID, unitPrice decimal.Decimal, qty int32) error {
	if qty <= 0 {
		return s.RemoveLine(ctx, table, productID, unitPrice)
	}
	rep, err := s.requireRep()
	if err != nil {
		return err
	}

	items, err := s.db.ListCartItemsByProduct(ctx, database.ListCartItemsByProductParams{
		TableID:        table,
		SalesRepID:     rep.ID,
		ProductID:      productID,
		UnitPrice:      money.ToNumeric(unitPrice),
		ApprovalStatus: enum.ApprovalStatusPending,
	})
	if err != nil {
		return &StoreError{Op: "update quantity", Err: err}
	}
	if len(items) == 0 {
		return ErrNotPending
	}

	for _, item := range items {
		t := ComputeTotals(qty, money.FromNumeric(item.UnitPrice), money.FromNumeric(item.UnitCost))
		_, err := s.db.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID:           item.ID,
			Quantity:     qty,
			TotalPrice:   money.ToNumeric(t.Price),
			TotalCost:    money.ToNumeric(t.Cost),
			ProfitAmount: money.ToNumeric(t.Profit),
		})
		if err != nil {
			log.Error().Err(err).Str("table", table).Str("item", item.ID.String()).Msg("update cart quantity failed")
			return &StoreError{Op: "update quantity", Err: err}
		}
	}
	return s.Sync(ctx, table)
}

// Clear deletes every row of the rep on table and drops the cached cart.
func (s *Store) Clear(ctx context.Context, table string) error {
	rep, err := s.requireRep()
	if err != nil {
		return err
	}
	_, err = s.db.ClearCartItems(ctx, database.ClearCartItemsParams{
		TableID:    table,
		SalesRepID: rep.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("clear cart failed")
		return &StoreError{Op: "clear", Err: err}
	}

	s.mu.Lock()
	s.dropLocked(table)
	s.mu.Unlock()
	return nil
}

// FinalizeSale returns the lines of table (nil when empty) and clears it.
// The snapshot is the last read of the lines; record the sale from it.
func (s *Store) FinalizeSale(ctx context.Context, table string) ([]Line, error) {
	if _, err := s.requireRep(); err != nil {
		return nil, err
	}
	snapshot := s.Lines(table)
	if len(snapshot) == 0 {
		snapshot = nil
	}
	if err := s.Clear(ctx, table); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// --- Batch primitives ---
//
// These report success as a bool so callers iterating many lines can carry
// on past a failure. They do not Sync; the caller syncs once at the end.

// UpdateLineByRequestID moves the pending lines of a bar request to status.
func (s *Store) UpdateLineByRequestID(ctx context.Context, table string, requestID uuid.UUID, status string) bool {
	rep, ok := s.CurrentUser()
	if !ok || !CanTransition(enum.ApprovalStatusPending, status) {
		return false
	}
	_, err := s.db.MoveCartItems(ctx, database.MoveCartItemsParams{
		TableID:    table,
		SalesRepID: rep.ID,
		RequestID:  pgUUID(requestID),
		ToStatus:   status,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("request", requestID.String()).Msg("update lines by request failed")
		return false
	}
	return true
}

// RemoveLineByRequestID deletes every line tagged with a bar request.
func (s *Store) RemoveLineByRequestID(ctx context.Context, table string, requestID uuid.UUID) bool {
	rep, ok := s.CurrentUser()
	if !ok {
		return false
	}
	_, err := s.db.DeleteCartItemsByRequest(ctx, database.DeleteCartItemsByRequestParams{
		TableID:    table,
		SalesRepID: rep.ID,
		RequestID:  requestID,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("request", requestID.String()).Msg("remove lines by request failed")
		return false
	}
	return true
}

// UpdateLineRequestID tags the pending line (product, unit price) with a bar
// request. It reports false when the store fails or no pending line matched.
func (s *Store) UpdateLineRequestID(ctx context.Context, table string, productID uuid.UUID, unitPrice decimal.Decimal, requestID uuid.UUID) bool {
	rep, ok := s.CurrentUser()
	if !ok {
		return false
	}
	n, err := s.db.SetCartItemsRequest(ctx, database.SetCartItemsRequestParams{
		TableID:    table,
		SalesRepID: rep.ID,
		ProductID:  pgUUID(productID),
		UnitPrice:  money.ToNumeric(unitPrice),
		RequestID:  pgUUID(requestID),
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Str("product", productID.String()).Msg("tag line with request failed")
		return false
	}
	return n > 0
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func nullUUID(id uuid.NullUUID) pgtype.UUID {
	if !id.Valid {
		return pgtype.UUID{}
	}
	return pgUUID(id.UUID)
}
