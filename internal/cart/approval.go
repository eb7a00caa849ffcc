package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MoveItemsToApproved approves every pending line of table in one store
// update, then syncs. It reports false on any failure.
func (s *Store) MoveItemsToApproved(ctx context.Context, table string) bool {
	rep, ok := s.CurrentUser()
	if !ok {
		return false
	}
	_, err := s.db.MoveCartItems(ctx, database.MoveCartItemsParams{
		TableID:    table,
		SalesRepID: rep.ID,
		ToStatus:   enum.ApprovalStatusApproved,
	})
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("approve pending lines failed")
		return false
	}
	return s.Sync(ctx, table) == nil
}

// MoveSpecificItemsToApproved approves the pending lines of the given
// products with one store update each. A failed product is logged and
// skipped; a single Sync follows. It reports whether every step succeeded.
func (s *Store) MoveSpecificItemsToApproved(ctx context.Context, table string, productIDs []uuid.UUID) bool {
	rep, ok := s.CurrentUser()
	if !ok {
		return false
	}
	allOK := true
	for _, pid := range productIDs {
		_, err := s.db.MoveCartItems(ctx, database.MoveCartItemsParams{
			TableID:    table,
			SalesRepID: rep.ID,
			ProductID:  pgUUID(pid),
			ToStatus:   enum.ApprovalStatusApproved,
		})
		if err != nil {
			log.Error().Err(err).Str("table", table).Str("product", pid.String()).Msg("approve line failed")
			allOK = false
		}
	}
	if err := s.Sync(ctx, table); err != nil {
		return false
	}
	return allOK
}

// ApplyApprovedIncrement adds qty approved by bar request requestID to the
// approved line (product, unit price) of a cached table and takes the same
// quantity off the matching pending line. It touches only the cache.
//
// Contract: the bar approval that produced the increment moves the same
// quantity pending -> approved in the order store and tags the approved row
// with the request. A cached approved line already tagged with requestID
// came from a Sync after that commit (or from an earlier patch for the same
// request), so the increment is skipped. Otherwise it is additive so
// successive approval batches accumulate.
func (s *Store) ApplyApprovedIncrement(table string, requestID, productID uuid.UUID, unitPrice decimal.Decimal, qty int32) bool {
	if qty <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.tables[table]
	if !ok {
		return false
	}

	approvedIdx, pendingIdx := -1, -1
	for i, l := range tc.Lines {
		if l.ProductID != productID || !l.UnitPrice.Equal(unitPrice) {
			continue
		}
		switch {
		case l.IsApproved():
			approvedIdx = i
		case l.IsPending():
			pendingIdx = i
		}
	}

	tag := uuid.NullUUID{UUID: requestID, Valid: true}
	if approvedIdx >= 0 {
		l := tc.Lines[approvedIdx]
		if l.RequestID == tag {
			return true
		}
		l = l.withQuantity(l.Quantity + qty)
		l.RequestID = tag
		tc.Lines[approvedIdx] = l
	} else {
		var base Line
		if pendingIdx >= 0 {
			base = tc.Lines[pendingIdx]
		} else {
			base = Line{ProductID: productID, UnitPrice: unitPrice, SalesRepID: s.rep.ID, SalesRepName: s.rep.Name}
		}
		// Row id is unknown until the next Sync.
		base.ID = uuid.Nil
		base.ApprovalStatus = enum.ApprovalStatusApproved
		base.RequestID = tag
		base.CreatedAt = s.now()
		tc.Lines = append(tc.Lines, base.withQuantity(qty))
	}

	if pendingIdx >= 0 {
		p := tc.Lines[pendingIdx]
		if remaining := p.Quantity - qty; remaining > 0 {
			tc.Lines[pendingIdx] = p.withQuantity(remaining)
		} else {
			tc.Lines = append(tc.Lines[:pendingIdx], tc.Lines[pendingIdx+1:]...)
		}
	}
	tc.UpdatedAt = s.now()
	return true
}
