package cart_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/cart/carttest"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
)

func TestMoveItemsToApproved(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, "T1", beer(2))
	mustAdd(t, s, "T1", cart.NewLine{ProductID: wineID, ProductName: "Wine", Quantity: 1, UnitPrice: dec("1000")})
	mustAdd(t, s, "T1", cart.NewLine{ProductID: suyaID, ProductName: "Suya", Quantity: 1, UnitPrice: dec("1000")})

	if !s.PendingTotal("T1").Equal(dec("3000")) {
		t.Fatalf("pending before: got %s, want 3000", s.PendingTotal("T1"))
	}
	if !s.MoveItemsToApproved(ctx, "T1") {
		t.Fatal("expected approval to succeed")
	}
	if !s.PendingTotal("T1").IsZero() {
		t.Errorf("pending after: got %s, want 0", s.PendingTotal("T1"))
	}
	if !s.ApprovedTotal("T1").Equal(dec("3000")) {
		t.Errorf("approved after: got %s, want 3000", s.ApprovedTotal("T1"))
	}
}

func TestMoveItemsToApproved_MergesIntoExistingApproved(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	approved := beer(1)
	approved.ApprovalStatus = enum.ApprovalStatusApproved
	mustAdd(t, s, "T1", approved)
	mustAdd(t, s, "T1", beer(2))

	if !s.MoveItemsToApproved(ctx, "T1") {
		t.Fatal("expected approval to succeed")
	}
	lines := s.ApprovedLines("T1")
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected one approved beer line of 3, got %+v", lines)
	}
}

func TestPartitionAndTotalsAdditivity(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "T1", beer(2))
	approved := cart.NewLine{ProductID: wineID, ProductName: "Wine", Quantity: 1, UnitPrice: dec("2000"), ApprovalStatus: enum.ApprovalStatusApproved}
	mustAdd(t, s, "T1", approved)
	rejected := cart.NewLine{ProductID: suyaID, ProductName: "Suya", Quantity: 1, UnitPrice: dec("700"), ApprovalStatus: enum.ApprovalStatusRejected}
	mustAdd(t, s, "T1", rejected)

	if got := len(s.ApprovedLines("T1")) + len(s.PendingLines("T1")); got != 2 {
		t.Fatalf("approved+pending: got %d lines, want 2", got)
	}
	for _, l := range s.ApprovedLines("T1") {
		if l.IsPending() {
			t.Fatalf("line in both partitions: %+v", l)
		}
	}
	if !s.Total("T1").Equal(dec("3700")) {
		t.Errorf("total: got %s, want 3700", s.Total("T1"))
	}
	sum := s.ApprovedTotal("T1").Add(s.PendingTotal("T1"))
	if !sum.Equal(dec("3000")) {
		t.Errorf("approved+pending: got %s, want 3000", sum)
	}
}

func TestMoveSpecificItemsToApproved_PartialFailure(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, "T1", beer(2))
	mustAdd(t, s, "T1", cart.NewLine{ProductID: wineID, ProductName: "Wine", Quantity: 1, UnitPrice: dec("2000")})
	mustAdd(t, s, "T1", cart.NewLine{ProductID: suyaID, ProductName: "Suya", Quantity: 1, UnitPrice: dec("700")})

	mem.FailMove = func(arg database.MoveCartItemsParams) error {
		if arg.ProductID.Valid && uuid.UUID(arg.ProductID.Bytes) == wineID {
			return carttest.ErrStore
		}
		return nil
	}

	if s.MoveSpecificItemsToApproved(ctx, "T1", []uuid.UUID{beerID, wineID}) {
		t.Fatal("expected false when one product fails")
	}
	if mem.MoveCalls != 2 {
		t.Errorf("move calls: got %d, want 2", mem.MoveCalls)
	}
	for _, l := range s.Lines("T1") {
		want := enum.ApprovalStatusPending
		if l.ProductID == beerID {
			want = enum.ApprovalStatusApproved
		}
		if l.ApprovalStatus != want {
			t.Errorf("%s: got %q, want %q", l.ProductName, l.ApprovalStatus, want)
		}
	}
}

func TestApplyApprovedIncrement_AccumulatesAndMatchesSync(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, "T1", beer(5))

	// Two approval batches: the store moves the quantity, the cache is patched.
	approve := func(qty int32) {
		t.Helper()
		requestID := uuid.New()
		if !s.ApplyApprovedIncrement("T1", requestID, beerID, dec("500"), qty) {
			t.Fatalf("increment %d: expected true", qty)
		}
		commitApproval(t, mem, requestID, qty)
	}
	approve(2)
	approve(1)

	approved := s.ApprovedLines("T1")
	if len(approved) != 1 || approved[0].Quantity != 3 {
		t.Fatalf("cache approved: got %+v, want one line of 3", approved)
	}
	if !approved[0].TotalPrice.Equal(dec("1500")) {
		t.Errorf("cache approved total: got %s, want 1500", approved[0].TotalPrice)
	}
	pending := s.PendingLines("T1")
	if len(pending) != 1 || pending[0].Quantity != 2 {
		t.Fatalf("cache pending: got %+v, want one line of 2", pending)
	}

	beforeSync := s.ApprovedTotal("T1")
	if err := s.Sync(ctx, "T1"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !s.ApprovedTotal("T1").Equal(beforeSync) {
		t.Errorf("approved total drifted on sync: %s -> %s", beforeSync, s.ApprovedTotal("T1"))
	}
	if got := mem.ApprovedQty("T1", beerID); got != 3 {
		t.Errorf("store approved qty: got %d, want 3", got)
	}
}

// commitApproval does to mem what the bar approval transaction does: the
// approved row gains qty and is tagged with the request, the pending row
// loses qty.
func commitApproval(t *testing.T, mem *carttest.MemStore, requestID uuid.UUID, qty int32) {
	t.Helper()
	ctx := context.Background()
	_, err := mem.UpsertCartItem(ctx, database.UpsertCartItemParams{
		TableID: "T1", ProductID: beerID, ProductName: "Beer", Quantity: qty,
		UnitPrice: money.ToNumeric(dec("500")), UnitCost: money.ToNumeric(dec("300")),
		ApprovalStatus: enum.ApprovalStatusApproved, SalesRepID: repID, SalesRepName: "Ada",
		RequestID: pgtype.UUID{Bytes: requestID, Valid: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	items, _ := mem.ListCartItemsByProduct(ctx, database.ListCartItemsByProductParams{
		TableID: "T1", SalesRepID: repID, ProductID: beerID, UnitPrice: money.ToNumeric(dec("500")),
		ApprovalStatus: enum.ApprovalStatusPending,
	})
	for _, it := range items {
		it.Quantity -= qty
		carttest.Recompute(&it)
		_, _ = mem.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID: it.ID, Quantity: it.Quantity, TotalPrice: it.TotalPrice, TotalCost: it.TotalCost, ProfitAmount: it.ProfitAmount,
		})
	}
}

func TestApplyApprovedIncrement_SyncBeforeEventIsNotCountedTwice(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, "T1", beer(3))

	requestID := uuid.New()
	commitApproval(t, mem, requestID, 2)
	// A rep mutation syncs the table before the approval event is handled.
	if err := s.Sync(ctx, "T1"); err != nil {
		t.Fatal(err)
	}
	if !s.ApplyApprovedIncrement("T1", requestID, beerID, dec("500"), 2) {
		t.Fatal("expected true for an already reflected approval")
	}

	a, p := s.ApprovedLines("T1"), s.PendingLines("T1")
	if len(a) != 1 || a[0].Quantity != 2 {
		t.Fatalf("approved: got %+v, want one line of 2", a)
	}
	if len(p) != 1 || p[0].Quantity != 1 {
		t.Fatalf("pending: got %+v, want one line of 1", p)
	}
}

func TestApplyApprovedIncrement_RepeatedEventIsIgnored(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "T1", beer(3))

	requestID := uuid.New()
	for i := 0; i < 2; i++ {
		if !s.ApplyApprovedIncrement("T1", requestID, beerID, dec("500"), 2) {
			t.Fatalf("increment %d: expected true", i)
		}
	}
	if a := s.ApprovedLines("T1"); len(a) != 1 || a[0].Quantity != 2 {
		t.Fatalf("approved: got %+v, want one line of 2", a)
	}
	if p := s.PendingLines("T1"); len(p) != 1 || p[0].Quantity != 1 {
		t.Fatalf("pending: got %+v, want one line of 1", p)
	}
}

func TestApplyApprovedIncrement_ConsumesPendingLine(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "T1", beer(2))

	if !s.ApplyApprovedIncrement("T1", uuid.New(), beerID, dec("500"), 2) {
		t.Fatal("expected true")
	}
	if got := s.PendingLines("T1"); len(got) != 0 {
		t.Fatalf("expected pending line consumed, got %+v", got)
	}
	a := s.ApprovedLines("T1")
	if len(a) != 1 || a[0].ID != uuid.Nil || a[0].ProductName != "Beer" || !a[0].UnitCost.Equal(dec("300")) {
		t.Fatalf("unexpected synthesized line: %+v", a)
	}
}

func TestApplyApprovedIncrement_UncachedOrInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	if s.ApplyApprovedIncrement("T404", uuid.New(), beerID, dec("500"), 1) {
		t.Error("uncached table: expected false")
	}
	mustAdd(t, s, "T1", beer(1))
	if s.ApplyApprovedIncrement("T1", uuid.New(), beerID, dec("500"), 0) {
		t.Error("zero quantity: expected false")
	}
}
