package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

var (
	testRepID     = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testBarUserID = uuid.MustParse("00000000-0000-0000-0000-0000000000b9")
	testBeerID    = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	testWineID    = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
)

// barFixture wires a pending request on T1 with two requested lines and
// records every write the service makes.
type barFixture struct {
	store   *mockStore
	request database.BarRequest
	lines   []database.CartItem

	fulfillments []database.CreateBarFulfillmentParams
	upserts      []database.UpsertCartItemParams
	updates      []database.UpdateCartItemQuantityParams
	deletes      []uuid.UUID
	moves        []database.MoveCartItemsParams
	untags       int
	statuses     []database.UpdateBarRequestStatusParams
}

func newBarFixture() *barFixture {
	f := &barFixture{
		request: database.BarRequest{ID: uuid.New(), TableID: "T1", SalesRepID: testRepID, Status: enum.BarRequestStatusPending},
	}
	f.lines = []database.CartItem{
		{ID: uuid.New(), TableID: "T1", ProductID: testBeerID, ProductName: "Beer", Quantity: 3,
			UnitPrice: makeNumeric("500"), UnitCost: makeNumeric("300"), ApprovalStatus: enum.ApprovalStatusPending,
			SalesRepID: testRepID, SalesRepName: "Ada"},
		{ID: uuid.New(), TableID: "T1", ProductID: testWineID, ProductName: "Wine", Quantity: 1,
			UnitPrice: makeNumeric("2000"), UnitCost: makeNumeric("1200"), ApprovalStatus: enum.ApprovalStatusPending,
			SalesRepID: testRepID, SalesRepName: "Ada"},
	}
	f.store = &mockStore{
		getBarRequestForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.BarRequest, error) {
			if id != f.request.ID {
				return database.BarRequest{}, pgx.ErrNoRows
			}
			return f.request, nil
		},
		listPendingByRequestFn: func(ctx context.Context, requestID uuid.UUID) ([]database.CartItem, error) {
			return f.lines, nil
		},
		createBarFulfillmentFn: func(ctx context.Context, arg database.CreateBarFulfillmentParams) (database.BarFulfillment, error) {
			f.fulfillments = append(f.fulfillments, arg)
			return database.BarFulfillment{ID: uuid.New(), BarRequestID: arg.BarRequestID, ProductID: arg.ProductID, ApprovedQuantity: arg.ApprovedQuantity}, nil
		},
		upsertCartItemFn: func(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error) {
			f.upserts = append(f.upserts, arg)
			return database.CartItem{}, nil
		},
		updateCartItemQuantityFn: func(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error) {
			f.updates = append(f.updates, arg)
			return database.CartItem{}, nil
		},
		deleteCartItemFn: func(ctx context.Context, id uuid.UUID) error {
			f.deletes = append(f.deletes, id)
			return nil
		},
		moveCartItemsFn: func(ctx context.Context, arg database.MoveCartItemsParams) (int64, error) {
			f.moves = append(f.moves, arg)
			return 1, nil
		},
		setCartItemsRequestFn: func(ctx context.Context, arg database.SetCartItemsRequestParams) (int64, error) {
			if arg.RequestID.Valid || arg.ProductID.Valid {
				panic("untag must clear request id for every pending line")
			}
			f.untags++
			return 0, nil
		},
		updateBarRequestStatusFn: func(ctx context.Context, arg database.UpdateBarRequestStatusParams) (database.BarRequest, error) {
			f.statuses = append(f.statuses, arg)
			r := f.request
			r.Status = arg.Status
			return r, nil
		},
	}
	return f
}

// =====================
// OpenRequest
// =====================

func TestOpenRequest(t *testing.T) {
	f := newBarFixture()
	f.store.getPendingBarRequestForTableFn = func(ctx context.Context, tableID string) (database.BarRequest, error) {
		return database.BarRequest{}, pgx.ErrNoRows
	}
	f.store.createBarRequestFn = func(ctx context.Context, arg database.CreateBarRequestParams) (database.BarRequest, error) {
		if arg.TableID != "T1" || arg.SalesRepID != testRepID {
			t.Errorf("unexpected params: %+v", arg)
		}
		return f.request, nil
	}
	svc, _ := newTestBarService(f.store)

	req, err := svc.OpenRequest(context.Background(), "T1", testRepID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID != f.request.ID {
		t.Errorf("request id: got %s", req.ID)
	}
}

func TestOpenRequest_AlreadyPending(t *testing.T) {
	tests := []struct {
		name      string
		existing  error
		createErr error
	}{
		{"found by lookup", nil, nil},
		{"lost the race", pgx.ErrNoRows, &pgconn.PgError{Code: "23505", ConstraintName: "bar_requests_one_pending_per_table"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBarFixture()
			f.store.getPendingBarRequestForTableFn = func(ctx context.Context, tableID string) (database.BarRequest, error) {
				return f.request, tt.existing
			}
			f.store.createBarRequestFn = func(ctx context.Context, arg database.CreateBarRequestParams) (database.BarRequest, error) {
				return database.BarRequest{}, tt.createErr
			}
			svc, _ := newTestBarService(f.store)

			_, err := svc.OpenRequest(context.Background(), "T1", testRepID)
			if !errors.Is(err, ErrRequestAlreadyPending) {
				t.Fatalf("expected ErrRequestAlreadyPending, got %v", err)
			}
		})
	}
}

func TestHasPendingRequest(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{"pending", nil, true, false},
		{"none", pgx.ErrNoRows, false, false},
		{"db error", errors.New("boom"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBarFixture()
			f.store.getPendingBarRequestForTableFn = func(ctx context.Context, tableID string) (database.BarRequest, error) {
				return f.request, tt.err
			}
			svc, _ := newTestBarService(f.store)

			got, err := svc.HasPendingRequest(context.Background(), "T1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("pending: got %v, want %v", got, tt.want)
			}
		})
	}
}

// =====================
// Approve
// =====================

func TestApprove_DefaultsToEveryRequestedLine(t *testing.T) {
	f := newBarFixture()
	svc, tx := newTestBarService(f.store)

	res, err := svc.Approve(context.Background(), ApproveRequest{RequestID: f.request.ID, BarUserID: testBarUserID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if res.Request.Status != enum.BarRequestStatusApproved {
		t.Errorf("request status: got %q", res.Request.Status)
	}
	if len(res.Fulfillments) != 2 || len(f.fulfillments) != 2 {
		t.Fatalf("expected 2 fulfillments, got %d", len(f.fulfillments))
	}
	if f.fulfillments[0].ApprovedQuantity != 3 || f.fulfillments[0].SalesRepID != testRepID {
		t.Errorf("beer fulfillment: %+v", f.fulfillments[0])
	}
	if len(f.upserts) != 2 {
		t.Fatalf("expected 2 approved upserts, got %d", len(f.upserts))
	}
	for _, u := range f.upserts {
		if u.ApprovalStatus != enum.ApprovalStatusApproved || !u.RequestID.Valid {
			t.Errorf("upsert: %+v", u)
		}
	}
	if len(f.deletes) != 2 || len(f.updates) != 0 {
		t.Errorf("full approval must delete pending rows: deletes=%d updates=%d", len(f.deletes), len(f.updates))
	}
	if f.untags != 1 {
		t.Errorf("untag calls: got %d", f.untags)
	}
	if len(f.statuses) != 1 || f.statuses[0].FromStatus != enum.BarRequestStatusPending || f.statuses[0].ProcessedBy.Bytes != testBarUserID {
		t.Errorf("status update: %+v", f.statuses)
	}
}

func TestApprove_PartialQuantityReducesPendingLine(t *testing.T) {
	f := newBarFixture()
	svc, _ := newTestBarService(f.store)

	_, err := svc.Approve(context.Background(), ApproveRequest{
		RequestID: f.request.ID,
		BarUserID: testBarUserID,
		Items:     []ApproveItem{{ProductID: testBeerID, UnitPrice: decimal.NewFromInt(500), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.upserts) != 1 || f.upserts[0].Quantity != 2 {
		t.Fatalf("approved upsert: %+v", f.upserts)
	}
	if len(f.updates) != 1 {
		t.Fatalf("expected pending line reduced, got %d updates", len(f.updates))
	}
	u := f.updates[0]
	if u.ID != f.lines[0].ID || u.Quantity != 1 || !numericEquals(u.TotalPrice, "500") || !numericEquals(u.ProfitAmount, "200") {
		t.Errorf("pending update: %+v", u)
	}
	if len(f.deletes) != 0 {
		t.Errorf("no pending row should be deleted, got %d", len(f.deletes))
	}
}

func TestApprove_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *barFixture)
		items   []ApproveItem
		wantErr error
	}{
		{
			name:    "not found",
			setup:   func(f *barFixture) { f.request.ID = uuid.New() },
			wantErr: ErrRequestNotFound,
		},
		{
			name:    "not pending",
			setup:   func(f *barFixture) { f.request.Status = enum.BarRequestStatusApproved },
			wantErr: ErrRequestNotPending,
		},
		{
			name:    "quantity exceeds requested",
			items:   []ApproveItem{{ProductID: testBeerID, UnitPrice: decimal.NewFromInt(500), Quantity: 4}},
			wantErr: ErrQuantityExceedsRequested,
		},
		{
			name:    "item not requested",
			items:   []ApproveItem{{ProductID: testBeerID, UnitPrice: decimal.NewFromInt(450), Quantity: 1}},
			wantErr: ErrItemNotRequested,
		},
		{
			name:    "zero quantity",
			items:   []ApproveItem{{ProductID: testBeerID, UnitPrice: decimal.NewFromInt(500), Quantity: 0}},
			wantErr: ErrInvalidQuantity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBarFixture()
			reqID := f.request.ID
			if tt.setup != nil {
				tt.setup(f)
			}
			svc, tx := newTestBarService(f.store)

			_, err := svc.Approve(context.Background(), ApproveRequest{RequestID: reqID, BarUserID: testBarUserID, Items: tt.items})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if tx.committed {
				t.Error("must not commit on error")
			}
		})
	}
}

func TestApprove_BeginError(t *testing.T) {
	f := newBarFixture()
	svc := NewBarService(&mockTxBeginner{err: errors.New("pool closed")}, nil, func(db database.DBTX) BarStore { return f.store })
	if _, err := svc.Approve(context.Background(), ApproveRequest{RequestID: f.request.ID}); err == nil {
		t.Fatal("expected error")
	}
}

// =====================
// Reject / Cancel
// =====================

func TestReject_MovesRequestLinesToRejected(t *testing.T) {
	f := newBarFixture()
	svc, tx := newTestBarService(f.store)

	req, err := svc.Reject(context.Background(), f.request.ID, testBarUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != enum.BarRequestStatusRejected || !tx.committed {
		t.Fatalf("status %q committed %v", req.Status, tx.committed)
	}
	if len(f.moves) != 1 {
		t.Fatalf("expected 1 move, got %d", len(f.moves))
	}
	m := f.moves[0]
	if m.ToStatus != enum.ApprovalStatusRejected || m.RequestID.Bytes != f.request.ID || m.SalesRepID != testRepID {
		t.Errorf("move params: %+v", m)
	}
}

func TestCancel(t *testing.T) {
	t.Run("owner cancels", func(t *testing.T) {
		f := newBarFixture()
		svc, tx := newTestBarService(f.store)

		req, err := svc.Cancel(context.Background(), f.request.ID, testRepID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Status != enum.BarRequestStatusCancelled || f.untags != 1 || !tx.committed {
			t.Fatalf("status %q untags %d committed %v", req.Status, f.untags, tx.committed)
		}
	})

	t.Run("other rep", func(t *testing.T) {
		f := newBarFixture()
		svc, _ := newTestBarService(f.store)

		if _, err := svc.Cancel(context.Background(), f.request.ID, uuid.New()); !errors.Is(err, ErrNotRequestOwner) {
			t.Fatalf("expected ErrNotRequestOwner, got %v", err)
		}
	})
}

// =====================
// ModifyFulfillment / ListRequests
// =====================

func TestModifyFulfillment(t *testing.T) {
	fid := uuid.New()
	tests := []struct {
		name       string
		qty        int32
		wantStatus string
		wantErr    error
	}{
		{"reduce", 1, enum.FulfillmentStatusApproved, nil},
		{"zero rejects", 0, enum.FulfillmentStatusRejected, nil},
		{"negative", -1, "", ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got database.UpdateBarFulfillmentParams
			store := &mockStore{
				getBarFulfillmentFn: func(ctx context.Context, id uuid.UUID) (database.BarFulfillment, error) {
					return database.BarFulfillment{ID: id}, nil
				},
				updateBarFulfillmentFn: func(ctx context.Context, arg database.UpdateBarFulfillmentParams) (database.BarFulfillment, error) {
					got = arg
					return database.BarFulfillment{ID: arg.ID, ApprovedQuantity: arg.ApprovedQuantity, Status: arg.Status}, nil
				},
			}
			svc, _ := newTestBarService(store)

			_, err := svc.ModifyFulfillment(context.Background(), fid, tt.qty, testBarUserID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got.Status != tt.wantStatus || got.ModifiedBy != testBarUserID {
				t.Errorf("update params: %+v", got)
			}
		})
	}
}

func TestModifyFulfillment_NotFound(t *testing.T) {
	store := &mockStore{
		getBarFulfillmentFn: func(ctx context.Context, id uuid.UUID) (database.BarFulfillment, error) {
			return database.BarFulfillment{}, pgx.ErrNoRows
		},
	}
	svc, _ := newTestBarService(store)
	if _, err := svc.ModifyFulfillment(context.Background(), uuid.New(), 1, testBarUserID); !errors.Is(err, ErrFulfillmentNotFound) {
		t.Fatalf("expected ErrFulfillmentNotFound, got %v", err)
	}
}

func TestListRequests(t *testing.T) {
	var got database.ListBarRequestsParams
	store := &mockStore{
		listBarRequestsFn: func(ctx context.Context, arg database.ListBarRequestsParams) ([]database.BarRequest, error) {
			got = arg
			return []database.BarRequest{}, nil
		},
	}
	svc, _ := newTestBarService(store)

	if _, err := svc.ListRequests(context.Background(), "pending"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Status.Valid || got.Status.String != "pending" || got.Limit != defaultListLimit {
		t.Errorf("params: %+v", got)
	}
	if _, err := svc.ListRequests(context.Background(), ""); err != nil || got.Status.Valid {
		t.Errorf("empty filter: err=%v params=%+v", err, got)
	}
	if _, err := svc.ListRequests(context.Background(), "given"); !errors.Is(err, ErrInvalidStatusFilter) {
		t.Errorf("expected ErrInvalidStatusFilter, got %v", err)
	}
}
