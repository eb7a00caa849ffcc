package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/money"
	"github.com/shopspring/decimal"
)

// Errors returned by the cart store.
var (
	ErrAuthRequired    = errors.New("authenticated sales rep required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidStatus   = errors.New("invalid approval_status")
	ErrInvalidLine     = errors.New("product_id and product_name are required")
	ErrNotPending      = errors.New("no pending line to change")
)

// StoreError wraps a failure returned by the order store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cart %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Line is one product line of a table cart.
type Line struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int32           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	Profit         decimal.Decimal `json:"profit"`
	ApprovalStatus string          `json:"approval_status"`
	RequestID      uuid.NullUUID   `json:"request_id"`
	SalesRepID     uuid.UUID       `json:"sales_rep_id"`
	SalesRepName   string          `json:"sales_rep_name"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewLine is the input for AddLine. An empty ApprovalStatus means pending.
type NewLine struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int32
	UnitPrice      decimal.Decimal
	UnitCost       decimal.Decimal
	ApprovalStatus string
	RequestID      uuid.NullUUID
}

// TableCart aggregates the lines a rep holds on one table.
type TableCart struct {
	TableID          string    `json:"table_id"`
	Lines            []Line    `json:"lines"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	BarRequestStatus string    `json:"bar_request_status"`
}

// Totals holds the derived money amounts for a quantity.
type Totals struct {
	Price  decimal.Decimal
	Cost   decimal.Decimal
	Profit decimal.Decimal
}

// ComputeTotals returns quantity × unit price / cost and their difference.
func ComputeTotals(qty int32, unitPrice, unitCost decimal.Decimal) Totals {
	q := decimal.NewFromInt32(qty)
	price := unitPrice.Mul(q)
	cost := unitCost.Mul(q)
	return Totals{Price: price, Cost: cost, Profit: price.Sub(cost)}
}

// withQuantity returns a copy of l carrying qty and recomputed totals.
func (l Line) withQuantity(qty int32) Line {
	t := ComputeTotals(qty, l.UnitPrice, l.UnitCost)
	l.Quantity = qty
	l.TotalPrice = t.Price
	l.TotalCost = t.Cost
	l.Profit = t.Profit
	return l
}

// IsPending treats an unset status as pending.
func (l Line) IsPending() bool {
	return l.ApprovalStatus == enum.ApprovalStatusPending || l.ApprovalStatus == ""
}

// IsApproved reports whether the bar approved the line.
func (l Line) IsApproved() bool {
	return l.ApprovalStatus == enum.ApprovalStatusApproved
}

// CanTransition reports whether a line may move from one approval status to
// another. Approved and rejected are terminal.
func CanTransition(from, to string) bool {
	if from == "" {
		from = enum.ApprovalStatusPending
	}
	if from != enum.ApprovalStatusPending {
		return false
	}
	return to == enum.ApprovalStatusApproved || to == enum.ApprovalStatusRejected
}

func isValidStatus(s string) bool {
	switch s {
	case enum.ApprovalStatusPending, enum.ApprovalStatusApproved, enum.ApprovalStatusRejected:
		return true
	}
	return false
}

// LineFromItem converts an order store row into a cart line.
func LineFromItem(i database.CartItem) Line {
	l := Line{
		ID:             i.ID,
		ProductID:      i.ProductID,
		ProductName:    i.ProductName,
		Quantity:       i.Quantity,
		UnitPrice:      money.FromNumeric(i.UnitPrice),
		UnitCost:       money.FromNumeric(i.UnitCost),
		TotalPrice:     money.FromNumeric(i.TotalPrice),
		TotalCost:      money.FromNumeric(i.TotalCost),
		Profit:         money.FromNumeric(i.ProfitAmount),
		ApprovalStatus: i.ApprovalStatus,
		SalesRepID:     i.SalesRepID,
		SalesRepName:   i.SalesRepName,
		CreatedAt:      i.CreatedAt,
	}
	if i.RequestID.Valid {
		l.RequestID = uuid.NullUUID{UUID: i.RequestID.Bytes, Valid: true}
	}
	return l
}

func sumPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}
