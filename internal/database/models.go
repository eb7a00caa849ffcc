package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CartItem struct {
	ID             uuid.UUID      `json:"id"`
	TableID        string         `json:"table_id"`
	ProductID      uuid.UUID      `json:"product_id"`
	ProductName    string         `json:"product_name"`
	Quantity       int32          `json:"quantity"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	UnitCost       pgtype.Numeric `json:"unit_cost"`
	TotalPrice     pgtype.Numeric `json:"total_price"`
	TotalCost      pgtype.Numeric `json:"total_cost"`
	ProfitAmount   pgtype.Numeric `json:"profit_amount"`
	ApprovalStatus string         `json:"approval_status"`
	RequestID      pgtype.UUID    `json:"request_id"`
	SalesRepID     uuid.UUID      `json:"sales_rep_id"`
	SalesRepName   string         `json:"sales_rep_name"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type BarRequest struct {
	ID          uuid.UUID   `json:"id"`
	TableID     string      `json:"table_id"`
	SalesRepID  uuid.UUID   `json:"sales_rep_id"`
	Status      string      `json:"status"`
	ProcessedBy pgtype.UUID `json:"processed_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type BarFulfillment struct {
	ID               uuid.UUID          `json:"id"`
	BarRequestID     uuid.UUID          `json:"bar_request_id"`
	TableID          string             `json:"table_id"`
	SalesRepID       uuid.UUID          `json:"sales_rep_id"`
	ProductID        uuid.UUID          `json:"product_id"`
	ProductName      string             `json:"product_name"`
	UnitPrice        pgtype.Numeric     `json:"unit_price"`
	ApprovedQuantity int32              `json:"approved_quantity"`
	Status           string             `json:"status"`
	ModifiedBy       pgtype.UUID        `json:"modified_by"`
	ModifiedAt       pgtype.Timestamptz `json:"modified_at"`
	CreatedAt        time.Time          `json:"created_at"`
}

type ModificationRequest struct {
	ID                  uuid.UUID      `json:"id"`
	TableID             string         `json:"table_id"`
	SalesRepID          uuid.UUID      `json:"sales_rep_id"`
	Type                string         `json:"type"`
	OriginalItemID      pgtype.UUID    `json:"original_item_id"`
	OriginalProductID   uuid.UUID      `json:"original_product_id"`
	OriginalProductName string         `json:"original_product_name"`
	OriginalQuantity    int32          `json:"original_quantity"`
	NewProductID        pgtype.UUID    `json:"new_product_id"`
	NewProductName      pgtype.Text    `json:"new_product_name"`
	NewUnitPrice        pgtype.Numeric `json:"new_unit_price"`
	NewUnitCost         pgtype.Numeric `json:"new_unit_cost"`
	NewQuantity         pgtype.Int4    `json:"new_quantity"`
	Reason              string         `json:"reason"`
	Status              string         `json:"status"`
	ResolvedBy          pgtype.UUID    `json:"resolved_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
