package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const barRequestColumns = `id, table_id, sales_rep_id, status, processed_by, created_at, updated_at`

func scanBarRequest(row pgx.Row) (BarRequest, error) {
	var i BarRequest
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.SalesRepID,
		&i.Status,
		&i.ProcessedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createBarRequest = `INSERT INTO bar_requests (table_id, sales_rep_id, status)
VALUES ($1, $2, 'pending')
RETURNING ` + barRequestColumns

type CreateBarRequestParams struct {
	TableID    string    `json:"table_id"`
	SalesRepID uuid.UUID `json:"sales_rep_id"`
}

func (q *Queries) CreateBarRequest(ctx context.Context, arg CreateBarRequestParams) (BarRequest, error) {
	return scanBarRequest(q.db.QueryRow(ctx, createBarRequest, arg.TableID, arg.SalesRepID))
}

const getBarRequest = `SELECT ` + barRequestColumns + ` FROM bar_requests WHERE id = $1`

func (q *Queries) GetBarRequest(ctx context.Context, id uuid.UUID) (BarRequest, error) {
	return scanBarRequest(q.db.QueryRow(ctx, getBarRequest, id))
}

const getBarRequestForUpdate = `SELECT ` + barRequestColumns + ` FROM bar_requests WHERE id = $1 FOR UPDATE`

func (q *Queries) GetBarRequestForUpdate(ctx context.Context, id uuid.UUID) (BarRequest, error) {
	return scanBarRequest(q.db.QueryRow(ctx, getBarRequestForUpdate, id))
}

const getPendingBarRequestForTable = `SELECT ` + barRequestColumns + `
FROM bar_requests
WHERE table_id = $1 AND status = 'pending'
LIMIT 1`

func (q *Queries) GetPendingBarRequestForTable(ctx context.Context, tableID string) (BarRequest, error) {
	return scanBarRequest(q.db.QueryRow(ctx, getPendingBarRequestForTable, tableID))
}

const listBarRequests = `SELECT ` + barRequestColumns + `
FROM bar_requests
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at ASC
LIMIT $2`

type ListBarRequestsParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
}

func (q *Queries) ListBarRequests(ctx context.Context, arg ListBarRequestsParams) ([]BarRequest, error) {
	rows, err := q.db.Query(ctx, listBarRequests, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BarRequest{}
	for rows.Next() {
		i, err := scanBarRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateBarRequestStatus only matches while the row is still in FromStatus,
// so a concurrent transition surfaces as pgx.ErrNoRows.
const updateBarRequestStatus = `UPDATE bar_requests SET
	status       = $2,
	processed_by = $4,
	updated_at   = now()
WHERE id = $1 AND status = $3
RETURNING ` + barRequestColumns

type UpdateBarRequestStatusParams struct {
	ID          uuid.UUID   `json:"id"`
	Status      string      `json:"status"`
	FromStatus  string      `json:"from_status"`
	ProcessedBy pgtype.UUID `json:"processed_by"`
}

func (q *Queries) UpdateBarRequestStatus(ctx context.Context, arg UpdateBarRequestStatusParams) (BarRequest, error) {
	row := q.db.QueryRow(ctx, updateBarRequestStatus, arg.ID, arg.Status, arg.FromStatus, arg.ProcessedBy)
	return scanBarRequest(row)
}

const barFulfillmentColumns = `id, bar_request_id, table_id, sales_rep_id, product_id, product_name, unit_price,
	approved_quantity, status, modified_by, modified_at, created_at`

func scanBarFulfillment(row pgx.Row) (BarFulfillment, error) {
	var i BarFulfillment
	err := row.Scan(
		&i.ID,
		&i.BarRequestID,
		&i.TableID,
		&i.SalesRepID,
		&i.ProductID,
		&i.ProductName,
		&i.UnitPrice,
		&i.ApprovedQuantity,
		&i.Status,
		&i.ModifiedBy,
		&i.ModifiedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createBarFulfillment = `INSERT INTO bar_fulfillments (
	bar_request_id, table_id, sales_rep_id, product_id, product_name, unit_price, approved_quantity, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + barFulfillmentColumns

type CreateBarFulfillmentParams struct {
	BarRequestID     uuid.UUID      `json:"bar_request_id"`
	TableID          string         `json:"table_id"`
	SalesRepID       uuid.UUID      `json:"sales_rep_id"`
	ProductID        uuid.UUID      `json:"product_id"`
	ProductName      string         `json:"product_name"`
	UnitPrice        pgtype.Numeric `json:"unit_price"`
	ApprovedQuantity int32          `json:"approved_quantity"`
	Status           string         `json:"status"`
}

func (q *Queries) CreateBarFulfillment(ctx context.Context, arg CreateBarFulfillmentParams) (BarFulfillment, error) {
	row := q.db.QueryRow(ctx, createBarFulfillment,
		arg.BarRequestID,
		arg.TableID,
		arg.SalesRepID,
		arg.ProductID,
		arg.ProductName,
		arg.UnitPrice,
		arg.ApprovedQuantity,
		arg.Status,
	)
	return scanBarFulfillment(row)
}

const getBarFulfillment = `SELECT ` + barFulfillmentColumns + ` FROM bar_fulfillments WHERE id = $1`

func (q *Queries) GetBarFulfillment(ctx context.Context, id uuid.UUID) (BarFulfillment, error) {
	return scanBarFulfillment(q.db.QueryRow(ctx, getBarFulfillment, id))
}

const listFulfillmentsByRequest = `SELECT ` + barFulfillmentColumns + `
FROM bar_fulfillments
WHERE bar_request_id = $1 AND status = $2
ORDER BY created_at ASC, id ASC`

type ListFulfillmentsByRequestParams struct {
	BarRequestID uuid.UUID `json:"bar_request_id"`
	Status       string    `json:"status"`
}

func (q *Queries) ListFulfillmentsByRequest(ctx context.Context, arg ListFulfillmentsByRequestParams) ([]BarFulfillment, error) {
	rows, err := q.db.Query(ctx, listFulfillmentsByRequest, arg.BarRequestID, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []BarFulfillment{}
	for rows.Next() {
		i, err := scanBarFulfillment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateBarFulfillment stamps modified_by/modified_at, which is what marks
// the change as a bar-initiated edit for the realtime listener.
const updateBarFulfillment = `UPDATE bar_fulfillments SET
	approved_quantity = $2,
	status            = $3,
	modified_by       = $4,
	modified_at       = now()
WHERE id = $1
RETURNING ` + barFulfillmentColumns

type UpdateBarFulfillmentParams struct {
	ID               uuid.UUID `json:"id"`
	ApprovedQuantity int32     `json:"approved_quantity"`
	Status           string    `json:"status"`
	ModifiedBy       uuid.UUID `json:"modified_by"`
}

func (q *Queries) UpdateBarFulfillment(ctx context.Context, arg UpdateBarFulfillmentParams) (BarFulfillment, error) {
	row := q.db.QueryRow(ctx, updateBarFulfillment, arg.ID, arg.ApprovedQuantity, arg.Status, arg.ModifiedBy)
	return scanBarFulfillment(row)
}
