package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const modificationRequestColumns = `id, table_id, sales_rep_id, type, original_item_id, original_product_id,
	original_product_name, original_quantity, new_product_id, new_product_name, new_unit_price,
	new_unit_cost, new_quantity, reason, status, resolved_by, created_at, updated_at`

func scanModificationRequest(row pgx.Row) (ModificationRequest, error) {
	var i ModificationRequest
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.SalesRepID,
		&i.Type,
		&i.OriginalItemID,
		&i.OriginalProductID,
		&i.OriginalProductName,
		&i.OriginalQuantity,
		&i.NewProductID,
		&i.NewProductName,
		&i.NewUnitPrice,
		&i.NewUnitCost,
		&i.NewQuantity,
		&i.Reason,
		&i.Status,
		&i.ResolvedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createModificationRequest = `INSERT INTO modification_requests (
	table_id, sales_rep_id, type, original_item_id, original_product_id, original_product_name,
	original_quantity, new_product_id, new_product_name, new_unit_price, new_unit_cost,
	new_quantity, reason, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'pending')
RETURNING ` + modificationRequestColumns

type CreateModificationRequestParams struct {
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
}

func (q *Queries) CreateModificationRequest(ctx context.Context, arg CreateModificationRequestParams) (ModificationRequest, error) {
	row := q.db.QueryRow(ctx, createModificationRequest,
		arg.TableID,
		arg.SalesRepID,
		arg.Type,
		arg.OriginalItemID,
		arg.OriginalProductID,
		arg.OriginalProductName,
		arg.OriginalQuantity,
		arg.NewProductID,
		arg.NewProductName,
		arg.NewUnitPrice,
		arg.NewUnitCost,
		arg.NewQuantity,
		arg.Reason,
	)
	return scanModificationRequest(row)
}

const getModificationRequest = `SELECT ` + modificationRequestColumns + ` FROM modification_requests WHERE id = $1`

func (q *Queries) GetModificationRequest(ctx context.Context, id uuid.UUID) (ModificationRequest, error) {
	return scanModificationRequest(q.db.QueryRow(ctx, getModificationRequest, id))
}

const listModificationRequests = `SELECT ` + modificationRequestColumns + `
FROM modification_requests
WHERE ($1::text IS NULL OR status = $1::text)
  AND ($2::text IS NULL OR table_id = $2::text)
ORDER BY created_at ASC
LIMIT $3`

type ListModificationRequestsParams struct {
	Status  pgtype.Text `json:"status"`
	TableID pgtype.Text `json:"table_id"`
	Limit   int32       `json:"limit"`
}

func (q *Queries) ListModificationRequests(ctx context.Context, arg ListModificationRequestsParams) ([]ModificationRequest, error) {
	rows, err := q.db.Query(ctx, listModificationRequests, arg.Status, arg.TableID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ModificationRequest{}
	for rows.Next() {
		i, err := scanModificationRequest(rows)
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

// ResolveModificationRequest only moves a pending request; a resolved one
// yields pgx.ErrNoRows.
const resolveModificationRequest = `UPDATE modification_requests SET
	status      = $2,
	resolved_by = $3,
	updated_at  = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + modificationRequestColumns

type ResolveModificationRequestParams struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	ResolvedBy uuid.UUID `json:"resolved_by"`
}

func (q *Queries) ResolveModificationRequest(ctx context.Context, arg ResolveModificationRequestParams) (ModificationRequest, error) {
	row := q.db.QueryRow(ctx, resolveModificationRequest, arg.ID, arg.Status, arg.ResolvedBy)
	return scanModificationRequest(row)
}
