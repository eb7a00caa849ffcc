package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const cartItemColumns = `id, table_id, product_id, product_name, quantity, unit_price, unit_cost,
	total_price, total_cost, profit_amount, approval_status, request_id,
	sales_rep_id, sales_rep_name, created_at, updated_at`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.ProductID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitPrice,
		&i.UnitCost,
		&i.TotalPrice,
		&i.TotalCost,
		&i.ProfitAmount,
		&i.ApprovalStatus,
		&i.RequestID,
		&i.SalesRepID,
		&i.SalesRepName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectCartItems(rows pgx.Rows) ([]CartItem, error) {
	defer rows.Close()
	items := []CartItem{}
	for rows.Next() {
		i, err := scanCartItem(rows)
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

const listCartItems = `SELECT ` + cartItemColumns + `
FROM cart_items
WHERE table_id = $1 AND sales_rep_id = $2
ORDER BY created_at ASC, id ASC`

type ListCartItemsParams struct {
	TableID    string    `json:"table_id"`
	SalesRepID uuid.UUID `json:"sales_rep_id"`
}

func (q *Queries) ListCartItems(ctx context.Context, arg ListCartItemsParams) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, arg.TableID, arg.SalesRepID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

const listCartItemsByProduct = `SELECT ` + cartItemColumns + `
FROM cart_items
WHERE table_id = $1 AND sales_rep_id = $2 AND product_id = $3 AND unit_price = $4
  AND approval_status = $5
ORDER BY created_at ASC, id ASC`

type ListCartItemsByProductParams struct {
	TableID        string         `json:"table_id"`
	SalesRepID     uuid.UUID      `json:"sales_rep_id"`
	ProductID      uuid.UUID      `json:"product_id"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	ApprovalStatus string         `json:"approval_status"`
}

func (q *Queries) ListCartItemsByProduct(ctx context.Context, arg ListCartItemsByProductParams) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItemsByProduct, arg.TableID, arg.SalesRepID, arg.ProductID, arg.UnitPrice, arg.ApprovalStatus)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

const listPendingCartItemsByRequest = `SELECT ` + cartItemColumns + `
FROM cart_items
WHERE request_id = $1 AND approval_status = 'pending'
ORDER BY created_at ASC, id ASC
FOR UPDATE`

// ListPendingCartItemsByRequest locks the pending rows tagged with a bar request.
// Must run inside a transaction.
func (q *Queries) ListPendingCartItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listPendingCartItemsByRequest, requestID)
	if err != nil {
		return nil, err
	}
	return collectCartItems(rows)
}

const listTablesForSalesRep = `SELECT table_id
FROM cart_items
WHERE sales_rep_id = $1
GROUP BY table_id
ORDER BY MIN(created_at) ASC`

func (q *Queries) ListTablesForSalesRep(ctx context.Context, salesRepID uuid.UUID) ([]string, error) {
	rows, err := q.db.Query(ctx, listTablesForSalesRep, salesRepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

const getCartItem = `SELECT ` + cartItemColumns + `
FROM cart_items
WHERE id = $1`

func (q *Queries) GetCartItem(ctx context.Context, id uuid.UUID) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItem, id))
}

// upsertCartItem is the atomic insert-or-increment on the merge key.
const upsertCartItem = `INSERT INTO cart_items (
	table_id, product_id, product_name, quantity, unit_price, unit_cost,
	total_price, total_cost, profit_amount,
	approval_status, request_id, sales_rep_id, sales_rep_name
) VALUES (
	$1, $2, $3, $4::int, $5::numeric, $6::numeric,
	$5::numeric * $4::int, $6::numeric * $4::int, ($5::numeric - $6::numeric) * $4::int,
	$7, $8, $9, $10
)
ON CONFLICT (table_id, product_id, unit_price, sales_rep_id, approval_status) DO UPDATE SET
	quantity      = cart_items.quantity + EXCLUDED.quantity,
	total_price   = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity),
	total_cost    = cart_items.unit_cost * (cart_items.quantity + EXCLUDED.quantity),
	profit_amount = (cart_items.unit_price - cart_items.unit_cost) * (cart_items.quantity + EXCLUDED.quantity),
	request_id    = COALESCE(EXCLUDED.request_id, cart_items.request_id),
	updated_at    = now()
RETURNING ` + cartItemColumns

type UpsertCartItemParams struct {
	TableID        string         `json:"table_id"`
	ProductID      uuid.UUID      `json:"product_id"`
	ProductName    string         `json:"product_name"`
	Quantity       int32          `json:"quantity"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	UnitCost       pgtype.Numeric `json:"unit_cost"`
	ApprovalStatus string         `json:"approval_status"`
	RequestID      pgtype.UUID    `json:"request_id"`
	SalesRepID     uuid.UUID      `json:"sales_rep_id"`
	SalesRepName   string         `json:"sales_rep_name"`
}

func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem,
		arg.TableID,
		arg.ProductID,
		arg.ProductName,
		arg.Quantity,
		arg.UnitPrice,
		arg.UnitCost,
		arg.ApprovalStatus,
		arg.RequestID,
		arg.SalesRepID,
		arg.SalesRepName,
	)
	return scanCartItem(row)
}

const updateCartItemQuantity = `UPDATE cart_items SET
	quantity      = $2,
	total_price   = $3,
	total_cost    = $4,
	profit_amount = $5,
	updated_at    = now()
WHERE id = $1
RETURNING ` + cartItemColumns

type UpdateCartItemQuantityParams struct {
	ID           uuid.UUID      `json:"id"`
	Quantity     int32          `json:"quantity"`
	TotalPrice   pgtype.Numeric `json:"total_price"`
	TotalCost    pgtype.Numeric `json:"total_cost"`
	ProfitAmount pgtype.Numeric `json:"profit_amount"`
}

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, arg UpdateCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, updateCartItemQuantity,
		arg.ID,
		arg.Quantity,
		arg.TotalPrice,
		arg.TotalCost,
		arg.ProfitAmount,
	)
	return scanCartItem(row)
}

const deleteCartItem = `DELETE FROM cart_items WHERE id = $1`

func (q *Queries) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteCartItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const deleteCartItems = `DELETE FROM cart_items
WHERE table_id = $1 AND sales_rep_id = $2 AND product_id = $3 AND unit_price = $4`

type DeleteCartItemsParams struct {
	TableID    string         `json:"table_id"`
	SalesRepID uuid.UUID      `json:"sales_rep_id"`
	ProductID  uuid.UUID      `json:"product_id"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
}

func (q *Queries) DeleteCartItems(ctx context.Context, arg DeleteCartItemsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCartItems, arg.TableID, arg.SalesRepID, arg.ProductID, arg.UnitPrice)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const clearCartItems = `DELETE FROM cart_items WHERE table_id = $1 AND sales_rep_id = $2`

type ClearCartItemsParams struct {
	TableID    string    `json:"table_id"`
	SalesRepID uuid.UUID `json:"sales_rep_id"`
}

func (q *Queries) ClearCartItems(ctx context.Context, arg ClearCartItemsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, clearCartItems, arg.TableID, arg.SalesRepID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteCartItemsByRequest = `DELETE FROM cart_items
WHERE table_id = $1 AND sales_rep_id = $2 AND request_id = $3`

type DeleteCartItemsByRequestParams struct {
	TableID    string    `json:"table_id"`
	SalesRepID uuid.UUID `json:"sales_rep_id"`
	RequestID  uuid.UUID `json:"request_id"`
}

func (q *Queries) DeleteCartItemsByRequest(ctx context.Context, arg DeleteCartItemsByRequestParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCartItemsByRequest, arg.TableID, arg.SalesRepID, arg.RequestID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// moveCartItems transitions pending rows to another status in one statement.
// Rows are deleted and re-inserted under the new status so they merge into
// an existing row on the same key instead of violating cart_items_merge_key.
const moveCartItems = `WITH moved AS (
	DELETE FROM cart_items
	WHERE table_id = $1
	  AND sales_rep_id = $2
	  AND approval_status = 'pending'
	  AND ($3::uuid IS NULL OR product_id = $3::uuid)
	  AND ($4::uuid IS NULL OR request_id = $4::uuid)
	RETURNING *
)
INSERT INTO cart_items (
	table_id, product_id, product_name, quantity, unit_price, unit_cost,
	total_price, total_cost, profit_amount,
	approval_status, request_id, sales_rep_id, sales_rep_name, created_at
)
SELECT table_id, product_id, product_name, quantity, unit_price, unit_cost,
	total_price, total_cost, profit_amount,
	$5, request_id, sales_rep_id, sales_rep_name, created_at
FROM moved
ON CONFLICT (table_id, product_id, unit_price, sales_rep_id, approval_status) DO UPDATE SET
	quantity      = cart_items.quantity + EXCLUDED.quantity,
	total_price   = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity),
	total_cost    = cart_items.unit_cost * (cart_items.quantity + EXCLUDED.quantity),
	profit_amount = (cart_items.unit_price - cart_items.unit_cost) * (cart_items.quantity + EXCLUDED.quantity),
	request_id    = COALESCE(EXCLUDED.request_id, cart_items.request_id),
	updated_at    = now()`

type MoveCartItemsParams struct {
	TableID    string      `json:"table_id"`
	SalesRepID uuid.UUID   `json:"sales_rep_id"`
	ProductID  pgtype.UUID `json:"product_id"`
	RequestID  pgtype.UUID `json:"request_id"`
	ToStatus   string      `json:"to_status"`
}

func (q *Queries) MoveCartItems(ctx context.Context, arg MoveCartItemsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, moveCartItems,
		arg.TableID,
		arg.SalesRepID,
		arg.ProductID,
		arg.RequestID,
		arg.ToStatus,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setCartItemsRequest = `UPDATE cart_items SET
	request_id = $5,
	updated_at = now()
WHERE table_id = $1
  AND sales_rep_id = $2
  AND approval_status = 'pending'
  AND ($3::uuid IS NULL OR product_id = $3::uuid)
  AND ($4::numeric IS NULL OR unit_price = $4::numeric)`

type SetCartItemsRequestParams struct {
	TableID    string         `json:"table_id"`
	SalesRepID uuid.UUID      `json:"sales_rep_id"`
	ProductID  pgtype.UUID    `json:"product_id"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	RequestID  pgtype.UUID    `json:"request_id"`
}

func (q *Queries) SetCartItemsRequest(ctx context.Context, arg SetCartItemsRequestParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setCartItemsRequest,
		arg.TableID,
		arg.SalesRepID,
		arg.ProductID,
		arg.UnitPrice,
		arg.RequestID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
