package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, menu_item_id, name, unit_price, quantity, notes`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Notes)
	return it, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type GetOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 AND menu_item_id = $2`,
		arg.OrderID, arg.MenuItemID)
	return scanOrderItem(row)
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
}

// CreateOrderItem inserts a new line carrying the catalog snapshot. The
// unique constraint on (order_id, menu_item_id) keeps merge-by-id honest.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+orderItemColumns,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.UnitPrice, arg.Quantity)
	return scanOrderItem(row)
}

type UpdateOrderItemQuantityParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items SET quantity = $3
		 WHERE order_id = $1 AND menu_item_id = $2
		 RETURNING `+orderItemColumns,
		arg.OrderID, arg.MenuItemID, arg.Quantity)
	return scanOrderItem(row)
}

type UpdateOrderItemNotesParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Notes      pgtype.Text
}

func (q *Queries) UpdateOrderItemNotes(ctx context.Context, arg UpdateOrderItemNotesParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items SET notes = $3
		 WHERE order_id = $1 AND menu_item_id = $2
		 RETURNING `+orderItemColumns,
		arg.OrderID, arg.MenuItemID, arg.Notes)
	return scanOrderItem(row)
}

type DeleteOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND menu_item_id = $2`,
		arg.OrderID, arg.MenuItemID)
	return err
}
