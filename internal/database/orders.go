package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, owner_user_id, sequence_number, status,
	customer_name, customer_doc_type, customer_doc_number, table_number,
	adjustment_kind, adjustment_percent, adjustment_note,
	held_at, paid_at, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OwnerUserID, &o.SequenceNumber, &o.Status,
		&o.CustomerName, &o.CustomerDocType, &o.CustomerDocNumber, &o.TableNumber,
		&o.AdjustmentKind, &o.AdjustmentPercent, &o.AdjustmentNote,
		&o.HeldAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanOrder(row)
}

type GetOrderForUpdateParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// GetOrderForUpdate locks the order row (FOR NO KEY UPDATE) so concurrent
// mutations against the same order serialize at the database.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2 FOR NO KEY UPDATE`,
		arg.ID, arg.TenantID)
	return scanOrder(row)
}

type GetActiveOrderForUpdateParams struct {
	TenantID    uuid.UUID
	OwnerUserID uuid.UUID
}

// GetActiveOrderForUpdate resolves and locks the owner's current active
// order, if any.
func (q *Queries) GetActiveOrderForUpdate(ctx context.Context, arg GetActiveOrderForUpdateParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND owner_user_id = $2 AND status = 'active'
		 FOR NO KEY UPDATE`,
		arg.TenantID, arg.OwnerUserID)
	return scanOrder(row)
}

type GetActiveOrderParams struct {
	TenantID    uuid.UUID
	OwnerUserID uuid.UUID
}

func (q *Queries) GetActiveOrder(ctx context.Context, arg GetActiveOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND owner_user_id = $2 AND status = 'active'`,
		arg.TenantID, arg.OwnerUserID)
	return scanOrder(row)
}

type ListOrdersParams struct {
	TenantID uuid.UUID
	Status   pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		 ORDER BY sequence_number DESC
		 LIMIT $3 OFFSET $4`,
		arg.TenantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetNextSequenceNumber returns MAX+1 of the tenant's order sequence.
// Concurrent callers can race to the same value; the unique constraint on
// (tenant_id, sequence_number) plus the caller's retry loop resolves that.
func (q *Queries) GetNextSequenceNumber(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM orders WHERE tenant_id = $1`,
		tenantID).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	TenantID       uuid.UUID
	OwnerUserID    uuid.UUID
	SequenceNumber int32
}

// CreateOrder inserts a fresh active order. The partial unique index
// orders_one_active_per_owner rejects a second active order for the same
// (tenant, owner) pair.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (tenant_id, owner_user_id, sequence_number, status)
		 VALUES ($1, $2, $3, 'active')
		 RETURNING `+orderColumns,
		arg.TenantID, arg.OwnerUserID, arg.SequenceNumber)
	return scanOrder(row)
}

type ActivateOrderParams struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
}

// ActivateOrder transitions an on-hold order back to active. The partial
// unique index guards against a second active order for the owner.
func (q *Queries) ActivateOrder(ctx context.Context, arg ActivateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders
		 SET status = 'active', owner_user_id = $2, held_at = NULL, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.OwnerUserID)
	return scanOrder(row)
}

func (q *Queries) HoldOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders
		 SET status = 'on_hold', held_at = now(), updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id)
	return scanOrder(row)
}

type UpdateOrderCustomerParams struct {
	ID                uuid.UUID
	CustomerName      pgtype.Text
	CustomerDocType   pgtype.Text
	CustomerDocNumber pgtype.Text
}

func (q *Queries) UpdateOrderCustomer(ctx context.Context, arg UpdateOrderCustomerParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders
		 SET customer_name = $2, customer_doc_type = $3, customer_doc_number = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.CustomerName, arg.CustomerDocType, arg.CustomerDocNumber)
	return scanOrder(row)
}

type UpdateOrderTableParams struct {
	ID          uuid.UUID
	TableNumber pgtype.Text
}

func (q *Queries) UpdateOrderTable(ctx context.Context, arg UpdateOrderTableParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET table_number = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.TableNumber)
	return scanOrder(row)
}

type UpdateOrderAdjustmentParams struct {
	ID                uuid.UUID
	AdjustmentKind    pgtype.Text
	AdjustmentPercent pgtype.Numeric
	AdjustmentNote    pgtype.Text
}

func (q *Queries) UpdateOrderAdjustment(ctx context.Context, arg UpdateOrderAdjustmentParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders
		 SET adjustment_kind = $2, adjustment_percent = $3, adjustment_note = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.AdjustmentKind, arg.AdjustmentPercent, arg.AdjustmentNote)
	return scanOrder(row)
}

func (q *Queries) MarkOrderPaid(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = 'paid', paid_at = now(), updated_at = now()
		 WHERE id = $1 AND status <> 'paid'
		 RETURNING `+orderColumns,
		id)
	return scanOrder(row)
}
