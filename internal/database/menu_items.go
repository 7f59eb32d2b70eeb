package database

import (
	"context"

	"github.com/google/uuid"
)

const menuItemColumns = `id, tenant_id, name, price, is_available, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Price, &m.IsAvailable, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (q *Queries) ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE tenant_id = $1 ORDER BY name`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type GetMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanMenuItem(row)
}

type GetMenuItemForOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// GetMenuItemForOrder is the catalog lookup consulted when a line is added:
// tenant-scoped and restricted to available items.
func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items
		 WHERE id = $1 AND tenant_id = $2 AND is_available`,
		arg.ID, arg.TenantID)
	return scanMenuItem(row)
}
