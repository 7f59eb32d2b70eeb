package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, tenant_id, full_name, email, hashed_password, pin, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.FullName, &u.Email, &u.HashedPassword, &u.Pin, &u.Role, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

type GetUserByTenantAndPinParams struct {
	TenantID uuid.UUID
	Pin      string
}

func (q *Queries) GetUserByTenantAndPin(ctx context.Context, arg GetUserByTenantAndPinParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND pin = $2`,
		arg.TenantID, arg.Pin)
	return scanUser(row)
}

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	var t Tenant
	err := q.db.QueryRow(ctx,
		`SELECT id, name, slug, created_at FROM tenants WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	return t, err
}
