package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	FullName       string
	Email          pgtype.Text
	HashedPassword pgtype.Text
	Pin            pgtype.Text
	Role           string
	CreatedAt      time.Time
}

// MenuItem is the catalog row consulted when a line is added to an order.
// Orders snapshot Name and Price at add-time; later edits here never touch
// existing order lines.
type MenuItem struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	OwnerUserID       uuid.UUID
	SequenceNumber    int32
	Status            string
	CustomerName      pgtype.Text
	CustomerDocType   pgtype.Text
	CustomerDocNumber pgtype.Text
	TableNumber       pgtype.Text
	AdjustmentKind    pgtype.Text
	AdjustmentPercent pgtype.Numeric
	AdjustmentNote    pgtype.Text
	HeldAt            pgtype.Timestamptz
	PaidAt            pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Notes      pgtype.Text
}

type Payment struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Type      string
	Amount    pgtype.Numeric
	CreatedAt time.Time
}
