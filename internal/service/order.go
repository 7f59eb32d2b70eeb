package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/cartapos/api/internal/database"
	"github.com/cartapos/api/internal/enum"
	"github.com/cartapos/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	maxSequenceRetries = 3

	maxAdjustmentNoteLen = 120
	maxItemNotesLen      = 500
)

// Actions accepted by Apply.
const (
	ActionActivate     = "activate"
	ActionHold         = "hold"
	ActionSetCustomer  = "setCustomer"
	ActionSetTable     = "setTable"
	ActionSetAdjust    = "setAdjustment"
	ActionAddItem      = "addItem"
	ActionSetQty       = "setQty"
	ActionSetItemNotes = "setItemNotes"
	ActionPay          = "pay"
)

// Errors returned by the order service.
var (
	ErrUnsupportedAction    = errors.New("unsupported action")
	ErrOrderIDRequired      = errors.New("order id is required for this action")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAlreadyPaid          = errors.New("order already paid")
	ErrActiveOrderExists    = errors.New("an active order already exists for this user")
	ErrOrderActiveElsewhere = errors.New("order is active under another user")
	ErrMealNotFound         = errors.New("menu item not found")
	ErrItemLineNotFound     = errors.New("item is not on the order")
	ErrEmptyOrder           = errors.New("order has no items")
	ErrPaymentMismatch      = errors.New("payment total does not match order total")
	ErrInvalidMealID        = errors.New("invalid meal_id")
	ErrInvalidQuantity      = errors.New("quantity must be >= 0")
	ErrInvalidDocumentType  = errors.New("invalid document_type")
	ErrInvalidAdjustKind    = errors.New("invalid adjustment kind")
	ErrInvalidPercent       = errors.New("invalid adjustment percent")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to mutate orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	GetActiveOrderForUpdate(ctx context.Context, arg database.GetActiveOrderForUpdateParams) (database.Order, error)
	GetNextSequenceNumber(ctx context.Context, tenantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	ActivateOrder(ctx context.Context, arg database.ActivateOrderParams) (database.Order, error)
	HoldOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderCustomer(ctx context.Context, arg database.UpdateOrderCustomerParams) (database.Order, error)
	UpdateOrderTable(ctx context.Context, arg database.UpdateOrderTableParams) (database.Order, error)
	UpdateOrderAdjustment(ctx context.Context, arg database.UpdateOrderAdjustmentParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	UpdateOrderItemNotes(ctx context.Context, arg database.UpdateOrderItemNotesParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) error
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CustomerInput carries the setCustomer fields.
type CustomerInput struct {
	Name           string
	DocumentType   string
	DocumentNumber string
}

// AdjustmentInput carries the setAdjustment fields. A nil *AdjustmentInput,
// like a percent <= 0, clears the order's adjustment.
type AdjustmentInput struct {
	Kind    string
	Percent string
	Note    string
}

// PaymentInput is one submitted payment line, pre-sanitation.
type PaymentInput struct {
	Type   string
	Amount string
}

// ActionRequest is one mutation against an order. OrderID may be uuid.Nil
// only for activate, which then resolves (or creates) the caller's active
// order.
type ActionRequest struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Action   string

	Customer    *CustomerInput
	TableNumber *string
	Adjustment  *AdjustmentInput
	MealID      string
	QtyDelta    *int32
	Qty         *int32
	Notes       *string
	Payments    []PaymentInput
}

// OrderResult is the full order document after a successful action.
type OrderResult struct {
	Order    database.Order
	Items    []database.OrderItem
	Payments []database.Payment
	Total    decimal.Decimal
}

// OrderService owns the order lifecycle: active <-> on_hold -> paid, with
// paid terminal. Every action runs in one transaction against a row-locked
// order, so a failed action leaves the stored order untouched.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// Apply validates and executes one action. Retries up to maxSequenceRetries
// times on sequence_number unique violations (concurrent activations in the
// same tenant can race to the same MAX+1).
func (s *OrderService) Apply(ctx context.Context, req ActionRequest) (*OrderResult, error) {
	if !isKnownAction(req.Action) {
		return nil, ErrUnsupportedAction
	}
	if req.OrderID == uuid.Nil && req.Action != ActionActivate {
		return nil, ErrOrderIDRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		result, err := s.applyTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isSequenceConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) applyTx(ctx context.Context, req ActionRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, created, err := s.resolveTarget(ctx, store, req)
	if err != nil {
		return nil, err
	}

	// Universal guard: a paid order is immutable, whatever the action.
	if order.Status == enum.OrderStatusPaid {
		return nil, ErrAlreadyPaid
	}

	if !created {
		order, err = s.dispatch(ctx, store, order, req)
		if err != nil {
			return nil, err
		}
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	payments, err := store.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{
		Order:    order,
		Items:    items,
		Payments: payments,
		Total:    pricing.AdjustedTotal(toPricingLines(items), adjustmentOf(order)),
	}, nil
}

// resolveTarget loads and locks the order the action addresses. For activate
// without an order id it falls back to the caller's current active order, or
// creates a new aggregate when there is none — implicit creation is part of
// the activate contract.
func (s *OrderService) resolveTarget(ctx context.Context, store OrderStore, req ActionRequest) (database.Order, bool, error) {
	if req.OrderID != uuid.Nil {
		order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
			ID:       req.OrderID,
			TenantID: req.TenantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, false, ErrOrderNotFound
			}
			return database.Order{}, false, fmt.Errorf("get order: %w", err)
		}
		return order, false, nil
	}

	order, err := store.GetActiveOrderForUpdate(ctx, database.GetActiveOrderForUpdateParams{
		TenantID:    req.TenantID,
		OwnerUserID: req.UserID,
	})
	if err == nil {
		// Re-activating the order you already hold is a no-op.
		return order, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, false, fmt.Errorf("get active order: %w", err)
	}

	seq, err := store.GetNextSequenceNumber(ctx, req.TenantID)
	if err != nil {
		return database.Order{}, false, fmt.Errorf("next sequence number: %w", err)
	}
	order, err = store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:       req.TenantID,
		OwnerUserID:    req.UserID,
		SequenceNumber: seq,
	})
	if err != nil {
		if isActiveConflict(err) {
			return database.Order{}, false, ErrActiveOrderExists
		}
		return database.Order{}, false, fmt.Errorf("create order: %w", err)
	}
	return order, true, nil
}

func (s *OrderService) dispatch(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	switch req.Action {
	case ActionActivate:
		return s.activate(ctx, store, order, req)
	case ActionHold:
		return store.HoldOrder(ctx, order.ID)
	case ActionSetCustomer:
		return s.setCustomer(ctx, store, order, req)
	case ActionSetTable:
		return s.setTable(ctx, store, order, req)
	case ActionSetAdjust:
		return s.setAdjustment(ctx, store, order, req)
	case ActionAddItem:
		return s.addItem(ctx, store, order, req)
	case ActionSetQty:
		return s.setQty(ctx, store, order, req)
	case ActionSetItemNotes:
		return s.setItemNotes(ctx, store, order, req)
	case ActionPay:
		return s.pay(ctx, store, order, req)
	}
	return database.Order{}, ErrUnsupportedAction
}

// activate transitions an on-hold order back to active and takes ownership.
// The partial unique index rejects the transition when the caller already
// holds an active order, closing the two-browser-tabs race at the storage
// layer.
func (s *OrderService) activate(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	if order.Status == enum.OrderStatusActive {
		if order.OwnerUserID == req.UserID {
			return order, nil
		}
		return database.Order{}, ErrOrderActiveElsewhere
	}

	updated, err := store.ActivateOrder(ctx, database.ActivateOrderParams{
		ID:          order.ID,
		OwnerUserID: req.UserID,
	})
	if err != nil {
		if isActiveConflict(err) {
			return database.Order{}, ErrActiveOrderExists
		}
		return database.Order{}, fmt.Errorf("activate order: %w", err)
	}
	return updated, nil
}

func (s *OrderService) setCustomer(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	cust := req.Customer
	if cust == nil {
		cust = &CustomerInput{}
	}
	docType := cust.DocumentType
	if docType == "" {
		docType = enum.DocumentTypeNone
	}
	if !enum.IsValidDocumentType(docType) {
		return database.Order{}, ErrInvalidDocumentType
	}

	updated, err := store.UpdateOrderCustomer(ctx, database.UpdateOrderCustomerParams{
		ID:                order.ID,
		CustomerName:      textOrNull(cust.Name),
		CustomerDocType:   pgtype.Text{String: docType, Valid: true},
		CustomerDocNumber: textOrNull(cust.DocumentNumber),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update customer: %w", err)
	}

	// The setCustomer body may carry a table number alongside the customer
	// fields; apply it in the same transaction.
	if req.TableNumber != nil {
		updated, err = store.UpdateOrderTable(ctx, database.UpdateOrderTableParams{
			ID:          order.ID,
			TableNumber: textOrNull(*req.TableNumber),
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("update table: %w", err)
		}
	}
	return updated, nil
}

func (s *OrderService) setTable(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	table := ""
	if req.TableNumber != nil {
		table = *req.TableNumber
	}
	updated, err := store.UpdateOrderTable(ctx, database.UpdateOrderTableParams{
		ID:          order.ID,
		TableNumber: textOrNull(table),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update table: %w", err)
	}
	return updated, nil
}

// setAdjustment replaces or clears the single order-level adjustment.
// A missing adjustment body or a percent <= 0 clears it, the permissive
// clear gesture. Percents are stored at 2 decimals, so anything that rounds
// to zero clears too.
func (s *OrderService) setAdjustment(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	params := database.UpdateOrderAdjustmentParams{ID: order.ID}

	if adj := req.Adjustment; adj != nil {
		if adj.Kind != enum.AdjustmentDiscount && adj.Kind != enum.AdjustmentSurcharge {
			return database.Order{}, ErrInvalidAdjustKind
		}
		percent, err := decimal.NewFromString(adj.Percent)
		if err != nil {
			return database.Order{}, ErrInvalidPercent
		}
		percent = pricing.Round2(pricing.ClampPercent(percent))
		if percent.IsPositive() {
			params.AdjustmentKind = pgtype.Text{String: adj.Kind, Valid: true}
			params.AdjustmentPercent = decimalToNumeric(percent)
			params.AdjustmentNote = textOrNull(truncate(adj.Note, maxAdjustmentNoteLen))
		}
	}

	updated, err := store.UpdateOrderAdjustment(ctx, params)
	if err != nil {
		return database.Order{}, fmt.Errorf("update adjustment: %w", err)
	}
	return updated, nil
}

// addItem upserts a line by menu item id. Existing lines keep the name and
// unit price snapshotted at first insertion; the catalog is consulted only
// to validate the item and to price a new line.
func (s *OrderService) addItem(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	mealID, err := uuid.Parse(req.MealID)
	if err != nil {
		return database.Order{}, ErrInvalidMealID
	}

	delta := int32(1)
	if req.QtyDelta != nil {
		delta = *req.QtyDelta
	}

	meal, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
		ID:       mealID,
		TenantID: order.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrMealNotFound
		}
		return database.Order{}, fmt.Errorf("get menu item: %w", err)
	}

	line, err := store.GetOrderItem(ctx, database.GetOrderItemParams{
		OrderID:    order.ID,
		MenuItemID: mealID,
	})
	switch {
	case err == nil:
		return order, s.applyQuantity(ctx, store, order, mealID, addQuantity(line.Quantity, delta))
	case errors.Is(err, pgx.ErrNoRows):
		if delta <= 0 {
			// A negative delta against an absent line nets out to nothing.
			return order, nil
		}
		_, err = store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: mealID,
			Name:       meal.Name,
			UnitPrice:  meal.Price,
			Quantity:   delta,
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("create order item: %w", err)
		}
		return order, nil
	default:
		return database.Order{}, fmt.Errorf("get order item: %w", err)
	}
}

func (s *OrderService) setQty(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	mealID, err := uuid.Parse(req.MealID)
	if err != nil {
		return database.Order{}, ErrInvalidMealID
	}
	if req.Qty == nil || *req.Qty < 0 {
		return database.Order{}, ErrInvalidQuantity
	}

	if _, err := store.GetOrderItem(ctx, database.GetOrderItemParams{
		OrderID:    order.ID,
		MenuItemID: mealID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrItemLineNotFound
		}
		return database.Order{}, fmt.Errorf("get order item: %w", err)
	}

	return order, s.applyQuantity(ctx, store, order, mealID, *req.Qty)
}

// applyQuantity writes an absolute quantity; zero or less removes the line.
// Lines are never stored with quantity zero.
func (s *OrderService) applyQuantity(ctx context.Context, store OrderStore, order database.Order, mealID uuid.UUID, qty int32) error {
	if qty <= 0 {
		if err := store.DeleteOrderItem(ctx, database.DeleteOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: mealID,
		}); err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}
		return nil
	}
	if _, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
		OrderID:    order.ID,
		MenuItemID: mealID,
		Quantity:   qty,
	}); err != nil {
		return fmt.Errorf("update order item quantity: %w", err)
	}
	return nil
}

func (s *OrderService) setItemNotes(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	mealID, err := uuid.Parse(req.MealID)
	if err != nil {
		return database.Order{}, ErrInvalidMealID
	}

	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}

	if _, err := store.UpdateOrderItemNotes(ctx, database.UpdateOrderItemNotesParams{
		OrderID:    order.ID,
		MenuItemID: mealID,
		Notes:      textOrNull(truncate(notes, maxItemNotesLen)),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrItemLineNotFound
		}
		return database.Order{}, fmt.Errorf("update order item notes: %w", err)
	}
	return order, nil
}

// pay settles the order. Submitted payments are sanitized line by line, then
// their rounded sum must equal the adjusted total exactly — no partial
// payments and no overpayment tolerance.
func (s *OrderService) pay(ctx context.Context, store OrderStore, order database.Order, req ActionRequest) (database.Order, error) {
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	if len(items) == 0 {
		return database.Order{}, ErrEmptyOrder
	}

	sanitized := SanitizePayments(req.Payments)
	sum := decimal.Zero
	for _, p := range sanitized {
		sum = sum.Add(p.Amount)
	}

	total := pricing.AdjustedTotal(toPricingLines(items), adjustmentOf(order))
	if !sum.Equal(total) {
		return database.Order{}, fmt.Errorf("%w: paid %s, total %s",
			ErrPaymentMismatch, sum.StringFixed(2), total.StringFixed(2))
	}

	updated, err := store.MarkOrderPaid(ctx, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrAlreadyPaid
		}
		return database.Order{}, fmt.Errorf("mark order paid: %w", err)
	}

	for _, p := range sanitized {
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID: order.ID,
			Type:    p.Type,
			Amount:  decimalToNumeric(p.Amount),
		}); err != nil {
			return database.Order{}, fmt.Errorf("create payment: %w", err)
		}
	}
	return updated, nil
}

// SanitizedPayment is a payment line after type/amount cleanup.
type SanitizedPayment struct {
	Type   string
	Amount decimal.Decimal
}

// SanitizePayments normalizes submitted payment lines: an unknown type
// becomes "other" and an unparsable or negative amount becomes 0, so a
// negative line can never balance out an overpayment. Amounts are rounded
// to 2 decimals before the sum is compared to the total.
func SanitizePayments(in []PaymentInput) []SanitizedPayment {
	out := make([]SanitizedPayment, len(in))
	for i, p := range in {
		typ := p.Type
		if !enum.IsValidPaymentType(typ) {
			typ = enum.PaymentTypeOther
		}
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil || amount.IsNegative() {
			amount = decimal.Zero
		}
		out[i] = SanitizedPayment{Type: typ, Amount: pricing.Round2(amount)}
	}
	return out
}

// --- Helpers ---

// addQuantity sums a line quantity and a delta without int32 wraparound.
// The result clamps into [0, math.MaxInt32]; zero still means "remove the
// line".
func addQuantity(qty, delta int32) int32 {
	sum := int64(qty) + int64(delta)
	if sum > math.MaxInt32 {
		return math.MaxInt32
	}
	if sum < 0 {
		return 0
	}
	return int32(sum)
}

func isKnownAction(a string) bool {
	switch a {
	case ActionActivate, ActionHold, ActionSetCustomer, ActionSetTable,
		ActionSetAdjust, ActionAddItem, ActionSetQty, ActionSetItemNotes,
		ActionPay:
		return true
	}
	return false
}

// isActiveConflict checks for a unique violation on the partial index
// guarding "one active order per owner" (pgconn error code 23505).
func isActiveConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_one_active_per_owner"
	}
	return false
}

// isSequenceConflict checks for a unique violation on the tenant-scoped
// sequence number (two concurrent creations read the same MAX).
func isSequenceConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_tenant_id_sequence_number_key"
	}
	return false
}

func toPricingLines(items []database.OrderItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{
			UnitPrice: numericToDecimal(it.UnitPrice),
			Quantity:  it.Quantity,
		}
	}
	return lines
}

func adjustmentOf(o database.Order) *pricing.Adjustment {
	if !o.AdjustmentKind.Valid || !o.AdjustmentPercent.Valid {
		return nil
	}
	return &pricing.Adjustment{
		Kind:    o.AdjustmentKind.String,
		Percent: numericToDecimal(o.AdjustmentPercent),
	}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// truncate caps s at max characters, not bytes, so multibyte notes keep
// their full allowance.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
