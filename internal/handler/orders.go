package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cartapos/api/internal/database"
	"github.com/cartapos/api/internal/middleware"
	"github.com/cartapos/api/internal/pricing"
	"github.com/cartapos/api/internal/service"
	"github.com/cartapos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Apply(ctx context.Context, req service.ActionRequest) (*service.OrderResult, error)
}

// OrderStore defines the database methods needed by the order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetActiveOrder(ctx context.Context, arg database.GetActiveOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// Broadcaster pushes order events to connected terminals.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTenant(tenantID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside the authenticated, tenant-scoped group.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/active", h.GetActive)
	r.Get("/{id}", h.Get)
	r.Patch("/", h.Act)
	r.Patch("/{id}", h.ActByID)
}

// --- Request / Response types ---

// actionRequest is the envelope for every order mutation. Exactly one action
// per request; the fields the action does not use are ignored.
type actionRequest struct {
	Action      string             `json:"action"`
	Customer    *customerRequest   `json:"customer"`
	TableNumber *string            `json:"table_number"`
	Adjustment  *adjustmentRequest `json:"adjustment"`
	MealID      string             `json:"meal_id"`
	QtyDelta    *int32             `json:"qty_delta"`
	Qty         *int32             `json:"qty"`
	Notes       *string            `json:"notes"`
	Payments    []paymentRequest   `json:"payments"`
}

type customerRequest struct {
	Name           string `json:"name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

type adjustmentRequest struct {
	Kind    string `json:"kind"`
	Percent string `json:"percent"`
	Note    string `json:"note"`
}

type paymentRequest struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

type orderResponse struct {
	ID                uuid.UUID  `json:"id"`
	SequenceNumber    int32      `json:"sequence_number"`
	OwnerUserID       uuid.UUID  `json:"owner_user_id"`
	Status            string     `json:"status"`
	CustomerName      *string    `json:"customer_name"`
	CustomerDocType   *string    `json:"customer_document_type"`
	CustomerDocNumber *string    `json:"customer_document_number"`
	TableNumber       *string    `json:"table_number"`
	AdjustmentKind    *string    `json:"adjustment_kind"`
	AdjustmentPercent *string    `json:"adjustment_percent"`
	AdjustmentNote    *string    `json:"adjustment_note"`
	HeldAt            *time.Time `json:"held_at"`
	PaidAt            *time.Time `json:"paid_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type orderItemResponse struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  string    `json:"unit_price"`
	Quantity   int32     `json:"quantity"`
	LineTotal  string    `json:"line_total"`
	Notes      *string   `json:"notes"`
}

type orderPaymentResponse struct {
	ID     uuid.UUID `json:"id"`
	Type   string    `json:"type"`
	Amount string    `json:"amount"`
}

// orderDetailResponse extends orderResponse with lines, payments and the
// computed totals. Totals are derived, never stored.
type orderDetailResponse struct {
	orderResponse
	Items         []orderItemResponse    `json:"items"`
	Payments      []orderPaymentResponse `json:"payments"`
	Subtotal      string                 `json:"subtotal"`
	AdjustedTotal string                 `json:"adjusted_total"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Act handles PATCH /orders: an action against the caller's implicit target.
// Only activate may omit the order id, creating or resuming the caller's
// active order.
func (h *OrderHandler) Act(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, uuid.Nil)
}

// ActByID handles PATCH /orders/{id}.
func (h *OrderHandler) ActByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	h.act(w, r, orderID)
}

func (h *OrderHandler) act(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action is required"})
		return
	}

	svcReq := service.ActionRequest{
		TenantID:    claims.TenantID,
		UserID:      claims.UserID,
		OrderID:     orderID,
		Action:      req.Action,
		TableNumber: req.TableNumber,
		MealID:      req.MealID,
		QtyDelta:    req.QtyDelta,
		Qty:         req.Qty,
		Notes:       req.Notes,
	}
	if req.Customer != nil {
		svcReq.Customer = &service.CustomerInput{
			Name:           req.Customer.Name,
			DocumentType:   req.Customer.DocumentType,
			DocumentNumber: req.Customer.DocumentNumber,
		}
	}
	if req.Adjustment != nil {
		svcReq.Adjustment = &service.AdjustmentInput{
			Kind:    req.Adjustment.Kind,
			Percent: req.Adjustment.Percent,
			Note:    req.Adjustment.Note,
		}
	}
	for _, p := range req.Payments {
		svcReq.Payments = append(svcReq.Payments, service.PaymentInput{
			Type:   p.Type,
			Amount: p.Amount,
		})
	}

	result, err := h.svc.Apply(r.Context(), svcReq)
	if err != nil {
		writeActionError(w, req.Action, err)
		return
	}

	h.broadcast(claims.TenantID, req.Action, result.Order)

	writeJSON(w, http.StatusOK, toOrderDetailResponse(result.Order, result.Items, result.Payments))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		TenantID: claims.TenantID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidStatusFilter(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// GetActive handles GET /orders/active: the caller's current active order.
func (h *OrderHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	order, err := h.store.GetActiveOrder(r.Context(), database.GetActiveOrderParams{
		TenantID:    claims.TenantID,
		OwnerUserID: claims.UserID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active order"})
			return
		}
		log.Printf("ERROR: get active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.writeDetail(w, r, order)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:       orderID,
		TenantID: claims.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.writeDetail(w, r, order)
}

func (h *OrderHandler) writeDetail(w http.ResponseWriter, r *http.Request, order database.Order) {
	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(order, items, payments))
}

func (h *OrderHandler) broadcast(tenantID uuid.UUID, action string, order database.Order) {
	if h.hub == nil {
		return
	}

	eventType := "order.updated"
	if action == service.ActionPay {
		eventType = "order.paid"
	}

	payload, err := json.Marshal(map[string]string{
		"order_id": order.ID.String(),
		"status":   order.Status,
		"action":   action,
	})
	if err != nil {
		log.Printf("ERROR: marshal order event: %v", err)
		return
	}

	h.hub.BroadcastToTenant(tenantID, ws.Event{
		Type:    eventType,
		Payload: payload,
	})
}

// --- Helpers ---

// writeActionError maps service errors to HTTP status codes: validation
// failures are 400, missing targets 404, and lifecycle or reconciliation
// violations 409.
func writeActionError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedAction),
		errors.Is(err, service.ErrOrderIDRequired),
		errors.Is(err, service.ErrInvalidMealID),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDocumentType),
		errors.Is(err, service.ErrInvalidAdjustKind),
		errors.Is(err, service.ErrInvalidPercent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrMealNotFound),
		errors.Is(err, service.ErrItemLineNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrActiveOrderExists),
		errors.Is(err, service.ErrOrderActiveElsewhere),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrPaymentMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: apply %s: %v", action, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidStatusFilter(s string) bool {
	return s == "active" || s == "on_hold" || s == "paid"
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		SequenceNumber: o.SequenceNumber,
		OwnerUserID:    o.OwnerUserID,
		Status:         o.Status,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.CustomerDocType.Valid {
		resp.CustomerDocType = &o.CustomerDocType.String
	}
	if o.CustomerDocNumber.Valid {
		resp.CustomerDocNumber = &o.CustomerDocNumber.String
	}
	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}
	if o.AdjustmentKind.Valid {
		resp.AdjustmentKind = &o.AdjustmentKind.String
	}
	if o.AdjustmentPercent.Valid {
		s := numericToString(o.AdjustmentPercent)
		resp.AdjustmentPercent = &s
	}
	if o.AdjustmentNote.Valid {
		resp.AdjustmentNote = &o.AdjustmentNote.String
	}
	if o.HeldAt.Valid {
		resp.HeldAt = &o.HeldAt.Time
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}

	return resp
}

func toOrderDetailResponse(o database.Order, items []database.OrderItem, payments []database.Payment) orderDetailResponse {
	itemResps := make([]orderItemResponse, len(items))
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		unitPrice := numericToDecimal(it.UnitPrice)
		lines[i] = pricing.Line{UnitPrice: unitPrice, Quantity: it.Quantity}

		itemResps[i] = orderItemResponse{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  unitPrice.StringFixed(2),
			Quantity:   it.Quantity,
			LineTotal:  pricing.Round2(unitPrice.Mul(decimal.NewFromInt32(it.Quantity))).StringFixed(2),
		}
		if it.Notes.Valid {
			itemResps[i].Notes = &it.Notes.String
		}
	}

	paymentResps := make([]orderPaymentResponse, len(payments))
	for i, p := range payments {
		paymentResps[i] = orderPaymentResponse{
			ID:     p.ID,
			Type:   p.Type,
			Amount: numericToString(p.Amount),
		}
	}

	var adjustment *pricing.Adjustment
	if o.AdjustmentKind.Valid && o.AdjustmentPercent.Valid {
		adjustment = &pricing.Adjustment{
			Kind:    o.AdjustmentKind.String,
			Percent: numericToDecimal(o.AdjustmentPercent),
		}
	}

	return orderDetailResponse{
		orderResponse: toOrderResponse(o),
		Items:         itemResps,
		Payments:      paymentResps,
		Subtotal:      pricing.ItemSubtotal(lines).StringFixed(2),
		AdjustedTotal: pricing.AdjustedTotal(lines, adjustment).StringFixed(2),
	}
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

func numericToString(n pgtype.Numeric) string {
	return numericToDecimal(n).StringFixed(2)
}
