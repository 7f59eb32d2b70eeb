package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cartapos/api/internal/database"
	"github.com/cartapos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MealStore defines the database methods needed by meal handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MealStore interface {
	ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
}

// MealHandler serves the read-only menu catalog.
type MealHandler struct {
	store MealStore
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(store MealStore) *MealHandler {
	return &MealHandler{store: store}
}

// RegisterRoutes registers meal endpoints on the given Chi router.
func (h *MealHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type mealResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// List handles GET /meals.
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	meals, err := h.store.ListMenuItems(r.Context(), claims.TenantID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]mealResponse, len(meals))
	for i, m := range meals {
		resp[i] = toMealResponse(m)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /meals/{id}.
func (h *MealHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	mealID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid meal ID"})
		return
	}

	meal, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{
		ID:       mealID,
		TenantID: claims.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "meal not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMealResponse(meal))
}

func toMealResponse(m database.MenuItem) mealResponse {
	return mealResponse{
		ID:          m.ID,
		Name:        m.Name,
		Price:       numericToString(m.Price),
		IsAvailable: m.IsAvailable,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
