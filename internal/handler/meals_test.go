package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/cartapos/api/internal/database"
	"github.com/cartapos/api/internal/handler"
	"github.com/cartapos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockMealStore struct {
	listMenuItemsFn func(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error)
	getMenuItemFn   func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
}

func (m *mockMealStore) ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error) {
	if m.listMenuItemsFn != nil {
		return m.listMenuItemsFn(ctx, tenantID)
	}
	return []database.MenuItem{}, nil
}

func (m *mockMealStore) GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	if m.getMenuItemFn != nil {
		return m.getMenuItemFn(ctx, arg)
	}
	return database.MenuItem{}, pgx.ErrNoRows
}

func setupMealRouter(store *mockMealStore) *chi.Mux {
	h := handler.NewMealHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Use(middleware.RequireTenant)
	r.Route("/meals", h.RegisterRoutes)
	return r
}

func TestMealList_ScopesToClaimsTenant(t *testing.T) {
	claims := staffClaims()

	var captured uuid.UUID
	store := &mockMealStore{
		listMenuItemsFn: func(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error) {
			captured = tenantID
			return []database.MenuItem{
				{ID: uuid.New(), TenantID: tenantID, Name: "Ceviche", Price: mustNumeric(t, "32.00"), IsAvailable: true},
			}, nil
		},
	}
	router := setupMealRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/meals", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if captured != claims.TenantID {
		t.Errorf("tenant: got %v, want %v", captured, claims.TenantID)
	}

	var resp []struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp) != 1 || resp[0].Price != "32.00" {
		t.Errorf("meals: got %+v, want one priced 32.00", resp)
	}
}

func TestMealGet_NotFound(t *testing.T) {
	router := setupMealRouter(&mockMealStore{})

	rr := doAuthRequest(t, router, http.MethodGet, "/meals/"+uuid.New().String(), nil, staffClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestMealGet_InvalidID(t *testing.T) {
	router := setupMealRouter(&mockMealStore{})

	rr := doAuthRequest(t, router, http.MethodGet, "/meals/nope", nil, staffClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}
