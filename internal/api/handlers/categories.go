package handlers

import (
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
)

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	engine *ledger.Engine
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(engine *ledger.Engine) *CategoriesHandler {
	return &CategoriesHandler{engine: engine}
}

// Register adds the category routes to mux.
func (h *CategoriesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("POST /api/categories", h.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.DeleteCategory)
	mux.HandleFunc("POST /api/categories/seed", h.SeedCategories)
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	direction := domain.Direction(r.URL.Query().Get("direction"))
	if direction != "" && !direction.Valid() {
		middleware.WriteOperationError(w, r, ledger.ErrInvalidDirection, "Invalid direction")
		return
	}

	categories, err := h.engine.Categories(r.Context(), s, direction)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// SeedCategories handles POST /api/categories/seed. Users that already have
// categories get nothing new.
func (h *CategoriesHandler) SeedCategories(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	created, err := h.engine.SeedDefaultCategories(r.Context(), s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to seed categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{"created": created})
}

type categoryRequest struct {
	Name      string           `json:"name"`
	Direction domain.Direction `json:"direction"`
}

// CreateCategory handles POST /api/categories.
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.engine.CreateCategory(r.Context(), s, req.Name, req.Direction)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to create category")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, c)
}

// UpdateCategory handles PUT /api/categories/{id}.
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.engine.UpdateCategory(r.Context(), s, r.PathValue("id"), req.Name, req.Direction)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to update category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /api/categories/{id}. Categories still in
// use are refused with a 400.
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeleteCategory(r.Context(), s, r.PathValue("id")); err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to delete category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
