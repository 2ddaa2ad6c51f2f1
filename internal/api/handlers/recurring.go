package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
)

// RecurringBillsHandler handles recurring bill endpoints.
type RecurringBillsHandler struct {
	engine *ledger.Engine
}

// NewRecurringBillsHandler creates a new recurring bills handler.
func NewRecurringBillsHandler(engine *ledger.Engine) *RecurringBillsHandler {
	return &RecurringBillsHandler{engine: engine}
}

// Register adds the recurring bill routes to mux.
func (h *RecurringBillsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/recurring-bills", h.ListBills)
	mux.HandleFunc("POST /api/recurring-bills", h.CreateBill)
	mux.HandleFunc("POST /api/recurring-bills/generate", h.Generate)
	mux.HandleFunc("PUT /api/recurring-bills/{id}", h.UpdateBill)
	mux.HandleFunc("DELETE /api/recurring-bills/{id}", h.DeleteBill)
	mux.HandleFunc("POST /api/recurring-bills/{id}/active", h.SetActive)
}

// ListBills handles GET /api/recurring-bills[?active=true].
func (h *RecurringBillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	bills, err := h.engine.RecurringBills(r.Context(), s, queryBool(r, "active"))
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list recurring bills")
		return
	}
	if bills == nil {
		bills = []domain.RecurringBill{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
	})
}

// CreateBill handles POST /api/recurring-bills.
func (h *RecurringBillsHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req ledger.NewRecurringBill
	if !decodeJSON(w, r, &req) {
		return
	}

	bill, err := h.engine.CreateRecurringBill(r.Context(), s, req)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to create recurring bill")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, bill)
}

// UpdateBill handles PUT /api/recurring-bills/{id}.
func (h *RecurringBillsHandler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req ledger.RecurringBillUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	bill, err := h.engine.UpdateRecurringBill(r.Context(), s, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to update recurring bill")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, bill)
}

// DeleteBill handles DELETE /api/recurring-bills/{id}.
func (h *RecurringBillsHandler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeleteRecurringBill(r.Context(), s, r.PathValue("id")); err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to delete recurring bill")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetActive handles POST /api/recurring-bills/{id}/active.
func (h *RecurringBillsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if err := h.engine.SetRecurringBillActive(r.Context(), s, id, req.Active); err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to update recurring bill")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"active": req.Active,
	})
}

// Generate handles POST /api/recurring-bills/generate?month=YYYY-MM. The
// current month is used by default.
func (h *RecurringBillsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	year, month, err := queryMonth(r, s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid month")
		return
	}

	result, err := h.engine.GenerateRecurring(r.Context(), s, year, month)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to generate recurring entries")
		return
	}
	if result.Entries == nil {
		result.Entries = []domain.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		"result": result,
	})
}
