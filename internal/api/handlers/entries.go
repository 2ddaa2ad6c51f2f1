package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/report"
	"github.com/shopspring/decimal"
)

// EntriesHandler handles entry endpoints.
type EntriesHandler struct {
	engine *ledger.Engine
}

// NewEntriesHandler creates a new entries handler.
func NewEntriesHandler(engine *ledger.Engine) *EntriesHandler {
	return &EntriesHandler{engine: engine}
}

// Register adds the entry routes to mux.
func (h *EntriesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entries", h.ListEntries)
	mux.HandleFunc("POST /api/entries", h.CreateEntry)
	mux.HandleFunc("PUT /api/entries/{id}", h.UpdateEntry)
	mux.HandleFunc("POST /api/entries/carry-pending", h.CarryPending)
	mux.HandleFunc("POST /api/entries/carry-balance", h.CarryBalance)
	mux.HandleFunc("POST /api/entries/{id}/toggle", h.ToggleStatus)
	mux.HandleFunc("POST /api/entries/{id}/reschedule", h.Reschedule)
	mux.HandleFunc("DELETE /api/entries/{id}", h.DeleteEntry)
	mux.HandleFunc("GET /api/alerts", h.DueAlerts)
}

// ListEntries handles GET /api/entries. Without from/to it lists the month
// given by ?month=YYYY-MM, the current month by default.
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	f, err := entryFilter(r, s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid filter")
		return
	}

	entries, err := h.engine.Entries(r.Context(), s, f)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list entries")
		return
	}
	if entries == nil {
		entries = []domain.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func entryFilter(r *http.Request, s domain.Session) (domain.EntryFilter, error) {
	q := r.URL.Query()
	f := domain.EntryFilter{
		Status:           domain.Status(q.Get("status")),
		Direction:        domain.Direction(q.Get("direction")),
		CategoryID:       q.Get("category_id"),
		InstallmentsOnly: queryBool(r, "installments"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, ledger.ErrInvalidStatus
	}
	if f.Direction != "" && !f.Direction.Valid() {
		return f, ledger.ErrInvalidDirection
	}

	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	if f.From.IsZero() && f.To.IsZero() && !queryBool(r, "all") {
		f.From, f.To, err = monthRange(r, s)
	}
	return f, err
}

type createEntryRequest struct {
	Date        civil.Date       `json:"date"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Direction   domain.Direction `json:"direction"`
	Status      domain.Status    `json:"status"`
	Notes       string           `json:"notes"`
}

// CreateEntry handles POST /api/entries.
func (h *EntriesHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req createEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Date.IsValid() {
		middleware.WriteError(w, http.StatusBadRequest, "date is required")
		return
	}

	entry, err := h.engine.CreateEntry(r.Context(), s, domain.Entry{
		Date:        req.Date,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to create entry")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PUT /api/entries/{id}. Every editable field is
// replaced, so clients send the full entry.
func (h *EntriesHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req ledger.EntryUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.engine.UpdateEntry(r.Context(), s, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to update entry")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, entry)
}

// CarryPending handles POST /api/entries/carry-pending?month=YYYY-MM: the
// previous month's pending entries move into the given month.
func (h *EntriesHandler) CarryPending(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	year, month, err := queryMonth(r, s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid month")
		return
	}

	result, err := h.engine.CarryPending(r.Context(), s, year, month)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to carry pending entries")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// CarryBalance handles POST /api/entries/carry-balance?month=YYYY-MM. A
// zero previous balance answers 200 with a null entry.
func (h *EntriesHandler) CarryBalance(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	year, month, err := queryMonth(r, s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid month")
		return
	}

	entry, err := h.engine.CarryBalance(r.Context(), s, year, month)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to carry previous balance")
		return
	}

	status := http.StatusOK
	if entry != nil {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, map[string]interface{}{"entry": entry})
}

// ToggleStatus handles POST /api/entries/{id}/toggle.
func (h *EntriesHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	entry, err := h.engine.ToggleStatus(r.Context(), s, r.PathValue("id"))
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to toggle entry")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, entry)
}

// Reschedule handles POST /api/entries/{id}/reschedule.
func (h *EntriesHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req struct {
		Date civil.Date `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.engine.Reschedule(r.Context(), s, r.PathValue("id"), req.Date)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to reschedule entry")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *EntriesHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeleteEntry(r.Context(), s, r.PathValue("id")); err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to delete entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DueAlerts handles GET /api/alerts: pending entries that are overdue or due
// within a week.
func (h *EntriesHandler) DueAlerts(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	today := s.Today()
	pending, err := h.engine.Entries(r.Context(), s, domain.EntryFilter{
		Status: domain.StatusPending,
		To:     today.AddDays(7),
	})
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list pending entries")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report.BuildDueAlerts(today, pending))
}
