package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/report"
)

// ReportsHandler handles summary and report endpoints.
type ReportsHandler struct {
	engine *ledger.Engine
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(engine *ledger.Engine) *ReportsHandler {
	return &ReportsHandler{engine: engine}
}

// Register adds the report routes to mux.
func (h *ReportsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/summary", h.Summary)
	mux.HandleFunc("GET /api/reports", h.Period)
	mux.HandleFunc("GET /health", Health)
}

// Summary handles GET /api/summary?month=YYYY-MM.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	from, to, err := monthRange(r, s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid month")
		return
	}

	entries, err := h.engine.Entries(r.Context(), s, domain.EntryFilter{From: from, To: to})
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to load entries")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":   from.String()[:7],
		"summary": report.Summarize(entries),
	})
}

// Period handles GET /api/reports?from=&to=. Both bounds default to the
// current month.
func (h *ReportsHandler) Period(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	from, err := queryDate(r, "from")
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid from date")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid to date")
		return
	}
	monthStart, monthEnd := ledger.MonthBounds(s.Today().Year, s.Today().Month)
	if from.IsZero() {
		from = monthStart
	}
	if to.IsZero() {
		to = monthEnd
	}
	if to.Before(from) {
		middleware.WriteOperationError(w, r, fmt.Errorf("%w: to is before from", domain.ErrValidation), "Invalid range")
		return
	}

	ctx := r.Context()
	entries, err := h.engine.Entries(ctx, s, domain.EntryFilter{From: from, To: to, Status: domain.StatusPaid})
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to load entries")
		return
	}
	categories, err := h.engine.Categories(ctx, s, "")
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to load categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report.BuildPeriod(from, to, entries, categories))
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
