package handlers

import (
	"fmt"
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// InstallmentsHandler handles installment series endpoints.
type InstallmentsHandler struct {
	engine *ledger.Engine
}

// NewInstallmentsHandler creates a new installments handler.
func NewInstallmentsHandler(engine *ledger.Engine) *InstallmentsHandler {
	return &InstallmentsHandler{engine: engine}
}

// Register adds the installment routes to mux.
func (h *InstallmentsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/installments", h.ListSeries)
	mux.HandleFunc("POST /api/installments", h.Generate)
	mux.HandleFunc("POST /api/installments/settle", h.Settle)
	mux.HandleFunc("DELETE /api/installments/series", h.DeleteSeries)
}

// ListSeries handles GET /api/installments: series with pending installments.
func (h *InstallmentsHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	series, err := h.engine.PendingSeries(r.Context(), s)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list installments")
		return
	}
	if series == nil {
		series = []ledger.Series{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series": series,
		"count":  len(series),
	})
}

type generateRequest struct {
	ledger.GenerateRequest
	// Total, when set and Amount is not, is split into Count installments.
	Total decimal.NullDecimal `json:"total"`
}

// Generate handles POST /api/installments.
func (h *InstallmentsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount.IsZero() && req.Total.Valid {
		amount, err := ledger.SplitTotal(req.Total.Decimal, req.Count)
		if err != nil {
			middleware.WriteOperationError(w, r, err, "Invalid installment count")
			return
		}
		req.Amount = amount
	}

	entries, err := h.engine.Generate(r.Context(), s, req.GenerateRequest)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to generate installments")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type settleRequest struct {
	Kind      domain.SettlementKind `json:"kind"`
	SeriesKey string                `json:"series_key"`
	EntryIDs  []string              `json:"entry_ids"`
	Discount  decimal.Decimal       `json:"discount"`
}

// Settle handles POST /api/installments/settle. A series_key settles every
// pending installment of that series in full; entry_ids settles the listed
// installments with the given kind, "partial" by default.
func (h *InstallmentsHandler) Settle(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		result *ledger.SettleResult
		err    error
	)
	switch {
	case req.SeriesKey != "" && len(req.EntryIDs) > 0:
		err = fmt.Errorf("%w: give either series_key or entry_ids", domain.ErrValidation)
	case req.SeriesKey != "":
		result, err = h.engine.SettleSeries(r.Context(), s, req.SeriesKey, req.Discount)
	default:
		kind := req.Kind
		if kind == "" {
			kind = domain.SettlementPartial
		}
		if kind != domain.SettlementFull && kind != domain.SettlementPartial {
			err = fmt.Errorf("%w: unknown settlement kind %q", domain.ErrValidation, kind)
			break
		}
		result, err = h.engine.SettleByIDs(r.Context(), s, kind, req.EntryIDs, req.Discount)
	}
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to settle installments")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}

// DeleteSeries handles DELETE /api/installments/series?key=SERIES_KEY and
// removes every entry of that series.
func (h *InstallmentsHandler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		middleware.WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	deleted, err := h.engine.DeleteSeries(r.Context(), s, key)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to delete series")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
