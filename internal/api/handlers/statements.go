package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/shopspring/decimal"
)

// maxStatementBytes bounds uploaded statement files.
const maxStatementBytes = 10 << 20

// StatementsHandler handles statement preview, selection, import and
// archived upload endpoints.
type StatementsHandler struct {
	parser     *statement.Parser
	importer   *statement.Importer
	sessions   *statement.Sessions
	ingestor   *pipeline.Ingestor
	statements domain.StatementRepository
	publisher  jobs.Publisher
	maxRetries int
}

// NewStatementsHandler creates a new statements handler. ingestor and
// publisher may be nil, which disables archived uploads.
func NewStatementsHandler(parser *statement.Parser, importer *statement.Importer, sessions *statement.Sessions, ingestor *pipeline.Ingestor, statements domain.StatementRepository, publisher jobs.Publisher, maxRetries int) *StatementsHandler {
	return &StatementsHandler{
		parser:     parser,
		importer:   importer,
		sessions:   sessions,
		ingestor:   ingestor,
		statements: statements,
		publisher:  publisher,
		maxRetries: maxRetries,
	}
}

// Register adds the statement routes to mux.
func (h *StatementsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/statements/preview", h.Preview)
	mux.HandleFunc("GET /api/statements/preview", h.View)
	mux.HandleFunc("POST /api/statements/selection", h.Select)
	mux.HandleFunc("POST /api/statements/import", h.ImportSelected)
	mux.HandleFunc("POST /api/statements/upload", h.Upload)
	mux.HandleFunc("GET /api/statements", h.ListStatements)
}

type previewResponse struct {
	Transactions []statement.Transaction `json:"transactions"`
	Groups       []statement.Group       `json:"groups"`
	Total        int                     `json:"total"`
	Selected     int                     `json:"selected"`
	Blocks       int                     `json:"blocks,omitempty"`
	Skipped      int                     `json:"skipped,omitempty"`
	Warning      string                  `json:"warning,omitempty"`
}

func readStatement(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement too large")
		return nil, false
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Statement body is empty")
		return nil, false
	}
	return data, true
}

// Preview handles POST /api/statements/preview. The body is the raw OFX
// file. Parsing replaces the user's previous staging area.
func (h *StatementsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	data, ok := readStatement(w, r)
	if !ok {
		return
	}

	result, err := h.parser.ParseBytes(data)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to parse statement")
		return
	}

	staging := h.sessions.Start(s.UserID, result)
	resp := previewFor(staging, statement.Filter{})
	resp.Blocks = result.Blocks
	resp.Skipped = result.Skipped
	if result.Empty() {
		resp.Warning = "No transactions found in statement"
		log := logger.FromContext(r.Context())
		log.Warn().Int("blocks", result.Blocks).Msg("Statement preview is empty")
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// View handles GET /api/statements/preview?kind=&min=&max=&q=.
func (h *StatementsHandler) View(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	staging, ok := h.sessions.Get(s.UserID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No statement preview in progress")
		return
	}

	f, err := statementFilter(r)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Invalid filter")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, previewFor(staging, f))
}

func previewFor(staging *statement.Staging, f statement.Filter) previewResponse {
	return previewResponse{
		Transactions: staging.View(f),
		Groups:       staging.Groups(f),
		Total:        staging.Len(),
		Selected:     len(staging.Selected()),
	}
}

func statementFilter(r *http.Request) (statement.Filter, error) {
	q := r.URL.Query()
	f := statement.Filter{
		Kind:  statement.Kind(q.Get("kind")),
		Query: q.Get("q"),
	}
	if f.Kind != "" && f.Kind != statement.KindCredit && f.Kind != statement.KindDebit {
		return f, fmt.Errorf("%w: kind must be credit or debit", domain.ErrValidation)
	}
	for name, dst := range map[string]*decimal.NullDecimal{"min": &f.Min, "max": &f.Max} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("%w: invalid %s %q", domain.ErrValidation, name, raw)
		}
		*dst = decimal.NewNullDecimal(d)
	}
	return f, nil
}

type selectionRequest struct {
	Selected bool             `json:"selected"`
	Seqs     []int            `json:"seqs"`
	Merchant string           `json:"merchant"`
	Filter   statement.Filter `json:"filter"`
	// Matching selects every transaction passing Filter.
	Matching bool `json:"matching"`
	Clear    bool `json:"clear"`
}

// Select handles POST /api/statements/selection. Exactly one of seqs,
// merchant, matching or clear is honored, in that order.
func (h *StatementsHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	staging, ok := h.sessions.Get(s.UserID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No statement preview in progress")
		return
	}

	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	changed := 0
	switch {
	case len(req.Seqs) > 0:
		if err := staging.SetSelected(req.Selected, req.Seqs...); err != nil {
			middleware.WriteOperationError(w, r, err, "Invalid selection")
			return
		}
		changed = len(req.Seqs)
	case req.Merchant != "":
		changed = staging.SelectMerchant(req.Filter, req.Merchant, req.Selected)
	case req.Matching:
		changed = staging.SelectMatching(req.Filter, req.Selected)
	case req.Clear:
		staging.ClearSelection()
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Nothing to select")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{
		"changed":  changed,
		"selected": len(staging.Selected()),
	})
}

// ImportSelected handles POST /api/statements/import. The imported staging
// area is discarded afterwards unless a newer preview replaced it.
func (h *StatementsHandler) ImportSelected(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	staging, ok := h.sessions.Get(s.UserID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "No statement preview in progress")
		return
	}
	selected := staging.Selected()
	if len(selected) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No transactions selected")
		return
	}

	counts, err := h.importer.Import(r.Context(), s, selected)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to import transactions")
		return
	}
	h.sessions.EndIf(s.UserID, staging)

	middleware.WriteJSON(w, http.StatusOK, counts)
}

// Upload handles POST /api/statements/upload?filename=. The statement is
// archived and imported in the background; identical re-uploads return the
// existing record.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}
	if h.ingestor == nil || h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Statement uploads are disabled")
		return
	}

	data, ok := readStatement(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	rec, duplicate, err := h.ingestor.Register(ctx, s, r.URL.Query().Get("filename"), data)
	if errors.Is(err, pipeline.ErrNoBucket) {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Statement uploads are disabled")
		return
	}
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to upload statement")
		return
	}
	if duplicate {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"statement": rec,
			"duplicate": true,
		})
		return
	}

	job := &jobs.ImportStatementJob{
		UserID:      s.UserID,
		StatementID: rec.ID,
		GCSURI:      rec.URI,
		MaxRetries:  h.maxRetries,
	}
	if err := h.publisher.PublishImportStatement(ctx, job); err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to enqueue statement import")
		return
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("job_id", job.JobID).
		Str("statement_id", rec.ID).
		Msg("Statement import enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"statement": rec,
		"job_id":    job.JobID,
		"status":    job.Status,
	})
}

// ListStatements handles GET /api/statements
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	records, err := h.statements.ListStatements(r.Context(), s.UserID)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list statements")
		return
	}
	if records == nil {
		records = []domain.StatementRecord{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": records,
		"count":      len(records),
	})
}
