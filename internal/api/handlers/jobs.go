package handlers

import (
	"net/http"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/jobs"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// Register adds the job routes to mux.
func (h *JobsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
}

// GetJob handles GET /api/jobs/{id}. Jobs of other users are reported as
// missing.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	jobID := r.PathValue("id")
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil || job.UserID != s.UserID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	s, ok := session(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID:      s.UserID,
		StatementID: query.Get("statement_id"),
		Status:      jobs.JobStatus(query.Get("status")),
		Limit:       queryInt(r, "limit"),
		Offset:      queryInt(r, "offset"),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteOperationError(w, r, err, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ImportStatementJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
