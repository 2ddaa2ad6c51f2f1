// Package handlers implements the JSON HTTP endpoints of the ledger API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// session returns the acting session set by middleware.Auth. It writes a 401
// and returns false when there is none.
func session(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	s, ok := domain.SessionFromContext(r.Context())
	if !ok || s.UserID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing user")
		return domain.Session{}, false
	}
	return s, true
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: invalid %s %q", domain.ErrValidation, name, raw)
	}
	return d, nil
}

// queryMonth parses an optional YYYY-MM query parameter, defaulting to the
// session's current month.
func queryMonth(r *http.Request, s domain.Session) (int, time.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		today := s.Today()
		return today.Year, today.Month, nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid month %q, want YYYY-MM", domain.ErrValidation, raw)
	}
	return t.Year(), t.Month(), nil
}

// monthRange returns the bounds of the requested month.
func monthRange(r *http.Request, s domain.Session) (civil.Date, civil.Date, error) {
	year, month, err := queryMonth(r, s)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	from, to := ledger.MonthBounds(year, month)
	return from, to, nil
}

func queryInt(r *http.Request, name string) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
