package ledger

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// GenerateRequest describes a purchase to split into monthly installments.
// Amount is the value of one installment.
type GenerateRequest struct {
	StartDate       civil.Date       `json:"start_date"`
	Description     string           `json:"description"`
	CategoryID      string           `json:"category_id"`
	Amount          decimal.Decimal  `json:"amount"`
	Direction       domain.Direction `json:"direction"`
	Count           int              `json:"count"`
	RecurringBillID string           `json:"recurring_bill_id,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

func (r GenerateRequest) validate() error {
	if r.Count < 1 || r.Count > MaxInstallments {
		return ErrInvalidCount
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !r.Direction.Valid() {
		return ErrInvalidDirection
	}
	if strings.TrimSpace(r.Description) == "" || r.CategoryID == "" {
		return ErrMissingField
	}
	if !r.StartDate.IsValid() {
		return fmt.Errorf("%w: start date %q is not a valid date", domain.ErrValidation, r.StartDate)
	}
	return nil
}

// SplitTotal divides a purchase total into count equal installments rounded
// to cents. Callers that collect a total resolve it here before Generate.
func SplitTotal(total decimal.Decimal, count int) (decimal.Decimal, error) {
	if count < 1 || count > MaxInstallments {
		return decimal.Zero, ErrInvalidCount
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), 2), nil
}

// BuildInstallments expands req into its pending entries without touching
// the store. All entries share one series identifier.
func (e *Engine) BuildInstallments(s domain.Session, req GenerateRequest) ([]domain.Entry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	seriesID := e.newID()
	now := s.Now()
	base := strings.TrimSpace(req.Description)

	entries := make([]domain.Entry, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		pos := domain.Position{Index: i + 1, Total: req.Count}
		entries = append(entries, domain.Entry{
			ID:              e.newID(),
			UserID:          s.UserID,
			Date:            InstallmentDate(req.StartDate, i),
			Description:     fmt.Sprintf("%s (%s)", base, pos.Label()),
			CategoryID:      req.CategoryID,
			Amount:          req.Amount,
			Direction:       req.Direction,
			Status:          domain.StatusPending,
			Position:        &pos,
			SeriesID:        seriesID,
			RecurringBillID: req.RecurringBillID,
			Notes:           req.Notes,
			CreatedAt:       now,
		})
	}
	return entries, nil
}

// Generate creates the installments of req and writes them as one batch.
// When the write fails nothing is committed and the whole call may be
// retried.
func (e *Engine) Generate(ctx context.Context, s domain.Session, req GenerateRequest) ([]domain.Entry, error) {
	entries, err := e.BuildInstallments(s, req)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}

	if err := e.store.Apply(ctx, domain.Batch{UserID: s.UserID, Insert: entries}); err != nil {
		return nil, fmt.Errorf("Generate: inserting installments: %w", err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", s.UserID).
		Str("series_id", entries[0].SeriesID).
		Int("count", len(entries)).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Installments generated")

	return entries, nil
}

// CreateEntry records a single entry. Entries with status unset start as
// pending.
func (e *Engine) CreateEntry(ctx context.Context, s domain.Session, entry domain.Entry) (domain.Entry, error) {
	if entry.Status == "" {
		entry.Status = domain.StatusPending
	}
	if err := checkEntry(entry); err != nil {
		return domain.Entry{}, fmt.Errorf("CreateEntry: %w", err)
	}

	entry.ID = e.newID()
	entry.UserID = s.UserID
	entry.Description = strings.TrimSpace(entry.Description)
	entry.Position = nil
	entry.SeriesID = ""
	entry.Settlement = nil
	entry.CreatedAt = s.Now()

	if err := e.store.InsertEntries(ctx, []domain.Entry{entry}); err != nil {
		return domain.Entry{}, fmt.Errorf("CreateEntry: inserting entry: %w", err)
	}
	return entry, nil
}

// checkEntry validates the user-editable fields of an entry.
func checkEntry(entry domain.Entry) error {
	if !entry.Date.IsValid() {
		return ErrInvalidDate
	}
	if !entry.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !entry.Direction.Valid() {
		return ErrInvalidDirection
	}
	if strings.TrimSpace(entry.Description) == "" || entry.CategoryID == "" {
		return ErrMissingField
	}
	if !entry.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
