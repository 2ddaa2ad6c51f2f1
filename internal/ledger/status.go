package ledger

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// ToggleStatus flips an entry between paid and pending and returns the
// updated entry.
func (e *Engine) ToggleStatus(ctx context.Context, s domain.Session, id string) (*domain.Entry, error) {
	entry, err := e.store.GetEntry(ctx, s.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("ToggleStatus: loading entry: %w", err)
	}

	next := entry.Status.Toggle()
	if err := e.store.UpdateEntryStatus(ctx, s.UserID, id, next); err != nil {
		return nil, fmt.Errorf("ToggleStatus: updating status: %w", err)
	}
	entry.Status = next
	return entry, nil
}

// Reschedule moves a pending entry to a new due date. Dates before today are
// rejected.
func (e *Engine) Reschedule(ctx context.Context, s domain.Session, id string, date civil.Date) (*domain.Entry, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("Reschedule: %w: invalid date", domain.ErrValidation)
	}
	if date.Before(s.Today()) {
		return nil, fmt.Errorf("Reschedule: %w: date %s is in the past", domain.ErrValidation, date)
	}

	entry, err := e.store.GetEntry(ctx, s.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("Reschedule: loading entry: %w", err)
	}
	if entry.Status != domain.StatusPending {
		return nil, fmt.Errorf("Reschedule: %w", ErrNotPending)
	}

	if err := e.store.RescheduleEntry(ctx, s.UserID, id, date); err != nil {
		return nil, fmt.Errorf("Reschedule: updating date: %w", err)
	}
	entry.Date = date
	return entry, nil
}

// EntryUpdate holds the user-editable fields of an entry.
type EntryUpdate struct {
	Date        civil.Date       `json:"date"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Direction   domain.Direction `json:"direction"`
	Status      domain.Status    `json:"status"`
	Notes       string           `json:"notes"`
}

// UpdateEntry rewrites the editable fields of an entry and returns it.
// Installment position, series and settlement data are kept, so an edited
// installment stays in its series.
func (e *Engine) UpdateEntry(ctx context.Context, s domain.Session, id string, upd EntryUpdate) (*domain.Entry, error) {
	entry, err := e.store.GetEntry(ctx, s.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateEntry: loading entry: %w", err)
	}

	entry.Date = upd.Date
	entry.Description = strings.TrimSpace(upd.Description)
	entry.CategoryID = upd.CategoryID
	entry.Amount = upd.Amount
	entry.Direction = upd.Direction
	entry.Status = upd.Status
	entry.Notes = upd.Notes
	if err := checkEntry(*entry); err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}

	if err := e.store.UpdateEntry(ctx, *entry); err != nil {
		return nil, fmt.Errorf("UpdateEntry: updating entry: %w", err)
	}
	return entry, nil
}

// DeleteEntry removes one entry of the user.
func (e *Engine) DeleteEntry(ctx context.Context, s domain.Session, id string) error {
	if _, err := e.store.GetEntry(ctx, s.UserID, id); err != nil {
		return fmt.Errorf("DeleteEntry: loading entry: %w", err)
	}
	if err := e.store.DeleteEntries(ctx, s.UserID, []string{id}); err != nil {
		return fmt.Errorf("DeleteEntry: deleting entry: %w", err)
	}
	return nil
}
