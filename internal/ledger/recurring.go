package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// RecurringResult counts the outcome of a monthly sweep.
type RecurringResult struct {
	Generated      int            `json:"generated"`
	AlreadyPresent int            `json:"already_present"`
	Skipped        int            `json:"skipped"`
	Entries        []domain.Entry `json:"entries"`
}

// NewRecurringBill describes a bill to register.
type NewRecurringBill struct {
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Direction   domain.Direction `json:"direction"`
	DueDay      int              `json:"due_day"`
	Notes       string           `json:"notes,omitempty"`
}

func (r NewRecurringBill) validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !r.Direction.Valid() {
		return ErrInvalidDirection
	}
	if strings.TrimSpace(r.Description) == "" || r.CategoryID == "" {
		return ErrMissingField
	}
	if r.DueDay < 1 || r.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// CreateRecurringBill registers an active bill.
func (e *Engine) CreateRecurringBill(ctx context.Context, s domain.Session, req NewRecurringBill) (domain.RecurringBill, error) {
	if err := req.validate(); err != nil {
		return domain.RecurringBill{}, fmt.Errorf("CreateRecurringBill: %w", err)
	}

	bill := domain.RecurringBill{
		ID:          e.newID(),
		UserID:      s.UserID,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Direction:   req.Direction,
		DueDay:      req.DueDay,
		Active:      true,
		Notes:       req.Notes,
		CreatedAt:   s.Now(),
	}
	if err := e.store.InsertRecurringBill(ctx, bill); err != nil {
		return domain.RecurringBill{}, fmt.Errorf("CreateRecurringBill: inserting bill: %w", err)
	}
	return bill, nil
}

// SetRecurringBillActive pauses or resumes a bill.
func (e *Engine) SetRecurringBillActive(ctx context.Context, s domain.Session, id string, active bool) error {
	if err := e.store.SetRecurringBillActive(ctx, s.UserID, id, active); err != nil {
		return fmt.Errorf("SetRecurringBillActive: %w", err)
	}
	return nil
}

// RecurringBillUpdate replaces every editable field of a bill.
type RecurringBillUpdate struct {
	NewRecurringBill
	Active bool `json:"active"`
}

// UpdateRecurringBill rewrites a bill. Entries it already generated keep
// their values; the next sweep uses the new ones.
func (e *Engine) UpdateRecurringBill(ctx context.Context, s domain.Session, id string, upd RecurringBillUpdate) (*domain.RecurringBill, error) {
	if err := upd.validate(); err != nil {
		return nil, fmt.Errorf("UpdateRecurringBill: %w", err)
	}

	bills, err := e.store.ListRecurringBills(ctx, s.UserID, false)
	if err != nil {
		return nil, fmt.Errorf("UpdateRecurringBill: listing bills: %w", err)
	}
	var bill *domain.RecurringBill
	for i := range bills {
		if bills[i].ID == id {
			bill = &bills[i]
			break
		}
	}
	if bill == nil {
		return nil, fmt.Errorf("UpdateRecurringBill: recurring bill %s: %w", id, domain.ErrNotFound)
	}

	bill.Description = strings.TrimSpace(upd.Description)
	bill.CategoryID = upd.CategoryID
	bill.Amount = upd.Amount
	bill.Direction = upd.Direction
	bill.DueDay = upd.DueDay
	bill.Active = upd.Active
	bill.Notes = upd.Notes
	if err := e.store.UpdateRecurringBill(ctx, *bill); err != nil {
		return nil, fmt.Errorf("UpdateRecurringBill: updating bill: %w", err)
	}
	return bill, nil
}

// DeleteRecurringBill removes a bill. Entries it generated stay in the
// ledger.
func (e *Engine) DeleteRecurringBill(ctx context.Context, s domain.Session, id string) error {
	if err := e.store.DeleteRecurringBill(ctx, s.UserID, id); err != nil {
		return fmt.Errorf("DeleteRecurringBill: %w", err)
	}
	return nil
}

// GenerateRecurring creates the pending entry of every active bill for the
// given month. A bill is skipped when it was registered after that month
// (its earliest entry, or its creation time when it has none) and counted
// as already present when it has an entry inside the month. New entries are
// written as one batch.
func (e *Engine) GenerateRecurring(ctx context.Context, s domain.Session, year int, month time.Month) (*RecurringResult, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("GenerateRecurring: %w", ErrInvalidMonth)
	}

	bills, err := e.store.ListRecurringBills(ctx, s.UserID, true)
	if err != nil {
		return nil, fmt.Errorf("GenerateRecurring: listing bills: %w", err)
	}

	first, last := MonthBounds(year, month)
	result := &RecurringResult{}
	now := s.Now()

	for _, bill := range bills {
		history, err := e.store.QueryEntries(ctx, domain.EntryFilter{
			UserID:          s.UserID,
			RecurringBillID: bill.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("GenerateRecurring: querying entries of bill %s: %w", bill.ID, err)
		}

		registered := bill.CreatedAt
		if len(history) > 0 {
			registered = history[0].Date.In(time.UTC)
		}
		if !registered.IsZero() {
			regYear, regMonth := registered.Year(), registered.Month()
			if regYear > year || (regYear == year && regMonth > month) {
				result.Skipped++
				continue
			}
		}

		present := false
		for _, h := range history {
			if !h.Date.Before(first) && !h.Date.After(last) {
				present = true
				break
			}
		}
		if present {
			result.AlreadyPresent++
			continue
		}

		result.Entries = append(result.Entries, domain.Entry{
			ID:              e.newID(),
			UserID:          s.UserID,
			Date:            ClampDay(year, month, bill.DueDay),
			Description:     bill.Description,
			CategoryID:      bill.CategoryID,
			Amount:          bill.Amount,
			Direction:       bill.Direction,
			Status:          domain.StatusPending,
			RecurringBillID: bill.ID,
			Notes:           bill.Notes,
			CreatedAt:       now,
		})
	}

	if len(result.Entries) > 0 {
		if err := e.store.Apply(ctx, domain.Batch{UserID: s.UserID, Insert: result.Entries}); err != nil {
			return nil, fmt.Errorf("GenerateRecurring: inserting entries: %w", err)
		}
	}
	result.Generated = len(result.Entries)

	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", s.UserID).
		Str("month", first.String()[:7]).
		Int("generated", result.Generated).
		Int("already_present", result.AlreadyPresent).
		Int("skipped", result.Skipped).
		Msg("Recurring bills generated")

	return result, nil
}
