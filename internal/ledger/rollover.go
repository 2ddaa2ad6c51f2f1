package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/report"
)

// BalanceCategoryName names the category that carried balances are filed
// under. It is created on first use, once per direction.
const BalanceCategoryName = "Previous balance"

// CarryResult reports the entries moved into a month.
type CarryResult struct {
	Moved   int            `json:"moved"`
	Entries []domain.Entry `json:"entries"`
}

func monthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%02d/%d", int(month), year)
}

// CarryPending moves every pending entry of the month before year/month to
// the first day of year/month. Originals are deleted and copies inserted in
// one batch. Copies are detached from their recurring bill so the target
// month's own bill entry is still generated; installments keep their
// position marker last so their series is still recognized.
func (e *Engine) CarryPending(ctx context.Context, s domain.Session, year int, month time.Month) (*CarryResult, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("CarryPending: %w", ErrInvalidMonth)
	}

	prevYear, prevMonth := PreviousMonth(year, month)
	from, to := MonthBounds(prevYear, prevMonth)
	pending, err := e.store.QueryEntries(ctx, domain.EntryFilter{
		UserID: s.UserID,
		From:   from,
		To:     to,
		Status: domain.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("CarryPending: querying entries: %w", err)
	}

	result := &CarryResult{Entries: []domain.Entry{}}
	if len(pending) == 0 {
		return result, nil
	}

	origin := monthLabel(prevYear, prevMonth)
	target, _ := MonthBounds(year, month)
	now := s.Now()
	ids := make([]string, 0, len(pending))

	for _, src := range pending {
		moved := src
		moved.ID = e.newID()
		moved.Date = target
		moved.RecurringBillID = ""
		moved.CreatedAt = now
		if src.Position != nil {
			pos := *src.Position
			moved.Position = &pos
		} else {
			moved.Description = fmt.Sprintf("%s (pending %s)", src.Description, origin)
		}
		note := "Moved from " + origin
		if strings.TrimSpace(src.Notes) != "" {
			note = src.Notes + " | " + note
		}
		moved.Notes = note

		ids = append(ids, src.ID)
		result.Entries = append(result.Entries, moved)
	}

	batch := domain.Batch{UserID: s.UserID, DeleteIDs: ids, Insert: result.Entries}
	if err := e.store.Apply(ctx, batch); err != nil {
		return nil, fmt.Errorf("CarryPending: moving entries: %w", err)
	}
	result.Moved = len(result.Entries)

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", s.UserID).
		Str("from", origin).
		Str("to", monthLabel(year, month)).
		Int("moved", result.Moved).
		Msg("Pending entries carried forward")

	return result, nil
}

// CarryBalance records the projected balance of the month before
// year/month as a paid entry on the first day of year/month: income when
// positive, expense when negative. A zero balance records nothing and
// returns nil. Carrying the same month twice is rejected.
func (e *Engine) CarryBalance(ctx context.Context, s domain.Session, year int, month time.Month) (*domain.Entry, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("CarryBalance: %w", ErrInvalidMonth)
	}

	prevYear, prevMonth := PreviousMonth(year, month)
	from, to := MonthBounds(prevYear, prevMonth)
	entries, err := e.store.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("CarryBalance: querying entries: %w", err)
	}
	balance := report.Summarize(entries).Projected
	if balance.IsZero() {
		return nil, nil
	}

	origin := monthLabel(prevYear, prevMonth)
	surplus := "Balance from " + origin
	deficit := "Deficit from " + origin

	first, last := MonthBounds(year, month)
	existing, err := e.store.QueryEntries(ctx, domain.EntryFilter{
		UserID: s.UserID,
		From:   first,
		To:     last,
		Status: domain.StatusPaid,
	})
	if err != nil {
		return nil, fmt.Errorf("CarryBalance: querying target month: %w", err)
	}
	for _, x := range existing {
		if x.Description == surplus || x.Description == deficit {
			return nil, fmt.Errorf("CarryBalance: %w", ErrAlreadyCarried)
		}
	}

	direction, description := domain.DirectionIncome, surplus
	if balance.IsNegative() {
		direction, description = domain.DirectionExpense, deficit
	}
	category, err := e.balanceCategory(ctx, s, direction)
	if err != nil {
		return nil, fmt.Errorf("CarryBalance: %w", err)
	}

	entry := domain.Entry{
		ID:          e.newID(),
		UserID:      s.UserID,
		Date:        first,
		Description: description,
		CategoryID:  category.ID,
		Amount:      balance.Abs(),
		Direction:   direction,
		Status:      domain.StatusPaid,
		Notes:       "Carried forward automatically: " + balance.StringFixed(2),
		CreatedAt:   s.Now(),
	}
	if err := e.store.InsertEntries(ctx, []domain.Entry{entry}); err != nil {
		return nil, fmt.Errorf("CarryBalance: inserting entry: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", s.UserID).
		Str("from", origin).
		Str("balance", balance.StringFixed(2)).
		Msg("Previous balance carried forward")

	return &entry, nil
}

// balanceCategory returns the user's balance category for direction,
// creating it when missing.
func (e *Engine) balanceCategory(ctx context.Context, s domain.Session, direction domain.Direction) (domain.Category, error) {
	categories, err := e.store.ListCategories(ctx, s.UserID, direction)
	if err != nil {
		return domain.Category{}, fmt.Errorf("listing categories: %w", err)
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, BalanceCategoryName) {
			return c, nil
		}
	}

	c := domain.Category{
		ID:        e.newID(),
		UserID:    s.UserID,
		Name:      BalanceCategoryName,
		Direction: direction,
		CreatedAt: s.Now(),
	}
	if err := e.store.InsertCategories(ctx, []domain.Category{c}); err != nil {
		return domain.Category{}, fmt.Errorf("creating balance category: %w", err)
	}
	return c, nil
}
