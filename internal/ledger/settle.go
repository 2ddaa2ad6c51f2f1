package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// SettleRequest collapses pending installments of one series into a single
// paid entry. Full and partial settlement differ only in the recorded kind,
// the description and whether per-item amounts are kept.
type SettleRequest struct {
	Kind     domain.SettlementKind
	Entries  []domain.Entry
	Discount decimal.Decimal
}

// SettleResult is the synthetic entry written by a settlement.
type SettleResult struct {
	Settlement domain.Settlement `json:"settlement"`
	Entry      domain.Entry      `json:"entry"`
}

// Settle validates req, then deletes the settled installments and inserts
// the paid settlement entry in one unit of work.
func (e *Engine) Settle(ctx context.Context, s domain.Session, req SettleRequest) (*SettleResult, error) {
	result, err := e.buildSettlement(s, req)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}

	ids := make([]string, len(req.Entries))
	for i, entry := range req.Entries {
		ids[i] = entry.ID
	}

	batch := domain.Batch{
		UserID:    s.UserID,
		DeleteIDs: ids,
		Insert:    []domain.Entry{result.Entry},
	}
	if err := e.store.Apply(ctx, batch); err != nil {
		return nil, fmt.Errorf("Settle: applying settlement: %w", err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", s.UserID).
		Str("kind", string(result.Settlement.Kind)).
		Int("count", result.Settlement.Count).
		Str("original_total", result.Settlement.OriginalTotal.StringFixed(2)).
		Str("discount", result.Settlement.Discount.StringFixed(2)).
		Msg("Installments settled")

	return result, nil
}

// SettleFull pays off every given installment of a series.
func (e *Engine) SettleFull(ctx context.Context, s domain.Session, entries []domain.Entry, discount decimal.Decimal) (*SettleResult, error) {
	return e.Settle(ctx, s, SettleRequest{Kind: domain.SettlementFull, Entries: entries, Discount: discount})
}

// SettlePartial pays off a chosen subset of a series.
func (e *Engine) SettlePartial(ctx context.Context, s domain.Session, entries []domain.Entry, discount decimal.Decimal) (*SettleResult, error) {
	return e.Settle(ctx, s, SettleRequest{Kind: domain.SettlementPartial, Entries: entries, Discount: discount})
}

// SettleSeries fully settles the pending series identified by key.
func (e *Engine) SettleSeries(ctx context.Context, s domain.Session, key string, discount decimal.Decimal) (*SettleResult, error) {
	series, err := e.FindSeries(ctx, s, key)
	if err != nil {
		return nil, err
	}
	return e.SettleFull(ctx, s, series.Entries, discount)
}

// SettleByIDs loads the given entries of the user and settles them.
func (e *Engine) SettleByIDs(ctx context.Context, s domain.Session, kind domain.SettlementKind, ids []string, discount decimal.Decimal) (*SettleResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("SettleByIDs: %w", ErrNoEntries)
	}
	entries, err := e.store.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("SettleByIDs: querying entries: %w", err)
	}
	found := make(map[string]bool, len(entries))
	for _, entry := range entries {
		found[entry.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("SettleByIDs: entry %s: %w", id, domain.ErrNotFound)
		}
	}
	return e.Settle(ctx, s, SettleRequest{Kind: kind, Entries: entries, Discount: discount})
}

func (e *Engine) buildSettlement(s domain.Session, req SettleRequest) (*SettleResult, error) {
	if req.Kind != domain.SettlementFull && req.Kind != domain.SettlementPartial {
		return nil, fmt.Errorf("%w: unknown settlement kind %q", domain.ErrValidation, req.Kind)
	}
	if len(req.Entries) == 0 {
		return nil, ErrNoEntries
	}

	entries := append([]domain.Entry(nil), req.Entries...)
	sort.SliceStable(entries, func(a, b int) bool {
		return positionIndex(entries[a]) < positionIndex(entries[b])
	})

	key := SeriesKey(entries[0])
	seen := make(map[string]bool, len(entries))
	total := decimal.Zero
	for _, entry := range entries {
		if seen[entry.ID] {
			return nil, ErrDuplicateEntry
		}
		seen[entry.ID] = true
		if entry.Status != domain.StatusPending {
			return nil, fmt.Errorf("%w: %s", ErrNotPending, entry.ID)
		}
		if SeriesKey(entry) != key {
			return nil, ErrMixedSeries
		}
		total = total.Add(entry.Amount)
	}

	if req.Discount.IsNegative() || req.Discount.GreaterThan(total) {
		return nil, ErrInvalidDiscount
	}

	today := s.Today()
	settlement := domain.Settlement{
		Kind:          req.Kind,
		Count:         len(entries),
		OriginalTotal: total,
		Discount:      req.Discount,
		AmountPaid:    total.Sub(req.Discount),
		Date:          today,
		Items:         make([]domain.SettledItem, 0, len(entries)),
	}
	for _, entry := range entries {
		item := domain.SettledItem{OriginalID: entry.ID}
		if entry.Position != nil {
			item.Position = entry.Position.Label()
		}
		if req.Kind == domain.SettlementPartial {
			amount := entry.Amount
			item.Amount = &amount
		}
		settlement.Items = append(settlement.Items, item)
	}

	first := entries[0]
	base := BaseDescription(first.Description)
	description := base + " - Full settlement"
	if req.Kind == domain.SettlementPartial {
		description = fmt.Sprintf("%s - Partial settlement (%d installments)", base, len(entries))
	}

	entry := domain.Entry{
		ID:              e.newID(),
		UserID:          s.UserID,
		Date:            today,
		Description:     description,
		CategoryID:      first.CategoryID,
		Amount:          settlement.AmountPaid,
		Direction:       first.Direction,
		Status:          domain.StatusPaid,
		SeriesID:        first.SeriesID,
		RecurringBillID: first.RecurringBillID,
		Settlement:      &settlement,
		CreatedAt:       s.Now(),
	}

	return &SettleResult{Settlement: settlement, Entry: entry}, nil
}

func positionIndex(e domain.Entry) int {
	if e.Position == nil {
		return 0
	}
	return e.Position.Index
}
