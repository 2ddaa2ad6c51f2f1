package ledger

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

var positionSuffix = regexp.MustCompile(`\s*\(\d+/\d+\)$`)

// BaseDescription strips a trailing "(i/N)" position marker.
func BaseDescription(description string) string {
	return strings.TrimSpace(positionSuffix.ReplaceAllString(description, ""))
}

// SeriesKey identifies the series an entry belongs to. Entries carrying a
// series identifier are keyed by it; older entries without one fall back to
// base description, category and direction.
func SeriesKey(e domain.Entry) string {
	if e.SeriesID != "" {
		return "series:" + e.SeriesID
	}
	return strings.Join([]string{"desc", BaseDescription(e.Description), e.CategoryID, string(e.Direction)}, "|")
}

// Series is a reconstructed group of installments.
type Series struct {
	Key         string           `json:"key"`
	SeriesID    string           `json:"series_id,omitempty"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	Direction   domain.Direction `json:"direction"`
	// Total is the installment count the series was created with.
	Total        int             `json:"total"`
	PendingTotal decimal.Decimal `json:"pending_total"`
	NextDue      civil.Date      `json:"next_due"`
	Entries      []domain.Entry  `json:"entries"`
}

// GroupSeries groups installment entries into series. Entries inside a
// series are ordered by position; series are ordered by their earliest due
// date, then description, then key. Entries without a position are ignored.
func GroupSeries(entries []domain.Entry) []Series {
	index := make(map[string]int)
	var groups []Series

	for _, e := range entries {
		if e.Position == nil {
			continue
		}
		key := SeriesKey(e)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Series{
				Key:          key,
				SeriesID:     e.SeriesID,
				Description:  BaseDescription(e.Description),
				CategoryID:   e.CategoryID,
				Direction:    e.Direction,
				PendingTotal: decimal.Zero,
				NextDue:      e.Date,
			})
		}
		g := &groups[i]
		g.Entries = append(g.Entries, e)
		if e.Position.Total > g.Total {
			g.Total = e.Position.Total
		}
		if e.Status == domain.StatusPending {
			g.PendingTotal = g.PendingTotal.Add(e.Amount)
		}
		if e.Date.Before(g.NextDue) {
			g.NextDue = e.Date
		}
	}

	for i := range groups {
		sort.SliceStable(groups[i].Entries, func(a, b int) bool {
			return groups[i].Entries[a].Position.Index < groups[i].Entries[b].Position.Index
		})
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if c := groups[a].NextDue.Compare(groups[b].NextDue); c != 0 {
			return c < 0
		}
		if groups[a].Description != groups[b].Description {
			return groups[a].Description < groups[b].Description
		}
		return groups[a].Key < groups[b].Key
	})

	return groups
}

// PendingSeries reconstructs the user's series from their pending
// installments.
func (e *Engine) PendingSeries(ctx context.Context, s domain.Session) ([]Series, error) {
	entries, err := e.store.QueryEntries(ctx, domain.EntryFilter{
		UserID:           s.UserID,
		Status:           domain.StatusPending,
		InstallmentsOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("PendingSeries: querying entries: %w", err)
	}
	return GroupSeries(entries), nil
}

// FindSeries returns the pending series with the given key.
func (e *Engine) FindSeries(ctx context.Context, s domain.Session, key string) (*Series, error) {
	series, err := e.PendingSeries(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range series {
		if series[i].Key == key {
			return &series[i], nil
		}
	}
	return nil, fmt.Errorf("FindSeries: series %q: %w", key, domain.ErrNotFound)
}

// DeleteSeries removes every entry of the series identified by key, paid or
// pending, including the settlement entries that carry its series
// identifier. It returns the number of entries removed.
func (e *Engine) DeleteSeries(ctx context.Context, s domain.Session, key string) (int, error) {
	entries, err := e.store.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID})
	if err != nil {
		return 0, fmt.Errorf("DeleteSeries: querying entries: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.Position == nil && entry.SeriesID == "" {
			continue
		}
		if SeriesKey(entry) == key {
			ids = append(ids, entry.ID)
		}
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("DeleteSeries: series %q: %w", key, domain.ErrNotFound)
	}

	if err := e.store.Apply(ctx, domain.Batch{UserID: s.UserID, DeleteIDs: ids}); err != nil {
		return 0, fmt.Errorf("DeleteSeries: deleting entries: %w", err)
	}
	return len(ids), nil
}
