package statement

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// duplicateTolerance is the exclusive bound on the amount difference of a
// duplicate.
var duplicateTolerance = decimal.New(1, -2)

// duplicatePrefixRunes is how much of the transaction description must
// appear in an existing entry's description.
const duplicatePrefixRunes = 20

// CategoryPicker chooses the category of an imported transaction among the
// user's categories of the matching direction. candidates is never empty.
type CategoryPicker interface {
	PickCategory(ctx context.Context, tx Transaction, candidates []domain.Category) (domain.Category, error)
}

// firstCategory picks the first candidate.
type firstCategory struct{}

func (firstCategory) PickCategory(_ context.Context, _ Transaction, candidates []domain.Category) (domain.Category, error) {
	return candidates[0], nil
}

// Importer turns selected statement transactions into paid entries.
type Importer struct {
	entries    domain.EntryRepository
	categories domain.CategoryRepository
	picker     CategoryPicker
	newID      func() string
}

// NewImporter creates an Importer. A nil picker picks the first category.
func NewImporter(entries domain.EntryRepository, categories domain.CategoryRepository, picker CategoryPicker) *Importer {
	if picker == nil {
		picker = firstCategory{}
	}
	return &Importer{
		entries:    entries,
		categories: categories,
		picker:     picker,
		newID:      func() string { return uuid.New().String() },
	}
}

// IsDuplicate reports whether an existing entry matches tx: same date, an
// amount differing by less than 0.01 and a description containing the
// first 20 characters of tx's description, ignoring case.
func IsDuplicate(tx Transaction, existing []domain.Entry) bool {
	prefix := truncateRunes(strings.ToLower(tx.Description), duplicatePrefixRunes)
	for _, e := range existing {
		if e.Date != tx.Date {
			continue
		}
		if e.Amount.Sub(tx.Amount).Abs().GreaterThanOrEqual(duplicateTolerance) {
			continue
		}
		if strings.Contains(strings.ToLower(e.Description), prefix) {
			return true
		}
	}
	return false
}

// LoadExisting fetches the user's entries in the date span of txs, the only
// ones IsDuplicate can match.
func (im *Importer) LoadExisting(ctx context.Context, s domain.Session, txs []Transaction) ([]domain.Entry, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	from, to := txs[0].Date, txs[0].Date
	for _, t := range txs[1:] {
		if t.Date.Before(from) {
			from = t.Date
		}
		if t.Date.After(to) {
			to = t.Date
		}
	}
	existing, err := im.entries.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("LoadExisting: querying entries: %w", err)
	}
	return existing, nil
}

// Import loads existing entries and imports selected.
func (im *Importer) Import(ctx context.Context, s domain.Session, selected []Transaction) (domain.ImportCounts, error) {
	existing, err := im.LoadExisting(ctx, s, selected)
	if err != nil {
		return domain.ImportCounts{}, fmt.Errorf("Import: %w", err)
	}
	return im.ImportSelected(ctx, s, selected, existing), nil
}

// ImportSelected inserts every selected transaction that is not a duplicate
// of existing as a paid entry. Each transaction is handled on its own; a
// failure is counted and the loop carries on.
func (im *Importer) ImportSelected(ctx context.Context, s domain.Session, selected []Transaction, existing []domain.Entry) domain.ImportCounts {
	log := logger.FromContext(ctx)
	var counts domain.ImportCounts
	candidates := make(map[domain.Direction][]domain.Category)

	for _, tx := range selected {
		if IsDuplicate(tx, existing) {
			counts.Duplicates++
			continue
		}

		direction := tx.Kind.Direction()
		cats, ok := candidates[direction]
		if !ok {
			var err error
			cats, err = im.categories.ListCategories(ctx, s.UserID, direction)
			if err != nil {
				log.Error().Err(err).Str("external_id", tx.ExternalID).Msg("Failed to list categories")
				counts.Errors++
				continue
			}
			candidates[direction] = cats
		}
		if len(cats) == 0 {
			log.Warn().Str("external_id", tx.ExternalID).Str("direction", string(direction)).Msg("No category for direction")
			counts.Errors++
			continue
		}

		category, err := im.picker.PickCategory(ctx, tx, cats)
		if err != nil {
			log.Warn().Err(err).Str("external_id", tx.ExternalID).Msg("Category picker failed, using first category")
			category = cats[0]
		}

		entry := domain.Entry{
			ID:          im.newID(),
			UserID:      s.UserID,
			Date:        tx.Date,
			Description: tx.Description,
			CategoryID:  category.ID,
			Amount:      tx.Amount,
			Direction:   direction,
			Status:      domain.StatusPaid,
			Notes:       "ofx:" + tx.ExternalID,
			CreatedAt:   s.Now(),
		}
		if err := im.entries.InsertEntries(ctx, []domain.Entry{entry}); err != nil {
			log.Error().Err(err).Str("external_id", tx.ExternalID).Msg("Failed to import transaction")
			counts.Errors++
			continue
		}
		counts.Imported++
	}

	log.Info().
		Str("user_id", s.UserID).
		Int("imported", counts.Imported).
		Int("duplicates", counts.Duplicates).
		Int("errors", counts.Errors).
		Msg("Statement import finished")

	return counts
}
