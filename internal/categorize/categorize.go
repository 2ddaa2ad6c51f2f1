// Package categorize picks the category of imported statement transactions.
package categorize

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/statement"
)

// Strategy names accepted by the CATEGORIZER setting.
const (
	StrategyFirst  = "first"
	StrategyGemini = "gemini"
)

// First always picks the first candidate, the behaviour of a plain import.
type First struct{}

// PickCategory implements statement.CategoryPicker.
func (First) PickCategory(_ context.Context, _ statement.Transaction, candidates []domain.Category) (domain.Category, error) {
	return candidates[0], nil
}

var _ statement.CategoryPicker = First{}
