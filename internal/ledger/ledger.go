// Package ledger implements installment generation and settlement, series
// reconstruction, the monthly recurring-bill sweep and month rollover on top
// of the persistence collaborator in package domain.
package ledger

import (
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/google/uuid"
)

// MaxInstallments bounds the number of installments per purchase.
const MaxInstallments = 360

var (
	ErrInvalidCount     = fmt.Errorf("%w: installment count must be between 1 and %d", domain.ErrValidation, MaxInstallments)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	ErrInvalidDirection = fmt.Errorf("%w: direction must be income or expense", domain.ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: status must be paid or pending", domain.ErrValidation)
	ErrMissingField     = fmt.Errorf("%w: description and category are required", domain.ErrValidation)
	ErrNoEntries        = fmt.Errorf("%w: no entries to settle", domain.ErrValidation)
	ErrNotPending       = fmt.Errorf("%w: entry is not pending", domain.ErrValidation)
	ErrMixedSeries      = fmt.Errorf("%w: entries belong to different series", domain.ErrValidation)
	ErrDuplicateEntry   = fmt.Errorf("%w: entry listed twice", domain.ErrValidation)
	ErrInvalidDiscount  = fmt.Errorf("%w: discount must be between zero and the pending total", domain.ErrValidation)
	ErrInvalidDueDay    = fmt.Errorf("%w: due day must be between 1 and 31", domain.ErrValidation)
	ErrInvalidMonth     = fmt.Errorf("%w: month must be between 1 and 12", domain.ErrValidation)
	ErrInvalidDate      = fmt.Errorf("%w: date is required", domain.ErrValidation)
	ErrMissingName      = fmt.Errorf("%w: category name is required", domain.ErrValidation)
	ErrDuplicateName    = fmt.Errorf("%w: a category with this name already exists", domain.ErrValidation)
	ErrCategoryInUse    = fmt.Errorf("%w: category is still used by entries or recurring bills", domain.ErrValidation)
	ErrAlreadyCarried   = fmt.Errorf("%w: previous balance was already carried into this month", domain.ErrValidation)
)

// Store is the subset of the persistence collaborator the engine needs.
type Store interface {
	domain.EntryRepository
	domain.CategoryRepository
	domain.RecurringBillRepository
	domain.Transactor
}

// Engine runs ledger operations for one store. It holds no per-user state;
// every operation receives the acting session explicitly.
type Engine struct {
	store Store
	newID func() string
}

// NewEngine creates an Engine that generates UUID identifiers.
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		newID: func() string { return uuid.New().String() },
	}
}
