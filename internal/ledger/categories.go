package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

// SeedDefaultCategories creates the default categories for a user that has
// none. It returns the number of categories created.
func (e *Engine) SeedDefaultCategories(ctx context.Context, s domain.Session) (int, error) {
	existing, err := e.store.ListCategories(ctx, s.UserID, "")
	if err != nil {
		return 0, fmt.Errorf("SeedDefaultCategories: listing categories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := s.Now()
	categories := make([]domain.Category, 0, len(domain.DefaultCategories))
	for _, def := range domain.DefaultCategories {
		categories = append(categories, domain.Category{
			ID:        e.newID(),
			UserID:    s.UserID,
			Name:      def.Name,
			Direction: def.Direction,
			CreatedAt: now,
		})
	}
	if err := e.store.InsertCategories(ctx, categories); err != nil {
		return 0, fmt.Errorf("SeedDefaultCategories: inserting categories: %w", err)
	}
	return len(categories), nil
}

// Categories lists the user's categories, optionally for one direction.
func (e *Engine) Categories(ctx context.Context, s domain.Session, direction domain.Direction) ([]domain.Category, error) {
	categories, err := e.store.ListCategories(ctx, s.UserID, direction)
	if err != nil {
		return nil, fmt.Errorf("Categories: %w", err)
	}
	return categories, nil
}

// CreateCategory adds a category. Names are unique per user and direction,
// ignoring case.
func (e *Engine) CreateCategory(ctx context.Context, s domain.Session, name string, direction domain.Direction) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if err := e.checkCategory(ctx, s, "", name, direction); err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}

	c := domain.Category{
		ID:        e.newID(),
		UserID:    s.UserID,
		Name:      name,
		Direction: direction,
		CreatedAt: s.Now(),
	}
	if err := e.store.InsertCategories(ctx, []domain.Category{c}); err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: inserting category: %w", err)
	}
	return c, nil
}

// UpdateCategory renames a category and sets its direction. Entries keep
// pointing at it.
func (e *Engine) UpdateCategory(ctx context.Context, s domain.Session, id, name string, direction domain.Direction) (*domain.Category, error) {
	c, err := e.findCategory(ctx, s, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateCategory: %w", err)
	}
	name = strings.TrimSpace(name)
	if err := e.checkCategory(ctx, s, id, name, direction); err != nil {
		return nil, fmt.Errorf("UpdateCategory: %w", err)
	}

	c.Name = name
	c.Direction = direction
	if err := e.store.UpdateCategory(ctx, *c); err != nil {
		return nil, fmt.Errorf("UpdateCategory: updating category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category that no entry or recurring bill uses.
func (e *Engine) DeleteCategory(ctx context.Context, s domain.Session, id string) error {
	if _, err := e.findCategory(ctx, s, id); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}

	used, err := e.store.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID, CategoryID: id})
	if err != nil {
		return fmt.Errorf("DeleteCategory: querying entries: %w", err)
	}
	if len(used) > 0 {
		return fmt.Errorf("DeleteCategory: %w", ErrCategoryInUse)
	}
	bills, err := e.store.ListRecurringBills(ctx, s.UserID, false)
	if err != nil {
		return fmt.Errorf("DeleteCategory: listing bills: %w", err)
	}
	for _, b := range bills {
		if b.CategoryID == id {
			return fmt.Errorf("DeleteCategory: %w", ErrCategoryInUse)
		}
	}

	if err := e.store.DeleteCategory(ctx, s.UserID, id); err != nil {
		return fmt.Errorf("DeleteCategory: deleting category: %w", err)
	}
	return nil
}

func (e *Engine) findCategory(ctx context.Context, s domain.Session, id string) (*domain.Category, error) {
	categories, err := e.store.ListCategories(ctx, s.UserID, "")
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
}

// checkCategory validates name and direction and rejects a name already
// used by another category of the same direction. self is skipped.
func (e *Engine) checkCategory(ctx context.Context, s domain.Session, self, name string, direction domain.Direction) error {
	if name == "" {
		return ErrMissingName
	}
	if !direction.Valid() {
		return ErrInvalidDirection
	}
	siblings, err := e.store.ListCategories(ctx, s.UserID, direction)
	if err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}
	for _, c := range siblings {
		if c.ID != self && strings.EqualFold(c.Name, name) {
			return ErrDuplicateName
		}
	}
	return nil
}

// Entries lists the user's entries matching f. The user is always taken
// from the session.
func (e *Engine) Entries(ctx context.Context, s domain.Session, f domain.EntryFilter) ([]domain.Entry, error) {
	f.UserID = s.UserID
	entries, err := e.store.QueryEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	return entries, nil
}

// RecurringBills lists the user's bills.
func (e *Engine) RecurringBills(ctx context.Context, s domain.Session, activeOnly bool) ([]domain.RecurringBill, error) {
	bills, err := e.store.ListRecurringBills(ctx, s.UserID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("RecurringBills: %w", err)
	}
	return bills, nil
}
