// Package memory is an in-process implementation of the ledger persistence
// collaborator. It backs tests and STORE_BACKEND=memory local runs; data is
// lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
)

// Store keeps every record in maps guarded by one mutex, so a Batch is
// applied atomically with respect to concurrent readers.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]domain.Entry
	categories map[string]domain.Category
	bills      map[string]domain.RecurringBill
	statements map[string]domain.StatementRecord

	// FailOn, when set, is consulted before each write with the operation
	// name ("insert_entries", "delete_entries", "apply", ...). A non-nil
	// result is returned as the backend error.
	FailOn func(op string) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[string]domain.Entry),
		categories: make(map[string]domain.Category),
		bills:      make(map[string]domain.RecurringBill),
		statements: make(map[string]domain.StatementRecord),
	}
}

func (s *Store) fault(op string) error {
	if s.FailOn == nil {
		return nil
	}
	if err := s.FailOn(op); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func cloneEntry(e domain.Entry) domain.Entry {
	if e.Position != nil {
		p := *e.Position
		e.Position = &p
	}
	if e.Settlement != nil {
		st := *e.Settlement
		st.Items = append([]domain.SettledItem(nil), st.Items...)
		e.Settlement = &st
	}
	return e
}

// InsertEntries implements domain.EntryRepository.
func (s *Store) InsertEntries(ctx context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("insert_entries"); err != nil {
		return err
	}
	return s.insertLocked(entries)
}

func (s *Store) insertLocked(entries []domain.Entry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("insert_entries: entry id is required")
		}
		if _, exists := s.entries[e.ID]; exists || seen[e.ID] {
			return fmt.Errorf("insert_entries: duplicate entry id %s", e.ID)
		}
		seen[e.ID] = true
	}
	for _, e := range entries {
		s.entries[e.ID] = cloneEntry(e)
	}
	return nil
}

// DeleteEntries implements domain.EntryRepository.
func (s *Store) DeleteEntries(ctx context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("delete_entries"); err != nil {
		return err
	}
	s.deleteLocked(userID, ids)
	return nil
}

func (s *Store) deleteLocked(userID string, ids []string) {
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.UserID == userID {
			delete(s.entries, id)
		}
	}
}

// Apply implements domain.Transactor. Deletes run before inserts; when any
// step fails the previous entry set is restored.
func (s *Store) Apply(ctx context.Context, b domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]domain.Entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}

	s.deleteLocked(b.UserID, b.DeleteIDs)

	err := s.fault("apply")
	if err == nil {
		err = s.insertLocked(b.Insert)
	}
	if err != nil {
		s.entries = snapshot
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

// QueryEntries implements domain.EntryRepository.
func (s *Store) QueryEntries(ctx context.Context, f domain.EntryFilter) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids map[string]bool
	if len(f.IDs) > 0 {
		ids = make(map[string]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}

	var result []domain.Entry
	for _, e := range s.entries {
		if e.UserID != f.UserID {
			continue
		}
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Direction != "" && e.Direction != f.Direction {
			continue
		}
		if f.CategoryID != "" && e.CategoryID != f.CategoryID {
			continue
		}
		if f.RecurringBillID != "" && e.RecurringBillID != f.RecurringBillID {
			continue
		}
		if f.InstallmentsOnly && e.Position == nil {
			continue
		}
		if ids != nil && !ids[e.ID] {
			continue
		}
		result = append(result, cloneEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		if c := result[i].Date.Compare(result[j].Date); c != 0 {
			return c < 0
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetEntry implements domain.EntryRepository.
func (s *Store) GetEntry(ctx context.Context, userID, id string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	c := cloneEntry(e)
	return &c, nil
}

// UpdateEntryStatus implements domain.EntryRepository.
func (s *Store) UpdateEntryStatus(ctx context.Context, userID, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("update_entry_status"); err != nil {
		return err
	}
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	e.Status = status
	s.entries[id] = e
	return nil
}

// RescheduleEntry implements domain.EntryRepository.
func (s *Store) RescheduleEntry(ctx context.Context, userID, id string, date civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("reschedule_entry"); err != nil {
		return err
	}
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	e.Date = date
	s.entries[id] = e
	return nil
}

// UpdateEntry implements domain.EntryRepository.
func (s *Store) UpdateEntry(ctx context.Context, e domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("update_entry"); err != nil {
		return err
	}
	cur, ok := s.entries[e.ID]
	if !ok || cur.UserID != e.UserID {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}
	cur.Date = e.Date
	cur.Description = e.Description
	cur.CategoryID = e.CategoryID
	cur.Amount = e.Amount
	cur.Direction = e.Direction
	cur.Status = e.Status
	cur.Notes = e.Notes
	s.entries[e.ID] = cur
	return nil
}

// ListCategories implements domain.CategoryRepository.
func (s *Store) ListCategories(ctx context.Context, userID string, direction domain.Direction) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Category
	for _, c := range s.categories {
		if c.UserID != userID {
			continue
		}
		if direction != "" && c.Direction != direction {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InsertCategories implements domain.CategoryRepository.
func (s *Store) InsertCategories(ctx context.Context, categories []domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("insert_categories"); err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == "" {
			return fmt.Errorf("insert_categories: category id is required")
		}
		s.categories[c.ID] = c
	}
	return nil
}

// UpdateCategory implements domain.CategoryRepository.
func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("update_category"); err != nil {
		return err
	}
	cur, ok := s.categories[c.ID]
	if !ok || cur.UserID != c.UserID {
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrNotFound)
	}
	cur.Name = c.Name
	cur.Direction = c.Direction
	s.categories[c.ID] = cur
	return nil
}

// DeleteCategory implements domain.CategoryRepository.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("delete_category"); err != nil {
		return err
	}
	cur, ok := s.categories[id]
	if !ok || cur.UserID != userID {
		return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	delete(s.categories, id)
	return nil
}

// ListRecurringBills implements domain.RecurringBillRepository.
func (s *Store) ListRecurringBills(ctx context.Context, userID string, activeOnly bool) ([]domain.RecurringBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RecurringBill
	for _, b := range s.bills {
		if b.UserID != userID || (activeOnly && !b.Active) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DueDay != result[j].DueDay {
			return result[i].DueDay < result[j].DueDay
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InsertRecurringBill implements domain.RecurringBillRepository.
func (s *Store) InsertRecurringBill(ctx context.Context, bill domain.RecurringBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("insert_recurring_bill"); err != nil {
		return err
	}
	if bill.ID == "" {
		return fmt.Errorf("insert_recurring_bill: bill id is required")
	}
	s.bills[bill.ID] = bill
	return nil
}

// SetRecurringBillActive implements domain.RecurringBillRepository.
func (s *Store) SetRecurringBillActive(ctx context.Context, userID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("set_recurring_bill_active"); err != nil {
		return err
	}
	b, ok := s.bills[id]
	if !ok || b.UserID != userID {
		return fmt.Errorf("recurring bill %s: %w", id, domain.ErrNotFound)
	}
	b.Active = active
	s.bills[id] = b
	return nil
}

// UpdateRecurringBill implements domain.RecurringBillRepository.
func (s *Store) UpdateRecurringBill(ctx context.Context, bill domain.RecurringBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("update_recurring_bill"); err != nil {
		return err
	}
	cur, ok := s.bills[bill.ID]
	if !ok || cur.UserID != bill.UserID {
		return fmt.Errorf("recurring bill %s: %w", bill.ID, domain.ErrNotFound)
	}
	bill.CreatedAt = cur.CreatedAt
	s.bills[bill.ID] = bill
	return nil
}

// DeleteRecurringBill implements domain.RecurringBillRepository.
func (s *Store) DeleteRecurringBill(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("delete_recurring_bill"); err != nil {
		return err
	}
	cur, ok := s.bills[id]
	if !ok || cur.UserID != userID {
		return fmt.Errorf("recurring bill %s: %w", id, domain.ErrNotFound)
	}
	delete(s.bills, id)
	return nil
}

// ListUsersWithActiveBills implements domain.RecurringBillRepository.
func (s *Store) ListUsersWithActiveBills(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for _, b := range s.bills {
		if b.Active && !seen[b.UserID] {
			seen[b.UserID] = true
			users = append(users, b.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// InsertStatement implements domain.StatementRepository.
func (s *Store) InsertStatement(ctx context.Context, rec domain.StatementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("insert_statement"); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("insert_statement: statement id is required")
	}
	s.statements[rec.ID] = rec
	return nil
}

// GetStatement implements domain.StatementRepository.
func (s *Store) GetStatement(ctx context.Context, userID, id string) (*domain.StatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.statements[id]
	if !ok || rec.UserID != userID {
		return nil, fmt.Errorf("statement %s: %w", id, domain.ErrNotFound)
	}
	return &rec, nil
}

// FindStatementByChecksum implements domain.StatementRepository. It returns
// nil without error when nothing matches.
func (s *Store) FindStatementByChecksum(ctx context.Context, userID, checksum string) (*domain.StatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.statements {
		if rec.UserID == userID && rec.Checksum == checksum {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

// ListStatements implements domain.StatementRepository, newest first.
func (s *Store) ListStatements(ctx context.Context, userID string) ([]domain.StatementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.StatementRecord
	for _, rec := range s.statements {
		if rec.UserID == userID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

// MarkStatementProcessed implements domain.StatementRepository.
func (s *Store) MarkStatementProcessed(ctx context.Context, id string, parsed int, counts domain.ImportCounts) error {
	return s.updateStatement(id, func(rec *domain.StatementRecord) {
		now := time.Now()
		rec.Status = domain.StatementProcessed
		rec.Parsed = parsed
		rec.Counts = counts
		rec.Error = ""
		rec.ProcessedAt = &now
	})
}

// MarkStatementFailed implements domain.StatementRepository.
func (s *Store) MarkStatementFailed(ctx context.Context, id string, cause error) error {
	return s.updateStatement(id, func(rec *domain.StatementRecord) {
		now := time.Now()
		rec.Status = domain.StatementFailed
		if cause != nil {
			rec.Error = cause.Error()
		}
		rec.ProcessedAt = &now
	})
}

func (s *Store) updateStatement(id string, mutate func(*domain.StatementRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("update_statement"); err != nil {
		return err
	}
	rec, ok := s.statements[id]
	if !ok {
		return fmt.Errorf("statement %s: %w", id, domain.ErrNotFound)
	}
	mutate(&rec)
	s.statements[id] = rec
	return nil
}

// Ensure Store implements the full persistence collaborator.
var _ domain.Store = (*Store)(nil)
