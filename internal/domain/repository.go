package domain

import (
	"context"

	"cloud.google.com/go/civil"
)

// EntryFilter narrows QueryEntries. Zero values mean "any".
type EntryFilter struct {
	UserID          string
	From            civil.Date
	To              civil.Date
	Status          Status
	Direction       Direction
	CategoryID      string
	RecurringBillID string
	// InstallmentsOnly restricts the result to entries with a Position.
	InstallmentsOnly bool
	IDs              []string
}

// EntryRepository persists entries.
type EntryRepository interface {
	// InsertEntries writes a batch of entries.
	InsertEntries(ctx context.Context, entries []Entry) error

	// DeleteEntries removes the given ids owned by userID.
	DeleteEntries(ctx context.Context, userID string, ids []string) error

	// QueryEntries returns entries matching f ordered by date ascending.
	QueryEntries(ctx context.Context, f EntryFilter) ([]Entry, error)

	// GetEntry returns one entry or ErrNotFound.
	GetEntry(ctx context.Context, userID, id string) (*Entry, error)

	// UpdateEntryStatus sets the status of one entry.
	UpdateEntryStatus(ctx context.Context, userID, id string, status Status) error

	// RescheduleEntry moves one entry to another date.
	RescheduleEntry(ctx context.Context, userID, id string, date civil.Date) error

	// UpdateEntry rewrites the editable fields of e: date, description,
	// category, amount, direction, status and notes. Series membership and
	// settlement data are left as stored.
	UpdateEntry(ctx context.Context, e Entry) error
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	// ListCategories returns the user's categories ordered by name. An empty
	// direction returns both.
	ListCategories(ctx context.Context, userID string, direction Direction) ([]Category, error)

	InsertCategories(ctx context.Context, categories []Category) error

	// UpdateCategory renames c and sets its direction.
	UpdateCategory(ctx context.Context, c Category) error

	DeleteCategory(ctx context.Context, userID, id string) error
}

// RecurringBillRepository persists recurring bills.
type RecurringBillRepository interface {
	ListRecurringBills(ctx context.Context, userID string, activeOnly bool) ([]RecurringBill, error)
	InsertRecurringBill(ctx context.Context, bill RecurringBill) error
	SetRecurringBillActive(ctx context.Context, userID, id string, active bool) error
	// UpdateRecurringBill rewrites every field of bill except its owner and
	// creation time.
	UpdateRecurringBill(ctx context.Context, bill RecurringBill) error
	DeleteRecurringBill(ctx context.Context, userID, id string) error
	// ListUsersWithActiveBills returns every user owning an active bill.
	ListUsersWithActiveBills(ctx context.Context) ([]string, error)
}

// StatementRepository persists archived statement metadata.
type StatementRepository interface {
	InsertStatement(ctx context.Context, rec StatementRecord) error
	GetStatement(ctx context.Context, userID, id string) (*StatementRecord, error)
	FindStatementByChecksum(ctx context.Context, userID, checksum string) (*StatementRecord, error)
	ListStatements(ctx context.Context, userID string) ([]StatementRecord, error)
	MarkStatementProcessed(ctx context.Context, id string, parsed int, counts ImportCounts) error
	MarkStatementFailed(ctx context.Context, id string, cause error) error
}

// Batch is a unit of work: the deletes and inserts either all apply or none do.
type Batch struct {
	UserID    string
	DeleteIDs []string
	Insert    []Entry
}

// Empty reports whether the batch has nothing to do.
func (b Batch) Empty() bool {
	return len(b.DeleteIDs) == 0 && len(b.Insert) == 0
}

// Transactor applies batches atomically.
type Transactor interface {
	Apply(ctx context.Context, b Batch) error
}

// Store is the full persistence collaborator.
type Store interface {
	EntryRepository
	CategoryRepository
	RecurringBillRepository
	StatementRepository
	Transactor
}
