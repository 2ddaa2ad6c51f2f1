package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
)

// Store is the BigQuery implementation of domain.Store. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	ds     Dataset
}

// NewStore creates a Store for the given project and dataset.
func NewStore(ctx context.Context, project, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{
		client: client,
		ds:     Dataset{Project: project, Name: dataset},
	}, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Dataset returns the dataset the store reads and writes.
func (s *Store) Dataset() Dataset {
	return s.ds
}

func (s *Store) InsertEntries(ctx context.Context, entries []domain.Entry) error {
	return InsertEntriesWithClient(ctx, s.client, s.ds, entries)
}

func (s *Store) DeleteEntries(ctx context.Context, userID string, ids []string) error {
	return DeleteEntriesWithClient(ctx, s.client, s.ds, userID, ids)
}

func (s *Store) QueryEntries(ctx context.Context, f domain.EntryFilter) ([]domain.Entry, error) {
	return QueryEntriesWithClient(ctx, s.client, s.ds, f)
}

func (s *Store) GetEntry(ctx context.Context, userID, id string) (*domain.Entry, error) {
	return GetEntryWithClient(ctx, s.client, s.ds, userID, id)
}

func (s *Store) UpdateEntryStatus(ctx context.Context, userID, id string, status domain.Status) error {
	return UpdateEntryStatusWithClient(ctx, s.client, s.ds, userID, id, status)
}

func (s *Store) RescheduleEntry(ctx context.Context, userID, id string, date civil.Date) error {
	return RescheduleEntryWithClient(ctx, s.client, s.ds, userID, id, date)
}

func (s *Store) UpdateEntry(ctx context.Context, e domain.Entry) error {
	return UpdateEntryWithClient(ctx, s.client, s.ds, e)
}

// Apply runs the batch as a single BigQuery transaction.
func (s *Store) Apply(ctx context.Context, b domain.Batch) error {
	return ApplyBatchWithClient(ctx, s.client, s.ds, b)
}

func (s *Store) ListCategories(ctx context.Context, userID string, direction domain.Direction) ([]domain.Category, error) {
	return ListCategoriesWithClient(ctx, s.client, s.ds, userID, direction)
}

func (s *Store) InsertCategories(ctx context.Context, categories []domain.Category) error {
	return InsertCategoriesWithClient(ctx, s.client, s.ds, categories)
}

func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) error {
	return UpdateCategoryWithClient(ctx, s.client, s.ds, c)
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return DeleteCategoryWithClient(ctx, s.client, s.ds, userID, id)
}

func (s *Store) ListRecurringBills(ctx context.Context, userID string, activeOnly bool) ([]domain.RecurringBill, error) {
	return ListRecurringBillsWithClient(ctx, s.client, s.ds, userID, activeOnly)
}

func (s *Store) InsertRecurringBill(ctx context.Context, bill domain.RecurringBill) error {
	return InsertRecurringBillWithClient(ctx, s.client, s.ds, bill)
}

func (s *Store) SetRecurringBillActive(ctx context.Context, userID, id string, active bool) error {
	return SetRecurringBillActiveWithClient(ctx, s.client, s.ds, userID, id, active)
}

func (s *Store) UpdateRecurringBill(ctx context.Context, bill domain.RecurringBill) error {
	return UpdateRecurringBillWithClient(ctx, s.client, s.ds, bill)
}

func (s *Store) DeleteRecurringBill(ctx context.Context, userID, id string) error {
	return DeleteRecurringBillWithClient(ctx, s.client, s.ds, userID, id)
}

func (s *Store) ListUsersWithActiveBills(ctx context.Context) ([]string, error) {
	return ListUsersWithActiveBillsWithClient(ctx, s.client, s.ds)
}

func (s *Store) InsertStatement(ctx context.Context, rec domain.StatementRecord) error {
	return InsertStatementWithClient(ctx, s.client, s.ds, rec)
}

func (s *Store) GetStatement(ctx context.Context, userID, id string) (*domain.StatementRecord, error) {
	return GetStatementWithClient(ctx, s.client, s.ds, userID, id)
}

func (s *Store) FindStatementByChecksum(ctx context.Context, userID, checksum string) (*domain.StatementRecord, error) {
	return FindStatementByChecksumWithClient(ctx, s.client, s.ds, userID, checksum)
}

func (s *Store) ListStatements(ctx context.Context, userID string) ([]domain.StatementRecord, error) {
	return ListStatementsWithClient(ctx, s.client, s.ds, userID)
}

func (s *Store) MarkStatementProcessed(ctx context.Context, id string, parsed int, counts domain.ImportCounts) error {
	return MarkStatementProcessedWithClient(ctx, s.client, s.ds, id, parsed, counts)
}

func (s *Store) MarkStatementFailed(ctx context.Context, id string, cause error) error {
	return MarkStatementFailedWithClient(ctx, s.client, s.ds, id, cause)
}

var _ domain.Store = (*Store)(nil)
