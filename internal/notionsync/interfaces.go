package notionsync

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService is the part of the Notion API the ledger mirror uses.
// Implementations build the page properties from the entry themselves.
type NotionService interface {
	// QueryPages returns the rows of databaseID that follow cursor. An
	// empty cursor starts from the beginning.
	QueryPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)

	// CreateEntryPage adds a row mirroring e and returns its page ID.
	CreateEntryPage(ctx context.Context, databaseID string, e domain.Entry, categoryName string) (notionapi.ObjectID, error)

	// UpdateEntryPage rewrites the row pageID from e.
	UpdateEntryPage(ctx context.Context, pageID notionapi.ObjectID, e domain.Entry, categoryName string) error

	// ArchivePage archives a row.
	ArchivePage(ctx context.Context, pageID notionapi.ObjectID) error
}

// LedgerSource is the read side of the ledger the sync mirrors.
type LedgerSource interface {
	QueryEntries(ctx context.Context, f domain.EntryFilter) ([]domain.Entry, error)
	ListCategories(ctx context.Context, userID string, direction domain.Direction) ([]domain.Category, error)
}
