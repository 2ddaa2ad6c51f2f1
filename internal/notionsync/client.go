package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page the Notion query endpoint returns.
const queryPageSize = 100

// NotionClient talks to one Notion workspace through notionapi and builds
// the ledger mirror's requests.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a NotionClient authenticated with token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

// entryQuery asks for the next block of mirrored rows, oldest entry first.
func entryQuery(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
	return &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: PropDate, Direction: notionapi.SortOrderASC},
		},
		StartCursor: cursor,
		PageSize:    queryPageSize,
	}
}

// QueryPages returns the rows of databaseID that follow cursor.
func (n *NotionClient) QueryPages(ctx context.Context, databaseID string, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), entryQuery(cursor))
	if err != nil {
		return nil, fmt.Errorf("QueryPages: %w", err)
	}
	return resp, nil
}

// CreateEntryPage adds a row for e to databaseID.
func (n *NotionClient) CreateEntryPage(ctx context.Context, databaseID string, e domain.Entry, categoryName string) (notionapi.ObjectID, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: EntryToNotionProperties(e, categoryName),
	})
	if err != nil {
		return "", fmt.Errorf("CreateEntryPage: entry %s: %w", e.ID, err)
	}
	return page.ID, nil
}

// UpdateEntryPage rewrites every mirrored property of pageID from e.
func (n *NotionClient) UpdateEntryPage(ctx context.Context, pageID notionapi.ObjectID, e domain.Entry, categoryName string) error {
	req := &notionapi.PageUpdateRequest{Properties: EntryToNotionProperties(e, categoryName)}
	if _, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req); err != nil {
		return fmt.Errorf("UpdateEntryPage: entry %s: %w", e.ID, err)
	}
	return nil
}

// ArchivePage removes pageID from the database view. The API cannot hard
// delete pages.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID notionapi.ObjectID) error {
	req := &notionapi.PageUpdateRequest{Archived: true}
	if _, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req); err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}
	return nil
}

var _ NotionService = (*NotionClient)(nil)
