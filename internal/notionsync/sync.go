package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of entries to process in a single batch
	BatchSize = 100
)

// SyncResult counts what a sync did, or would do on a dry run.
type SyncResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}

// Syncer mirrors a user's ledger entries into one Notion database. The
// ledger is the source of truth: pages are matched by the Entry ID
// property, rewritten when their fingerprint differs and archived when the
// entry no longer exists.
type Syncer struct {
	Notion     NotionService
	Ledger     LedgerSource
	DatabaseID string
	DryRun     bool
}

// NewSyncer creates a Syncer for databaseID.
func NewSyncer(notion NotionService, ledger LedgerSource, databaseID string, dryRun bool) *Syncer {
	return &Syncer{
		Notion:     notion,
		Ledger:     ledger,
		DatabaseID: databaseID,
		DryRun:     dryRun,
	}
}

// SyncEntries mirrors the entries dated within [from, to]. Zero bounds are
// open. Pages dated outside the window are left alone. Failures on single
// pages are logged and counted, not returned.
func (sy *Syncer) SyncEntries(ctx context.Context, s domain.Session, from, to civil.Date) (*SyncResult, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("from", dateString(from)).
		Str("to", dateString(to)).
		Bool("dry_run", sy.DryRun).
		Msg("Starting entry sync to Notion")

	entries, err := sy.Ledger.QueryEntries(ctx, domain.EntryFilter{UserID: s.UserID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: querying entries: %w", err)
	}
	categories, err := sy.Ledger.ListCategories(ctx, s.UserID, "")
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: listing categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	log.Info().Int("entry_count", len(entries)).Msg("Retrieved entries from ledger")

	pages, err := queryAllNotionPages(ctx, sy.Notion, sy.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("SyncEntries: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(entries))
	for _, e := range entries {
		valid[e.ID] = true
	}

	// Pages by entry ID. Extra pages for the same entry are stale.
	existing := make(map[string]notionapi.Page)
	var stale []notionapi.Page
	for _, page := range pages {
		id := EntryIDFromPage(page)
		if id == "" {
			stale = append(stale, page)
			continue
		}
		if _, dup := existing[id]; dup {
			stale = append(stale, page)
			continue
		}
		if !valid[id] {
			if d, ok := pageDate(page); ok && !inWindow(d, from, to) {
				continue
			}
			stale = append(stale, page)
			continue
		}
		existing[id] = page
	}

	result := &SyncResult{}

	for _, page := range stale {
		if sy.DryRun {
			log.Info().Str("page", describePage(page)).Msg("[DRY RUN] Would delete stale Notion page")
			result.Deleted++
			continue
		}
		if err := sy.Notion.ArchivePage(ctx, page.ID); err != nil {
			log.Warn().Err(err).Str("page", describePage(page)).Msg("Failed to delete stale Notion page")
			result.Failed++
			continue
		}
		result.Deleted++
	}

	for i := 0; i < len(entries); i += BatchSize {
		end := i + BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, e := range entries[i:end] {
			sy.syncEntry(ctx, e, categoryNames[e.CategoryID], existing, result)
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Int("total", len(entries)).
		Msg("Entry sync completed")

	return result, nil
}

func (sy *Syncer) syncEntry(ctx context.Context, e domain.Entry, categoryName string, existing map[string]notionapi.Page, result *SyncResult) {
	log := logger.FromContext(ctx).With().Str("entry_id", e.ID).Logger()

	page, found := existing[e.ID]
	if found && FingerprintFromPage(page) == Fingerprint(e, categoryName) {
		result.Unchanged++
		return
	}

	if sy.DryRun {
		if found {
			log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would update Notion page")
			result.Updated++
		} else {
			log.Info().Msg("[DRY RUN] Would create Notion page")
			result.Created++
		}
		return
	}

	if found {
		if err := sy.Notion.UpdateEntryPage(ctx, page.ID, e, categoryName); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
			result.Failed++
			return
		}
		result.Updated++
		return
	}

	pageID, err := sy.Notion.CreateEntryPage(ctx, sy.DatabaseID, e, categoryName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Notion page")
		result.Failed++
		return
	}
	log.Debug().Str("page_id", string(pageID)).Msg("Created Notion page")
	result.Created++
}

func inWindow(d, from, to civil.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func dateString(d civil.Date) string {
	if d.IsZero() {
		return "open"
	}
	return d.String()
}

// queryAllNotionPages follows the query cursor until every row of
// databaseID has been read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := notionClient.QueryPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
