package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/budget-ledger/internal/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

var entryColumns = []string{
	"entry_id",
	"user_id",
	"entry_date",
	"description",
	"category_id",
	"amount",
	"direction",
	"status",
	"position_index",
	"position_total",
	"series_id",
	"recurring_bill_id",
	"settlement",
	"notes",
	"created_ts",
}

func entryValues(row *EntryRow) []interface{} {
	return []interface{}{
		row.EntryID,
		row.UserID,
		row.EntryDate,
		row.Description,
		row.CategoryID,
		row.Amount,
		row.Direction,
		row.Status,
		row.PositionIndex,
		row.PositionTotal,
		row.SeriesID,
		row.RecurringBillID,
		row.Settlement,
		row.Notes,
		row.CreatedTS,
	}
}

// buildInsertEntries renders one multi-row INSERT. Parameter names carry the
// row index as a suffix.
func buildInsertEntries(ds Dataset, rows []*EntryRow) (string, []bigquery.QueryParameter) {
	var (
		tuples []string
		params []bigquery.QueryParameter
	)
	for i, row := range rows {
		values := entryValues(row)
		names := make([]string, len(entryColumns))
		for j, col := range entryColumns {
			name := fmt.Sprintf("%s_%d", col, i)
			names[j] = "@" + name
			params = append(params, bigquery.QueryParameter{Name: name, Value: values[j]})
		}
		tuples = append(tuples, "("+strings.Join(names, ", ")+")")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s)\nVALUES\n\t%s",
		ds.Table(entriesTable),
		strings.Join(entryColumns, ", "),
		strings.Join(tuples, ",\n\t"),
	)
	return sql, params
}

func entryRows(entries []domain.Entry) ([]*EntryRow, error) {
	rows := make([]*EntryRow, 0, len(entries))
	for _, e := range entries {
		row, err := bq.NewEntryRow(e)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InsertEntriesWithClient inserts a batch of entries using the provided BigQuery client.
func InsertEntriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows, err := entryRows(entries)
	if err != nil {
		return fmt.Errorf("InsertEntriesWithClient: %w", err)
	}

	sql, params := buildInsertEntries(ds, rows)
	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("InsertEntriesWithClient: %w", err)
	}
	return nil
}

// DeleteEntriesWithClient removes the given entries owned by userID.
func DeleteEntriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND entry_id IN UNNEST(@ids)
	`, ds.Table(entriesTable))

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "ids", Value: ids},
	}
	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("DeleteEntriesWithClient: %w", err)
	}
	return nil
}

// buildEntryQuery renders the SELECT for f. Only the filters that are set
// become predicates.
func buildEntryQuery(ds Dataset, f domain.EntryFilter) (string, []bigquery.QueryParameter) {
	where := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: f.UserID}}

	if !f.From.IsZero() {
		where = append(where, "entry_date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: f.From})
	}
	if !f.To.IsZero() {
		where = append(where, "entry_date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: f.To})
	}
	if f.Status != "" {
		where = append(where, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(f.Status)})
	}
	if f.Direction != "" {
		where = append(where, "direction = @direction")
		params = append(params, bigquery.QueryParameter{Name: "direction", Value: string(f.Direction)})
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = @category_id")
		params = append(params, bigquery.QueryParameter{Name: "category_id", Value: f.CategoryID})
	}
	if f.RecurringBillID != "" {
		where = append(where, "recurring_bill_id = @recurring_bill_id")
		params = append(params, bigquery.QueryParameter{Name: "recurring_bill_id", Value: f.RecurringBillID})
	}
	if f.InstallmentsOnly {
		where = append(where, "position_index IS NOT NULL")
	}
	if len(f.IDs) > 0 {
		where = append(where, "entry_id IN UNNEST(@ids)")
		params = append(params, bigquery.QueryParameter{Name: "ids", Value: f.IDs})
	}

	sql := fmt.Sprintf("SELECT %s\nFROM %s\nWHERE %s\nORDER BY entry_date, created_ts, entry_id",
		strings.Join(entryColumns, ", "),
		ds.Table(entriesTable),
		strings.Join(where, "\n  AND "),
	)
	return sql, params
}

// QueryEntriesWithClient returns the entries matching f ordered by date.
func QueryEntriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, f domain.EntryFilter) ([]domain.Entry, error) {
	sql, params := buildEntryQuery(ds, f)
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryEntriesWithClient: reading query: %w", err)
	}

	var entries []domain.Entry
	for {
		var row EntryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesWithClient: iterating results: %w", err)
		}
		e, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("QueryEntriesWithClient: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// GetEntryWithClient returns one entry or domain.ErrNotFound.
func GetEntryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) (*domain.Entry, error) {
	entries, err := QueryEntriesWithClient(ctx, client, ds, domain.EntryFilter{UserID: userID, IDs: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("GetEntryWithClient: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return &entries[0], nil
}

func updateEntry(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id, set string, value interface{}) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET %s = @value
		WHERE user_id = @user_id AND entry_id = @entry_id
	`, ds.Table(entriesTable), set)

	params := []bigquery.QueryParameter{
		{Name: "value", Value: value},
		{Name: "user_id", Value: userID},
		{Name: "entry_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateEntryStatusWithClient sets the status of one entry.
func UpdateEntryStatusWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, status domain.Status) error {
	if err := updateEntry(ctx, client, ds, userID, id, "status", string(status)); err != nil {
		return fmt.Errorf("UpdateEntryStatusWithClient: %w", err)
	}
	return nil
}

// RescheduleEntryWithClient moves one entry to another date.
func RescheduleEntryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, date civil.Date) error {
	if err := updateEntry(ctx, client, ds, userID, id, "entry_date", date); err != nil {
		return fmt.Errorf("RescheduleEntryWithClient: %w", err)
	}
	return nil
}

// editableEntryColumns are the columns UpdateEntry rewrites.
var editableEntryColumns = []string{
	"entry_date",
	"description",
	"category_id",
	"amount",
	"direction",
	"status",
	"notes",
}

// buildUpdateEntry renders the UPDATE that rewrites the editable columns of
// one entry from row.
func buildUpdateEntry(ds Dataset, row *EntryRow) (string, []bigquery.QueryParameter) {
	values := map[string]interface{}{
		"entry_date":  row.EntryDate,
		"description": row.Description,
		"category_id": row.CategoryID,
		"amount":      row.Amount,
		"direction":   row.Direction,
		"status":      row.Status,
		"notes":       row.Notes,
	}

	set := make([]string, len(editableEntryColumns))
	params := make([]bigquery.QueryParameter, 0, len(editableEntryColumns)+2)
	for i, col := range editableEntryColumns {
		set[i] = fmt.Sprintf("%s = @%s", col, col)
		params = append(params, bigquery.QueryParameter{Name: col, Value: values[col]})
	}
	params = append(params,
		bigquery.QueryParameter{Name: "user_id", Value: row.UserID},
		bigquery.QueryParameter{Name: "entry_id", Value: row.EntryID},
	)

	sql := fmt.Sprintf("UPDATE %s\nSET %s\nWHERE user_id = @user_id AND entry_id = @entry_id",
		ds.Table(entriesTable),
		strings.Join(set, ",\n    "),
	)
	return sql, params
}

// UpdateEntryWithClient rewrites the editable fields of one entry.
func UpdateEntryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, e domain.Entry) error {
	row, err := bq.NewEntryRow(e)
	if err != nil {
		return fmt.Errorf("UpdateEntryWithClient: %w", err)
	}

	sql, params := buildUpdateEntry(ds, row)
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateEntryWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}
