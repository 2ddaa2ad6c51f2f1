package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
)

// buildApplyScript renders a batch as a multi-statement transaction. Any
// failing statement rolls back the whole script.
func buildApplyScript(ds Dataset, b domain.Batch, rows []*EntryRow) (string, []bigquery.QueryParameter) {
	var (
		stmts  []string
		params []bigquery.QueryParameter
	)

	if len(b.DeleteIDs) > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"DELETE FROM %s WHERE user_id = @batch_user_id AND entry_id IN UNNEST(@batch_delete_ids);",
			ds.Table(entriesTable)))
		params = append(params,
			bigquery.QueryParameter{Name: "batch_user_id", Value: b.UserID},
			bigquery.QueryParameter{Name: "batch_delete_ids", Value: b.DeleteIDs},
		)
	}
	if len(rows) > 0 {
		insert, insertParams := buildInsertEntries(ds, rows)
		stmts = append(stmts, insert+";")
		params = append(params, insertParams...)
	}

	var sb strings.Builder
	sb.WriteString("BEGIN\n")
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, s := range stmts {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;\n")
	sb.WriteString("EXCEPTION WHEN ERROR THEN\n")
	sb.WriteString("ROLLBACK TRANSACTION;\n")
	sb.WriteString("RAISE USING MESSAGE = @@error.message;\n")
	sb.WriteString("END;")

	return sb.String(), params
}

// ApplyBatchWithClient applies the deletes and inserts of b atomically.
func ApplyBatchWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, b domain.Batch) error {
	if b.Empty() {
		return nil
	}

	rows, err := entryRows(b.Insert)
	if err != nil {
		return fmt.Errorf("ApplyBatchWithClient: %w", err)
	}

	sql, params := buildApplyScript(ds, b, rows)
	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("ApplyBatchWithClient: %w", err)
	}
	return nil
}
