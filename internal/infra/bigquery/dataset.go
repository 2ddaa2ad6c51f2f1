package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/budget-ledger/internal/bigquery"
)

// Row types and their domain mapping live in internal/bigquery.
type (
	EntryRow         = bq.EntryRow
	CategoryRow      = bq.CategoryRow
	RecurringBillRow = bq.RecurringBillRow
	StatementRow     = bq.StatementRow
)

const (
	entriesTable        = "entries"
	categoriesTable     = "categories"
	recurringBillsTable = "recurring_bills"
	statementsTable     = "statements"
)

// Dataset names the project and dataset holding the ledger tables.
type Dataset struct {
	Project string
	Name    string
}

// Table returns the fully qualified, backtick-quoted table name.
func (d Dataset) Table(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.Project, d.Name, table)
}

// runDML runs a DML statement or script and returns the number of rows it
// modified, when BigQuery reports it.
func runDML(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}
