package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/budget-ledger/internal/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

const statementColumns = `
			statement_id,
			user_id,
			gcs_uri,
			original_filename,
			checksum_sha256,
			status,
			parsed_count,
			imported_count,
			duplicate_count,
			error_count,
			error_message,
			upload_ts,
			processed_ts`

// InsertStatementWithClient inserts one statement record.
func InsertStatementWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rec domain.StatementRecord) error {
	row := bq.NewStatementRow(rec)

	sql := fmt.Sprintf(`
		INSERT INTO %s (%s
		)
		VALUES (
			@statement_id, @user_id, @gcs_uri,
			@original_filename, @checksum_sha256, @status,
			@parsed_count, @imported_count, @duplicate_count, @error_count,
			@error_message, @upload_ts, @processed_ts
		)
	`, ds.Table(statementsTable), statementColumns)

	params := []bigquery.QueryParameter{
		{Name: "statement_id", Value: row.StatementID},
		{Name: "user_id", Value: row.UserID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "status", Value: row.Status},
		{Name: "parsed_count", Value: row.ParsedCount},
		{Name: "imported_count", Value: row.ImportedCount},
		{Name: "duplicate_count", Value: row.DuplicateCount},
		{Name: "error_count", Value: row.ErrorCount},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "upload_ts", Value: row.UploadTS},
		{Name: "processed_ts", Value: row.ProcessedTS},
	}
	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("InsertStatementWithClient: %w", err)
	}
	return nil
}

func queryStatements(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) ([]domain.StatementRecord, error) {
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var records []domain.StatementRecord
	for {
		var row StatementRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		records = append(records, row.ToDomain())
	}
	return records, nil
}

// GetStatementWithClient returns one statement record or domain.ErrNotFound.
func GetStatementWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) (*domain.StatementRecord, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND statement_id = @statement_id
		LIMIT 1
	`, statementColumns, ds.Table(statementsTable))

	records, err := queryStatements(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "statement_id", Value: id},
	})
	if err != nil {
		return nil, fmt.Errorf("GetStatementWithClient: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("statement %s: %w", id, domain.ErrNotFound)
	}
	return &records[0], nil
}

// FindStatementByChecksumWithClient retrieves a statement by its SHA-256
// checksum. Returns nil if none exists.
func FindStatementByChecksumWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, checksum string) (*domain.StatementRecord, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, statementColumns, ds.Table(statementsTable))

	records, err := queryStatements(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "checksum", Value: checksum},
	})
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksumWithClient: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListStatementsWithClient returns the user's statements, newest first.
func ListStatementsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]domain.StatementRecord, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY upload_ts DESC
	`, statementColumns, ds.Table(statementsTable))

	records, err := queryStatements(ctx, client, sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("ListStatementsWithClient: %w", err)
	}
	return records, nil
}

// MarkStatementProcessedWithClient sets status=PROCESSED with the import counts.
func MarkStatementProcessedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string, parsed int, counts domain.ImportCounts) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET
			status = @status,
			parsed_count = @parsed_count,
			imported_count = @imported_count,
			duplicate_count = @duplicate_count,
			error_count = @error_count,
			error_message = NULL,
			processed_ts = @processed_ts
		WHERE statement_id = @statement_id
	`, ds.Table(statementsTable))

	params := []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatementProcessed},
		{Name: "parsed_count", Value: int64(parsed)},
		{Name: "imported_count", Value: int64(counts.Imported)},
		{Name: "duplicate_count", Value: int64(counts.Duplicates)},
		{Name: "error_count", Value: int64(counts.Errors)},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "statement_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("MarkStatementProcessedWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("statement %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkStatementFailedWithClient sets status=FAILED and records the cause.
func MarkStatementFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	sql := fmt.Sprintf(`
		UPDATE %s
		SET
			status = @status,
			error_message = @error_message,
			processed_ts = @processed_ts
		WHERE statement_id = @statement_id
	`, ds.Table(statementsTable))

	params := []bigquery.QueryParameter{
		{Name: "status", Value: domain.StatementFailed},
		{Name: "error_message", Value: msg},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "statement_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("MarkStatementFailedWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("statement %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
