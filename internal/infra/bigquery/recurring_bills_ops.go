package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/budget-ledger/internal/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

// ListRecurringBillsWithClient returns the user's bills ordered by due day.
func ListRecurringBillsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, activeOnly bool) ([]domain.RecurringBill, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			bill_id,
			user_id,
			description,
			category_id,
			amount,
			direction,
			due_day,
			active,
			notes,
			created_ts
		FROM %s
		WHERE user_id = @user_id
		  AND (NOT @active_only OR active)
		ORDER BY due_day, description
	`, ds.Table(recurringBillsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "active_only", Value: activeOnly},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecurringBillsWithClient: reading query: %w", err)
	}

	var bills []domain.RecurringBill
	for {
		var row RecurringBillRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecurringBillsWithClient: iterating results: %w", err)
		}
		bills = append(bills, row.ToDomain())
	}

	return bills, nil
}

// InsertRecurringBillWithClient inserts one recurring bill.
func InsertRecurringBillWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, bill domain.RecurringBill) error {
	row := bq.NewRecurringBillRow(bill)

	sql := fmt.Sprintf(`
		INSERT INTO %s (
			bill_id, user_id, description, category_id,
			amount, direction, due_day, active,
			notes, created_ts
		)
		VALUES (
			@bill_id, @user_id, @description, @category_id,
			@amount, @direction, @due_day, @active,
			@notes, @created_ts
		)
	`, ds.Table(recurringBillsTable))

	params := []bigquery.QueryParameter{
		{Name: "bill_id", Value: row.BillID},
		{Name: "user_id", Value: row.UserID},
		{Name: "description", Value: row.Description},
		{Name: "category_id", Value: row.CategoryID},
		{Name: "amount", Value: row.Amount},
		{Name: "direction", Value: row.Direction},
		{Name: "due_day", Value: row.DueDay},
		{Name: "active", Value: row.Active},
		{Name: "notes", Value: row.Notes},
		{Name: "created_ts", Value: row.CreatedTS},
	}
	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("InsertRecurringBillWithClient: %w", err)
	}
	return nil
}

// SetRecurringBillActiveWithClient activates or deactivates one bill.
func SetRecurringBillActiveWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, active bool) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET active = @active
		WHERE user_id = @user_id AND bill_id = @bill_id
	`, ds.Table(recurringBillsTable))

	params := []bigquery.QueryParameter{
		{Name: "active", Value: active},
		{Name: "user_id", Value: userID},
		{Name: "bill_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("SetRecurringBillActiveWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring bill %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateRecurringBillWithClient rewrites one bill. The owner and creation
// time are kept.
func UpdateRecurringBillWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, bill domain.RecurringBill) error {
	row := bq.NewRecurringBillRow(bill)

	sql := fmt.Sprintf(`
		UPDATE %s
		SET description = @description,
			category_id = @category_id,
			amount = @amount,
			direction = @direction,
			due_day = @due_day,
			active = @active,
			notes = @notes
		WHERE user_id = @user_id AND bill_id = @bill_id
	`, ds.Table(recurringBillsTable))

	params := []bigquery.QueryParameter{
		{Name: "description", Value: row.Description},
		{Name: "category_id", Value: row.CategoryID},
		{Name: "amount", Value: row.Amount},
		{Name: "direction", Value: row.Direction},
		{Name: "due_day", Value: row.DueDay},
		{Name: "active", Value: row.Active},
		{Name: "notes", Value: row.Notes},
		{Name: "user_id", Value: row.UserID},
		{Name: "bill_id", Value: row.BillID},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateRecurringBillWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring bill %s: %w", bill.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteRecurringBillWithClient removes one bill. Entries it generated stay.
func DeleteRecurringBillWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) error {
	sql := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND bill_id = @bill_id
	`, ds.Table(recurringBillsTable))

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "bill_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("DeleteRecurringBillWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring bill %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListUsersWithActiveBillsWithClient returns every user owning an active bill.
func ListUsersWithActiveBillsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT user_id
		FROM %s
		WHERE active
		ORDER BY user_id
	`, ds.Table(recurringBillsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUsersWithActiveBillsWithClient: reading query: %w", err)
	}

	var users []string
	for {
		var row struct {
			UserID string `bigquery:"user_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUsersWithActiveBillsWithClient: iterating results: %w", err)
		}
		users = append(users, row.UserID)
	}

	return users, nil
}
