package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/budget-ledger/internal/bigquery"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

// ListCategoriesWithClient returns the user's categories ordered by name.
// An empty direction returns both.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, direction domain.Direction) ([]domain.Category, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  category_id,
		  user_id,
		  name,
		  direction,
		  created_ts
		FROM %s
		WHERE user_id = @user_id
		  AND (@direction = '' OR direction = @direction)
		ORDER BY LOWER(name), category_id
	`, ds.Table(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "direction", Value: string(direction)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoriesWithClient: query read: %w", err)
	}

	var categories []domain.Category
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoriesWithClient: iter next: %w", err)
		}
		categories = append(categories, r.ToDomain())
	}

	return categories, nil
}

// InsertCategoriesWithClient inserts categories in a single statement.
func InsertCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, categories []domain.Category) error {
	if len(categories) == 0 {
		return nil
	}

	var (
		tuples []string
		params []bigquery.QueryParameter
	)
	for i, c := range categories {
		row := bq.NewCategoryRow(c)
		tuples = append(tuples, fmt.Sprintf("(@category_id_%d, @user_id_%d, @name_%d, @direction_%d, @created_ts_%d)", i, i, i, i, i))
		params = append(params,
			bigquery.QueryParameter{Name: fmt.Sprintf("category_id_%d", i), Value: row.CategoryID},
			bigquery.QueryParameter{Name: fmt.Sprintf("user_id_%d", i), Value: row.UserID},
			bigquery.QueryParameter{Name: fmt.Sprintf("name_%d", i), Value: row.Name},
			bigquery.QueryParameter{Name: fmt.Sprintf("direction_%d", i), Value: row.Direction},
			bigquery.QueryParameter{Name: fmt.Sprintf("created_ts_%d", i), Value: row.CreatedTS},
		)
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (category_id, user_id, name, direction, created_ts)
		VALUES %s
	`, ds.Table(categoriesTable), strings.Join(tuples, ", "))

	if _, err := runDML(ctx, client, sql, params); err != nil {
		return fmt.Errorf("InsertCategoriesWithClient: %w", err)
	}
	return nil
}

// UpdateCategoryWithClient renames one category and sets its direction.
func UpdateCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c domain.Category) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET name = @name, direction = @direction
		WHERE user_id = @user_id AND category_id = @category_id
	`, ds.Table(categoriesTable))

	params := []bigquery.QueryParameter{
		{Name: "name", Value: c.Name},
		{Name: "direction", Value: string(c.Direction)},
		{Name: "user_id", Value: c.UserID},
		{Name: "category_id", Value: c.ID},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateCategoryWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteCategoryWithClient removes one category.
func DeleteCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) error {
	sql := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND category_id = @category_id
	`, ds.Table(categoriesTable))

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "category_id", Value: id},
	}
	affected, err := runDML(ctx, client, sql, params)
	if err != nil {
		return fmt.Errorf("DeleteCategoryWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
