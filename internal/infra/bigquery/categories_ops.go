package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

const categoryColumns = `category_id, user_id, name, type, color, icon, created_ts`

// ListCategoriesByUserWithClient returns the user's categories ordered by name.
func ListCategoriesByUserWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]*CategoryRow, error) {
	q := client.Query(`
		SELECT ` + categoryColumns + `
		FROM ` + ds.Table(categoriesTable) + `
		WHERE user_id = @user_id
		ORDER BY name
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoriesByUserWithClient: query read: %w", err)
	}

	var rows []*CategoryRow
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoriesByUserWithClient: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// FindCategoryByNameWithClient returns the user's category with the given name,
// or store.ErrNotFound.
func FindCategoryByNameWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, name string) (*CategoryRow, error) {
	q := client.Query(`
		SELECT ` + categoryColumns + `
		FROM ` + ds.Table(categoriesTable) + `
		WHERE user_id = @user_id AND name = @name
		ORDER BY created_ts
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "name", Value: name},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindCategoryByNameWithClient: query read: %w", err)
	}

	var row CategoryRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindCategoryByNameWithClient: iter next: %w", err)
	}

	return &row, nil
}

// mergeCategorySQL inserts the category only when (user_id, name) is not taken,
// so concurrent importers converge on one row.
func mergeCategorySQL(ds Dataset) string {
	return `
		MERGE ` + ds.Table(categoriesTable) + ` T
		USING (SELECT @user_id AS user_id, @name AS name) S
		ON T.user_id = S.user_id AND T.name = S.name
		WHEN NOT MATCHED THEN
		  INSERT (` + categoryColumns + `)
		  VALUES (@category_id, @user_id, @name, @type, @color, @icon, @created_ts)
	`
}

// MergeCategoryWithClient creates the category unless one with the same
// (user, name) exists, then reads back whichever row won.
func MergeCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, in domain.NewCategory) (*CategoryRow, error) {
	row := newCategoryRow(uuid.NewString(), in, time.Now())

	q := client.Query(mergeCategorySQL(ds))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category_id", Value: row.CategoryID},
		{Name: "user_id", Value: row.UserID},
		{Name: "name", Value: row.Name},
		{Name: "type", Value: row.Type},
		{Name: "color", Value: row.Color},
		{Name: "icon", Value: row.Icon},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("MergeCategoryWithClient: running merge: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("MergeCategoryWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("MergeCategoryWithClient: job error: %w", err)
	}

	existing, err := FindCategoryByNameWithClient(ctx, client, ds, in.UserID, in.Name)
	if err != nil {
		return nil, fmt.Errorf("MergeCategoryWithClient: reading back %q: %w", in.Name, err)
	}
	return existing, nil
}
