package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// InsertTransactionsWithClient streams a batch of TransactionRow into the transactions table.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactionsWithClient: inserting rows: %w", err)
	}

	return nil
}

func transactionsByUserSQL(ds Dataset, withRange bool) string {
	query := `
		SELECT
			t.transaction_id,
			t.user_id,
			t.category_id,
			c.name AS category_name,
			t.transaction_date,
			t.amount,
			t.currency,
			t.type,
			t.description,
			t.is_recurring,
			t.notes,
			t.created_ts
		FROM ` + ds.Table(transactionsTable) + ` t
		LEFT JOIN ` + ds.Table(categoriesTable) + ` c
		  ON c.category_id = t.category_id
		WHERE t.user_id = @user_id`
	if withRange {
		query += `
		  AND t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date`
	}
	return query + `
		ORDER BY t.transaction_date, t.created_ts
	`
}

// QueryTransactionsByUserWithClient returns the user's transactions ordered by date.
// A nil dateRange returns the full history.
func QueryTransactionsByUserWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, dateRange *domain.DateRange) ([]*TransactionRow, error) {
	q := client.Query(transactionsByUserSQL(ds, dateRange != nil))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}
	if dateRange != nil {
		q.Parameters = append(q.Parameters,
			bigquery.QueryParameter{Name: "start_date", Value: dateRange.Start},
			bigquery.QueryParameter{Name: "end_date", Value: dateRange.End},
		)
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUserWithClient: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUserWithClient: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
