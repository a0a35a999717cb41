package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
)

var testDataset = Dataset{ProjectID: "proj", DatasetID: "insights"}

func TestDatasetTable(t *testing.T) {
	assert.Equal(t, "`proj.insights.transactions`", testDataset.Table(transactionsTable))
}

func TestTransactionRowConversion(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	in := domain.NewTransaction{
		UserID:      "u1",
		CategoryID:  "cat-1",
		Amount:      decimal.RequireFromString("45.50"),
		Currency:    "EUR",
		Type:        domain.TransactionTypeExpense,
		Description: "Grocery Store",
		Date:        civil.Date{Year: 2026, Month: time.February, Day: 27},
		Notes:       "Imported from bank statement",
	}

	row := newTransactionRow("tx-1", in, now)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(91, 2)))
	assert.Equal(t, bigquery.NullString{StringVal: "cat-1", Valid: true}, row.CategoryID)
	assert.Equal(t, time.UTC, row.CreatedTS.Location())

	values, insertID, err := row.Save()
	require.NoError(t, err)
	assert.Equal(t, "tx-1", insertID)
	assert.Equal(t, in.Date, values["transaction_date"])
	assert.Equal(t, "expense", values["type"])
	assert.NotContains(t, values, "category_name")

	row.CategoryName = bigquery.NullString{StringVal: "Groceries", Valid: true}
	tx, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.True(t, tx.Amount.Equal(in.Amount))
	assert.Equal(t, "Groceries", tx.CategoryName)
	assert.Equal(t, in.Date, tx.Date)
	assert.Equal(t, "Imported from bank statement", tx.Notes)
}

func TestTransactionRowWithoutCategory(t *testing.T) {
	row := newTransactionRow("tx-2", domain.NewTransaction{
		UserID: "u1",
		Amount: decimal.RequireFromString("10"),
		Type:   domain.TransactionTypeIncome,
	}, time.Now())
	assert.False(t, row.CategoryID.Valid)
	assert.False(t, row.Notes.Valid)

	row.Amount = nil
	_, err := row.toDomain()
	require.Error(t, err)
}

func TestCategoryRowConversion(t *testing.T) {
	row := newCategoryRow("cat-1", domain.NewCategory{
		UserID: "u1",
		Name:   "Groceries",
		Type:   domain.TransactionTypeExpense,
		Color:  "#6366f1",
	}, time.Now())

	assert.True(t, row.Color.Valid)
	assert.False(t, row.Icon.Valid)

	cat := row.toDomain()
	assert.Equal(t, "cat-1", cat.ID)
	assert.Equal(t, domain.TransactionTypeExpense, cat.Type)
	assert.Equal(t, "#6366f1", cat.Color)
	assert.Empty(t, cat.Icon)
}

func TestTransactionsByUserSQL(t *testing.T) {
	full := transactionsByUserSQL(testDataset, false)
	assert.Contains(t, full, "FROM `proj.insights.transactions` t")
	assert.Contains(t, full, "LEFT JOIN `proj.insights.categories` c")
	assert.NotContains(t, full, "@start_date")

	ranged := transactionsByUserSQL(testDataset, true)
	assert.Contains(t, ranged, "t.transaction_date >= @start_date")
	assert.Contains(t, ranged, "t.transaction_date <= @end_date")
}

func TestMergeCategorySQL(t *testing.T) {
	sql := mergeCategorySQL(testDataset)
	assert.Contains(t, sql, "MERGE `proj.insights.categories` T")
	assert.Contains(t, sql, "ON T.user_id = S.user_id AND T.name = S.name")
	assert.Contains(t, sql, "WHEN NOT MATCHED THEN")
}
