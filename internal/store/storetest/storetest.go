// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateCategoryIsGetOrCreate", func(t *testing.T) {
		testCreateCategoryIsGetOrCreate(t, newStore(t))
	})
	t.Run("ConcurrentCreateCategory", func(t *testing.T) {
		testConcurrentCreateCategory(t, newStore(t))
	})
	t.Run("CategoriesAreScopedByUser", func(t *testing.T) {
		testCategoriesAreScopedByUser(t, newStore(t))
	})
	t.Run("TransactionsOrderedAndFiltered", func(t *testing.T) {
		testTransactionsOrderedAndFiltered(t, newStore(t))
	})
	t.Run("CreateTransactionValidates", func(t *testing.T) {
		testCreateTransactionValidates(t, newStore(t))
	})
}

func testCreateCategoryIsGetOrCreate(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Groceries", Type: domain.TransactionTypeExpense, Color: "#6366f1", Icon: "folder"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Groceries", Type: domain.TransactionTypeIncome})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.TransactionTypeExpense, second.Type)
	assert.Equal(t, "#6366f1", second.Color)

	cats, err := s.FindCategoriesByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func testConcurrentCreateCategory(t *testing.T, s store.Store) {
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Dining", Type: domain.TransactionTypeExpense})
			if assert.NoError(t, err) {
				ids[i] = cat.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	cats, err := s.FindCategoriesByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func testCategoriesAreScopedByUser(t *testing.T, s store.Store) {
	ctx := context.Background()

	a, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Salary", Type: domain.TransactionTypeIncome})
	require.NoError(t, err)
	b, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u2", Name: "Salary", Type: domain.TransactionTypeIncome})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Dining", Type: domain.TransactionTypeExpense})
	require.NoError(t, err)

	cats, err := s.FindCategoriesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Dining", cats[0].Name)
	assert.Equal(t, "Salary", cats[1].Name)

	none, err := s.FindCategoriesByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTransactionsOrderedAndFiltered(t *testing.T, s store.Store) {
	ctx := context.Background()

	cat, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Groceries", Type: domain.TransactionTypeExpense})
	require.NoError(t, err)

	dates := []civil.Date{
		{Year: 2026, Month: time.March, Day: 10},
		{Year: 2026, Month: time.January, Day: 5},
		{Year: 2026, Month: time.February, Day: 28},
		{Year: 2026, Month: time.March, Day: 1},
	}
	for i, d := range dates {
		_, err := s.CreateTransaction(ctx, domain.NewTransaction{
			UserID:      "u1",
			CategoryID:  cat.ID,
			Amount:      decimal.NewFromInt(int64(10 * (i + 1))),
			Currency:    "USD",
			Type:        domain.TransactionTypeExpense,
			Description: "purchase",
			Date:        d,
		})
		require.NoError(t, err)
	}
	_, err = s.CreateTransaction(ctx, domain.NewTransaction{
		UserID: "u2", Amount: decimal.NewFromInt(99), Currency: "USD",
		Type: domain.TransactionTypeIncome, Date: dates[0],
	})
	require.NoError(t, err)

	all, err := s.FindTransactionsByUser(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.Before(all[i-1].Date), "transactions must be ordered by date")
	}
	assert.Equal(t, "Groceries", all[0].CategoryName)
	assert.True(t, all[0].Amount.Equal(decimal.NewFromInt(20)))

	ranged, err := s.FindTransactionsByUser(ctx, "u1", &domain.DateRange{
		Start: civil.Date{Year: 2026, Month: time.February, Day: 28},
		End:   civil.Date{Year: 2026, Month: time.March, Day: 1},
	})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, dates[2], ranged[0].Date)
	assert.Equal(t, dates[3], ranged[1].Date)

	none, err := s.FindTransactionsByUser(ctx, "nobody", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCreateTransactionValidates(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.CreateTransaction(ctx, domain.NewTransaction{UserID: "u1", Amount: decimal.NewFromInt(-5)})
	assert.Error(t, err)

	_, err = s.CreateTransaction(ctx, domain.NewTransaction{Amount: decimal.NewFromInt(5)})
	assert.Error(t, err)
}
