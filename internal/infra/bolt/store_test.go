package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/dvloznov/statement-insights/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "insights.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "insights.db")

	s, err := Open(path)
	require.NoError(t, err)
	cat, err := s.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Dining", Type: domain.TransactionTypeExpense})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, domain.NewTransaction{
		UserID:      "u1",
		CategoryID:  cat.ID,
		Amount:      decimal.RequireFromString("12.34"),
		Currency:    "USD",
		Type:        domain.TransactionTypeExpense,
		Description: "Coffee Shop",
		Date:        civil.Date{Year: 2026, Month: time.March, Day: 3},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	txs, err := reopened.FindTransactionsByUser(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, "Dining", txs[0].CategoryName)
	assert.Equal(t, "Coffee Shop", txs[0].Description)

	again, err := reopened.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Dining"})
	require.NoError(t, err)
	assert.Equal(t, cat.ID, again.ID)
}
