package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/infra/memory"
)

func TestIsDuplicateOf(t *testing.T) {
	existing := &domain.Transaction{
		Amount:      dec("45.50"),
		Date:        date(2026, time.February, 1),
		Description: "Grocery Store",
	}

	tests := []struct {
		name      string
		candidate CandidateTransaction
		want      bool
	}{
		{
			name:      "longer candidate description",
			candidate: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 1), Description: "Grocery Store Purchase"},
			want:      true,
		},
		{
			name:      "case insensitive",
			candidate: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 1), Description: "GROCERY"},
			want:      true,
		},
		{
			name:      "amount within a cent",
			candidate: CandidateTransaction{Amount: dec("45.505"), Date: date(2026, time.February, 1), Description: "Grocery Store"},
			want:      true,
		},
		{
			name:      "amount off by a cent",
			candidate: CandidateTransaction{Amount: dec("45.51"), Date: date(2026, time.February, 1), Description: "Grocery Store"},
			want:      false,
		},
		{
			name:      "different date",
			candidate: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 2), Description: "Grocery Store"},
			want:      false,
		},
		{
			name:      "unrelated description",
			candidate: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 1), Description: "Gas Station"},
			want:      false,
		},
		{
			name:      "empty candidate description",
			candidate: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 1)},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateOf(existing, tt.candidate))
		})
	}
}

func TestIsDuplicateOf_BothDescriptionsEmpty(t *testing.T) {
	existing := &domain.Transaction{Amount: dec("10"), Date: date(2026, time.March, 1)}
	candidate := CandidateTransaction{Amount: dec("10"), Date: date(2026, time.March, 1)}
	assert.True(t, IsDuplicateOf(existing, candidate))
}

func TestIsDuplicateOf_UsesTwentyCharacterPrefix(t *testing.T) {
	existing := &domain.Transaction{
		Amount:      dec("9.99"),
		Date:        date(2026, time.March, 1),
		Description: "SPOTIFY USA SUBSCRIPT ref 1",
	}
	candidate := CandidateTransaction{
		Amount:      dec("9.99"),
		Date:        date(2026, time.March, 1),
		Description: "Spotify USA Subscription ref 2",
	}
	assert.True(t, IsDuplicateOf(existing, candidate))
}

func TestDuplicateDetector_Flag(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()

	cat, err := st.CreateCategory(ctx, domain.NewCategory{UserID: "u1", Name: "Groceries", Type: domain.TransactionTypeExpense})
	require.NoError(t, err)
	_, err = st.CreateTransaction(ctx, domain.NewTransaction{
		UserID:      "u1",
		CategoryID:  cat.ID,
		Amount:      dec("45.50"),
		Type:        domain.TransactionTypeExpense,
		Description: "Grocery Store",
		Date:        date(2026, time.February, 1),
	})
	require.NoError(t, err)

	candidates := []CategorizedCandidate{
		{CandidateTransaction: CandidateTransaction{Amount: dec("45.50"), Date: date(2026, time.February, 1), Description: "Grocery Store Purchase"}},
		{CandidateTransaction: CandidateTransaction{Amount: dec("12.00"), Date: date(2026, time.February, 1), Description: "Coffee"}},
	}

	flagged, err := NewDuplicateDetector(st).Flag(ctx, "u1", candidates)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.True(t, flagged[0].IsDuplicate)
	assert.False(t, flagged[1].IsDuplicate)

	// Another user's history is never consulted.
	flagged, err = NewDuplicateDetector(st).Flag(ctx, "u2", candidates)
	require.NoError(t, err)
	assert.False(t, flagged[0].IsDuplicate)
}

func TestDuplicateDetector_HistoryError(t *testing.T) {
	repo := &failingStore{findTxErr: errors.New("connection refused")}
	_, err := NewDuplicateDetector(repo).Flag(context.Background(), "u1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
