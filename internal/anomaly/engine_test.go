package anomaly

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/infra/memory"
)

// 2026-03-15 is a Sunday.
var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type seed struct {
	date     string
	amount   string
	category string
	txType   domain.TransactionType
}

func newSeededEngine(t *testing.T, userID string, seeds []seed) *Engine {
	t.Helper()
	ctx := context.Background()
	st := memory.NewStore()

	for i, s := range seeds {
		d, err := civil.ParseDate(s.date)
		require.NoError(t, err)

		var categoryID string
		if s.category != "" {
			cat, err := st.CreateCategory(ctx, domain.NewCategory{UserID: userID, Name: s.category, Type: domain.TransactionTypeExpense})
			require.NoError(t, err)
			categoryID = cat.ID
		}

		txType := s.txType
		if txType == "" {
			txType = domain.TransactionTypeExpense
		}
		_, err = st.CreateTransaction(ctx, domain.NewTransaction{
			UserID:      userID,
			CategoryID:  categoryID,
			Amount:      decimal.RequireFromString(s.amount),
			Currency:    "USD",
			Type:        txType,
			Description: "seed " + s.date,
			Date:        d,
		})
		require.NoError(t, err, "seed %d", i)
	}

	return NewEngine(st, WithClock(func() time.Time { return fixedNow }))
}

func findPattern(patterns []Pattern, typ PatternType) (Pattern, bool) {
	for _, p := range patterns {
		if p.Type == typ {
			return p, true
		}
	}
	return Pattern{}, false
}

func TestDetect_InsufficientHistory(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-01", amount: "10"},
		{date: "2026-03-02", amount: "20"},
		{date: "2026-03-03", amount: "30"},
		{date: "2026-03-04", amount: "900"},
		{date: "2026-03-05", amount: "5000", txType: domain.TransactionTypeIncome},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.Analyzed)
	assert.Equal(t, 0, report.Summary.AnomaliesFound)
	assert.NotEmpty(t, report.Summary.Message)
	assert.Empty(t, report.AmountAnomalies)
	assert.Empty(t, report.CategoryAnalysis)
	assert.Empty(t, report.UnusualPatterns)
}

func TestDetect_FlagsLargeExpense(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-02", amount: "45"},
		{date: "2026-03-03", amount: "48"},
		{date: "2026-03-04", amount: "50"},
		{date: "2026-03-05", amount: "52"},
		{date: "2026-03-06", amount: "55"},
		{date: "2026-03-10", amount: "500"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.AmountAnomalies, 1)

	a := report.AmountAnomalies[0]
	assert.True(t, a.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, UnusuallyHigh, a.Type)
	assert.Equal(t, SeverityMedium, a.Severity)
	assert.GreaterOrEqual(t, a.ZScore, 2.0)
	assert.InDelta(t, 2.24, a.ZScore, 0.001)
	assert.Contains(t, a.Message, "$500.00")

	assert.Equal(t, 6, report.Summary.Analyzed)
	assert.Equal(t, 1, report.Summary.AnomaliesFound)
	assert.InDelta(t, 125.0, report.Summary.AverageExpense, 0.001)
	assert.InDelta(t, 167.73, report.Summary.StandardDeviation, 0.01)
	assert.Equal(t, 2.0, report.Summary.Threshold)
	assert.Equal(t, Period{
		StartDate: civil.Date{Year: 2025, Month: time.December, Day: 15},
		EndDate:   civil.Date{Year: 2026, Month: time.March, Day: 15},
		Days:      90,
	}, report.Summary.Period)
}

func TestDetect_SortsByAbsoluteZScore(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-02", amount: "1"},
		{date: "2026-03-03", amount: "50"},
		{date: "2026-03-03", amount: "50"},
		{date: "2026-03-04", amount: "50"},
		{date: "2026-03-04", amount: "50"},
		{date: "2026-03-05", amount: "50"},
		{date: "2026-03-05", amount: "50"},
		{date: "2026-03-06", amount: "120"},
	})

	report, err := e.Detect(context.Background(), "u1", Options{ZScoreThreshold: 1.0})
	require.NoError(t, err)
	require.Len(t, report.AmountAnomalies, 2)
	assert.Equal(t, UnusuallyHigh, report.AmountAnomalies[0].Type)
	assert.True(t, report.AmountAnomalies[0].Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, UnusuallyLow, report.AmountAnomalies[1].Type)
	assert.Contains(t, report.AmountAnomalies[1].Message, "unusually low")
	assert.Equal(t, 1.0, report.Summary.Threshold)
}

func TestDetect_IgnoresOutsideWindowAndIncome(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2025-06-01", amount: "10000"},
		{date: "2026-03-02", amount: "10"},
		{date: "2026-03-03", amount: "11"},
		{date: "2026-03-04", amount: "12"},
		{date: "2026-03-05", amount: "13"},
		{date: "2026-03-06", amount: "14"},
		{date: "2026-03-07", amount: "9000", txType: domain.TransactionTypeIncome},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Summary.Analyzed)
	assert.Empty(t, report.AmountAnomalies)

	narrow, err := e.Detect(context.Background(), "u1", Options{LookbackDays: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, narrow.Summary.Analyzed)
	assert.Equal(t, 10, narrow.Summary.Period.Days)

	tooNarrow, err := e.Detect(context.Background(), "u1", Options{LookbackDays: 9})
	require.NoError(t, err)
	assert.Equal(t, 4, tooNarrow.Summary.Analyzed)
	assert.NotEmpty(t, tooNarrow.Summary.Message)
}

func TestDetect_CategoryAnalysis(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-02", amount: "10", category: "Dining"},
		{date: "2026-03-03", amount: "10", category: "Dining"},
		{date: "2026-03-04", amount: "10", category: "Dining"},
		{date: "2026-03-05", amount: "10", category: "Dining"},
		{date: "2026-03-06", amount: "100", category: "Dining"},
		{date: "2026-03-02", amount: "50", category: "Groceries"},
		{date: "2026-03-03", amount: "50", category: "Groceries"},
		{date: "2026-03-04", amount: "50", category: "Groceries"},
		{date: "2026-03-04", amount: "7"},
		{date: "2026-03-05", amount: "8"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.CategoryAnalysis, 2)

	groceries := report.CategoryAnalysis[0]
	assert.Equal(t, "Groceries", groceries.Category)
	assert.Equal(t, 3, groceries.TransactionCount)
	assert.Equal(t, 150.0, groceries.TotalSpent)
	assert.Equal(t, 0.0, groceries.StandardDeviation)
	assert.False(t, groceries.HasAnomaly)
	assert.Equal(t, StatusNormal, groceries.Status)

	dining := report.CategoryAnalysis[1]
	assert.Equal(t, "Dining", dining.Category)
	assert.Equal(t, 5, dining.TransactionCount)
	assert.Equal(t, 140.0, dining.TotalSpent)
	assert.Equal(t, 28.0, dining.AverageAmount)
	assert.Equal(t, 100.0, dining.MaxTransaction)
	assert.Equal(t, 36.0, dining.StandardDeviation)
	assert.True(t, dining.HasAnomaly)
	assert.Equal(t, StatusAnomalyDetected, dining.Status)
}

func TestDetect_CategoryAnomalyOnlyChecksRecentFive(t *testing.T) {
	// The outlier is the oldest of six, so it is outside the recent five.
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-01", amount: "100", category: "Dining"},
		{date: "2026-03-02", amount: "10", category: "Dining"},
		{date: "2026-03-03", amount: "10", category: "Dining"},
		{date: "2026-03-04", amount: "10", category: "Dining"},
		{date: "2026-03-05", amount: "10", category: "Dining"},
		{date: "2026-03-06", amount: "10", category: "Dining"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.CategoryAnalysis, 1)
	assert.False(t, report.CategoryAnalysis[0].HasAnomaly)
	require.Len(t, report.AmountAnomalies, 1)
}

func TestDetect_WeekendPattern(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-09", amount: "10"},
		{date: "2026-03-10", amount: "10"},
		{date: "2026-03-11", amount: "10"},
		{date: "2026-03-12", amount: "10"},
		{date: "2026-03-14", amount: "40"},
		{date: "2026-03-15", amount: "40"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)

	p, ok := findPattern(report.UnusualPatterns, WeekendSpendingSpike)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, p.Severity)
	assert.Equal(t, 10.0, p.Data["weekdayAvg"])
	assert.Equal(t, 40.0, p.Data["weekendAvg"])
	assert.Contains(t, p.Message, "300% higher")

	_, ok = findPattern(report.UnusualPatterns, MonthlySpendingIncrease)
	assert.False(t, ok)
	_, ok = findPattern(report.UnusualPatterns, TransactionFrequencySpike)
	assert.False(t, ok)
}

func TestDetect_MonthOverMonthPattern(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-02-10", amount: "100"},
		{date: "2026-03-02", amount: "50"},
		{date: "2026-03-03", amount: "50"},
		{date: "2026-03-04", amount: "50"},
		{date: "2026-03-05", amount: "50"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)

	p, ok := findPattern(report.UnusualPatterns, MonthlySpendingIncrease)
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, p.Severity)
	assert.Equal(t, 200.0, p.Data["thisMonth"])
	assert.Equal(t, 100.0, p.Data["lastMonth"])
	assert.Equal(t, 100.0, p.Data["changePercent"])

	_, ok = findPattern(report.UnusualPatterns, WeekendSpendingSpike)
	assert.False(t, ok)
}

func TestDetect_MonthOverMonthMediumSeverity(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-02-10", amount: "100"},
		{date: "2026-03-02", amount: "35"},
		{date: "2026-03-03", amount: "35"},
		{date: "2026-03-04", amount: "35"},
		{date: "2026-03-05", amount: "35"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)

	p, ok := findPattern(report.UnusualPatterns, MonthlySpendingIncrease)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, p.Severity)
	assert.Equal(t, 40.0, p.Data["changePercent"])
}

func TestDetect_VelocityPattern(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-02-23", amount: "20"},
		{date: "2026-03-02", amount: "20"},
		{date: "2026-03-09", amount: "20"},
		{date: "2026-03-10", amount: "20"},
		{date: "2026-03-11", amount: "20"},
		{date: "2026-03-12", amount: "20"},
		{date: "2026-03-13", amount: "20"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)

	p, ok := findPattern(report.UnusualPatterns, TransactionFrequencySpike)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, p.Severity)
	assert.Equal(t, 5.0, p.Data["recentWeek"])
	assert.Equal(t, 1.0, p.Data["weeklyAverage"])
	assert.Contains(t, p.Message, "Recent week had 5 transactions")
}

func TestDetect_NoVelocityWithTwoWeeks(t *testing.T) {
	e := newSeededEngine(t, "u1", []seed{
		{date: "2026-03-02", amount: "20"},
		{date: "2026-03-09", amount: "20"},
		{date: "2026-03-10", amount: "20"},
		{date: "2026-03-11", amount: "20"},
		{date: "2026-03-12", amount: "20"},
		{date: "2026-03-13", amount: "20"},
	})

	report, err := e.Detect(context.Background(), "u1", DefaultOptions())
	require.NoError(t, err)
	_, ok := findPattern(report.UnusualPatterns, TransactionFrequencySpike)
	assert.False(t, ok)
}

type brokenRepo struct{}

func (brokenRepo) FindTransactionsByUser(context.Context, string, *domain.DateRange) ([]*domain.Transaction, error) {
	return nil, errors.New("store offline")
}

func (brokenRepo) CreateTransaction(context.Context, domain.NewTransaction) (*domain.Transaction, error) {
	return nil, errors.New("store offline")
}

func TestDetect_StoreError(t *testing.T) {
	_, err := NewEngine(brokenRepo{}).Detect(context.Background(), "u1", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestPopulationStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mu := mean(values)
	assert.Equal(t, 5.0, mu)
	assert.Equal(t, 2.0, populationStdDev(values, mu))
	assert.Equal(t, 0.0, zScore(3, 3, 0))
}
