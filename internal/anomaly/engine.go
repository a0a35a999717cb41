package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
)

const (
	// DefaultLookbackDays is the analysis window when none is given.
	DefaultLookbackDays = 90
	// DefaultZScoreThreshold is the |z| at which an amount is flagged.
	DefaultZScoreThreshold = 2.0

	minExpenses            = 5
	minCategoryExpenses    = 3
	recentCategoryExpenses = 5
	highSeverityZ          = 3.0
	weekendSpikeRatio      = 1.5
	monthlyIncreasePct     = 30.0
	monthlyHighPct         = 50.0
	velocityMinWeeks       = 3
	velocitySpikeRatio     = 1.8
	velocityMinCount       = 3

	uncategorized = "Uncategorized"

	insufficientHistoryMessage = "Not enough transaction history for anomaly detection (minimum 5 expense transactions needed)"
)

// Options controls the analysis window and sensitivity.
type Options struct {
	LookbackDays    int
	ZScoreThreshold float64
}

// DefaultOptions returns a 90-day window with a z-score threshold of 2.
func DefaultOptions() Options {
	return Options{LookbackDays: DefaultLookbackDays, ZScoreThreshold: DefaultZScoreThreshold}
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = DefaultLookbackDays
	}
	if o.ZScoreThreshold <= 0 || math.IsNaN(o.ZScoreThreshold) {
		o.ZScoreThreshold = DefaultZScoreThreshold
	}
	return o
}

// Engine runs statistical checks over a user's expense history.
type Engine struct {
	transactions store.TransactionRepository
	now          func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock used to decide "today".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine reading history from repo.
func NewEngine(repo store.TransactionRepository, opts ...EngineOption) *Engine {
	e := &Engine{transactions: repo, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect analyses expenses dated within [today - LookbackDays, today].
// Fewer than five expenses produce an empty report with an explanatory message.
func (e *Engine) Detect(ctx context.Context, userID string, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	today := civil.DateOf(e.now())
	period := Period{
		StartDate: today.AddDays(-opts.LookbackDays),
		EndDate:   today,
		Days:      opts.LookbackDays,
	}
	window := domain.DateRange{Start: period.StartDate, End: period.EndDate}

	txs, err := e.transactions.FindTransactionsByUser(ctx, userID, &window)
	if err != nil {
		return nil, fmt.Errorf("Engine.Detect: loading transactions: %w", err)
	}

	var expenses []*domain.Transaction
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypeExpense && window.Contains(tx.Date) {
			expenses = append(expenses, tx)
		}
	}

	log := logger.FromContext(ctx)

	report := &Report{
		AmountAnomalies:  []AmountAnomaly{},
		CategoryAnalysis: []CategoryStats{},
		UnusualPatterns:  []Pattern{},
		Summary: Summary{
			Analyzed:  len(expenses),
			Threshold: opts.ZScoreThreshold,
			Period:    period,
		},
	}

	if len(expenses) < minExpenses {
		report.Summary.Message = insufficientHistoryMessage
		log.Debug().Str("user_id", userID).Int("expenses", len(expenses)).Msg("Skipping anomaly detection")
		return report, nil
	}

	amounts := amountsOf(expenses)
	mu := mean(amounts)
	sd := populationStdDev(amounts, mu)

	report.AmountAnomalies = amountAnomalies(expenses, mu, sd, opts.ZScoreThreshold)
	report.Summary.AnomaliesFound = len(report.AmountAnomalies)
	report.Summary.AverageExpense = round(mu, 2)
	report.Summary.StandardDeviation = round(sd, 2)
	report.CategoryAnalysis = categoryAnalysis(expenses, opts.ZScoreThreshold)

	if p, ok := weekendPattern(expenses); ok {
		report.UnusualPatterns = append(report.UnusualPatterns, p)
	}
	if p, ok := monthOverMonthPattern(expenses, today); ok {
		report.UnusualPatterns = append(report.UnusualPatterns, p)
	}
	if p, ok := velocityPattern(expenses); ok {
		report.UnusualPatterns = append(report.UnusualPatterns, p)
	}

	log.Info().
		Str("user_id", userID).
		Int("analyzed", len(expenses)).
		Int("anomalies", report.Summary.AnomaliesFound).
		Int("patterns", len(report.UnusualPatterns)).
		Msg("Anomaly detection completed")

	return report, nil
}

func amountsOf(txs []*domain.Transaction) []float64 {
	out := make([]float64, len(txs))
	for i, tx := range txs {
		out[i] = tx.Amount.InexactFloat64()
	}
	return out
}

func amountAnomalies(expenses []*domain.Transaction, mu, sd, threshold float64) []AmountAnomaly {
	type scored struct {
		tx *domain.Transaction
		z  float64
	}

	var flagged []scored
	for _, tx := range expenses {
		z := zScore(tx.Amount.InexactFloat64(), mu, sd)
		if math.Abs(z) >= threshold {
			flagged = append(flagged, scored{tx: tx, z: z})
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return math.Abs(flagged[i].z) > math.Abs(flagged[j].z)
	})

	out := make([]AmountAnomaly, 0, len(flagged))
	for _, f := range flagged {
		amount := f.tx.Amount.InexactFloat64()
		a := AmountAnomaly{
			ID:          f.tx.ID,
			Date:        f.tx.Date,
			Description: f.tx.Description,
			Amount:      f.tx.Amount,
			Category:    f.tx.CategoryName,
			ZScore:      round(f.z, 2),
			Type:        UnusuallyHigh,
			Severity:    SeverityMedium,
		}
		if math.Abs(f.z) > highSeverityZ {
			a.Severity = SeverityHigh
		}
		if f.z > 0 {
			a.Message = fmt.Sprintf("This expense ($%.2f) is %.1fx standard deviations above your average ($%.2f)", amount, f.z, mu)
		} else {
			a.Type = UnusuallyLow
			a.Message = fmt.Sprintf("This expense ($%.2f) is unusually low compared to your average ($%.2f)", amount, mu)
		}
		out = append(out, a)
	}
	return out
}

func categoryAnalysis(expenses []*domain.Transaction, threshold float64) []CategoryStats {
	var order []string
	groups := make(map[string][]*domain.Transaction)
	for _, tx := range expenses {
		name := tx.CategoryName
		if name == "" {
			name = uncategorized
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], tx)
	}

	stats := []CategoryStats{}
	for _, name := range order {
		txs := groups[name]
		if len(txs) < minCategoryExpenses {
			continue
		}

		amounts := amountsOf(txs)
		mu := mean(amounts)
		sd := populationStdDev(amounts, mu)

		recent := make([]*domain.Transaction, len(txs))
		copy(recent, txs)
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].Date.After(recent[j].Date)
		})
		if len(recent) > recentCategoryExpenses {
			recent = recent[:recentCategoryExpenses]
		}

		hasAnomaly := false
		for _, tx := range recent {
			if math.Abs(zScore(tx.Amount.InexactFloat64(), mu, sd)) >= threshold {
				hasAnomaly = true
				break
			}
		}

		status := StatusNormal
		if hasAnomaly {
			status = StatusAnomalyDetected
		}

		stats = append(stats, CategoryStats{
			Category:          name,
			TransactionCount:  len(txs),
			AverageAmount:     round(mu, 2),
			TotalSpent:        round(sum(amounts), 2),
			MaxTransaction:    round(maxOf(amounts), 2),
			StandardDeviation: round(sd, 2),
			HasAnomaly:        hasAnomaly,
			Status:            status,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalSpent > stats[j].TotalSpent
	})
	return stats
}

func weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

func weekendPattern(expenses []*domain.Transaction) (Pattern, bool) {
	var weekdayAmounts, weekendAmounts []float64
	for _, tx := range expenses {
		switch weekday(tx.Date) {
		case time.Saturday, time.Sunday:
			weekendAmounts = append(weekendAmounts, tx.Amount.InexactFloat64())
		default:
			weekdayAmounts = append(weekdayAmounts, tx.Amount.InexactFloat64())
		}
	}
	if len(weekdayAmounts) == 0 || len(weekendAmounts) == 0 {
		return Pattern{}, false
	}

	weekdayAvg := mean(weekdayAmounts)
	weekendAvg := mean(weekendAmounts)
	if weekendAvg <= weekdayAvg*weekendSpikeRatio {
		return Pattern{}, false
	}

	return Pattern{
		Type:     WeekendSpendingSpike,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("Weekend spending ($%.2f avg) is %.0f%% higher than weekday spending ($%.2f avg)",
			weekendAvg, (weekendAvg/weekdayAvg-1)*100, weekdayAvg),
		Data: map[string]float64{
			"weekdayAvg": round(weekdayAvg, 2),
			"weekendAvg": round(weekendAvg, 2),
		},
	}, true
}

func monthOverMonthPattern(expenses []*domain.Transaction, today civil.Date) (Pattern, bool) {
	lastYear, lastMonth := today.Year, today.Month-1
	if lastMonth < time.January {
		lastYear, lastMonth = today.Year-1, time.December
	}

	var thisTotal, lastTotal float64
	var thisCount, lastCount int
	for _, tx := range expenses {
		switch {
		case tx.Date.Year == today.Year && tx.Date.Month == today.Month:
			thisTotal += tx.Amount.InexactFloat64()
			thisCount++
		case tx.Date.Year == lastYear && tx.Date.Month == lastMonth:
			lastTotal += tx.Amount.InexactFloat64()
			lastCount++
		}
	}
	if thisCount == 0 || lastCount == 0 || lastTotal <= 0 {
		return Pattern{}, false
	}

	change := (thisTotal - lastTotal) / lastTotal * 100
	if change <= monthlyIncreasePct {
		return Pattern{}, false
	}

	severity := SeverityMedium
	if change > monthlyHighPct {
		severity = SeverityHigh
	}
	return Pattern{
		Type:     MonthlySpendingIncrease,
		Severity: severity,
		Message: fmt.Sprintf("This month's spending ($%.2f) is %.0f%% higher than last month ($%.2f)",
			thisTotal, change, lastTotal),
		Data: map[string]float64{
			"thisMonth":     round(thisTotal, 2),
			"lastMonth":     round(lastTotal, 2),
			"changePercent": round(change, 1),
		},
	}, true
}

// velocityPattern buckets expenses into Sunday-started weeks and compares the
// most recent week's count with the average of the earlier weeks.
func velocityPattern(expenses []*domain.Transaction) (Pattern, bool) {
	counts := make(map[civil.Date]int)
	for _, tx := range expenses {
		weekStart := tx.Date.AddDays(-int(weekday(tx.Date)))
		counts[weekStart]++
	}
	if len(counts) < velocityMinWeeks {
		return Pattern{}, false
	}

	weeks := make([]civil.Date, 0, len(counts))
	for w := range counts {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool {
		return weeks[i].After(weeks[j])
	})

	recent := counts[weeks[0]]
	var previous int
	for _, w := range weeks[1:] {
		previous += counts[w]
	}
	avgPrevious := float64(previous) / float64(len(weeks)-1)

	if float64(recent) <= avgPrevious*velocitySpikeRatio || recent <= velocityMinCount {
		return Pattern{}, false
	}

	return Pattern{
		Type:     TransactionFrequencySpike,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("Recent week had %d transactions, which is %.0f%% above the weekly average of %.1f",
			recent, (float64(recent)/avgPrevious-1)*100, avgPrevious),
		Data: map[string]float64{
			"recentWeek":    float64(recent),
			"weeklyAverage": round(avgPrevious, 1),
		},
	}, true
}
