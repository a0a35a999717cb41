// Package insights turns a user's transaction history and anomaly report into
// spending advice. A generative model writes the advice when one is
// configured; otherwise, or when the model fails, a deterministic summary is
// returned instead.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Source says who produced a report.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Timeframe is the window the model is asked to analyse.
type Timeframe string

const (
	Week    Timeframe = "week"
	Month   Timeframe = "month"
	Quarter Timeframe = "quarter"
)

// ParseTimeframe maps a query value to a Timeframe. Unknown values mean Month.
func ParseTimeframe(s string) Timeframe {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case Week, Quarter:
		return tf
	}
	return Month
}

func (t Timeframe) start(today civil.Date) civil.Date {
	switch t {
	case Week:
		return today.AddDays(-7)
	case Quarter:
		return civil.Date{Year: today.Year, Month: (today.Month-1)/3*3 + 1, Day: 1}
	}
	return civil.Date{Year: today.Year, Month: today.Month, Day: 1}
}

// Model generates a JSON document from a system instruction and a prompt.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// AnomalyDetector produces the anomaly report the insights are built on.
type AnomalyDetector interface {
	Detect(ctx context.Context, userID string, opts anomaly.Options) (*anomaly.Report, error)
}

// CategoryShare is one category's slice of the analysed spending.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int64           `json:"percentage"`
}

// SpendingInsights is the advice document.
type SpendingInsights struct {
	Summary          string          `json:"summary"`
	TopCategories    []CategoryShare `json:"topCategories"`
	Trends           []string        `json:"trends"`
	BudgetAnalysis   string          `json:"budgetAnalysis"`
	Recommendations  []string        `json:"recommendations"`
	RiskAreas        []string        `json:"riskAreas"`
	Opportunities    []string        `json:"opportunities"`
	SavingsPotential decimal.Decimal `json:"savingsPotential"`
}

// BudgetRecommendation suggests a monthly limit for one category.
type BudgetRecommendation struct {
	Category          string          `json:"category"`
	RecommendedAmount decimal.Decimal `json:"recommendedAmount"`
	Reasoning         string          `json:"reasoning"`
}

// BudgetPlan is a set of suggested category limits.
type BudgetPlan struct {
	RecommendedBudgets        []BudgetRecommendation `json:"recommendedBudgets"`
	TotalBudgetRecommendation decimal.Decimal        `json:"totalBudgetRecommendation"`
}

// Metadata describes how a report was produced.
type Metadata struct {
	Timeframe        Timeframe `json:"timeframe,omitempty"`
	TransactionCount int       `json:"transactionCount"`
	AnomalyCount     int       `json:"anomalyCount"`
	AIEnabled        bool      `json:"aiEnabled"`
	Source           Source    `json:"source"`
}

// SpendingReport is returned by Service.Spending.
type SpendingReport struct {
	Insights *SpendingInsights `json:"insights"`
	Metadata Metadata          `json:"metadata"`
}

// BudgetReport is returned by Service.Budgets.
type BudgetReport struct {
	Recommendations *BudgetPlan `json:"recommendations"`
	Metadata        Metadata    `json:"metadata"`
}

// Service builds insight reports for a user.
type Service struct {
	transactions   store.TransactionRepository
	detector       AnomalyDetector
	anomalyOpts    anomaly.Options
	model          Model
	now            func() time.Time
	quotaExhausted atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithModel enables model-written reports. A nil model keeps the fallback.
func WithModel(m Model) Option {
	return func(s *Service) {
		s.model = m
	}
}

// WithClock overrides the clock used to decide "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithAnomalyOptions sets the window and threshold of the underlying anomaly report.
func WithAnomalyOptions(opts anomaly.Options) Option {
	return func(s *Service) {
		s.anomalyOpts = opts
	}
}

// NewService creates a Service reading history from repo.
func NewService(repo store.TransactionRepository, detector AnomalyDetector, opts ...Option) *Service {
	s := &Service{
		transactions: repo,
		detector:     detector,
		anomalyOpts:  anomaly.DefaultOptions(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelEnabled reports whether the next report will be requested from the model.
func (s *Service) ModelEnabled() bool {
	return s.model != nil && !s.quotaExhausted.Load()
}

// Spending returns spending insights for the user. Model failures are logged
// and answered with the fallback report, never returned.
func (s *Service) Spending(ctx context.Context, userID string, tf Timeframe) (*SpendingReport, error) {
	txs, report, err := s.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Service.Spending: %w", err)
	}

	today := civil.DateOf(s.now())
	result := &SpendingReport{Metadata: s.metadata(tf, txs, report)}

	if s.ModelEnabled() {
		data := prepareSpendingData(txs, report, tf, today)
		var insights SpendingInsights
		err := s.generate(ctx, spendingSystemPrompt, spendingPrompt(data), &insights)
		if err == nil {
			result.Insights = &insights
			result.Metadata.Source = SourceModel
			return result, nil
		}
		s.handleModelError(ctx, err, "spending insights")
	}

	result.Insights = fallbackInsights(txs, report, today)
	return result, nil
}

// Budgets returns suggested category limits for the user.
func (s *Service) Budgets(ctx context.Context, userID string) (*BudgetReport, error) {
	txs, report, err := s.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Service.Budgets: %w", err)
	}

	today := civil.DateOf(s.now())
	result := &BudgetReport{Metadata: s.metadata("", txs, report)}

	if s.ModelEnabled() {
		spending := categorySpending(txs, recentWindowStart(today))
		var plan BudgetPlan
		err := s.generate(ctx, budgetSystemPrompt, budgetPrompt(spending), &plan)
		if err == nil {
			result.Recommendations = &plan
			result.Metadata.Source = SourceModel
			return result, nil
		}
		s.handleModelError(ctx, err, "budget recommendations")
	}

	result.Recommendations = fallbackBudgets(txs, today)
	return result, nil
}

func (s *Service) load(ctx context.Context, userID string) ([]*domain.Transaction, *anomaly.Report, error) {
	txs, err := s.transactions.FindTransactionsByUser(ctx, userID, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("loading transactions: %w", err)
	}
	report, err := s.detector.Detect(ctx, userID, s.anomalyOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting anomalies: %w", err)
	}
	return txs, report, nil
}

func (s *Service) metadata(tf Timeframe, txs []*domain.Transaction, report *anomaly.Report) Metadata {
	return Metadata{
		Timeframe:        tf,
		TransactionCount: len(txs),
		AnomalyCount:     len(report.AmountAnomalies) + len(report.UnusualPatterns),
		AIEnabled:        s.model != nil,
		Source:           SourceFallback,
	}
}

func (s *Service) generate(ctx context.Context, system, prompt string, out interface{}) error {
	raw, err := s.model.Generate(ctx, system, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), out); err != nil {
		return fmt.Errorf("unmarshal model response: %w", err)
	}
	return nil
}

func (s *Service) handleModelError(ctx context.Context, err error, what string) {
	log := logger.FromContext(ctx)
	if isQuotaError(err) {
		if s.quotaExhausted.CompareAndSwap(false, true) {
			log.Warn().Err(err).Msg("Model quota exhausted, switching to fallback insights")
		}
		return
	}
	log.Warn().Err(err).Str("report", what).Msg("Model unavailable, using fallback insights")
}

// cleanModelJSON strips Markdown fences and any text around the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
