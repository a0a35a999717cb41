package insights

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/domain"
)

const (
	recentMonths      = 3
	topCategoryLimit  = 5
	budgetLimit       = 10
	riskAnomalyLimit  = 3
	uncategorizedName = "Uncategorized"
)

var (
	hundred        = decimal.NewFromInt(100)
	savingsRate    = decimal.RequireFromString("0.1")
	budgetBuffer   = decimal.RequireFromString("1.1")
	totalBudgetMul = decimal.RequireFromString("1.2")
)

// recentWindowStart is the first day of the month three months before today.
func recentWindowStart(today civil.Date) civil.Date {
	return civil.DateOf(time.Date(today.Year, today.Month-recentMonths, 1, 0, 0, 0, 0, time.UTC))
}

// categorySpending sums expenses dated on or after start by category name.
func categorySpending(txs []*domain.Transaction, start civil.Date) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != domain.TransactionTypeExpense || tx.Date.Before(start) {
			continue
		}
		name := tx.CategoryName
		if name == "" {
			name = uncategorizedName
		}
		totals[name] = totals[name].Add(tx.Amount)
	}
	return totals
}

// rankCategories orders categories by amount, largest first, then by name.
func rankCategories(spending map[string]decimal.Decimal) []CategoryShare {
	shares := make([]CategoryShare, 0, len(spending))
	for name, amount := range spending {
		shares = append(shares, CategoryShare{Category: name, Amount: amount})
	}
	sort.Slice(shares, func(i, j int) bool {
		if c := shares[i].Amount.Cmp(shares[j].Amount); c != 0 {
			return c > 0
		}
		return shares[i].Category < shares[j].Category
	})
	return shares
}

func sumShares(shares []CategoryShare) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func fallbackInsights(txs []*domain.Transaction, report *anomaly.Report, today civil.Date) *SpendingInsights {
	ranked := rankCategories(categorySpending(txs, recentWindowStart(today)))
	total := sumShares(ranked)

	top := ranked
	if len(top) > topCategoryLimit {
		top = top[:topCategoryLimit]
	}
	for i := range top {
		if total.IsPositive() {
			top[i].Percentage = top[i].Amount.Div(total).Mul(hundred).Round(0).IntPart()
		}
	}

	insights := &SpendingInsights{
		Summary:        fmt.Sprintf("Basic analysis of %d transactions totaling %s", len(txs), total.StringFixed(2)),
		TopCategories:  top,
		BudgetAnalysis: "No budgets found for analysis",
		Recommendations: []string{
			"Track spending in top categories more closely",
			"Consider setting budgets for major expense categories",
			"Review monthly spending patterns",
		},
		Opportunities: []string{
			"Configure a model API key for detailed recommendations",
			"Set up budget tracking for better control",
		},
		SavingsPotential: total.Mul(savingsRate).Round(0),
	}

	for _, p := range report.UnusualPatterns {
		insights.Trends = append(insights.Trends, p.Message)
	}
	insights.Trends = append(insights.Trends,
		"Analysis based on recent spending patterns",
		"Consider reviewing high-spending categories",
	)

	for i, a := range report.AmountAnomalies {
		if i == riskAnomalyLimit {
			break
		}
		insights.RiskAreas = append(insights.RiskAreas, a.Message)
	}
	for _, c := range report.CategoryAnalysis {
		if c.HasAnomaly {
			insights.RiskAreas = append(insights.RiskAreas,
				fmt.Sprintf("Recent %s spending is out of line with its history", c.Category))
		}
	}
	insights.RiskAreas = append(insights.RiskAreas,
		"High spending categories need monitoring",
		"Consider budget limits for major expenses",
	)

	return insights
}

func fallbackBudgets(txs []*domain.Transaction, today civil.Date) *BudgetPlan {
	ranked := rankCategories(categorySpending(txs, recentWindowStart(today)))

	plan := &BudgetPlan{
		RecommendedBudgets:        []BudgetRecommendation{},
		TotalBudgetRecommendation: sumShares(ranked).Mul(totalBudgetMul).Round(0),
	}
	for i, share := range ranked {
		if i == budgetLimit {
			break
		}
		plan.RecommendedBudgets = append(plan.RecommendedBudgets, BudgetRecommendation{
			Category:          share.Category,
			RecommendedAmount: share.Amount.Mul(budgetBuffer).Round(0),
			Reasoning:         "Based on recent spending plus a 10% buffer",
		})
	}
	return plan
}
