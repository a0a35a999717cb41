package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/insights"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

var (
	headerStyle  = color.New(color.Bold)
	dateStyle    = color.New(color.FgYellow)
	incomeStyle  = color.New(color.FgGreen)
	expenseStyle = color.New(color.FgRed)
	dupStyle     = color.New(color.BgBlue, color.FgWhite)
	highStyle    = color.New(color.BgRed, color.FgWhite)
	mediumStyle  = color.New(color.BgYellow, color.FgBlack)
	mutedStyle   = color.New(color.Faint)
)

func amountStyle(t domain.TransactionType) *color.Color {
	if t == domain.TransactionTypeIncome {
		return incomeStyle
	}
	return expenseStyle
}

func severityStyle(s anomaly.Severity) *color.Color {
	if s == anomaly.SeverityHigh {
		return highStyle
	}
	return mediumStyle
}

func printPreview(w io.Writer, p *pipeline.Preview) {
	for _, c := range p.Transactions {
		dateStyle.Fprintf(w, "%10s ", c.Date)
		fmt.Fprintf(w, "%-40.40s ", c.Description)
		amountStyle(c.Type).Fprintf(w, "%10s %-7s ", c.Amount.StringFixed(2), c.Type)
		category := c.SuggestedCategory
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%-15s", category)
		if c.IsDuplicate {
			dupStyle.Fprint(w, " DUPLICATE ")
		}
		fmt.Fprintln(w)
	}

	s := p.Summary
	headerStyle.Fprintf(w, "\n%d transactions", s.Total)
	fmt.Fprintf(w, ": %d income, %d expenses, %d duplicates, %d categorized, %d uncategorized\n",
		s.Income, s.Expenses, s.Duplicates, s.Categorized, s.Uncategorized)
	fmt.Fprintf(w, "Net amount: %s\n", s.TotalAmount.StringFixed(2))
}

func printImportResult(w io.Writer, r *pipeline.ImportResult) {
	for _, row := range r.Skipped {
		mutedStyle.Fprintf(w, "skipped  line %d: %s (%s)\n", row.LineNumber, row.Description, row.Reason)
	}
	for _, row := range r.Errored {
		expenseStyle.Fprintf(w, "error    line %d: %s: %s\n", row.LineNumber, row.Description, row.Error)
	}

	s := r.Summary
	headerStyle.Fprintf(w, "Imported %d of %d transactions", s.Imported, s.Total)
	fmt.Fprintf(w, " (%d skipped, %d errored)\n", s.Skipped, s.Errored)
}

func printReport(w io.Writer, r *anomaly.Report) {
	s := r.Summary
	headerStyle.Fprintf(w, "Spending analysis %s to %s", s.Period.StartDate, s.Period.EndDate)
	fmt.Fprintf(w, " (%d days, threshold %.1f)\n", s.Period.Days, s.Threshold)
	if s.Message != "" {
		fmt.Fprintln(w, s.Message)
		return
	}
	fmt.Fprintf(w, "%d expenses analyzed, average %.2f, standard deviation %.2f\n",
		s.Analyzed, s.AverageExpense, s.StandardDeviation)

	if len(r.AmountAnomalies) == 0 {
		fmt.Fprintln(w, "No unusual transactions found")
	} else {
		headerStyle.Fprintf(w, "\nUnusual transactions (%d)\n", len(r.AmountAnomalies))
		for _, a := range r.AmountAnomalies {
			severityStyle(a.Severity).Fprintf(w, " %-6s ", a.Severity)
			dateStyle.Fprintf(w, " %10s ", a.Date)
			fmt.Fprintf(w, "%-30.30s %10s  z=%.2f\n", a.Description, a.Amount.StringFixed(2), a.ZScore)
		}
	}

	if len(r.CategoryAnalysis) > 0 {
		headerStyle.Fprintln(w, "\nCategories")
		for _, c := range r.CategoryAnalysis {
			fmt.Fprintf(w, "  %-20s %4d tx  total %10.2f  avg %8.2f", c.Category, c.TransactionCount, c.TotalSpent, c.AverageAmount)
			if c.HasAnomaly {
				highStyle.Fprint(w, " ANOMALY ")
			}
			fmt.Fprintln(w)
		}
	}

	if len(r.UnusualPatterns) > 0 {
		headerStyle.Fprintln(w, "\nPatterns")
		for _, p := range r.UnusualPatterns {
			severityStyle(p.Severity).Fprintf(w, " %-6s ", p.Severity)
			fmt.Fprintf(w, " %s\n", p.Message)
		}
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	headerStyle.Fprintf(w, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func printInsights(w io.Writer, r *insights.SpendingReport) {
	ins := r.Insights
	headerStyle.Fprintln(w, ins.Summary)
	mutedStyle.Fprintf(w, "source: %s\n", r.Metadata.Source)

	if len(ins.TopCategories) > 0 {
		headerStyle.Fprintln(w, "\nTop categories")
		for _, c := range ins.TopCategories {
			fmt.Fprintf(w, "  %-20s %10s  %3d%%\n", c.Category, c.Amount.StringFixed(2), c.Percentage)
		}
	}
	printList(w, "Trends", ins.Trends)
	printList(w, "Risk areas", ins.RiskAreas)
	printList(w, "Recommendations", ins.Recommendations)
	printList(w, "Opportunities", ins.Opportunities)
	fmt.Fprintf(w, "\nEstimated savings potential: %s\n", ins.SavingsPotential.StringFixed(2))
}

func printBudgets(w io.Writer, r *insights.BudgetReport) {
	headerStyle.Fprintln(w, "Suggested monthly budgets")
	mutedStyle.Fprintf(w, "source: %s\n", r.Metadata.Source)
	for _, b := range r.Recommendations.RecommendedBudgets {
		fmt.Fprintf(w, "  %-20s %10s  %s\n", b.Category, b.RecommendedAmount.StringFixed(2), b.Reasoning)
	}
	fmt.Fprintf(w, "Total: %s\n", r.Recommendations.TotalBudgetRecommendation.StringFixed(2))
}
