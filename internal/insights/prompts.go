package insights

import (
	"encoding/json"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/domain"
)

const (
	spendingSystemPrompt = "You are a financial advisor specializing in personal finance analysis. " +
		"Provide actionable insights based on spending data."
	budgetSystemPrompt = "You are a financial planner who helps create realistic and effective budgets " +
		"based on spending patterns."

	jsonOnlyRules = "Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
)

// spendingData is the aggregate the model sees. Raw descriptions stay local.
type spendingData struct {
	Timeframe        Timeframe                  `json:"timeframe"`
	Period           string                     `json:"period"`
	TotalSpent       decimal.Decimal            `json:"totalSpent"`
	TransactionCount int                        `json:"transactionCount"`
	CategorySpending map[string]decimal.Decimal `json:"categorySpending"`
	Anomalies        []string                   `json:"anomalies,omitempty"`
	Patterns         []string                   `json:"patterns,omitempty"`
}

func prepareSpendingData(txs []*domain.Transaction, report *anomaly.Report, tf Timeframe, today civil.Date) spendingData {
	start := tf.start(today)
	data := spendingData{
		Timeframe:        tf,
		Period:           start.String() + " to " + today.String(),
		TotalSpent:       decimal.Zero,
		CategorySpending: categorySpending(txs, start),
	}
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypeExpense && !tx.Date.Before(start) {
			data.TotalSpent = data.TotalSpent.Add(tx.Amount)
			data.TransactionCount++
		}
	}
	for _, a := range report.AmountAnomalies {
		data.Anomalies = append(data.Anomalies, a.Message)
	}
	for _, p := range report.UnusualPatterns {
		data.Patterns = append(data.Patterns, p.Message)
	}
	return data
}

func spendingPrompt(data spendingData) string {
	payload, _ := json.MarshalIndent(data, "", "  ")
	return "Analyze the following personal spending data and provide insights and recommendations.\n\n" +
		"Spending data:\n" + string(payload) + "\n\n" +
		"The anomalies and patterns lists come from a statistical scan of the same history.\n\n" +
		"Respond with a JSON object of this shape:\n" +
		"{\n" +
		"  \"summary\": \"Brief overview of spending patterns\",\n" +
		"  \"topCategories\": [{\"category\": \"name\", \"amount\": number, \"percentage\": number}],\n" +
		"  \"trends\": [\"trend insight\"],\n" +
		"  \"budgetAnalysis\": \"analysis of budget usage\",\n" +
		"  \"recommendations\": [\"recommendation\"],\n" +
		"  \"riskAreas\": [\"risk area\"],\n" +
		"  \"opportunities\": [\"opportunity\"],\n" +
		"  \"savingsPotential\": number\n" +
		"}\n\n" + jsonOnlyRules
}

func budgetPrompt(spending map[string]decimal.Decimal) string {
	payload, _ := json.MarshalIndent(spending, "", "  ")
	return "Based on the following spending by category over the last three months, suggest monthly budget limits.\n\n" +
		"Spending by category:\n" + string(payload) + "\n\n" +
		"Respond with a JSON object of this shape:\n" +
		"{\n" +
		"  \"recommendedBudgets\": [{\"category\": \"name\", \"recommendedAmount\": number, \"reasoning\": \"why this amount\"}],\n" +
		"  \"totalBudgetRecommendation\": number\n" +
		"}\n\n" + jsonOnlyRules
}
