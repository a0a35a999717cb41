package anomaly

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Severity grades a finding.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AmountAnomalyType says which side of the mean a flagged amount falls on.
type AmountAnomalyType string

const (
	UnusuallyHigh AmountAnomalyType = "unusually_high"
	UnusuallyLow  AmountAnomalyType = "unusually_low"
)

// PatternType identifies a pattern detector finding.
type PatternType string

const (
	WeekendSpendingSpike      PatternType = "weekend_spending_spike"
	MonthlySpendingIncrease   PatternType = "monthly_spending_increase"
	TransactionFrequencySpike PatternType = "transaction_frequency_spike"
)

// Category status values.
const (
	StatusNormal          = "normal"
	StatusAnomalyDetected = "anomaly_detected"
)

// Report is computed on demand from transaction history and never stored.
type Report struct {
	AmountAnomalies  []AmountAnomaly `json:"amountAnomalies"`
	Summary          Summary         `json:"summary"`
	CategoryAnalysis []CategoryStats `json:"categoryAnalysis"`
	UnusualPatterns  []Pattern       `json:"unusualPatterns"`
}

// AmountAnomaly is a single expense whose z-score crossed the threshold.
type AmountAnomaly struct {
	ID          string            `json:"id"`
	Date        civil.Date        `json:"date"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"`
	Category    string            `json:"category,omitempty"`
	ZScore      float64           `json:"zScore"`
	Type        AmountAnomalyType `json:"type"`
	Severity    Severity          `json:"severity"`
	Message     string            `json:"message"`
}

// Summary describes the analysed window.
type Summary struct {
	Analyzed          int     `json:"analyzed"`
	AnomaliesFound    int     `json:"anomaliesFound"`
	AverageExpense    float64 `json:"averageExpense"`
	StandardDeviation float64 `json:"standardDeviation"`
	Threshold         float64 `json:"threshold"`
	Period            Period  `json:"period"`
	Message           string  `json:"message,omitempty"`
}

// Period is the inclusive lookback window.
type Period struct {
	StartDate civil.Date `json:"startDate"`
	EndDate   civil.Date `json:"endDate"`
	Days      int        `json:"days"`
}

// CategoryStats summarises one category's expenses.
type CategoryStats struct {
	Category          string  `json:"category"`
	TransactionCount  int     `json:"transactionCount"`
	AverageAmount     float64 `json:"averageAmount"`
	TotalSpent        float64 `json:"totalSpent"`
	MaxTransaction    float64 `json:"maxTransaction"`
	StandardDeviation float64 `json:"standardDeviation"`
	HasAnomaly        bool    `json:"hasAnomaly"`
	Status            string  `json:"status"`
}

// Pattern is a finding from one of the temporal detectors.
type Pattern struct {
	Type     PatternType        `json:"type"`
	Severity Severity           `json:"severity"`
	Message  string             `json:"message"`
	Data     map[string]float64 `json:"data"`
}
