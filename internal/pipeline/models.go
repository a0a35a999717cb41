package pipeline

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// CandidateTransaction is a parsed statement row that has not been persisted.
type CandidateTransaction struct {
	Date        civil.Date             `json:"date"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        domain.TransactionType `json:"type"`
	SourceLine  string                 `json:"rawLine"`
	LineNumber  int                    `json:"lineNumber"`
}

// CategorizedCandidate is a candidate with its keyword-suggested category.
// SuggestedCategory is empty when no rule matched.
type CategorizedCandidate struct {
	CandidateTransaction
	SuggestedCategory string `json:"suggestedCategory,omitempty"`
}

// FlaggedCandidate is a categorized candidate annotated with duplicate status.
type FlaggedCandidate struct {
	CategorizedCandidate
	IsDuplicate bool `json:"isDuplicate"`
}

// ImportOptions controls how flagged candidates are persisted.
type ImportOptions struct {
	SkipDuplicates  bool
	DefaultCurrency string
}

// DefaultImportOptions returns the options used when the caller sets none.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		SkipDuplicates:  true,
		DefaultCurrency: DefaultCurrency,
	}
}

// ImportSummary counts row outcomes. Imported + Skipped + Errored == Total.
type ImportSummary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errored  int `json:"errored"`
}

// ImportedRow pairs a candidate with the transaction it produced.
type ImportedRow struct {
	Candidate   FlaggedCandidate    `json:"candidate"`
	Transaction *domain.Transaction `json:"transaction"`
}

// SkippedRow is a candidate that was deliberately not imported.
type SkippedRow struct {
	FlaggedCandidate
	Reason string `json:"reason"`
}

// ErroredRow is a candidate whose persistence failed.
type ErroredRow struct {
	FlaggedCandidate
	Error string `json:"error"`
}

// ImportResult is the per-row outcome of an import.
type ImportResult struct {
	Summary  ImportSummary `json:"summary"`
	Imported []ImportedRow `json:"imported"`
	Skipped  []SkippedRow  `json:"skipped"`
	Errored  []ErroredRow  `json:"errored"`
}

// PreviewSummary aggregates a preview batch.
type PreviewSummary struct {
	Total         int             `json:"total"`
	Income        int             `json:"income"`
	Expenses      int             `json:"expenses"`
	Duplicates    int             `json:"duplicates"`
	Categorized   int             `json:"categorized"`
	Uncategorized int             `json:"uncategorized"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// Preview is the non-persisting view of a statement.
type Preview struct {
	Transactions []FlaggedCandidate `json:"transactions"`
	Summary      PreviewSummary     `json:"summary"`
}
