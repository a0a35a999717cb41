package pipeline

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

var duplicateAmountTolerance = decimal.New(1, -2)

// DuplicateDetector flags candidates that already exist in a user's history.
type DuplicateDetector struct {
	transactions store.TransactionRepository
}

// NewDuplicateDetector creates a detector reading history from repo.
func NewDuplicateDetector(repo store.TransactionRepository) *DuplicateDetector {
	return &DuplicateDetector{transactions: repo}
}

// Flag annotates each candidate with IsDuplicate, preserving input order.
// The user's full history is loaded once and bucketed by date.
func (d *DuplicateDetector) Flag(ctx context.Context, userID string, candidates []CategorizedCandidate) ([]FlaggedCandidate, error) {
	history, err := d.transactions.FindTransactionsByUser(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("DuplicateDetector.Flag: loading history: %w", err)
	}

	byDate := make(map[civil.Date][]*domain.Transaction, len(history))
	for _, tx := range history {
		byDate[tx.Date] = append(byDate[tx.Date], tx)
	}

	flagged := make([]FlaggedCandidate, len(candidates))
	for i, c := range candidates {
		flagged[i] = FlaggedCandidate{CategorizedCandidate: c}
		for _, existing := range byDate[c.Date] {
			if IsDuplicateOf(existing, c.CandidateTransaction) {
				flagged[i].IsDuplicate = true
				break
			}
		}
	}
	return flagged, nil
}

// IsDuplicateOf applies the matching rule: amounts within one cent, the same
// calendar date, and similar descriptions. Descriptions are similar when both
// are empty, or when either one contains the first 20 characters of the
// other, ignoring case. A shorter bank description ("Grocery Store") thus
// matches a longer one ("Grocery Store Purchase") in both directions.
func IsDuplicateOf(existing *domain.Transaction, candidate CandidateTransaction) bool {
	if existing.Amount.Sub(candidate.Amount).Abs().GreaterThanOrEqual(duplicateAmountTolerance) {
		return false
	}
	if existing.Date != candidate.Date {
		return false
	}

	existingDesc := strings.ToLower(existing.Description)
	candidateDesc := strings.ToLower(candidate.Description)
	if existingDesc == "" && candidateDesc == "" {
		return true
	}
	if existingDesc == "" || candidateDesc == "" {
		return false
	}
	return strings.Contains(existingDesc, descriptionPrefix(candidateDesc)) ||
		strings.Contains(candidateDesc, descriptionPrefix(existingDesc))
}

func descriptionPrefix(s string) string {
	runes := []rune(s)
	if len(runes) > descriptionPrefixLen {
		runes = runes[:descriptionPrefixLen]
	}
	return string(runes)
}
