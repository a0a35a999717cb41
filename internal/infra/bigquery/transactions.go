package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // read-only, joined from categories

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, always positive
	Currency string   `bigquery:"currency"` // REQUIRED
	Type     string   `bigquery:"type"`     // REQUIRED: income | expense

	Description string              `bigquery:"description"` // REQUIRED
	IsRecurring bool                `bigquery:"is_recurring"`
	Notes       bigquery.NullString `bigquery:"notes"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func newTransactionRow(id string, in domain.NewTransaction, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   id,
		UserID:          in.UserID,
		CategoryID:      nullString(in.CategoryID),
		TransactionDate: in.Date,
		Amount:          in.Amount.Rat(),
		Currency:        in.Currency,
		Type:            string(in.Type),
		Description:     in.Description,
		IsRecurring:     in.IsRecurring,
		Notes:           nullString(in.Notes),
		CreatedTS:       now.UTC(),
	}
}

// Save implements bigquery.ValueSaver. The transaction ID doubles as the
// insert ID so a retried Put does not duplicate the row.
func (r *TransactionRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"transaction_id":   r.TransactionID,
		"user_id":          r.UserID,
		"category_id":      r.CategoryID,
		"transaction_date": r.TransactionDate,
		"amount":           r.Amount,
		"currency":         r.Currency,
		"type":             r.Type,
		"description":      r.Description,
		"is_recurring":     r.IsRecurring,
		"notes":            r.Notes,
		"created_ts":       r.CreatedTS,
	}
	return row, r.TransactionID, nil
}

func (r *TransactionRow) toDomain() (*domain.Transaction, error) {
	if r.Amount == nil {
		return nil, fmt.Errorf("transaction %s: missing amount", r.TransactionID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(2))
	if err != nil {
		return nil, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
	}

	return &domain.Transaction{
		ID:           r.TransactionID,
		UserID:       r.UserID,
		CategoryID:   r.CategoryID.StringVal,
		CategoryName: r.CategoryName.StringVal,
		Amount:       amount,
		Currency:     r.Currency,
		Type:         domain.TransactionType(r.Type),
		Description:  r.Description,
		Date:         r.TransactionDate,
		IsRecurring:  r.IsRecurring,
		Notes:        r.Notes.StringVal,
		CreatedAt:    r.CreatedTS,
	}, nil
}
