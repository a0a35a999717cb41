package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement. Amounts are always
// positive; the type carries the sign.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a persisted transaction owned by the store.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description"`
	Date         civil.Date      `json:"transaction_date"`
	IsRecurring  bool            `json:"is_recurring"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewTransaction holds the fields needed to create a transaction.
type NewTransaction struct {
	UserID      string
	CategoryID  string
	Amount      decimal.Decimal
	Currency    string
	Type        TransactionType
	Description string
	Date        civil.Date
	IsRecurring bool
	Notes       string
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}
