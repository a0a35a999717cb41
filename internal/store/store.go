package store

import (
	"context"
	"errors"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TransactionRepository provides an interface for transaction persistence.
type TransactionRepository interface {
	// FindTransactionsByUser returns the user's transactions ordered by date.
	// A nil range returns the full history.
	FindTransactionsByUser(ctx context.Context, userID string, dateRange *domain.DateRange) ([]*domain.Transaction, error)

	// CreateTransaction persists a new transaction and returns it with its ID.
	CreateTransaction(ctx context.Context, tx domain.NewTransaction) (*domain.Transaction, error)
}

// CategoryRepository provides an interface for category persistence.
type CategoryRepository interface {
	// FindCategoriesByUser returns all categories owned by the user.
	FindCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error)

	// CreateCategory creates a category or returns the existing one with the
	// same (user, name). Concurrent callers never produce two categories.
	CreateCategory(ctx context.Context, cat domain.NewCategory) (*domain.Category, error)
}

// Store combines the repositories with resource cleanup.
type Store interface {
	TransactionRepository
	CategoryRepository

	// Close releases any connections held by the store.
	Close() error
}
