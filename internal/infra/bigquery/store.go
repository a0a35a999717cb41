package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Store is the BigQuery implementation of store.Store. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	ds     Dataset
	now    func() time.Time
}

// NewStore creates a Store with its own client for the given project and dataset.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, Dataset{ProjectID: projectID, DatasetID: datasetID}), nil
}

// NewStoreWithClient wraps an existing client. Close will close it.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, ds: ds, now: time.Now}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// FindTransactionsByUser implements store.TransactionRepository.
func (s *Store) FindTransactionsByUser(ctx context.Context, userID string, dateRange *domain.DateRange) ([]*domain.Transaction, error) {
	rows, err := QueryTransactionsByUserWithClient(ctx, s.client, s.ds, userID, dateRange)
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("FindTransactionsByUser: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// CreateTransaction implements store.TransactionRepository.
func (s *Store) CreateTransaction(ctx context.Context, in domain.NewTransaction) (*domain.Transaction, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("CreateTransaction: user ID is required")
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("CreateTransaction: amount must be positive, got %s", in.Amount)
	}

	row := newTransactionRow(uuid.NewString(), in, s.now())
	if err := InsertTransactionsWithClient(ctx, s.client, s.ds, []*TransactionRow{row}); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}

	return row.toDomain()
}

// FindCategoriesByUser implements store.CategoryRepository.
func (s *Store) FindCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	rows, err := ListCategoriesByUserWithClient(ctx, s.client, s.ds, userID)
	if err != nil {
		return nil, err
	}

	cats := make([]*domain.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, r.toDomain())
	}
	return cats, nil
}

// CreateCategory implements store.CategoryRepository.
func (s *Store) CreateCategory(ctx context.Context, in domain.NewCategory) (*domain.Category, error) {
	if in.UserID == "" || in.Name == "" {
		return nil, fmt.Errorf("CreateCategory: user ID and name are required")
	}

	row, err := MergeCategoryWithClient(ctx, s.client, s.ds, in)
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	return row.toDomain(), nil
}

var _ store.Store = (*Store)(nil)
