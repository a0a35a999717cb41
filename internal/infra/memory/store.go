package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use. Data is lost when the process exits.
type Store struct {
	mu           sync.RWMutex
	categories   map[string]*domain.Category
	byName       map[string]map[string]string // user -> name -> category ID
	transactions map[string][]*domain.Transaction
	now          func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		categories:   make(map[string]*domain.Category),
		byName:       make(map[string]map[string]string),
		transactions: make(map[string][]*domain.Transaction),
		now:          time.Now,
	}
}

// FindTransactionsByUser implements store.TransactionRepository.
func (s *Store) FindTransactionsByUser(ctx context.Context, userID string, dateRange *domain.DateRange) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.transactions[userID] {
		if dateRange != nil && !dateRange.Contains(tx.Date) {
			continue
		}
		txCopy := *tx
		if cat, ok := s.categories[tx.CategoryID]; ok {
			txCopy.CategoryName = cat.Name
		}
		result = append(result, &txCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// CreateTransaction implements store.TransactionRepository.
func (s *Store) CreateTransaction(ctx context.Context, in domain.NewTransaction) (*domain.Transaction, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("CreateTransaction: user ID is required")
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("CreateTransaction: amount must be positive, got %s", in.Amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Type:        in.Type,
		Description: in.Description,
		Date:        in.Date,
		IsRecurring: in.IsRecurring,
		Notes:       in.Notes,
		CreatedAt:   s.now(),
	}
	if cat, ok := s.categories[in.CategoryID]; ok {
		tx.CategoryName = cat.Name
	}
	s.transactions[in.UserID] = append(s.transactions[in.UserID], tx)

	txCopy := *tx
	return &txCopy, nil
}

// FindCategoriesByUser implements store.CategoryRepository.
func (s *Store) FindCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Category
	for _, id := range s.byName[userID] {
		catCopy := *s.categories[id]
		result = append(result, &catCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// CreateCategory implements store.CategoryRepository. An existing category
// with the same (user, name) is returned unchanged.
func (s *Store) CreateCategory(ctx context.Context, in domain.NewCategory) (*domain.Category, error) {
	if in.UserID == "" || in.Name == "" {
		return nil, fmt.Errorf("CreateCategory: user ID and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.byName[in.UserID]
	if names == nil {
		names = make(map[string]string)
		s.byName[in.UserID] = names
	}
	if id, ok := names[in.Name]; ok {
		catCopy := *s.categories[id]
		return &catCopy, nil
	}

	cat := &domain.Category{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      in.Name,
		Type:      in.Type,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: s.now(),
	}
	s.categories[cat.ID] = cat
	names[cat.Name] = cat.ID

	catCopy := *cat
	return &catCopy, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
