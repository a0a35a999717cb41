package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

var (
	categoriesBucket    = []byte("categories")
	categoryNamesBucket = []byte("category_names")
	transactionsBucket  = []byte("transactions")
)

// Store is an embedded, file-backed store.Store.
//
// Transactions live in one nested bucket per user keyed by
// "YYYY-MM-DD/<created nanos>/<id>", so a cursor walk yields date order and a
// date range is a Seek plus a bounded scan.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("Open: opening boltdb at %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{categoriesBucket, categoryNamesBucket, transactionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindTransactionsByUser implements store.TransactionRepository.
func (s *Store) FindTransactionsByUser(ctx context.Context, userID string, dateRange *domain.DateRange) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		userBucket := tx.Bucket(transactionsBucket).Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}
		categories := tx.Bucket(categoriesBucket)

		c := userBucket.Cursor()
		var k, v []byte
		var end []byte
		if dateRange != nil {
			end = []byte(dateRange.End.String())
			k, v = c.Seek([]byte(dateRange.Start.String()))
		} else {
			k, v = c.First()
		}
		for ; k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k[:len(end)], end) > 0 {
				break
			}

			var t domain.Transaction
			if err := decode(v, &t); err != nil {
				return fmt.Errorf("decoding transaction %s: %w", k, err)
			}
			if t.CategoryID != "" {
				if raw := categories.Get([]byte(t.CategoryID)); raw != nil {
					var cat domain.Category
					if err := decode(raw, &cat); err != nil {
						return fmt.Errorf("decoding category %s: %w", t.CategoryID, err)
					}
					t.CategoryName = cat.Name
				}
			}
			txs = append(txs, &t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByUser: %w", err)
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

	t := &domain.Transaction{
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
		CreatedAt:   s.now().UTC(),
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		userBucket, err := tx.Bucket(transactionsBucket).CreateBucketIfNotExists([]byte(in.UserID))
		if err != nil {
			return err
		}
		val, err := encode(t)
		if err != nil {
			return err
		}
		return userBucket.Put(transactionKey(t), val)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	return t, nil
}

// FindCategoriesByUser implements store.CategoryRepository.
func (s *Store) FindCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	var cats []*domain.Category
	err := s.db.View(func(tx *bolt.Tx) error {
		names := tx.Bucket(categoryNamesBucket).Bucket([]byte(userID))
		if names == nil {
			return nil
		}
		categories := tx.Bucket(categoriesBucket)
		return names.ForEach(func(name, id []byte) error {
			var cat domain.Category
			if err := decode(categories.Get(id), &cat); err != nil {
				return fmt.Errorf("decoding category %s: %w", name, err)
			}
			cats = append(cats, &cat)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("FindCategoriesByUser: %w", err)
	}

	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

// CreateCategory implements store.CategoryRepository. The name lookup and the
// insert share one write transaction, which bolt serialises.
func (s *Store) CreateCategory(ctx context.Context, in domain.NewCategory) (*domain.Category, error) {
	if in.UserID == "" || in.Name == "" {
		return nil, fmt.Errorf("CreateCategory: user ID and name are required")
	}

	var result domain.Category
	err := s.db.Update(func(tx *bolt.Tx) error {
		names, err := tx.Bucket(categoryNamesBucket).CreateBucketIfNotExists([]byte(in.UserID))
		if err != nil {
			return err
		}
		categories := tx.Bucket(categoriesBucket)

		if id := names.Get([]byte(in.Name)); id != nil {
			return decode(categories.Get(id), &result)
		}

		result = domain.Category{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			Name:      in.Name,
			Type:      in.Type,
			Color:     in.Color,
			Icon:      in.Icon,
			CreatedAt: s.now().UTC(),
		}
		val, err := encode(&result)
		if err != nil {
			return err
		}
		if err := categories.Put([]byte(result.ID), val); err != nil {
			return err
		}
		return names.Put([]byte(result.Name), []byte(result.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	return &result, nil
}

func transactionKey(t *domain.Transaction) []byte {
	return []byte(fmt.Sprintf("%s/%020d/%s", t.Date, t.CreatedAt.UnixNano(), t.ID))
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	if data == nil {
		return store.ErrNotFound
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

var _ store.Store = (*Store)(nil)
