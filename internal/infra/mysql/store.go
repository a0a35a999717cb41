package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Store implements store.Store for MySQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NormalizeDSN parses dsn and forces parseTime with UTC so DATE and DATETIME
// columns scan into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("NormalizeDSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: connecting to database: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an open database handle. Close closes it.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindTransactionsByUser implements store.TransactionRepository.
func (s *Store) FindTransactionsByUser(ctx context.Context, userID string, dateRange *domain.DateRange) ([]*domain.Transaction, error) {
	var query strings.Builder
	query.WriteString(`SELECT t.id, t.user_id, t.category_id, c.name, t.amount, t.currency, t.type, t.description, t.transaction_date, t.is_recurring, t.notes, t.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`)
	args := []interface{}{userID}
	if dateRange != nil {
		query.WriteString(` AND t.transaction_date BETWEEN ? AND ?`)
		args = append(args, dateRange.Start.String(), dateRange.End.String())
	}
	query.WriteString(` ORDER BY t.transaction_date, t.created_at`)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByUser: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var (
			tx           domain.Transaction
			categoryID   sql.NullString
			categoryName sql.NullString
			notes        sql.NullString
			txType       string
			date         time.Time
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &categoryID, &categoryName, &tx.Amount, &tx.Currency,
			&txType, &tx.Description, &date, &tx.IsRecurring, &notes, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("FindTransactionsByUser: scan error: %w", err)
		}
		tx.CategoryID = categoryID.String
		tx.CategoryName = categoryName.String
		tx.Notes = notes.String
		tx.Type = domain.TransactionType(txType)
		tx.Date = civil.DateOf(date)
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindTransactionsByUser: rows iteration error: %w", err)
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
		CreatedAt:   s.now().UTC(),
	}

	query := `INSERT INTO transactions (id, user_id, category_id, amount, currency, type, description, transaction_date, is_recurring, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, tx.ID, tx.UserID, nullIfEmpty(tx.CategoryID), tx.Amount, tx.Currency,
		string(tx.Type), tx.Description, tx.Date.String(), tx.IsRecurring, nullIfEmpty(tx.Notes), tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	return tx, nil
}

// FindCategoriesByUser implements store.CategoryRepository.
func (s *Store) FindCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	query := "SELECT id, user_id, name, type, color, icon, created_at FROM categories WHERE user_id = ? ORDER BY name"
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("FindCategoriesByUser: %w", err)
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("FindCategoriesByUser: scan error: %w", err)
		}
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindCategoriesByUser: rows iteration error: %w", err)
	}
	return cats, nil
}

// CreateCategory implements store.CategoryRepository. The unique key on
// (user_id, name) turns a concurrent duplicate insert into a no-op, and the
// read-back returns whichever row exists.
func (s *Store) CreateCategory(ctx context.Context, in domain.NewCategory) (*domain.Category, error) {
	if in.UserID == "" || in.Name == "" {
		return nil, fmt.Errorf("CreateCategory: user ID and name are required")
	}

	insert := `INSERT INTO categories (id, user_id, name, type, color, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`
	_, err := s.db.ExecContext(ctx, insert, uuid.NewString(), in.UserID, in.Name, string(in.Type), nullIfEmpty(in.Color), nullIfEmpty(in.Icon), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}

	query := "SELECT id, user_id, name, type, color, icon, created_at FROM categories WHERE user_id = ? AND name = ?"
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, in.UserID, in.Name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("CreateCategory: reading back %q: %w", in.Name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("CreateCategory: reading back %q: %w", in.Name, err)
	}
	return cat, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row scanner) (*domain.Category, error) {
	var (
		cat         domain.Category
		txType      string
		color, icon sql.NullString
	)
	if err := row.Scan(&cat.ID, &cat.UserID, &cat.Name, &txType, &color, &icon, &cat.CreatedAt); err != nil {
		return nil, err
	}
	cat.Type = domain.TransactionType(txType)
	cat.Color = color.String
	cat.Icon = icon.String
	return &cat, nil
}

// nullIfEmpty maps an empty optional column to SQL NULL.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ store.Store = (*Store)(nil)
