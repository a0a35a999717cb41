package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/statement-insights/internal/domain"
)

type CategoryRow struct {
	CategoryID string `bigquery:"category_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	Name       string `bigquery:"name"`        // REQUIRED, unique per user
	Type       string `bigquery:"type"`        // REQUIRED: income | expense

	Color bigquery.NullString `bigquery:"color"` // NULLABLE
	Icon  bigquery.NullString `bigquery:"icon"`  // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func newCategoryRow(id string, in domain.NewCategory, now time.Time) *CategoryRow {
	return &CategoryRow{
		CategoryID: id,
		UserID:     in.UserID,
		Name:       in.Name,
		Type:       string(in.Type),
		Color:      nullString(in.Color),
		Icon:       nullString(in.Icon),
		CreatedTS:  now.UTC(),
	}
}

func (r *CategoryRow) toDomain() *domain.Category {
	return &domain.Category{
		ID:        r.CategoryID,
		UserID:    r.UserID,
		Name:      r.Name,
		Type:      domain.TransactionType(r.Type),
		Color:     r.Color.StringVal,
		Icon:      r.Icon.StringVal,
		CreatedAt: r.CreatedTS,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
