package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Importer persists flagged candidates, resolving or creating a category for
// every row. Row failures are recorded in the result and never abort the batch.
type Importer struct {
	categories   store.CategoryRepository
	transactions store.TransactionRepository
	categorizer  *Categorizer
}

// NewImporter creates an importer over the given repositories.
func NewImporter(categories store.CategoryRepository, transactions store.TransactionRepository, categorizer *Categorizer) *Importer {
	return &Importer{
		categories:   categories,
		transactions: transactions,
		categorizer:  categorizer,
	}
}

// Import persists candidates in input order. The returned error is non-nil
// only when the user's categories cannot be loaded before any row is touched.
//
// If ctx is cancelled mid-batch the rows already persisted stay persisted and
// the remaining rows are reported as errored.
func (im *Importer) Import(ctx context.Context, userID string, candidates []FlaggedCandidate, opts ImportOptions) (*ImportResult, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Logger()

	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = DefaultCurrency
	}

	existing, err := im.categories.FindCategoriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Importer.Import: loading categories: %w", err)
	}
	resolver := newCategoryResolver(userID, im.categories, existing)

	result := &ImportResult{
		Imported: []ImportedRow{},
		Skipped:  []SkippedRow{},
		Errored:  []ErroredRow{},
	}

	for i, c := range candidates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, rest := range candidates[i:] {
				result.Errored = append(result.Errored, ErroredRow{
					FlaggedCandidate: rest,
					Error:            fmt.Sprintf("import cancelled: %v", ctxErr),
				})
			}
			log.Warn().Err(ctxErr).Int("remaining", len(candidates)-i).Msg("Import cancelled")
			break
		}

		if opts.SkipDuplicates && c.IsDuplicate {
			result.Skipped = append(result.Skipped, SkippedRow{FlaggedCandidate: c, Reason: DuplicateReason})
			continue
		}

		tx, err := im.importOne(ctx, userID, c, resolver, opts)
		if err != nil {
			log.Warn().Err(err).Int("line", c.LineNumber).Msg("Failed to import row")
			result.Errored = append(result.Errored, ErroredRow{FlaggedCandidate: c, Error: err.Error()})
			continue
		}
		result.Imported = append(result.Imported, ImportedRow{Candidate: c, Transaction: tx})
	}

	result.Summary = ImportSummary{
		Total:    len(candidates),
		Imported: len(result.Imported),
		Skipped:  len(result.Skipped),
		Errored:  len(result.Errored),
	}
	return result, nil
}

func (im *Importer) importOne(ctx context.Context, userID string, c FlaggedCandidate, resolver *categoryResolver, opts ImportOptions) (*domain.Transaction, error) {
	name, color, icon := FallbackCategoryName(c.Type), fallbackCategoryColor, fallbackCategoryIcon
	if suggested, ok := im.categorizer.Categorize(c.Description); ok {
		name, color, icon = suggested, suggestedCategoryColor, suggestedCategoryIcon
	}

	categoryID, err := resolver.resolve(ctx, name, c.Type, color, icon)
	if err != nil {
		return nil, err
	}

	description := c.Description
	if description == "" {
		description = FallbackDescription
	}

	tx, err := im.transactions.CreateTransaction(ctx, domain.NewTransaction{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      c.Amount,
		Currency:    opts.DefaultCurrency,
		Type:        c.Type,
		Description: description,
		Date:        c.Date,
		IsRecurring: false,
		Notes:       ImportNotes,
	})
	if err != nil {
		return nil, err
	}
	if tx.CategoryName == "" {
		tx.CategoryName = name
	}
	return tx, nil
}

// FallbackCategoryName returns the per-user catch-all category for a type.
func FallbackCategoryName(t domain.TransactionType) string {
	if t == domain.TransactionTypeIncome {
		return FallbackIncomeCategory
	}
	return FallbackExpenseCategory
}

// categoryResolver caches category IDs by name for one import batch.
// Creation goes through the store's get-or-create so concurrent imports
// converge on a single category per (user, name).
type categoryResolver struct {
	userID string
	repo   store.CategoryRepository
	ids    map[string]string
}

func newCategoryResolver(userID string, repo store.CategoryRepository, existing []*domain.Category) *categoryResolver {
	r := &categoryResolver{
		userID: userID,
		repo:   repo,
		ids:    make(map[string]string, len(existing)),
	}
	for _, cat := range existing {
		r.ids[cat.Name] = cat.ID
	}
	return r
}

// resolve returns the ID of the user's category called name. Names are unique
// per user regardless of type, so txType only applies when the category is
// created and an existing category of the other type is reused as is.
func (r *categoryResolver) resolve(ctx context.Context, name string, txType domain.TransactionType, color, icon string) (string, error) {
	if id, ok := r.ids[name]; ok {
		return id, nil
	}

	cat, err := r.repo.CreateCategory(ctx, domain.NewCategory{
		UserID: r.userID,
		Name:   name,
		Type:   txType,
		Color:  color,
		Icon:   icon,
	})
	if err != nil {
		return "", fmt.Errorf("creating category %q: %w", name, err)
	}

	r.ids[name] = cat.ID
	return cat.ID, nil
}
