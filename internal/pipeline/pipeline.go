package pipeline

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

// Service is the entry point for statement previews and imports.
type Service struct {
	categorizer *Categorizer
	detector    *DuplicateDetector
	importer    *Importer
}

// NewService wires the pipeline components. A nil categorizer uses DefaultRules.
func NewService(transactions store.TransactionRepository, categories store.CategoryRepository, categorizer *Categorizer) *Service {
	if categorizer == nil {
		categorizer = NewCategorizer(DefaultRules())
	}
	return &Service{
		categorizer: categorizer,
		detector:    NewDuplicateDetector(transactions),
		importer:    NewImporter(categories, transactions, categorizer),
	}
}

// Categorizer returns the keyword categorizer used by the service.
func (s *Service) Categorizer() *Categorizer {
	return s.categorizer
}

// NewPreviewPipeline parses, categorizes and flags duplicates without persisting.
func (s *Service) NewPreviewPipeline() *Pipeline {
	return NewPipeline(
		&ParseStep{},
		&CategorizeStep{Categorizer: s.categorizer},
		&DetectDuplicatesStep{Detector: s.detector},
	)
}

// NewImportPipeline runs the preview steps and then persists the batch.
func (s *Service) NewImportPipeline() *Pipeline {
	return NewPipeline(
		&ParseStep{},
		&CategorizeStep{Categorizer: s.categorizer},
		&DetectDuplicatesStep{Detector: s.detector},
		&ImportStep{Importer: s.importer},
	)
}

// PreviewImport parses a statement and reports what an import would do.
// It returns a *MalformedInputError (wrapped) when the CSV is unusable.
func (s *Service) PreviewImport(ctx context.Context, userID string, csv []byte) (*Preview, error) {
	state := &PipelineState{UserID: userID, CSV: csv}
	if err := s.NewPreviewPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}

	flagged := state.Flagged
	if flagged == nil {
		flagged = []FlaggedCandidate{}
	}
	return &Preview{
		Transactions: flagged,
		Summary:      summarizePreview(flagged),
	}, nil
}

// RunImport parses, categorizes, flags and persists a statement.
func (s *Service) RunImport(ctx context.Context, userID string, csv []byte, opts ImportOptions) (*ImportResult, error) {
	state := &PipelineState{UserID: userID, CSV: csv, Options: opts}
	if err := s.NewImportPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Result, nil
}

func summarizePreview(rows []FlaggedCandidate) PreviewSummary {
	summary := PreviewSummary{Total: len(rows), TotalAmount: decimal.Zero}
	for _, r := range rows {
		if r.Type == domain.TransactionTypeIncome {
			summary.Income++
		} else {
			summary.Expenses++
		}
		if r.IsDuplicate {
			summary.Duplicates++
		}
		if r.SuggestedCategory != "" {
			summary.Categorized++
		} else {
			summary.Uncategorized++
		}
		summary.TotalAmount = summary.TotalAmount.Add(r.Amount)
	}
	return summary
}
