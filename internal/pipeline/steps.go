package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/logger"
)

// PipelineStep represents a single step in the statement pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID  string
	CSV     []byte
	Options ImportOptions

	Parsed      *ParseResult
	Categorized []CategorizedCandidate
	Flagged     []FlaggedCandidate
	Result      *ImportResult
}

// Step 1: ParseStep turns the raw CSV into candidates.
type ParseStep struct{}

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	parsed, err := ParseCSV(state.CSV)
	if err != nil {
		return err
	}
	state.Parsed = parsed

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", state.UserID).
		Int("data_rows", parsed.DataRows).
		Int("parsed", len(parsed.Candidates)).
		Int("skipped_rows", parsed.SkippedRows).
		Msg("Parsed statement")
	return nil
}

// Step 2: CategorizeStep attaches a suggested category to every candidate.
type CategorizeStep struct {
	Categorizer *Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Parsed == nil {
		return fmt.Errorf("CategorizeStep: no parsed candidates")
	}
	categorized := make([]CategorizedCandidate, len(state.Parsed.Candidates))
	for i, c := range state.Parsed.Candidates {
		suggested, _ := s.Categorizer.Categorize(c.Description)
		categorized[i] = CategorizedCandidate{CandidateTransaction: c, SuggestedCategory: suggested}
	}
	state.Categorized = categorized
	return nil
}

// Step 3: DetectDuplicatesStep flags candidates already present in history.
type DetectDuplicatesStep struct {
	Detector *DuplicateDetector
}

func (s *DetectDuplicatesStep) Execute(ctx context.Context, state *PipelineState) error {
	flagged, err := s.Detector.Flag(ctx, state.UserID, state.Categorized)
	if err != nil {
		return err
	}
	state.Flagged = flagged
	return nil
}

// Step 4: ImportStep persists the flagged candidates.
type ImportStep struct {
	Importer *Importer
}

func (s *ImportStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := s.Importer.Import(ctx, state.UserID, state.Flagged, state.Options)
	if err != nil {
		return err
	}
	state.Result = result

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", state.UserID).
		Int("total", result.Summary.Total).
		Int("imported", result.Summary.Imported).
		Int("duplicates_skipped", result.Summary.Skipped).
		Int("errored", result.Summary.Errored).
		Int("skipped_rows", state.Parsed.SkippedRows).
		Msg("Imported statement")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
