package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

// StatementFetcher downloads statement bytes from object storage.
type StatementFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// StatementImporter runs the import pipeline over raw CSV bytes.
type StatementImporter interface {
	RunImport(ctx context.Context, userID string, csv []byte, opts pipeline.ImportOptions) (*pipeline.ImportResult, error)
}

// NewImportHandler returns a JobHandler that fetches the statement from GCS
// and imports it. Malformed statements fail permanently.
func NewImportHandler(fetcher StatementFetcher, importer StatementImporter) JobHandler {
	return func(ctx context.Context, job Job) error {
		importJob, ok := job.(*ImportStatementJob)
		if !ok {
			return Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", importJob.JobID).
			Str("user_id", importJob.UserID).
			Str("gcs_uri", importJob.GCSURI).
			Logger()
		log.Info().Msg("Processing import job")

		data, err := fetcher.FetchFromGCS(ctx, importJob.GCSURI)
		if err != nil {
			return fmt.Errorf("import job %s: fetching statement: %w", importJob.JobID, err)
		}

		opts := pipeline.DefaultImportOptions()
		opts.SkipDuplicates = importJob.SkipDuplicates
		if importJob.Currency != "" {
			opts.DefaultCurrency = importJob.Currency
		}

		result, err := importer.RunImport(logger.WithContext(ctx, log), importJob.UserID, data, opts)
		if err != nil {
			if pipeline.IsMalformedInput(err) {
				return Permanent(fmt.Errorf("import job %s: %w", importJob.JobID, err))
			}
			return fmt.Errorf("import job %s: %w", importJob.JobID, err)
		}

		summary := result.Summary
		importJob.Summary = &summary

		log.Info().
			Int("imported", summary.Imported).
			Int("duplicates", summary.Skipped).
			Int("errored", summary.Errored).
			Msg("Import job finished")
		return nil
	}
}
