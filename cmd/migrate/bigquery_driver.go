package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

type bigqueryDriver struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

func newBigQueryDriver(ctx context.Context, projectID, datasetID string) (*bigqueryDriver, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return &bigqueryDriver{client: client, projectID: projectID, datasetID: datasetID}, nil
}

func (d *bigqueryDriver) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", d.projectID, d.datasetID)
}

func (d *bigqueryDriver) run(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// EnsureMigrationsTable creates the schema_migrations table if it doesn't exist
func (d *bigqueryDriver) EnsureMigrationsTable(ctx context.Context) error {
	return d.run(ctx, d.client.Query(`
		CREATE TABLE IF NOT EXISTS `+d.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`))
}

// AppliedMigrations retrieves the list of already applied migrations
func (d *bigqueryDriver) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := d.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + d.table() + `
		ORDER BY version ASC
	`)

	it, err := q.Read(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// Execute runs a migration as a single BigQuery script.
func (d *bigqueryDriver) Execute(ctx context.Context, m Migration) error {
	return d.run(ctx, d.client.Query(m.SQL))
}

// Record records a successfully applied migration in schema_migrations
func (d *bigqueryDriver) Record(ctx context.Context, m Migration, appliedBy string) error {
	q := d.client.Query(`
		INSERT INTO ` + d.table() + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	return d.run(ctx, q)
}

func (d *bigqueryDriver) Close() error {
	return d.client.Close()
}
