package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// driver applies migrations to one database and records them in schema_migrations.
type driver interface {
	EnsureMigrationsTable(ctx context.Context) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
	Execute(ctx context.Context, m Migration) error
	Record(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

// migrate applies every pending migration in order and returns how many ran.
// It stops at the first failure.
func migrate(ctx context.Context, d driver, migrations []Migration, appliedBy string, log zerolog.Logger) (int, error) {
	if err := d.EnsureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := d.AppliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Msg("Loaded migrations")

	pending, err := pendingMigrations(migrations, applied)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		if err := d.Execute(ctx, m); err != nil {
			return count, fmt.Errorf("executing migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := d.Record(ctx, m, appliedBy); err != nil {
			return count, fmt.Errorf("recording migration %04d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}

	return count, nil
}
