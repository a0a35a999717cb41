package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlDriver struct {
	db *sql.DB
}

// openMySQL connects with multi-statement support so a migration file can
// hold several statements.
func openMySQL(ctx context.Context, dsn string) (*mysqlDriver, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	cfg.MultiStatements = true
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening MySQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to MySQL: %w", err)
	}
	return &mysqlDriver{db: db}, nil
}

func (d *mysqlDriver) EnsureMigrationsTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INT          NOT NULL PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			applied_at  DATETIME(6)  NOT NULL,
			checksum    CHAR(64)     NULL,
			applied_by  VARCHAR(255) NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

func (d *mysqlDriver) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT version, name, applied_at, checksum, applied_by FROM schema_migrations ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am                  AppliedMigration
			checksum, appliedBy sql.NullString
		)
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &checksum, &appliedBy); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		am.Checksum = checksum.String
		am.AppliedBy = appliedBy.String
		applied = append(applied, am)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating applied migrations: %w", err)
	}
	return applied, nil
}

func (d *mysqlDriver) Execute(ctx context.Context, m Migration) error {
	if _, err := d.db.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	return nil
}

func (d *mysqlDriver) Record(ctx context.Context, m Migration, appliedBy string) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by) VALUES (?, ?, ?, ?, ?)",
		m.Version, m.Name, time.Now().UTC(), m.Checksum, appliedBy)
	return err
}

func (d *mysqlDriver) Close() error {
	return d.db.Close()
}
