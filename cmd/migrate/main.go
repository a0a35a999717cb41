package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/dvloznov/statement-insights/internal/logger"
)

var (
	driverName    = flag.String("driver", "mysql", "Target database: mysql or bigquery")
	dsn           = flag.String("dsn", "", "MySQL DSN (or set DATABASE_DSN env)")
	projectID     = flag.String("project", "", "GCP project ID (or set GCP_PROJECT env)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (or set BQ_DATASET env)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Path to migrations directory (default migrations/<driver>)")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	_ = godotenv.Load()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_DSN")
	}
	if *projectID == "" {
		*projectID = os.Getenv("GCP_PROJECT")
	}
	if *datasetID == "" {
		*datasetID = os.Getenv("BQ_DATASET")
	}
	if *migrationsDir == "" {
		*migrationsDir = filepath.Join("migrations", *driverName)
	}

	var (
		d            driver
		placeholders map[string]string
		err          error
	)
	switch *driverName {
	case "mysql":
		if *dsn == "" {
			log.Fatal().Msg("Error: -dsn flag or DATABASE_DSN is required for the mysql driver")
		}
		d, err = openMySQL(ctx, *dsn)
	case "bigquery":
		if *projectID == "" || *datasetID == "" {
			log.Fatal().Msg("Error: -project and -dataset are required for the bigquery driver")
		}
		placeholders = map[string]string{
			"{{PROJECT_ID}}": *projectID,
			"{{DATASET_ID}}": *datasetID,
		}
		d, err = newBigQueryDriver(ctx, *projectID, *datasetID)
	default:
		log.Fatal().Str("driver", *driverName).Msg("Unknown driver")
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", *driverName).Msg("Failed to connect")
	}
	defer d.Close()

	dir, err := resolveMigrationsDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}

	migrations, err := readMigrations(dir, placeholders, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	applied, err := migrate(ctx, d, migrations, *appliedBy, log)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}
