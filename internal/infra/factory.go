// Package infra wires configuration to the concrete store backends.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/config"
	infraBQ "github.com/dvloznov/statement-insights/internal/infra/bigquery"
	boltstore "github.com/dvloznov/statement-insights/internal/infra/bolt"
	"github.com/dvloznov/statement-insights/internal/infra/memory"
	mysqlstore "github.com/dvloznov/statement-insights/internal/infra/mysql"
	"github.com/dvloznov/statement-insights/internal/store"
)

// OpenStore opens the backend selected by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewStore(), nil
	case config.BackendBolt:
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case config.BackendMySQL:
		s, err := mysqlstore.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case config.BackendBigQuery:
		s, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.Backend)
	}
}
