// Package commands implements the statement-insights command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/gcsuploader"
	"github.com/dvloznov/statement-insights/internal/infra"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/store"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	userID     string
	backend    string
	dbPath     string
	noColor    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "statement-insights",
		Short: "Import bank statement CSVs and look for unusual spending",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("STATEMENT_INSIGHTS_CONFIG"), "path to YAML config")
	flags.StringVarP(&opts.userID, "user", "u", envOr("STATEMENT_INSIGHTS_USER", "local"), "user the statements belong to")
	flags.StringVar(&opts.backend, "store", "", "store backend (memory, bolt, mysql, bigquery); defaults to bolt")
	flags.StringVar(&opts.dbPath, "db", "", "bolt database file (overrides config)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newPreviewCommand(opts),
		newImportCommand(opts),
		newAnomaliesCommand(opts),
		newInsightsCommand(opts),
		newUploadCommand(opts),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session is the state a subcommand runs with.
type session struct {
	cfg     *config.Config
	store   store.Store
	service *pipeline.Service
	log     zerolog.Logger
	out     io.Writer
	userID  string
}

func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// loadConfig resolves the configuration for a CLI run. The in-memory backend
// forgets everything between invocations, so the CLI uses bolt unless told
// otherwise.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnvironment(o.configPath)
	if err != nil {
		return nil, err
	}
	switch {
	case o.backend != "":
		cfg.Store.Backend = strings.ToLower(o.backend)
	case cfg.Store.Backend == config.BackendMemory:
		cfg.Store.Backend = config.BackendBolt
	}
	if o.dbPath != "" {
		cfg.Store.BoltPath = o.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads config and connects the store.
func (o *globalOptions) open(cmd *cobra.Command) (context.Context, *session, error) {
	if strings.TrimSpace(o.userID) == "" {
		return nil, nil, fmt.Errorf("--user must not be empty")
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr()).Level(level)
	ctx := logger.WithContext(cmd.Context(), log)

	st, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	return ctx, &session{
		cfg:     cfg,
		store:   st,
		service: pipeline.NewService(st, st, pipeline.NewCategorizer(cfg.CategoryRules())),
		log:     log,
		out:     cmd.OutOrStdout(),
		userID:  o.userID,
	}, nil
}

// readStatement reads a local CSV path or a gs:// URI.
func readStatement(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "gs://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading statement: %w", err)
		}
		return data, nil
	}

	client, err := gcsuploader.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.FetchFromGCS(ctx, source)
}
