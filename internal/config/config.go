package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/insights"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

// Store backends understood by infra.OpenStore.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendMySQL    = "mysql"
	BackendBigQuery = "bigquery"
)

// Config is the top-level statement-insights.yaml configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Store      StoreConfig             `yaml:"store"`
	Storage    StorageConfig           `yaml:"storage"`
	Import     ImportConfig            `yaml:"import"`
	Anomaly    AnomalyConfig           `yaml:"anomaly"`
	Insights   InsightsConfig          `yaml:"insights"`
	Worker     WorkerConfig            `yaml:"worker"`
	Categories []pipeline.CategoryRule `yaml:"categories,omitempty"`
	Log        LogConfig               `yaml:"log"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port          string `yaml:"port"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	BoltPath  string `yaml:"bolt_path,omitempty"`
	MySQLDSN  string `yaml:"mysql_dsn,omitempty"`
	ProjectID string `yaml:"project_id,omitempty"`
	DatasetID string `yaml:"dataset_id,omitempty"`
}

// StorageConfig points at the bucket holding uploaded statements.
type StorageConfig struct {
	Bucket string `yaml:"bucket,omitempty"`
}

// ImportConfig holds the defaults applied when a request sets no options.
type ImportConfig struct {
	DefaultCurrency string `yaml:"default_currency"`
	SkipDuplicates  bool   `yaml:"skip_duplicates"`
}

// AnomalyConfig holds the default analysis window and sensitivity.
type AnomalyConfig struct {
	LookbackDays    int     `yaml:"lookback_days"`
	ZScoreThreshold float64 `yaml:"zscore_threshold"`
}

// InsightsConfig enables model-written spending insights. Without an API key
// the deterministic fallback is served.
type InsightsConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model"`
}

// WorkerConfig drives the scheduled anomaly scans.
type WorkerConfig struct {
	Schedule string   `yaml:"schedule"`
	Users    []string `yaml:"users,omitempty"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config that runs entirely on local storage.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			QueueCapacity: 100,
		},
		Store: StoreConfig{
			Backend:  BackendMemory,
			BoltPath: "statement-insights.db",
		},
		Import: ImportConfig{
			DefaultCurrency: pipeline.DefaultCurrency,
			SkipDuplicates:  true,
		},
		Anomaly: AnomalyConfig{
			LookbackDays:    anomaly.DefaultLookbackDays,
			ZScoreThreshold: anomaly.DefaultZScoreThreshold,
		},
		Insights: InsightsConfig{
			Model: insights.DefaultModelName,
		},
		Worker: WorkerConfig{
			Schedule: "0 6 * * *",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of Default, so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadFromEnvironment loads path (or Default when path is empty), then the
// optional .env file, then applies environment overrides and validates.
func LoadFromEnvironment(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Unset variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		c.Store.MySQLDSN = v
	}
	if v := getenv("BOLT_PATH"); v != "" {
		c.Store.BoltPath = v
	}
	if v := getenv("GCP_PROJECT"); v != "" {
		c.Store.ProjectID = v
	}
	if v := getenv("BQ_DATASET"); v != "" {
		c.Store.DatasetID = v
	}
	if v := getenv("GCS_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Insights.APIKey = v
	} else if v := getenv("GOOGLE_API_KEY"); v != "" {
		c.Insights.APIKey = v
	}
	if v := getenv("GEMINI_MODEL"); v != "" {
		c.Insights.Model = v
	}
	if v := getenv("ANOMALY_LOOKBACK_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ApplyEnv: ANOMALY_LOOKBACK_DAYS: %w", err)
		}
		c.Anomaly.LookbackDays = days
	}
	return nil
}

// Validate checks that the selected backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Store.BoltPath == "" {
			return fmt.Errorf("config: store.bolt_path is required for the bolt backend")
		}
	case BackendMySQL:
		if c.Store.MySQLDSN == "" {
			return fmt.Errorf("config: store.mysql_dsn or DATABASE_DSN is required for the mysql backend")
		}
	case BackendBigQuery:
		if c.Store.ProjectID == "" || c.Store.DatasetID == "" {
			return fmt.Errorf("config: store.project_id and store.dataset_id are required for the bigquery backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// ImportOptions returns the configured import defaults.
func (c *Config) ImportOptions() pipeline.ImportOptions {
	currency := c.Import.DefaultCurrency
	if currency == "" {
		currency = pipeline.DefaultCurrency
	}
	return pipeline.ImportOptions{
		SkipDuplicates:  c.Import.SkipDuplicates,
		DefaultCurrency: currency,
	}
}

// AnomalyOptions returns the configured analysis window and threshold.
func (c *Config) AnomalyOptions() anomaly.Options {
	return anomaly.Options{
		LookbackDays:    c.Anomaly.LookbackDays,
		ZScoreThreshold: c.Anomaly.ZScoreThreshold,
	}
}

// CategoryRules returns the configured keyword table, or the built-in one.
func (c *Config) CategoryRules() []pipeline.CategoryRule {
	if len(c.Categories) == 0 {
		return pipeline.DefaultRules()
	}
	return c.Categories
}
