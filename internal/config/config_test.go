package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/pipeline"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = BackendBolt
	cfg.Store.BoltPath = "/var/lib/insights.db"
	cfg.Worker.Users = []string{"u1", "u2"}
	cfg.Categories = []pipeline.CategoryRule{
		{Category: "Pets", Keywords: []string{"petco", "vet"}},
	}

	path := filepath.Join(t.TempDir(), "statement-insights.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "USD", cfg.Import.DefaultCurrency)
	assert.True(t, cfg.Import.SkipDuplicates)
	assert.Equal(t, 90, cfg.Anomaly.LookbackDays)
	assert.InDelta(t, 2.0, cfg.Anomaly.ZScoreThreshold, 0.001)
	assert.Equal(t, "0 6 * * *", cfg.Worker.Schedule)
	assert.Empty(t, cfg.Categories)
	require.NoError(t, cfg.Validate())
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anomaly:\n  zscore_threshold: 3.5\nimport:\n  default_currency: EUR\n  skip_duplicates: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, cfg.Anomaly.ZScoreThreshold, 0.001)
	assert.Equal(t, 90, cfg.Anomaly.LookbackDays)
	assert.Equal(t, "8080", cfg.Server.Port)

	opts := cfg.ImportOptions()
	assert.False(t, opts.SkipDuplicates)
	assert.Equal(t, "EUR", opts.DefaultCurrency)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STORE_BACKEND":         "MySQL",
		"DATABASE_DSN":          "app:secret@tcp(db:3306)/insights",
		"GCS_BUCKET":            "statements",
		"PORT":                  "9090",
		"LOG_LEVEL":             "debug",
		"ANOMALY_LOOKBACK_DAYS": "30",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, BackendMySQL, cfg.Store.Backend)
	assert.Equal(t, "app:secret@tcp(db:3306)/insights", cfg.Store.MySQLDSN)
	assert.Equal(t, "statements", cfg.Storage.Bucket)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30, cfg.AnomalyOptions().LookbackDays)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvInsightsKey(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Insights.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Insights.Model)

	require.NoError(t, cfg.ApplyEnv(func(k string) string {
		return map[string]string{"GOOGLE_API_KEY": "google-key", "GEMINI_MODEL": "gemini-2.5-pro"}[k]
	}))
	assert.Equal(t, "google-key", cfg.Insights.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Insights.Model)

	// GEMINI_API_KEY wins over GOOGLE_API_KEY.
	require.NoError(t, cfg.ApplyEnv(func(k string) string {
		return map[string]string{"GOOGLE_API_KEY": "google-key", "GEMINI_API_KEY": "gemini-key"}[k]
	}))
	assert.Equal(t, "gemini-key", cfg.Insights.APIKey)
}

func TestApplyEnvRejectsBadLookback(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "ANOMALY_LOOKBACK_DAYS" {
			return "ninety"
		}
		return ""
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "memory", mutate: func(c *Config) {}},
		{name: "bolt without path", mutate: func(c *Config) { c.Store.Backend = BackendBolt; c.Store.BoltPath = "" }, wantErr: true},
		{name: "mysql without dsn", mutate: func(c *Config) { c.Store.Backend = BackendMySQL }, wantErr: true},
		{name: "bigquery without dataset", mutate: func(c *Config) { c.Store.Backend = BackendBigQuery; c.Store.ProjectID = "p" }, wantErr: true},
		{name: "bigquery", mutate: func(c *Config) {
			c.Store.Backend = BackendBigQuery
			c.Store.ProjectID = "p"
			c.Store.DatasetID = "d"
		}},
		{name: "unknown", mutate: func(c *Config) { c.Store.Backend = "postgres" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCategoryRules(t *testing.T) {
	cfg := Default()
	assert.Equal(t, pipeline.DefaultRules(), cfg.CategoryRules())

	cfg.Categories = []pipeline.CategoryRule{{Category: "Pets", Keywords: []string{"vet"}}}
	assert.Equal(t, cfg.Categories, cfg.CategoryRules())
}
