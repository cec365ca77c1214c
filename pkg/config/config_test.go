package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Source.Kind)
	assert.Equal(t, 0, cfg.Search.MaxErrors)
	assert.Equal(t, "search-events", cfg.Kafka.Topics.SearchEvents)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, 100, cfg.Analytics.BatchSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: file
  path: /srv/docs.txt.zst
  debounceWindow: 2s
search:
  maxErrors: 1
  maxErrorsCeiling: 3
redis:
  enabled: true
  cacheTTL: 5m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/docs.txt.zst", cfg.Source.Path)
	assert.Equal(t, 2*time.Second, cfg.Source.DebounceWindow)
	assert.Equal(t, 1, cfg.Search.MaxErrors)
	assert.Equal(t, 3, cfg.Search.MaxErrorsCeiling)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	// untouched sections keep their defaults
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FZS_SERVER_PORT", "9999")
	t.Setenv("FZS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("FZS_KAFKA_ENABLED", "true")
	t.Setenv("FZS_SEARCH_MAX_ERRORS", "2")
	t.Setenv("FZS_LOGGING_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 2, cfg.Search.MaxErrors)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown source", func(c *Config) { c.Source.Kind = "s3" }, "unknown source.kind"},
		{"file without path", func(c *Config) { c.Source.Path = "" }, "source.path"},
		{"postgres source without postgres", func(c *Config) { c.Source.Kind = SourcePostgres }, "postgres.enabled"},
		{"negative budget", func(c *Config) { c.Search.MaxErrors = -1 }, "must not be negative"},
		{"ceiling below budget", func(c *Config) { c.Search.MaxErrors = 3 }, "maxErrorsCeiling"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
	assert.NoError(t, Default().Validate())
}
