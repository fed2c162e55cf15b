package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 2, cfg.Grades.Min)
	assert.Equal(t, 5, cfg.Grades.Max)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Features.IsEnabled(FeatureBulkDelete))
	assert.Equal(t, 30*time.Second, cfg.Observability.StatsInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gradebook.yaml")
	content := `
app:
  environment: production
http:
  port: 9090
storage:
  driver: sqlite
  sqlite_path: /tmp/grades.db
grades:
  min: 3
  oracle_url: http://localhost:5352
  oracle_timeout: 750ms
features:
  api.bulk_delete: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9191, cfg.HTTP.Port, "env overrides file")
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/grades.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 3, cfg.Grades.Min)
	assert.Equal(t, 5, cfg.Grades.Max, "unset keys keep defaults")
	assert.Equal(t, 750*time.Millisecond, cfg.Grades.OracleTimeout)
	assert.False(t, cfg.Features.IsEnabled(FeatureBulkDelete))
	assert.True(t, cfg.Features.IsEnabled(FeatureRating))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, ok: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{name: "grade range too wide", mutate: func(c *Config) { c.Grades.Max = 6 }},
		{name: "grade range inverted", mutate: func(c *Config) { c.Grades.Min, c.Grades.Max = 5, 3 }},
		{name: "bad port", mutate: func(c *Config) { c.HTTP.Port = 0 }},
		{name: "narrow range", mutate: func(c *Config) { c.Grades.Min, c.Grades.Max = 3, 4 }, ok: true},
		{name: "event channel without redis", mutate: func(c *Config) { c.Events.RedisChannel = "gradebook:events" }},
		{name: "event channel with redis", mutate: func(c *Config) {
			c.Redis.Enabled = true
			c.Events.RedisChannel = "gradebook:events"
		}, ok: true},
		{name: "negative stats interval", mutate: func(c *Config) { c.Observability.StatsInterval = -time.Second }},
		{name: "sample ratio above one", mutate: func(c *Config) { c.Observability.TraceSampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFeatureFlags_Env(t *testing.T) {
	t.Setenv("FEATURE_API_RATING", "false")

	ff := LoadFeatureFlags(nil)
	assert.False(t, ff.IsEnabled(FeatureRating))
	assert.False(t, ff.IsEnabled("does.not_exist"))

	require.NoError(t, ff.Set(FeatureRating, true))
	assert.True(t, ff.IsEnabled(FeatureRating))
	assert.ErrorIs(t, ff.Set("nope", true), ErrFeatureNotFound)
	assert.Contains(t, ff.Enabled(), FeatureRating)
}

func TestLoad_TracingEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("STATS_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://collector:4318", cfg.Observability.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.Observability.TraceSampleRatio)
	assert.Zero(t, cfg.Observability.StatsInterval)
}

func TestAddresses(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}
