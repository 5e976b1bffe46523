package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty temp dir so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CENSUS_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.census.gov/data", cfg.Census.BaseURL)
	assert.Equal(t, 2023, cfg.Census.Year)
	assert.Equal(t, "acs/acs5", cfg.Census.Dataset)
	assert.Equal(t, 500, cfg.Census.PacingMs)
	assert.Equal(t, 3, cfg.Census.MaxAttempts)
	assert.Equal(t, "data", cfg.Data.Root)
	assert.Equal(t, "public/results", cfg.Data.ResultsDir)
	assert.Equal(t, 2020, cfg.Tiger.Year)
	assert.Equal(t, "cities.yaml", cfg.Registry.Path)
	assert.Equal(t, "src/cities.js", cfg.Registry.JSPath)
	assert.Equal(t, "public.district_demographics", cfg.Postgres.Table)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "district-census.db", cfg.Store.SQLitePath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
census:
  year: 2022
  pacing_ms: 100
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2022, cfg.Census.Year)
	assert.Equal(t, 100, cfg.Census.PacingMs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Census.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("DISTRICTS_LOG_LEVEL", "warn")
	t.Setenv("DISTRICTS_DATA_ROOT", "/srv/data")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/data", cfg.Data.Root)
}

func TestLoadCensusKeyFromPlainEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CENSUS_API_KEY", "abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Census.APIKey)
}

func TestLoadCensusKeyFromDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("CENSUS_API_KEY", "")
	require.NoError(t, os.Unsetenv("CENSUS_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CENSUS_API_KEY=fromdotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("CENSUS_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Census.APIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Census.BaseURL = "https://api.census.gov/data"
	cfg.Census.Year = 2023
	cfg.Census.MaxAttempts = 3
	cfg.Census.PacingMs = 500
	cfg.Data.Root = "data"
	cfg.Data.ResultsDir = "public/results"
	cfg.Store.Driver = "sqlite"
	cfg.Postgres.Table = "public.district_demographics"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateProcess_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("process"))
}

func TestValidateProcess_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Census.MaxAttempts = 0
	cfg.Census.PacingMs = -1

	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census.max_attempts must be between 1 and 10")
	assert.Contains(t, err.Error(), "census.pacing_ms must be >= 0")
}

func TestValidateProcess_StoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	err := cfg.Validate("process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/districts"
	assert.NoError(t, cfg.Validate("process"))

	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate("process"))
}

func TestValidatePublishPostgres(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("publish-postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.database_url is required")

	cfg.Postgres.DatabaseURL = "postgres://localhost/districts"
	assert.NoError(t, cfg.Validate("publish-postgres"))
}

func TestValidatePublishS3(t *testing.T) {
	cfg := validDefaults()
	assert.Error(t, cfg.Validate("publish-s3"))
	cfg.S3.Bucket = "district-results"
	assert.NoError(t, cfg.Validate("publish-s3"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
