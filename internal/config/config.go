package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census   CensusConfig   `yaml:"census" mapstructure:"census"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Tiger    TigerConfig    `yaml:"tiger" mapstructure:"tiger"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	S3       S3Config       `yaml:"s3" mapstructure:"s3"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the Census Data API attribute source.
type CensusConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Year        int    `yaml:"year" mapstructure:"year"`
	Dataset     string `yaml:"dataset" mapstructure:"dataset"`
	PacingMs    int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs   int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DataConfig locates inputs and outputs on disk.
type DataConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`
	TempDir    string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// TigerConfig configures TIGER/Line block-group downloads.
type TigerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Year    int    `yaml:"year" mapstructure:"year"`
}

// RegistryConfig locates the frontend city registry.
type RegistryConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	JSPath string `yaml:"js_path" mapstructure:"js_path"`
}

// StoreConfig configures the local run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PostgresConfig configures the PostGIS publish target.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// S3Config configures the object storage publish target.
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; existing process env wins over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISTRICTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("census.api_key", "DISTRICTS_CENSUS_API_KEY", "CENSUS_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind census api key")
	}

	// Defaults
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.year", 2023)
	v.SetDefault("census.dataset", "acs/acs5")
	v.SetDefault("census.pacing_ms", 500)
	v.SetDefault("census.max_attempts", 3)
	v.SetDefault("census.backoff_ms", 250)
	v.SetDefault("census.timeout_secs", 60)
	v.SetDefault("data.root", "data")
	v.SetDefault("data.results_dir", "public/results")
	v.SetDefault("data.temp_dir", "/tmp/district-census")
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tiger.year", 2020)
	v.SetDefault("registry.path", "cities.yaml")
	v.SetDefault("registry.js_path", "src/cities.js")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "district-census.db")
	v.SetDefault("postgres.table", "public.district_demographics")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "results")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
// Modes: "process", "publish-postgres", "publish-s3", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "process":
		if c.Census.BaseURL == "" {
			problems = append(problems, "census.base_url is required")
		}
		if c.Census.Year <= 0 {
			problems = append(problems, "census.year must be > 0")
		}
		if c.Census.MaxAttempts < 1 || c.Census.MaxAttempts > 10 {
			problems = append(problems, "census.max_attempts must be between 1 and 10")
		}
		if c.Census.PacingMs < 0 {
			problems = append(problems, "census.pacing_ms must be >= 0")
		}
		if c.Data.Root == "" || c.Data.ResultsDir == "" {
			problems = append(problems, "data.root and data.results_dir are required")
		}
		switch c.Store.Driver {
		case "sqlite":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
		}
	case "publish-postgres":
		if c.Postgres.DatabaseURL == "" {
			problems = append(problems, "postgres.database_url is required")
		}
		if c.Postgres.Table == "" {
			problems = append(problems, "postgres.table is required")
		}
	case "publish-s3":
		if c.S3.Bucket == "" {
			problems = append(problems, "s3.bucket is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
