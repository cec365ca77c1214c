// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Source, Postgres, Redis, Kafka, Search, Cache, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// SourceConfig selects where documents are read from and whether the file is
// watched for changes.
type SourceConfig struct {
	Kind           string        `yaml:"kind"`
	Path           string        `yaml:"path"`
	Watch          bool          `yaml:"watch"`
	DebounceWindow time.Duration `yaml:"debounceWindow"`
	RetryAttempts  int           `yaml:"retryAttempts"`
	// ReloadInterval rebuilds the index periodically; zero disables it.
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
	IndexReload  string `yaml:"indexReload"`
}

// SearchConfig controls the fuzzy matcher budget and query limits.
type SearchConfig struct {
	// MaxErrors is the edit-distance budget used for every query term. The
	// default of 0 keeps matching exact.
	MaxErrors int `yaml:"maxErrors"`
	// MaxErrorsCeiling bounds per-request overrides of MaxErrors.
	MaxErrorsCeiling int           `yaml:"maxErrorsCeiling"`
	MaxQueryLength   int           `yaml:"maxQueryLength"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig sizes the in-process result cache that sits in front of Redis.
type CacheConfig struct {
	LocalSize int `yaml:"localSize"`
}

// RateLimitConfig controls the per-process token bucket on the search API.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// AnalyticsConfig controls search-event collection and snapshotting.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// SnapshotInterval saves aggregate stats to PostgreSQL; zero disables it.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	TopQueries       int           `yaml:"topQueries"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for the file source")
		}
	case SourcePostgres:
		if !c.Postgres.Enabled {
			return fmt.Errorf("source.kind=postgres requires postgres.enabled")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	if c.Search.MaxErrors < 0 {
		return fmt.Errorf("search.maxErrors must not be negative, got %d", c.Search.MaxErrors)
	}
	if c.Search.MaxErrorsCeiling < c.Search.MaxErrors {
		return fmt.Errorf("search.maxErrorsCeiling (%d) is below search.maxErrors (%d)",
			c.Search.MaxErrorsCeiling, c.Search.MaxErrors)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.enabled requires at least one broker")
	}
	return nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Source: SourceConfig{
			Kind:           SourceFile,
			Path:           "static/data/short_diagnoses.txt",
			Watch:          true,
			DebounceWindow: 500 * time.Millisecond,
			RetryAttempts:  3,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fuzzysearch",
			User:            "fuzzysearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fuzzysearch",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
				IndexReload:  "index-reload",
			},
		},
		Search: SearchConfig{
			MaxErrors:        0,
			MaxErrorsCeiling: 2,
			MaxQueryLength:   512,
			Timeout:          5 * time.Second,
		},
		Cache: CacheConfig{
			LocalSize: 1024,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
			TopQueries:    1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads FZS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("FZS_SERVER_PORT", &cfg.Server.Port)
	setString("FZS_SOURCE_KIND", &cfg.Source.Kind)
	setString("FZS_SOURCE_PATH", &cfg.Source.Path)
	setBool("FZS_SOURCE_WATCH", &cfg.Source.Watch)
	setBool("FZS_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("FZS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("FZS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("FZS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("FZS_POSTGRES_USER", &cfg.Postgres.User)
	setString("FZS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("FZS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("FZS_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("FZS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("FZS_REDIS_PASSWORD", &cfg.Redis.Password)
	setBool("FZS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("FZS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setInt("FZS_SEARCH_MAX_ERRORS", &cfg.Search.MaxErrors)
	setInt("FZS_SEARCH_MAX_ERRORS_CEILING", &cfg.Search.MaxErrorsCeiling)
	setBool("FZS_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setString("FZS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("FZS_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("FZS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("FZS_METRICS_PORT", &cfg.Metrics.Port)
}
