// Package config loads and validates application configuration from YAML or
// TOML files with environment-variable overrides. It provides typed structs
// for every subsystem (Server, Indexer, Search, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Indexer  IndexerConfig  `yaml:"indexer" toml:"indexer"`
	Search   SearchConfig   `yaml:"search" toml:"search"`
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka" toml:"kafka"`
	Redis    RedisConfig    `yaml:"redis" toml:"redis"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing" toml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP server settings. A zero Port disables the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" toml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
}

// IndexerConfig controls where build artifacts live and how many documents
// are accumulated in memory before a segment is flushed.
type IndexerConfig struct {
	DataDir    string `yaml:"dataDir" toml:"dataDir"`
	SegmentDir string `yaml:"segmentDir" toml:"segmentDir"`
	FlushEvery int    `yaml:"flushEvery" toml:"flushEvery"`
}

// SegmentPath returns the directory used for transient segment files.
func (c IndexerConfig) SegmentPath() string {
	if c.SegmentDir != "" {
		return c.SegmentDir
	}
	return filepath.Join(c.DataDir, "segments")
}

// SearchConfig controls result limits and the interactive loop.
type SearchConfig struct {
	DefaultLimit int      `yaml:"defaultLimit" toml:"defaultLimit"`
	MaxResults   int      `yaml:"maxResults" toml:"maxResults"`
	ShowTimings  bool     `yaml:"showTimings" toml:"showTimings"`
	QueryTimeout Duration `yaml:"queryTimeout" toml:"queryTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the build history.
type PostgresConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled"`
	Host            string   `yaml:"host" toml:"host"`
	Port            int      `yaml:"port" toml:"port"`
	Database        string   `yaml:"database" toml:"database"`
	User            string   `yaml:"user" toml:"user"`
	Password        string   `yaml:"password" toml:"password"`
	SSLMode         string   `yaml:"sslMode" toml:"sslMode"`
	MaxOpenConns    int      `yaml:"maxOpenConns" toml:"maxOpenConns"`
	MaxIdleConns    int      `yaml:"maxIdleConns" toml:"maxIdleConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime" toml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled" toml:"enabled"`
	Brokers       []string    `yaml:"brokers" toml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup" toml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics" toml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete" toml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Addr     string   `yaml:"addr" toml:"addr"`
	Password string   `yaml:"password" toml:"password"`
	DB       int      `yaml:"db" toml:"db"`
	PoolSize int      `yaml:"poolSize" toml:"poolSize"`
	CacheTTL Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TracingConfig controls whether span trees are written to the log.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Port    int  `yaml:"port" toml:"port"`
}

// Load reads a config file (if provided) and applies environment-variable
// overrides. Files ending in .toml are decoded as TOML, everything else as
// YAML. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the build or query pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Indexer.DataDir == "" {
		return fmt.Errorf("invalid config: indexer.dataDir is required")
	}
	if c.Indexer.FlushEvery <= 0 {
		return fmt.Errorf("invalid config: indexer.flushEvery must be positive, got %d", c.Indexer.FlushEvery)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("invalid config: search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		c.Search.MaxResults = c.Search.DefaultLimit
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            0,
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
		},
		Indexer: IndexerConfig{
			DataDir:    "data",
			FlushEvery: 1000,
		},
		Search: SearchConfig{
			DefaultLimit: 5,
			MaxResults:   100,
			QueryTimeout: Duration{5 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "spimisearch",
			User:            "spimisearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: Duration{5 * time.Minute},
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "spimisearch-searcher",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: Duration{60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_INDEXER_SEGMENT_DIR"); v != "" {
		cfg.Indexer.SegmentDir = v
	}
	if v := os.Getenv("SP_INDEXER_FLUSH_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.FlushEvery = n
		}
	}
	if v := os.Getenv("SP_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("SP_SEARCH_SHOW_TIMINGS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.ShowTimings = b
		}
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
