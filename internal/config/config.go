package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the semantic calculator service.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"CHIRALITY_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Default problem statement for runs that do not supply one
	DefaultProblem string `env:"CHIRALITY_PROBLEM" envDefault:"generating reliable knowledge"`

	// Resolver configuration
	Resolver ResolverConfig

	// Trace sink configuration
	Trace TraceConfig

	// Neo4j working-memory export
	Export ExportConfig

	// Event bus / run store backends
	Events EventsConfig
	Store  StoreConfig

	// Redis configuration (used when a backend is "redis")
	Redis RedisConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig

	// StrictSinks promotes trace/export failures to run failures
	StrictSinks bool `env:"CHIRALITY_STRICT_SINKS" envDefault:"false"`
}

// ResolverConfig selects and configures the semantic resolver.
type ResolverConfig struct {
	Provider string `env:"CHIRALITY_RESOLVER" envDefault:"anthropic"`
	APIKey   string `env:"ANTHROPIC_API_KEY"`

	Model          string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	MaxTokens      int           `env:"CHIRALITY_RESOLVER_MAX_TOKENS" envDefault:"512"`
	MaxRetries     int           `env:"CHIRALITY_RESOLVER_MAX_RETRIES" envDefault:"3"`
	RequestTimeout time.Duration `env:"CHIRALITY_RESOLVER_TIMEOUT" envDefault:"120s"`
}

// TraceConfig configures the JSONL provenance tracer.
type TraceConfig struct {
	Enabled        bool   `env:"CHIRALITY_TRACE" envDefault:"true"`
	Dir            string `env:"CHIRALITY_TRACE_DIR" envDefault:"traces"`
	MaxFileBytes   int64  `env:"CHIRALITY_TRACE_MAX_FILE_BYTES" envDefault:"10485760"`
	DedupeCapacity int    `env:"CHIRALITY_TRACE_DEDUPE_CAPACITY" envDefault:"4096"`
}

// ExportConfig configures the Neo4j working-memory exporter.
type ExportConfig struct {
	Enabled  bool   `env:"CHIRALITY_NEO4J_EXPORT" envDefault:"false"`
	URI      string `env:"NEO4J_URI" envDefault:"bolt://localhost:7687"`
	User     string `env:"NEO4J_USER" envDefault:"neo4j"`
	Password string `env:"NEO4J_PASSWORD"`
}

// EventsConfig selects the event bus backend.
type EventsConfig struct {
	Backend string `env:"CHIRALITY_EVENT_BUS" envDefault:"memory"`
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	Backend string        `env:"CHIRALITY_RUN_STORE" envDefault:"memory"`
	TTL     time.Duration `env:"CHIRALITY_RUN_TTL" envDefault:"24h"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	QueueDepth          int           `env:"WORKER_QUEUE_DEPTH" envDefault:"16"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations.
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"`
	CellTimeout     time.Duration `env:"TIMEOUT_CELL" envDefault:"300s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.Resolver.Provider {
	case "anthropic":
		if c.Resolver.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic resolver")
		}
	case "echo":
		// deterministic resolver, no credentials
	default:
		return fmt.Errorf("unsupported resolver provider: %s (must be anthropic or echo)", c.Resolver.Provider)
	}

	if c.Trace.Enabled {
		if c.Trace.Dir == "" {
			return fmt.Errorf("trace directory is required when tracing is enabled")
		}
		if c.Trace.MaxFileBytes < 1 {
			return fmt.Errorf("trace max file size must be positive, got %d", c.Trace.MaxFileBytes)
		}
		if c.Trace.DedupeCapacity < 1 {
			return fmt.Errorf("trace dedupe capacity must be positive, got %d", c.Trace.DedupeCapacity)
		}
	}

	if c.Export.Enabled && c.Export.URI == "" {
		return fmt.Errorf("NEO4J_URI is required when Neo4j export is enabled")
	}

	switch c.Events.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported event bus backend: %s (must be memory or redis)", c.Events.Backend)
	}

	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported run store backend: %s (must be memory or redis)", c.Store.Backend)
	}

	if (c.Events.Backend == "redis" || c.Store.Backend == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for redis backends")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueDepth < 1 {
		return fmt.Errorf("worker queue depth must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
