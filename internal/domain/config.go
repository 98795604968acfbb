package domain

import "time"

// Config holds the complete engine configuration.
type Config struct {
	// Profile selects the default component set
	Profile Profile `mapstructure:"profile"`

	// Transports
	Server ServerConfig `mapstructure:"server"`
	RPC    RPCConfig    `mapstructure:"rpc"`

	// Prediction
	Model ModelConfig `mapstructure:"model"`

	// Component configurations
	Repository RepositoryConfig `mapstructure:"repository"`
	Cache      CacheConfig      `mapstructure:"cache"`
	EventBus   EventBusConfig   `mapstructure:"event_bus"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Profile names a deployment shape.
type Profile string

const (
	// ProfileStandalone runs on SQLite, an in-process cache and channels.
	ProfileStandalone Profile = "standalone"

	// ProfileProduction runs on PostgreSQL, Redis and NATS.
	ProfileProduction Profile = "production"
)

// ServerConfig holds REST server settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // seconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxBatchSize   int      `mapstructure:"max_batch_size"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`
	ShutdownTimeout      int    `mapstructure:"shutdown_timeout"` // seconds
}

// ModelConfig holds predictor settings.
type ModelConfig struct {
	// ArtifactPath is the JSON model artifact produced by training
	ArtifactPath string `mapstructure:"artifact_path"`

	// LazyLoad defers loading the artifact until the first prediction
	LazyLoad bool `mapstructure:"lazy_load"`
}

// WorkerConfig controls the bus-driven quote worker.
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

// RateLimitConfig controls per-client REST rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings. When Enabled, both transports
// record server spans on the globally registered tracer provider, tagged
// with ServiceName.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// DefaultConfig returns the standalone configuration.
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileStandalone,
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			ReadTimeout:    30,
			WriteTimeout:   60,
			AllowedOrigins: []string{"*"},
			MaxBatchSize:   500,
		},
		RPC: RPCConfig{
			Host:                 "0.0.0.0",
			Port:                 50051,
			MaxConcurrentStreams: 100,
			ShutdownTimeout:      10,
		},
		Model: ModelConfig{
			ArtifactPath: "./models/trained/guard_quote_models.json",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./guardquote.db",
		},
		Cache: CacheConfig{
			Type:          "memory",
			LocalMaxSize:  10000,
			LocalTTL:      5 * time.Minute,
			PredictionTTL: 10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Worker: WorkerConfig{
			Enabled:     true,
			Concurrency: 4,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "guardquote-ml",
		},
	}
}

// ProductionConfig returns the configuration for the production profile.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileProduction
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "guardquote",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		PredictionTTL:  10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.RateLimit.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
