// Package config loads the engine configuration from an optional YAML file
// and GUARDQUOTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/guardquote/ml-engine/internal/domain"
)

// EnvPrefix is the prefix of every configuration environment variable.
// Nested keys use underscores, e.g. GUARDQUOTE_SERVER_PORT.
const EnvPrefix = "GUARDQUOTE"

// Options controls where configuration is read from.
type Options struct {
	// File is an explicit config file. When empty, config.yaml is looked up
	// in the working directory and ./config, and a missing file is not an error.
	File string

	// Profile overrides the profile from the file and environment.
	Profile string
}

// Load builds the configuration. The profile picks the defaults, then the
// file and environment are overlaid on top of them.
func Load(opts Options) (*domain.Config, error) {
	v := viper.New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	profile := domain.Profile(v.GetString("profile"))
	if opts.Profile != "" {
		profile = domain.Profile(opts.Profile)
	}

	var base *domain.Config
	switch profile {
	case domain.ProfileStandalone, "":
		base = domain.DefaultConfig()
	case domain.ProfileProduction:
		base = domain.ProductionConfig()
	default:
		return nil, fmt.Errorf("unknown profile %q", profile)
	}
	setDefaults(v, base)
	v.Set("profile", string(base.Profile))

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, c *domain.Config) {
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.allowed_origins", c.Server.AllowedOrigins)
	v.SetDefault("server.max_batch_size", c.Server.MaxBatchSize)

	v.SetDefault("rpc.host", c.RPC.Host)
	v.SetDefault("rpc.port", c.RPC.Port)
	v.SetDefault("rpc.max_concurrent_streams", c.RPC.MaxConcurrentStreams)
	v.SetDefault("rpc.shutdown_timeout", c.RPC.ShutdownTimeout)

	v.SetDefault("model.artifact_path", c.Model.ArtifactPath)
	v.SetDefault("model.lazy_load", c.Model.LazyLoad)

	v.SetDefault("repository.driver", c.Repository.Driver)
	v.SetDefault("repository.sqlite_path", c.Repository.SQLitePath)
	v.SetDefault("repository.postgres_host", c.Repository.PostgresHost)
	v.SetDefault("repository.postgres_port", c.Repository.PostgresPort)
	v.SetDefault("repository.postgres_user", c.Repository.PostgresUser)
	v.SetDefault("repository.postgres_password", c.Repository.PostgresPassword)
	v.SetDefault("repository.postgres_db", c.Repository.PostgresDB)
	v.SetDefault("repository.postgres_sslmode", c.Repository.PostgresSSLMode)
	v.SetDefault("repository.max_open_conns", c.Repository.MaxOpenConns)
	v.SetDefault("repository.max_idle_conns", c.Repository.MaxIdleConns)
	v.SetDefault("repository.conn_max_lifetime", c.Repository.ConnMaxLifetime)

	v.SetDefault("cache.type", c.Cache.Type)
	v.SetDefault("cache.local_max_size", c.Cache.LocalMaxSize)
	v.SetDefault("cache.local_ttl", c.Cache.LocalTTL)
	v.SetDefault("cache.redis_addr", c.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", c.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", c.Cache.RedisDB)
	v.SetDefault("cache.enable_two_phase", c.Cache.EnableTwoPhase)
	v.SetDefault("cache.prediction_ttl", c.Cache.PredictionTTL)

	v.SetDefault("event_bus.type", c.EventBus.Type)
	v.SetDefault("event_bus.channel_buffer_size", c.EventBus.ChannelBufferSize)
	v.SetDefault("event_bus.nats_url", c.EventBus.NATSUrl)
	v.SetDefault("event_bus.nats_token", c.EventBus.NATSToken)
	v.SetDefault("event_bus.nats_max_reconnects", c.EventBus.NATSMaxReconnects)
	v.SetDefault("event_bus.nats_reconnect_wait", c.EventBus.NATSReconnectWait)

	v.SetDefault("worker.enabled", c.Worker.Enabled)
	v.SetDefault("worker.concurrency", c.Worker.Concurrency)

	v.SetDefault("rate_limit.enabled", c.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", c.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", c.RateLimit.Burst)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)

	v.SetDefault("tracing.enabled", c.Tracing.Enabled)
	v.SetDefault("tracing.service_name", c.Tracing.ServiceName)
}

// Validate rejects configurations the engine cannot start with.
func Validate(c *domain.Config) error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.RPC.Port <= 0 || c.RPC.Port > 65535 {
		errs = append(errs, fmt.Errorf("rpc.port %d out of range", c.RPC.Port))
	}
	if c.Server.MaxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_batch_size must be positive"))
	}
	if c.Worker.Enabled && c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, fmt.Errorf("rate_limit requires positive requests_per_second and burst"))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "json", "text", "":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg domain.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown logging.level %q", s)
	}
	return level, nil
}
