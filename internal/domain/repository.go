package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Reference data
	ListEventTypes(ctx context.Context) ([]EventTypeInfo, error)
	ListLocations(ctx context.Context) ([]Location, error)
	SeedReferenceData(ctx context.Context, events []EventTypeInfo, locations []Location) error

	// Prediction audit log
	SavePrediction(ctx context.Context, rec *PredictionRecord) error
	GetPrediction(ctx context.Context, id string) (*PredictionRecord, error)

	// Recommendation rules
	SaveRecommendationRule(ctx context.Context, rule *RecommendationRule) error
	ListRecommendationRules(ctx context.Context) ([]*RecommendationRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}
