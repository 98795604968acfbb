// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guardquote/ml-engine/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New opens the configured database and applies the schema.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
		cfg.Driver = "sqlite"
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// ListEventTypes returns the stored event type catalog ordered by code.
func (r *SQLRepository) ListEventTypes(ctx context.Context) ([]domain.EventTypeInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, description, base_rate, risk_weight, min_guards
		FROM event_types
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EventTypeInfo
	for rows.Next() {
		var et domain.EventTypeInfo
		var desc sql.NullString
		if err := rows.Scan(&et.Code, &et.Name, &desc, &et.BaseRate, &et.RiskWeight, &et.MinGuards); err != nil {
			return nil, err
		}
		et.Description = desc.String
		out = append(out, et)
	}
	return out, rows.Err()
}

// ListLocations returns the stored service areas ordered by ZIP.
func (r *SQLRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT zip, city, state, county, region, risk_zone, rate_multiplier
		FROM locations
		ORDER BY zip
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		var county, region sql.NullString
		if err := rows.Scan(&loc.Zip, &loc.City, &loc.State, &county, &region, &loc.RiskZone, &loc.RateMultiplier); err != nil {
			return nil, err
		}
		loc.County = county.String
		loc.Region = region.String
		out = append(out, loc)
	}
	return out, rows.Err()
}

// SeedReferenceData inserts reference rows that are not already present.
// Existing rows are left untouched so operator edits survive restarts.
func (r *SQLRepository) SeedReferenceData(ctx context.Context, events []domain.EventTypeInfo, locations []domain.Location) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventQuery := r.rebind(`
		INSERT INTO event_types (code, name, description, base_rate, risk_weight, min_guards)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING
	`)
	for _, et := range events {
		if _, err := tx.ExecContext(ctx, eventQuery,
			string(et.Code), et.Name, et.Description, et.BaseRate, et.RiskWeight, et.MinGuards,
		); err != nil {
			return fmt.Errorf("failed to seed event type %s: %w", et.Code, err)
		}
	}

	locationQuery := r.rebind(`
		INSERT INTO locations (zip, city, state, county, region, risk_zone, rate_multiplier)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(zip) DO NOTHING
	`)
	for _, loc := range locations {
		if _, err := tx.ExecContext(ctx, locationQuery,
			loc.Zip, loc.City, loc.State, loc.County, loc.Region, string(loc.RiskZone), loc.RateMultiplier,
		); err != nil {
			return fmt.Errorf("failed to seed location %s: %w", loc.Zip, err)
		}
	}

	return tx.Commit()
}

// SavePrediction appends an audit record.
func (r *SQLRepository) SavePrediction(ctx context.Context, rec *domain.PredictionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: prediction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO predictions (
			id, request_id, kind, transport, model_used, path, event_type, location_zip,
			final_price, risk_level, risk_score, confidence, created_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.RequestID, string(rec.Kind), rec.Transport, rec.ModelUsed, string(rec.Path),
		string(rec.EventType), rec.LocationZip,
		rec.FinalPrice, string(rec.RiskLevel), rec.RiskScore, rec.Confidence,
		rec.CreatedAt, string(rec.Payload),
	)
	return err
}

// GetPrediction retrieves an audit record by id.
func (r *SQLRepository) GetPrediction(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	query := `
		SELECT id, request_id, kind, transport, model_used, path, event_type, location_zip,
			   final_price, risk_level, risk_score, confidence, created_at, payload
		FROM predictions
		WHERE id = ?
	`

	var rec domain.PredictionRecord
	var requestID, payload sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&rec.ID, &requestID, &rec.Kind, &rec.Transport, &rec.ModelUsed, &rec.Path,
		&rec.EventType, &rec.LocationZip,
		&rec.FinalPrice, &rec.RiskLevel, &rec.RiskScore, &rec.Confidence,
		&rec.CreatedAt, &payload,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.RequestID = requestID.String
	if payload.String != "" {
		rec.Payload = []byte(payload.String)
	}
	return &rec, nil
}

// SaveRecommendationRule inserts or updates a rule by id.
func (r *SQLRepository) SaveRecommendationRule(ctx context.Context, rule *domain.RecommendationRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO recommendation_rules (
			id, name, description, expression, message, priority, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			message = excluded.message,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression, rule.Message,
		rule.Priority, enabled, now, now,
	)
	return err
}

// ListRecommendationRules returns every stored rule, enabled or not, in
// priority order.
func (r *SQLRepository) ListRecommendationRules(ctx context.Context) ([]*domain.RecommendationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, expression, message, priority, enabled
		FROM recommendation_rules
		ORDER BY priority, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RecommendationRule
	for rows.Next() {
		var rule domain.RecommendationRule
		var desc sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &desc, &rule.Expression, &rule.Message, &rule.Priority, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Description = desc.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
