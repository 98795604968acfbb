package repository

// Schema definitions, compatible with both SQLite and PostgreSQL.

const schemaEventTypes = `
CREATE TABLE IF NOT EXISTS event_types (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    base_rate REAL NOT NULL,
    risk_weight REAL NOT NULL,
    min_guards INTEGER NOT NULL DEFAULT 1
);
`

const schemaLocations = `
CREATE TABLE IF NOT EXISTS locations (
    zip TEXT PRIMARY KEY,
    city TEXT NOT NULL,
    state TEXT NOT NULL,
    county TEXT,
    region TEXT,
    risk_zone TEXT NOT NULL,
    rate_multiplier REAL NOT NULL DEFAULT 1.0
);

CREATE INDEX IF NOT EXISTS idx_locations_state ON locations(state);
`

const schemaPredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    request_id TEXT,
    kind TEXT NOT NULL,
    transport TEXT NOT NULL,
    model_used TEXT NOT NULL,
    path TEXT NOT NULL,
    event_type TEXT NOT NULL,
    location_zip TEXT NOT NULL,
    final_price REAL NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL,
    risk_score REAL NOT NULL,
    confidence REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    payload TEXT
);

CREATE INDEX IF NOT EXISTS idx_predictions_request ON predictions(request_id);
CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
`

const schemaRecommendationRules = `
CREATE TABLE IF NOT EXISTS recommendation_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    message TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 100,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaEventTypes,
		schemaLocations,
		schemaPredictions,
		schemaRecommendationRules,
	}
}
