package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables the store needs.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are stored as fixed-width UTC text so the same schema works on
// SQLite and PostgreSQL.
const schema = `
-- Disasters
CREATE TABLE IF NOT EXISTS disaster (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    severity INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Contained', 'Closed')),
    started_at TEXT NOT NULL DEFAULT ''
);

-- Shelters
CREATE TABLE IF NOT EXISTS shelter (
    id TEXT PRIMARY KEY,
    disaster_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    capacity BIGINT NOT NULL CHECK (capacity >= 0),
    current_occupancy BIGINT NOT NULL DEFAULT 0 CHECK (current_occupancy >= 0),
    status TEXT NOT NULL DEFAULT 'Available',
    updated_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_shelter_disaster_id ON shelter(disaster_id);

-- Resources
CREATE TABLE IF NOT EXISTS resource (
    id TEXT PRIMARY KEY,
    disaster_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    stock_level BIGINT NOT NULL CHECK (stock_level >= 0),
    minimum_threshold BIGINT NOT NULL DEFAULT 0 CHECK (minimum_threshold >= 0),
    version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_resource_disaster_id ON resource(disaster_id);

-- Requests
CREATE TABLE IF NOT EXISTS request (
    id TEXT PRIMARY KEY,
    shelter_id TEXT NOT NULL REFERENCES shelter(id),
    resource_id TEXT NOT NULL REFERENCES resource(id),
    quantity_requested BIGINT NOT NULL CHECK (quantity_requested > 0),
    quantity_fulfilled BIGINT NOT NULL DEFAULT 0 CHECK (quantity_fulfilled >= 0),
    priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
    status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending', 'Approved', 'Fulfilled', 'Rejected')),
    requested_at TEXT NOT NULL,
    comments TEXT NOT NULL DEFAULT '[]',
    version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_request_shelter_id ON request(shelter_id);
CREATE INDEX IF NOT EXISTS idx_request_resource_id ON request(resource_id);
CREATE INDEX IF NOT EXISTS idx_request_status ON request(status);
`
