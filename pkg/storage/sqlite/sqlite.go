// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/psyche/pkg/storage/sqldriver"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqldriver.SQLDriver
}

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	gravity_score REAL NOT NULL,
	emotion TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	embedding TEXT,
	arc_id TEXT NOT NULL DEFAULT '',
	memory_type TEXT NOT NULL,
	tags TEXT,
	session_id TEXT NOT NULL DEFAULT '',
	thread_id TEXT NOT NULL DEFAULT '',
	identity_anchor INTEGER NOT NULL DEFAULT 0,
	contradiction INTEGER NOT NULL DEFAULT 0,
	relationship_weight REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id, created_at);

CREATE TABLE IF NOT EXISTS arcs (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	emotional_tone TEXT NOT NULL DEFAULT '',
	gravity_center REAL NOT NULL,
	memory_count INTEGER NOT NULL,
	first_memory_at TIMESTAMP NOT NULL,
	last_memory_at TIMESTAMP NOT NULL,
	velocity REAL NOT NULL DEFAULT 0,
	direction TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_arcs_owner ON arcs(owner_id, last_memory_at);

CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	centroid TEXT NOT NULL,
	strength REAL NOT NULL,
	frequency INTEGER NOT NULL,
	velocity REAL NOT NULL DEFAULT 0,
	acceleration REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	memory_ids TEXT,
	strength_history TEXT,
	last_reinforced TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_owner ON patterns(owner_id);

CREATE TABLE IF NOT EXISTS pattern_caches (
	owner_id TEXT PRIMARY KEY,
	last_processed_count INTEGER NOT NULL,
	report BLOB,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	version TEXT NOT NULL,
	entry_count INTEGER NOT NULL,
	vector TEXT NOT NULL,
	health TEXT NOT NULL,
	delta TEXT NOT NULL,
	regression_detected INTEGER NOT NULL DEFAULT 0,
	regressed_dimensions TEXT,
	previous_snapshot_id TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(owner_id, previous_snapshot_id)
);
`

// NewDriver creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{
		SQLDriver: &sqldriver.SQLDriver{
			DB:                db,
			IsUniqueViolation: isUniqueViolation,
		},
	}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
