package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all ecswait tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS waits (
		id             TEXT PRIMARY KEY,
		cluster        TEXT NOT NULL,
		filter         TEXT NOT NULL DEFAULT '{}',
		state          TEXT NOT NULL DEFAULT 'WAITING',
		interval_ns    INTEGER NOT NULL,
		timeout_ns     INTEGER NOT NULL DEFAULT 0,
		soft_fail      INTEGER NOT NULL DEFAULT 0,
		polls          INTEGER NOT NULL DEFAULT 0,
		last_count     INTEGER NOT NULL DEFAULT 0,
		error          TEXT NOT NULL DEFAULT '',
		labels         TEXT NOT NULL DEFAULT '{}',
		created_at     TEXT NOT NULL,
		last_polled_at TEXT,
		completed_at   TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_waits_state ON waits(state)`,
	`CREATE INDEX IF NOT EXISTS idx_waits_cluster ON waits(cluster)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
