package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed indicates a migration failure.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{version: 1, name: "create_daily_baseline", sql: migration001},
	{version: 2, name: "create_weekly_history", sql: migration002},
}

// Migrator applies pending migrations and records them in schema_migrations.
type Migrator struct {
	conn *Connection
}

// NewMigrator creates a Migrator for conn.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn}
}

// Migrate applies every migration newer than the recorded version.
// Each step runs in its own transaction together with its bookkeeping row.
func (m *Migrator) Migrate(ctx context.Context) error {
	const createTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createTable); err != nil {
			return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
		}

		// Concurrent bot and worker start-ups must not race on the schema.
		if _, err := tx.Exec(ctx, "LOCK TABLE schema_migrations IN EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("%w: lock schema_migrations: %v", ErrMigrationFailed, err)
		}

		var current int
		if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
			return fmt.Errorf("%w: read version: %v", ErrMigrationFailed, err)
		}

		for _, mig := range migrations {
			if mig.version <= current {
				continue
			}
			if _, err := tx.Exec(ctx, mig.sql); err != nil {
				return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.version, mig.name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				mig.version, mig.name,
			); err != nil {
				return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.version, err)
			}
		}
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE DAILY BASELINE
// ══════════════════════════════════════════════════════════════════════════════

const migration001 = `
-- One live baseline per guild: written at the end of every daily cycle
CREATE TABLE IF NOT EXISTS daily_baseline_meta (
    guild_id TEXT PRIMARY KEY,
    day DATE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS daily_baseline (
    guild_id TEXT NOT NULL,
    name TEXT NOT NULL,
    pvp BIGINT NOT NULL DEFAULT 0,
    pve BIGINT NOT NULL DEFAULT 0,
    gathering BIGINT NOT NULL DEFAULT 0,
    crafting BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (guild_id, name)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE WEEKLY HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration002 = `
-- Retained dates (at most 7 per guild)
CREATE TABLE IF NOT EXISTS weekly_days (
    guild_id TEXT NOT NULL,
    day DATE NOT NULL,
    PRIMARY KEY (guild_id, day)
);

-- Daily deltas; position keeps provider order for tie-breaking
CREATE TABLE IF NOT EXISTS weekly_history (
    guild_id TEXT NOT NULL,
    day DATE NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    pvp BIGINT NOT NULL DEFAULT 0,
    pve BIGINT NOT NULL DEFAULT 0,
    gathering BIGINT NOT NULL DEFAULT 0,
    crafting BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (guild_id, day, name),
    FOREIGN KEY (guild_id, day) REFERENCES weekly_days (guild_id, day) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_weekly_history_order
    ON weekly_history (guild_id, day, position);
`
