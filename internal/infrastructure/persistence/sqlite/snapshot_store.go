// Package sqlite implements the snapshot store on an embedded SQLite database
// (pure-Go modernc driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

//go:embed schema.sql
var schema string

const metaDailyDay = "daily_day"

// SnapshotStore implements ranking.SnapshotStore on SQLite.
type SnapshotStore struct {
	db *sqlx.DB
}

var _ ranking.SnapshotStore = (*SnapshotStore)(nil)

type snapshotRow struct {
	Name      string `db:"name"`
	PvP       int64  `db:"pvp"`
	PvE       int64  `db:"pve"`
	Gathering int64  `db:"gathering"`
	Crafting  int64  `db:"crafting"`
}

func (r snapshotRow) toDomain() ranking.StatSnapshot {
	return ranking.StatSnapshot{
		Name:      r.Name,
		PvP:       r.PvP,
		PvE:       r.PvE,
		Gathering: r.Gathering,
		Crafting:  r.Crafting,
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*SnapshotStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close closes the database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Daily baseline ---

// LoadDaily returns the baseline; an empty database yields an empty baseline.
func (s *SnapshotStore) LoadDaily(ctx context.Context) (*ranking.DailyBaseline, error) {
	var dayStr string
	err := s.db.GetContext(ctx, &dayStr, `SELECT value FROM store_meta WHERE key = ?`, metaDailyDay)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load baseline day: %w", err)
	}

	var day ranking.Day
	if dayStr != "" {
		if day, err = ranking.ParseDay(dayStr); err != nil {
			return nil, fmt.Errorf("%w: baseline day: %v", ranking.ErrPersistenceCorrupt, err)
		}
	}

	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT name, pvp, pve, gathering, crafting FROM daily_baseline ORDER BY name
	`); err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	snapshots := make([]ranking.StatSnapshot, len(rows))
	for i, r := range rows {
		snapshots[i] = r.toDomain()
	}
	return ranking.NewDailyBaseline(day, snapshots), nil
}

// SaveDaily replaces the baseline in one transaction.
func (s *SnapshotStore) SaveDaily(ctx context.Context, day ranking.Day, snapshots []ranking.StatSnapshot) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_baseline`); err != nil {
			return fmt.Errorf("clear baseline: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO store_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, metaDailyDay, day.String()); err != nil {
			return fmt.Errorf("save baseline day: %w", err)
		}

		for _, snap := range snapshots {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO daily_baseline (name, pvp, pve, gathering, crafting)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET
					pvp = excluded.pvp, pve = excluded.pve,
					gathering = excluded.gathering, crafting = excluded.crafting
			`, snap.Name, snap.PvP, snap.PvE, snap.Gathering, snap.Crafting); err != nil {
				return fmt.Errorf("save baseline row %q: %w", snap.Name, err)
			}
		}
		return nil
	})
}

// --- Weekly history ---

// LoadWeekly returns retained deltas ordered by date.
func (s *SnapshotStore) LoadWeekly(ctx context.Context) (*ranking.WeeklyHistory, error) {
	var days []string
	if err := s.db.SelectContext(ctx, &days, `SELECT day FROM weekly_days ORDER BY day`); err != nil {
		return nil, fmt.Errorf("load weekly days: %w", err)
	}

	entries := make([]ranking.WeeklyDay, 0, len(days))
	for _, d := range days {
		day, err := ranking.ParseDay(d)
		if err != nil {
			return nil, fmt.Errorf("%w: weekly day: %v", ranking.ErrPersistenceCorrupt, err)
		}

		var rows []snapshotRow
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT name, pvp, pve, gathering, crafting
			FROM weekly_history WHERE day = ? ORDER BY position
		`, d); err != nil {
			return nil, fmt.Errorf("load weekly history %s: %w", d, err)
		}

		players := make([]ranking.StatSnapshot, len(rows))
		for i, r := range rows {
			players[i] = r.toDomain()
		}
		entries = append(entries, ranking.WeeklyDay{Day: day, Players: players})
	}

	return ranking.NewWeeklyHistory(entries...), nil
}

// AppendWeekly overwrites delta.Day and trims to the most recent dates.
func (s *SnapshotStore) AppendWeekly(ctx context.Context, delta ranking.DailyDelta) error {
	day := delta.Day.String()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO weekly_days (day) VALUES (?)`, day); err != nil {
			return fmt.Errorf("insert weekly day: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_history WHERE day = ?`, day); err != nil {
			return fmt.Errorf("clear weekly day: %w", err)
		}

		for i, snap := range delta.Players {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO weekly_history (day, name, position, pvp, pve, gathering, crafting)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(day, name) DO UPDATE SET
					pvp = excluded.pvp, pve = excluded.pve,
					gathering = excluded.gathering, crafting = excluded.crafting
			`, day, snap.Name, i, snap.PvP, snap.PvE, snap.Gathering, snap.Crafting); err != nil {
				return fmt.Errorf("insert weekly row %q: %w", snap.Name, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM weekly_days
			WHERE day NOT IN (SELECT day FROM weekly_days ORDER BY day DESC LIMIT ?)
		`, ranking.MaxWeeklyDays); err != nil {
			return fmt.Errorf("trim weekly days: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM weekly_history WHERE day NOT IN (SELECT day FROM weekly_days)
		`); err != nil {
			return fmt.Errorf("trim weekly history: %w", err)
		}
		return nil
	})
}

func (s *SnapshotStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
