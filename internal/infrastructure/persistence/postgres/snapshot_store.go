package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore implements ranking.SnapshotStore for PostgreSQL.
// Rows are scoped by guild id so several guilds can share one database.
type SnapshotStore struct {
	conn    *Connection
	guildID string
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Connection, guildID string) *SnapshotStore {
	return &SnapshotStore{conn: conn, guildID: guildID}
}

var _ ranking.SnapshotStore = (*SnapshotStore)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// DAILY BASELINE
// ─────────────────────────────────────────────────────────────────────────────

// LoadDaily returns the live baseline, or an empty one on first run.
func (s *SnapshotStore) LoadDaily(ctx context.Context) (*ranking.DailyBaseline, error) {
	var (
		day       ranking.Day
		snapshots []ranking.StatSnapshot
	)

	err := s.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		var d time.Time
		err := tx.QueryRow(ctx,
			`SELECT day FROM daily_baseline_meta WHERE guild_id = $1`, s.guildID,
		).Scan(&d)
		switch {
		case IsNoRows(err):
		case err != nil:
			return fmt.Errorf("failed to load baseline day: %w", err)
		default:
			day = ranking.DayOf(d)
		}

		rows, err := tx.Query(ctx, `
			SELECT name, pvp, pve, gathering, crafting
			FROM daily_baseline
			WHERE guild_id = $1
			ORDER BY name
		`, s.guildID)
		if err != nil {
			return fmt.Errorf("failed to query baseline: %w", err)
		}

		snapshots, err = scanSnapshots(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ranking.NewDailyBaseline(day, snapshots), nil
}

// SaveDaily replaces the whole baseline in one transaction.
func (s *SnapshotStore) SaveDaily(ctx context.Context, day ranking.Day, snapshots []ranking.StatSnapshot) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM daily_baseline WHERE guild_id = $1`, s.guildID); err != nil {
			return fmt.Errorf("failed to clear baseline: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO daily_baseline_meta (guild_id, day, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (guild_id) DO UPDATE SET day = EXCLUDED.day, updated_at = NOW()
		`, s.guildID, day.Time())
		if err != nil {
			return fmt.Errorf("failed to save baseline day: %w", err)
		}

		batch := &pgx.Batch{}
		for _, snap := range snapshots {
			batch.Queue(`
				INSERT INTO daily_baseline (guild_id, name, pvp, pve, gathering, crafting)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (guild_id, name) DO UPDATE SET
					pvp = EXCLUDED.pvp, pve = EXCLUDED.pve,
					gathering = EXCLUDED.gathering, crafting = EXCLUDED.crafting
			`, s.guildID, snap.Name, snap.PvP, snap.PvE, snap.Gathering, snap.Crafting)
		}
		return sendBatch(ctx, tx, batch, "baseline row")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// WEEKLY HISTORY
// ─────────────────────────────────────────────────────────────────────────────

// LoadWeekly returns the retained daily deltas ordered by date.
func (s *SnapshotStore) LoadWeekly(ctx context.Context) (*ranking.WeeklyHistory, error) {
	var entries []ranking.WeeklyDay

	err := s.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT day FROM weekly_days WHERE guild_id = $1 ORDER BY day
		`, s.guildID)
		if err != nil {
			return fmt.Errorf("failed to query weekly days: %w", err)
		}
		days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
		if err != nil {
			return fmt.Errorf("%w: weekly days: %v", ranking.ErrPersistenceCorrupt, err)
		}

		for _, d := range days {
			rows, err := tx.Query(ctx, `
				SELECT name, pvp, pve, gathering, crafting
				FROM weekly_history
				WHERE guild_id = $1 AND day = $2
				ORDER BY position
			`, s.guildID, d)
			if err != nil {
				return fmt.Errorf("failed to query weekly history: %w", err)
			}
			players, err := scanSnapshots(rows)
			if err != nil {
				return err
			}
			entries = append(entries, ranking.WeeklyDay{Day: ranking.DayOf(d), Players: players})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ranking.NewWeeklyHistory(entries...), nil
}

// AppendWeekly overwrites delta.Day and keeps the most recent dates.
func (s *SnapshotStore) AppendWeekly(ctx context.Context, delta ranking.DailyDelta) error {
	day := delta.Day.Time()

	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_days (guild_id, day) VALUES ($1, $2)
			ON CONFLICT (guild_id, day) DO NOTHING
		`, s.guildID, day)
		if err != nil {
			return fmt.Errorf("failed to insert weekly day: %w", err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM weekly_history WHERE guild_id = $1 AND day = $2
		`, s.guildID, day)
		if err != nil {
			return fmt.Errorf("failed to clear weekly day: %w", err)
		}

		batch := &pgx.Batch{}
		for i, snap := range delta.Players {
			batch.Queue(`
				INSERT INTO weekly_history (guild_id, day, name, position, pvp, pve, gathering, crafting)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (guild_id, day, name) DO UPDATE SET
					pvp = EXCLUDED.pvp, pve = EXCLUDED.pve,
					gathering = EXCLUDED.gathering, crafting = EXCLUDED.crafting
			`, s.guildID, day, snap.Name, i, snap.PvP, snap.PvE, snap.Gathering, snap.Crafting)
		}
		if err := sendBatch(ctx, tx, batch, "weekly row"); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM weekly_days
			WHERE guild_id = $1 AND day NOT IN (
				SELECT day FROM weekly_days WHERE guild_id = $1 ORDER BY day DESC LIMIT $2
			)
		`, s.guildID, ranking.MaxWeeklyDays)
		if err != nil {
			return fmt.Errorf("failed to trim weekly history: %w", err)
		}
		return nil
	})
}

// Ping checks the database connection.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func scanSnapshots(rows pgx.Rows) ([]ranking.StatSnapshot, error) {
	defer rows.Close()

	var result []ranking.StatSnapshot
	for rows.Next() {
		var snap ranking.StatSnapshot
		if err := rows.Scan(&snap.Name, &snap.PvP, &snap.PvE, &snap.Gathering, &snap.Crafting); err != nil {
			return nil, fmt.Errorf("%w: %v", ranking.ErrPersistenceCorrupt, err)
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		if IsDataException(err) {
			return nil, fmt.Errorf("%w: %v", ranking.ErrPersistenceCorrupt, err)
		}
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return result, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert %s: %w", what, err)
		}
	}
	return br.Close()
}
