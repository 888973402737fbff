package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE
// ══════════════════════════════════════════════════════════════════════════════

// Key layout (per namespace, usually the guild id):
//
//	ranking:{ns}:daily          JSON baseline {day, players}
//	ranking:{ns}:weekly:days    sorted set of days, score = unix midnight
//	ranking:{ns}:weekly:{day}   JSON deltas for one day

// SnapshotStore implements ranking.SnapshotStore on top of Redis.
type SnapshotStore struct {
	client    *redis.Client
	namespace string
}

// NewSnapshotStore creates a store whose keys are scoped by namespace.
func NewSnapshotStore(cache *Cache, namespace string) *SnapshotStore {
	if namespace == "" {
		namespace = "default"
	}
	return &SnapshotStore{client: cache.client, namespace: namespace}
}

var _ ranking.SnapshotStore = (*SnapshotStore)(nil)

type baselineRecord struct {
	Day     string                 `json:"day"`
	Players []ranking.StatSnapshot `json:"players"`
}

func (s *SnapshotStore) dailyKey() string {
	return prefixRanking + s.namespace + ":daily"
}

func (s *SnapshotStore) weeklyDaysKey() string {
	return prefixRanking + s.namespace + ":weekly:days"
}

func (s *SnapshotStore) weeklyDayKey(day ranking.Day) string {
	return prefixRanking + s.namespace + ":weekly:" + day.String()
}

// LoadDaily returns the persisted baseline or an empty one.
func (s *SnapshotStore) LoadDaily(ctx context.Context) (*ranking.DailyBaseline, error) {
	data, err := s.client.Get(ctx, s.dailyKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ranking.EmptyBaseline(), nil
		}
		return nil, fmt.Errorf("load daily baseline: %w", err)
	}

	var rec baselineRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: daily baseline: %v", ranking.ErrPersistenceCorrupt, err)
	}

	var day ranking.Day
	if rec.Day != "" {
		if day, err = ranking.ParseDay(rec.Day); err != nil {
			return nil, fmt.Errorf("%w: daily baseline: %v", ranking.ErrPersistenceCorrupt, err)
		}
	}

	return ranking.NewDailyBaseline(day, rec.Players), nil
}

// SaveDaily overwrites the baseline.
func (s *SnapshotStore) SaveDaily(ctx context.Context, day ranking.Day, snapshots []ranking.StatSnapshot) error {
	data, err := json.Marshal(baselineRecord{Day: day.String(), Players: snapshots})
	if err != nil {
		return fmt.Errorf("encode daily baseline: %w", err)
	}

	if err := s.client.Set(ctx, s.dailyKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("save daily baseline: %w", err)
	}
	return nil
}

// LoadWeekly returns the weekly history or an empty one.
func (s *SnapshotStore) LoadWeekly(ctx context.Context) (*ranking.WeeklyHistory, error) {
	members, err := s.client.ZRange(ctx, s.weeklyDaysKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load weekly days: %w", err)
	}
	if len(members) == 0 {
		return ranking.NewWeeklyHistory(), nil
	}

	days := make([]ranking.Day, 0, len(members))
	keys := make([]string, 0, len(members))
	for _, m := range members {
		day, err := ranking.ParseDay(m)
		if err != nil {
			return nil, fmt.Errorf("%w: weekly index: %v", ranking.ErrPersistenceCorrupt, err)
		}
		days = append(days, day)
		keys = append(keys, s.weeklyDayKey(day))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load weekly entries: %w", err)
	}

	entries := make([]ranking.WeeklyDay, 0, len(days))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: weekly entry %s missing", ranking.ErrPersistenceCorrupt, days[i])
		}
		var players []ranking.StatSnapshot
		if err := json.Unmarshal([]byte(raw), &players); err != nil {
			return nil, fmt.Errorf("%w: weekly entry %s: %v", ranking.ErrPersistenceCorrupt, days[i], err)
		}
		entries = append(entries, ranking.WeeklyDay{Day: days[i], Players: players})
	}

	return ranking.NewWeeklyHistory(entries...), nil
}

// AppendWeekly stores the deltas for delta.Day and evicts dates that fall
// out of the retention window, all in one MULTI/EXEC.
func (s *SnapshotStore) AppendWeekly(ctx context.Context, delta ranking.DailyDelta) error {
	history, err := s.LoadWeekly(ctx)
	if err != nil {
		return err
	}
	before := history.Days()
	history.Append(delta)

	kept := make(map[ranking.Day]bool, history.Len())
	for _, d := range history.Days() {
		kept[d] = true
	}

	data, err := json.Marshal(delta.Players)
	if err != nil {
		return fmt.Errorf("encode weekly entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if kept[delta.Day] {
			pipe.Set(ctx, s.weeklyDayKey(delta.Day), data, 0)
			pipe.ZAdd(ctx, s.weeklyDaysKey(), redis.Z{
				Score:  float64(delta.Day.Time().Unix()),
				Member: delta.Day.String(),
			})
		}
		for _, d := range before {
			if !kept[d] {
				pipe.Del(ctx, s.weeklyDayKey(d))
				pipe.ZRem(ctx, s.weeklyDaysKey(), d.String())
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append weekly entry: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
