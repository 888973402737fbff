// Package file implements a JSON-file snapshot store. Every write replaces the
// whole file atomically, so a crash leaves either the old or the new content.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

const (
	// DailyFileName holds the daily baseline.
	DailyFileName = "daily_baseline.json"

	// WeeklyFileName holds the weekly history.
	WeeklyFileName = "weekly_history.json"

	filePerm = 0o644
	dirPerm  = 0o755
)

type baselineFile struct {
	Day     string                 `json:"day"`
	Players []ranking.StatSnapshot `json:"players"`
}

type weeklyFile struct {
	Days []ranking.WeeklyDay `json:"days"`
}

// SnapshotStore implements ranking.SnapshotStore with two JSON files in a directory.
type SnapshotStore struct {
	dir string
	mu  sync.Mutex
}

var _ ranking.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates the directory if needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// LoadDaily reads the baseline; a missing file is an empty baseline.
func (s *SnapshotStore) LoadDaily(_ context.Context) (*ranking.DailyBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f baselineFile
	found, err := s.read(DailyFileName, &f)
	if err != nil {
		return nil, err
	}
	if !found {
		return ranking.EmptyBaseline(), nil
	}

	var day ranking.Day
	if f.Day != "" {
		if day, err = ranking.ParseDay(f.Day); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ranking.ErrPersistenceCorrupt, DailyFileName, err)
		}
	}
	return ranking.NewDailyBaseline(day, f.Players), nil
}

// SaveDaily overwrites the baseline file.
func (s *SnapshotStore) SaveDaily(_ context.Context, day ranking.Day, snapshots []ranking.StatSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshots == nil {
		snapshots = []ranking.StatSnapshot{}
	}
	return s.write(DailyFileName, baselineFile{Day: day.String(), Players: snapshots})
}

// LoadWeekly reads the history; a missing file is an empty history.
func (s *SnapshotStore) LoadWeekly(_ context.Context) (*ranking.WeeklyHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadWeekly()
}

// AppendWeekly is a read-modify-write of the history file.
func (s *SnapshotStore) AppendWeekly(_ context.Context, delta ranking.DailyDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadWeekly()
	if err != nil {
		return err
	}
	history.Append(delta)

	return s.write(WeeklyFileName, weeklyFile{Days: history.Entries()})
}

// Ping checks that the directory is still accessible.
func (s *SnapshotStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *SnapshotStore) loadWeekly() (*ranking.WeeklyHistory, error) {
	var f weeklyFile
	found, err := s.read(WeeklyFileName, &f)
	if err != nil {
		return nil, err
	}
	if !found {
		return ranking.NewWeeklyHistory(), nil
	}

	for _, d := range f.Days {
		if _, err := ranking.ParseDay(d.Day.String()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ranking.ErrPersistenceCorrupt, WeeklyFileName, err)
		}
	}
	return ranking.NewWeeklyHistory(f.Days...), nil
}

// read decodes name into dest. found=false means the file does not exist.
func (s *SnapshotStore) read(name string, dest interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ranking.ErrPersistenceCorrupt, name, err)
	}
	return true, nil
}

func (s *SnapshotStore) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
