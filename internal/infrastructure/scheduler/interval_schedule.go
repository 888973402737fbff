package scheduler

import (
	"fmt"
	"time"
)

// EverySchedule fires on fixed interval boundaries ("@every 5m" fires at
// :00, :05, :10 ...), so restarts do not shift the grid.
type EverySchedule struct {
	interval time.Duration
}

// Every creates an interval schedule. Intervals under a second are rejected.
func Every(interval time.Duration) (*EverySchedule, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("invalid interval %s: must be at least 1s", interval)
	}
	return &EverySchedule{interval: interval}, nil
}

// Next returns the first boundary strictly after t.
func (s *EverySchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.interval).Add(s.interval)
}

// String returns the string representation of the schedule.
func (s *EverySchedule) String() string {
	return "@every " + s.interval.String()
}
