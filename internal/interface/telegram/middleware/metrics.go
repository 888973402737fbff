package middleware

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Counts commands, failures and latency per command. The snapshot is exposed
// through the admin HTTP API alongside scheduler metrics.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// SlowRequestThreshold defines what's considered a slow request.
	SlowRequestThreshold time.Duration

	// OnSlowRequest is called when a request exceeds the slow threshold.
	OnSlowRequest func(command string, duration time.Duration, telegramID int64)
}

// DefaultMetricsConfig returns sensible defaults for metrics middleware.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SlowRequestThreshold: 2 * time.Second,
	}
}

// MetricsMiddleware collects command metrics.
type MetricsMiddleware struct {
	config MetricsConfig

	totalRequests  atomic.Int64
	totalErrors    atomic.Int64
	activeRequests atomic.Int64

	mu          sync.Mutex
	commands    map[string]*commandStats
	uniqueUsers map[int64]struct{}
}

type commandStats struct {
	count         int64
	errors        int64
	totalDuration time.Duration
	maxDuration   time.Duration
	lastInvoked   time.Time
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(config MetricsConfig) *MetricsMiddleware {
	return &MetricsMiddleware{
		config:      config,
		commands:    make(map[string]*commandStats),
		uniqueUsers: make(map[int64]struct{}),
	}
}

// RequestTracker tracks a single in-flight request.
type RequestTracker struct {
	m          *MetricsMiddleware
	command    string
	telegramID int64
	start      time.Time
}

// Start begins tracking a request.
func (m *MetricsMiddleware) Start(command string, telegramID int64) *RequestTracker {
	m.totalRequests.Add(1)
	m.activeRequests.Add(1)
	return &RequestTracker{m: m, command: command, telegramID: telegramID, start: time.Now()}
}

// End finishes tracking. err marks the request as failed.
func (t *RequestTracker) End(err error) {
	m := t.m
	duration := time.Since(t.start)
	m.activeRequests.Add(-1)
	if err != nil {
		m.totalErrors.Add(1)
	}

	m.mu.Lock()
	stats, ok := m.commands[t.command]
	if !ok {
		stats = &commandStats{}
		m.commands[t.command] = stats
	}
	stats.count++
	if err != nil {
		stats.errors++
	}
	stats.totalDuration += duration
	stats.maxDuration = max(stats.maxDuration, duration)
	stats.lastInvoked = t.start
	if t.telegramID != 0 {
		m.uniqueUsers[t.telegramID] = struct{}{}
	}
	m.mu.Unlock()

	if m.config.OnSlowRequest != nil && m.config.SlowRequestThreshold > 0 && duration > m.config.SlowRequestThreshold {
		m.config.OnSlowRequest(t.command, duration, t.telegramID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SNAPSHOT
// ─────────────────────────────────────────────────────────────────────────────

// CommandSnapshot is a point-in-time view of one command's metrics.
type CommandSnapshot struct {
	Command       string    `json:"command"`
	Count         int64     `json:"count"`
	Errors        int64     `json:"errors"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	MaxDurationMs float64   `json:"max_duration_ms"`
	LastInvoked   time.Time `json:"last_invoked"`
}

// MetricsSnapshot is a point-in-time view of all bot metrics.
type MetricsSnapshot struct {
	TotalRequests  int64             `json:"total_requests"`
	TotalErrors    int64             `json:"total_errors"`
	ActiveRequests int64             `json:"active_requests"`
	UniqueUsers    int               `json:"unique_users"`
	Commands       []CommandSnapshot `json:"commands"`
}

// Snapshot returns the current metrics, commands sorted by count descending.
func (m *MetricsMiddleware) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TotalRequests:  m.totalRequests.Load(),
		TotalErrors:    m.totalErrors.Load(),
		ActiveRequests: m.activeRequests.Load(),
	}

	m.mu.Lock()
	snap.UniqueUsers = len(m.uniqueUsers)
	for name, s := range m.commands {
		cs := CommandSnapshot{
			Command:       name,
			Count:         s.count,
			Errors:        s.errors,
			MaxDurationMs: float64(s.maxDuration) / float64(time.Millisecond),
			LastInvoked:   s.lastInvoked,
		}
		if s.count > 0 {
			cs.AvgDurationMs = float64(s.totalDuration) / float64(s.count) / float64(time.Millisecond)
		}
		snap.Commands = append(snap.Commands, cs)
	}
	m.mu.Unlock()

	sort.Slice(snap.Commands, func(i, j int) bool {
		if snap.Commands[i].Count != snap.Commands[j].Count {
			return snap.Commands[i].Count > snap.Commands[j].Count
		}
		return snap.Commands[i].Command < snap.Commands[j].Command
	})

	return snap
}
