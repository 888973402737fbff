package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 6,
		BurstSize:         2,
		BanThreshold:      10,
		Now:               clock.Now,
	})
	defer rl.Stop()

	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)

	res := rl.Check(1)
	assert.False(t, res.Allowed)
	assert.True(t, res.Notify)
	assert.Equal(t, 10*time.Second, res.RetryAfter)

	res = rl.Check(1)
	assert.False(t, res.Allowed)
	assert.False(t, res.Notify, "only the first rejection notifies")

	// other users are independent
	assert.True(t, rl.Check(2).Allowed)

	clock.Advance(10 * time.Second)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_BanAndWhitelist(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		BanThreshold:      2,
		BanDuration:       time.Minute,
		WhitelistedUsers:  []int64{99},
		Now:               clock.Now,
	})
	defer rl.Stop()

	require.True(t, rl.Check(1).Allowed)
	assert.False(t, rl.Check(1).IsBanned)
	res := rl.Check(1)
	assert.True(t, res.IsBanned)
	assert.Equal(t, time.Minute, res.RetryAfter)

	clock.Advance(30 * time.Second)
	assert.True(t, rl.Check(1).IsBanned)

	clock.Advance(31 * time.Second)
	assert.True(t, rl.Check(1).Allowed)

	for range 10 {
		assert.True(t, rl.Check(99).Allowed)
	}

	rl.Reset(1)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRecoveryMiddleware(t *testing.T) {
	var seen *PanicInfo
	cfg := DefaultRecoveryConfig()
	cfg.OnPanic = func(_ context.Context, info *PanicInfo) { seen = info }
	m := NewRecoveryMiddleware(cfg)

	ctx := ContextWithRequestID(context.Background(), "req-1")

	res := m.RecoverWithHandler(ctx, 42, "daily", func() error { panic("boom") })
	require.True(t, res.Recovered)
	assert.Equal(t, cfg.UserErrorMessage, res.UserMessage)
	assert.EqualError(t, res.PanicInfo.Error, "boom")
	require.NotNil(t, seen)
	assert.Equal(t, int64(42), seen.TelegramID)
	assert.Equal(t, "req-1", seen.RequestID)
	assert.NotEmpty(t, seen.StackTrace)

	wantErr := errors.New("send failed")
	res = m.RecoverWithHandler(ctx, 42, "daily", func() error { return wantErr })
	assert.False(t, res.Recovered)
	assert.ErrorIs(t, res.Err, wantErr)
}

func TestMetricsMiddleware_Snapshot(t *testing.T) {
	var slow []string
	m := NewMetricsMiddleware(MetricsConfig{
		SlowRequestThreshold: time.Nanosecond,
		OnSlowRequest:        func(cmd string, _ time.Duration, _ int64) { slow = append(slow, cmd) },
	})

	m.Start("ranking", 1).End(nil)
	m.Start("ranking", 2).End(errors.New("x"))
	tr := m.Start("daily", 1)
	time.Sleep(time.Millisecond)
	tr.End(nil)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Zero(t, snap.ActiveRequests)
	assert.Equal(t, 2, snap.UniqueUsers)
	require.Len(t, snap.Commands, 2)
	assert.Equal(t, "ranking", snap.Commands[0].Command)
	assert.Equal(t, int64(2), snap.Commands[0].Count)
	assert.Equal(t, int64(1), snap.Commands[0].Errors)
	assert.Positive(t, snap.Commands[1].MaxDurationMs)
	assert.Contains(t, slow, "daily")
}

func TestAdminGuard(t *testing.T) {
	g := NewAdminGuard([]int64{7})
	assert.True(t, g.IsAdmin(7))

	msg, ok := g.Authorize(8, "publish")
	assert.False(t, ok)
	assert.Contains(t, msg, "/publish")

	_, ok = g.Authorize(7, "publish")
	assert.True(t, ok)

	var nilGuard *AdminGuard
	assert.False(t, nilGuard.IsAdmin(7))

	ctx := ContextWithTelegramID(context.Background(), 7)
	assert.Equal(t, int64(7), TelegramIDFromContext(ctx))
	assert.Zero(t, TelegramIDFromContext(context.Background()))
}
