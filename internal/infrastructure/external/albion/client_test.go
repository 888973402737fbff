package albion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
	rediscache "github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/albion-guild-ranking/pkg/circuitbreaker"
	"github.com/alem-hub/albion-guild-ranking/pkg/retry"
)

const membersJSON = `[
  {
    "Id": "p1", "Name": "Alice", "GuildId": "g1", "KillFame": 200, "DeathFame": 10,
    "LifetimeStatistics": {
      "PvE": {"Total": 100, "Royal": 60, "Outlands": 40},
      "Gathering": {"Fiber": {"Total": 20}, "All": {"Total": 50, "Royal": 50}},
      "Crafting": {"Total": 0},
      "FishingFame": 7,
      "Timestamp": "2024-05-01T22:55:00Z"
    }
  },
  {
    "Id": "p2", "Name": "Bob", "GuildId": "g1", "KillFame": 50,
    "LifetimeStatistics": {
      "PvE": {"Total": 50},
      "Gathering": {"All": {"Total": 50}},
      "Crafting": {"Total": 50}
    }
  },
  {"Id": "p3", "Name": "Alice", "KillFame": 999999}
]`

func newTestClient(t *testing.T, handler http.Handler, breaker *circuitbreaker.CircuitBreaker) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if breaker == nil {
		breaker = circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(100))
	}

	cfg := DefaultClientConfig(server.URL + "/")
	cfg.Timeout = 2 * time.Second
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(2),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(5*time.Millisecond),
		retry.WithJitter(0),
	)
	cfg.Breaker = breaker
	cfg.RateLimiter = NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 100})
	return NewClient(cfg)
}

func TestClient_FetchGuildMemberStats(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(membersJSON))
	}), nil)

	snapshots, err := client.FetchGuildMemberStats(context.Background(), "g1")
	require.NoError(t, err)

	assert.Equal(t, "/guilds/g1/members", gotPath)
	assert.Equal(t, []ranking.StatSnapshot{
		{Name: "Alice", PvP: 200, PvE: 100, Gathering: 50, Crafting: 0},
		{Name: "Bob", PvP: 50, PvE: 50, Gathering: 50, Crafting: 50},
	}, snapshots)
	assert.Equal(t, int64(350), snapshots[0].Total())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(membersJSON))
	}), nil)

	snapshots, err := client.FetchGuildMemberStats(context.Background(), "g1")
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(membersJSON))
	}), nil)

	_, err := client.FetchGuildMemberStats(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_UpstreamUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{name: "not found is not retried", status: http.StatusNotFound, body: "guild not found", wantCalls: 1},
		{name: "server error exhausts retries", status: http.StatusBadGateway, body: "", wantCalls: 2},
		{name: "malformed json", status: http.StatusOK, body: `{"Name": `, wantCalls: 1},
		{name: "wrong shape", status: http.StatusOK, body: `{"Name": "Alice"}`, wantCalls: 1},
		{name: "empty list", status: http.StatusOK, body: `[]`, wantCalls: 1},
		{name: "only nameless members", status: http.StatusOK, body: `[{"Id": "x", "Name": "  "}]`, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), nil)

			snapshots, err := client.FetchGuildMemberStats(context.Background(), "g1")
			assert.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
			assert.Nil(t, snapshots)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithTimeout(time.Hour))
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}), breaker)

	_, err := client.FetchGuildMemberStats(context.Background(), "g1")
	require.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
	assert.Equal(t, "open", client.Status().CircuitBreaker)

	_, err = client.FetchGuildMemberStats(context.Background(), "g1")
	assert.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, shared.ErrAlbionAPIUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RequiresGuildID(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), nil)
	_, err := client.FetchGuildMemberStats(context.Background(), " ")
	assert.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, 60*time.Second, parseRetryAfter(""))
	assert.Equal(t, 60*time.Second, parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Mon, 01 Jan 2001 00:00:00 GMT"))
}

func TestRateLimitError_Is(t *testing.T) {
	var err error = &RateLimitError{RetryAfter: time.Second}
	assert.ErrorIs(t, err, shared.ErrAlbionAPIRateLimited)
	assert.Equal(t, time.Second, err.(*RateLimitError).RetryAfterHint())
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

type countingProvider struct {
	calls     int
	snapshots []ranking.StatSnapshot
	err       error
}

func (p *countingProvider) FetchGuildMemberStats(_ context.Context, _ string) ([]ranking.StatSnapshot, error) {
	p.calls++
	return p.snapshots, p.err
}

func newTestCache(t *testing.T) (*rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return rediscache.NewCacheFromClient(client), mr
}

func TestCachedProvider_ServesFromCache(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingProvider{snapshots: []ranking.StatSnapshot{{Name: "Alice", PvP: 9_007_199_254_740_993}}}
	provider := NewCachedProvider(inner, cache, time.Minute, nil)
	ctx := context.Background()

	first, err := provider.FetchGuildMemberStats(ctx, "g1")
	require.NoError(t, err)
	second, err := provider.FetchGuildMemberStats(ctx, "g1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	raw, err := mr.Get(rediscache.GuildStatsKey("g1"))
	require.NoError(t, err)
	var stored []ranking.StatSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, first, stored)

	mr.FastForward(2 * time.Minute)
	_, err = provider.FetchGuildMemberStats(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	require.NoError(t, provider.Invalidate(ctx, "g1"))
	_, err = provider.FetchGuildMemberStats(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingProvider{err: ranking.ErrUpstreamUnavailable}
	provider := NewCachedProvider(inner, cache, 0, nil)

	_, err := provider.FetchGuildMemberStats(context.Background(), "g1")
	assert.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
	assert.False(t, mr.Exists(rediscache.GuildStatsKey("g1")))
}

func TestCachedProvider_FallsBackWhenRedisIsDown(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingProvider{snapshots: []ranking.StatSnapshot{{Name: "Bob", PvE: 1}}}
	provider := NewCachedProvider(inner, cache, time.Minute, nil)
	mr.Close()

	snapshots, err := provider.FetchGuildMemberStats(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, inner.snapshots, snapshots)
}
