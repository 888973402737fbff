// Package albion implements the Albion Online gameinfo API client.
// It fetches the lifetime fame statistics of every guild member and maps
// them to ranking snapshots.
package albion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
	"github.com/alem-hub/albion-guild-ranking/pkg/circuitbreaker"
	"github.com/alem-hub/albion-guild-ranking/pkg/retry"
)

// DefaultBaseURL is the public gameinfo endpoint of the Americas server.
const DefaultBaseURL = "https://gameinfo.albiononline.com/api/gameinfo"

// maxResponseSize caps the members payload; a full guild is well under 4 MiB.
const maxResponseSize = 8 << 20

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the gameinfo client.
type ClientConfig struct {
	// BaseURL is the gameinfo API base URL, without trailing slash.
	BaseURL string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Retrier overrides the default retry policy (tests use a fast one).
	Retrier *retry.Retrier

	// Breaker overrides the default circuit breaker.
	Breaker *circuitbreaker.CircuitBreaker

	// RateLimiter overrides the default request throttle.
	RateLimiter *RateLimiter

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return ClientConfig{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Timeout:   30 * time.Second,
		UserAgent: "albion-guild-ranking/1.0",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "albion api rate limit exceeded, retry after " + e.RetryAfter.String()
}

// RetryAfterHint lets the retrier honour the server's Retry-After.
func (e *RateLimitError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// Is matches shared.ErrAlbionAPIRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == shared.ErrAlbionAPIRateLimited
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("albion api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("albion api error: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Albion gameinfo API client. It implements ranking.StatsProvider.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	limiter    *RateLimiter
	mapper     *Mapper
}

var _ ranking.StatsProvider = (*Client)(nil)

// NewClient creates a new gameinfo client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger.With("component", "albion_client")

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
		mapper: NewMapper(logger),
	}

	c.retrier = config.Retrier
	if c.retrier == nil {
		c.retrier = retry.GameAPIRetrier(
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("albion request failed, retrying",
					"attempt", attempt,
					"delay", delay,
					"error", err,
				)
			}),
		)
	}

	c.breaker = config.Breaker
	if c.breaker == nil {
		c.breaker = circuitbreaker.GameAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		})
	}

	c.limiter = config.RateLimiter
	if c.limiter == nil {
		c.limiter = NewRateLimiter(DefaultRateLimiterConfig())
	}

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// GUILD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetGuildMembers returns the raw members list of a guild.
func (c *Client) GetGuildMembers(ctx context.Context, guildID string) ([]GuildMemberDTO, error) {
	if strings.TrimSpace(guildID) == "" {
		return nil, fmt.Errorf("%w: guild id is required", shared.ErrInvalidInput)
	}

	var members []GuildMemberDTO
	path := "/guilds/" + url.PathEscape(guildID) + "/members"
	if err := c.doRequest(ctx, path, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// FetchGuildMemberStats implements ranking.StatsProvider.
// Every failure, including an empty members list, is reported as
// ranking.ErrUpstreamUnavailable.
func (c *Client) FetchGuildMemberStats(ctx context.Context, guildID string) ([]ranking.StatSnapshot, error) {
	start := time.Now()

	members, err := c.GetGuildMembers(ctx, guildID)
	if err != nil {
		c.logger.Error("failed to fetch guild members",
			"guild_id", guildID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ranking.ErrUpstreamUnavailable, err)
	}

	snapshots := c.mapper.SnapshotsFromDTOs(guildID, members)
	if len(snapshots) == 0 {
		c.logger.Warn("albion returned no guild members", "guild_id", guildID)
		return nil, fmt.Errorf("%w: empty members list for guild %s", ranking.ErrUpstreamUnavailable, guildID)
	}

	c.logger.Info("guild members fetched",
		"guild_id", guildID,
		"members", len(snapshots),
		"duration", time.Since(start),
	)

	return snapshots, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET with circuit breaking and retries.
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			err := c.doSingleRequest(ctx, path, result)
			if err != nil && c.isRetryable(ctx, err) {
				return retry.Retryable(err)
			}
			return err
		})
	})
	if circuitbreaker.IsRejection(err) {
		return fmt.Errorf("%w: %w", shared.ErrAlbionAPIUnavailable, err)
	}
	return err
}

// doSingleRequest performs a single HTTP GET and decodes the JSON body.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug("albion api request", "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitHit(retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// isRetryable checks if an error is worth another attempt.
func (c *Client) isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	// The local throttle already waited its full budget.
	var waitErr *WaitTimeoutError
	if errors.As(err, &waitErr) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	// Malformed JSON is not going to fix itself on retry.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}

	// Network errors are generally retryable.
	return true
}

// parseRetryAfter reads a delay-seconds or HTTP-date Retry-After value.
func parseRetryAfter(value string) time.Duration {
	const fallback = 60 * time.Second

	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus is a point-in-time view of the client's protection state.
type ClientStatus struct {
	CircuitBreaker string            `json:"circuit_breaker"`
	Failures       int               `json:"failures"`
	RateLimiter    RateLimiterStatus `json:"rate_limiter"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		CircuitBreaker: c.breaker.State().String(),
		Failures:       c.breaker.Counts().ConsecutiveFailures,
		RateLimiter:    c.limiter.Status(),
	}
}
