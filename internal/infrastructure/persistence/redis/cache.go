// Package redis implements the Redis-backed pieces of the ranking bot:
// the guild stats cache, the daily cycle lock and a SnapshotStore.
//
// Key layout:
//
//	stats:guild:{guild_id}   cached member statistics (JSON, short TTL)
//	lock:{resource}          distributed lock token
//	ranking:{namespace}:...  persisted snapshots, see SnapshotStore
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns settings for a local Redis.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns "host:port".
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

var (
	// ErrCacheMiss is returned by GetJSON when the key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrLockNotHeld is returned when releasing a lock that expired or
	// was taken over by another holder.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

const (
	prefixRanking = "ranking:"
	prefixStats   = "stats:"
	prefixLock    = "lock:"

	// TTLGuildStats is the default lifetime of cached member statistics.
	TTLGuildStats = 2 * time.Minute

	// defaultLockTTL applies when TryLock is given a non-positive ttl.
	defaultLockTTL = 2 * time.Minute
)

// GuildStatsKey is the cache key of a guild's member statistics.
func GuildStatsKey(guildID string) string {
	return prefixStats + "guild:" + guildID
}

func lockKey(resource string) string {
	return prefixLock + resource
}

// Cache wraps a go-redis client with JSON values and a lock.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and pings it within DialTimeout.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr(), err)
	}
	return &Cache{client: client}, nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetJSON stores value as JSON under key. ttl 0 means no expiry.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value under key into dest, or returns ErrCacheMiss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held distributed lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// TryLock takes the lock on resource with SET NX and a random token.
// It returns ok=false without error when someone else holds it.
func (c *Cache) TryLock(ctx context.Context, resource string, ttl time.Duration) (*Lock, bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	key := lockKey(resource)
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: c.client, key: key, token: token}, true, nil
}

// Release frees the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// AcquireLock adapts TryLock to command.DistributedLocker.
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, ok, err := c.TryLock(ctx, resource, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lock.Release, true, nil
}
