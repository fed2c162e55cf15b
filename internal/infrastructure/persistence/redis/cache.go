// Package redis implements the Redis read-through cache for student records.
//
// Key components:
//   - Cache: JSON values with TTL under a namespace prefix, with
//     versioned invalidation so that a slow fill cannot overwrite it
//   - CachedRepository: student.Repository decorator that caches FindByID
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// KeyPrefix namespaces every key, e.g. "gradebook:".
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		KeyPrefix:    "gradebook:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheInvalidTTL is returned when an invalid TTL is provided.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// PrefixStudent is the prefix for student record keys.
const PrefixStudent = "student:"

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache stores JSON values in Redis under a common prefix.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache connects to Redis and verifies the connection.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return NewCacheWithClient(client, cfg.KeyPrefix), nil
}

// NewCacheWithClient wraps an existing client.
func NewCacheWithClient(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Client returns the underlying client, e.g. for pub/sub.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) fullKey(key string) string {
	return c.prefix + key
}

// ══════════════════════════════════════════════════════════════════════════════
// BASIC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Get decodes the JSON value stored under key into dest.
// Returns ErrCacheMiss if the key doesn't exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return nil
}

// DeleteByPattern deletes all keys matching a pattern, scanning in
// batches of 100.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if pattern == "" {
		return ErrCacheKeyEmpty
	}

	iter := c.client.Scan(ctx, 0, c.fullKey(pattern), 100).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED FILLS
// A reader that misses takes a Stamp, loads the value from the store and
// calls SetIfFresh. Writers call Invalidate (or InvalidatePattern), which
// bumps a version the fill is checked against under WATCH, so a value read
// before an invalidation is never written after it.
// ══════════════════════════════════════════════════════════════════════════════

// epochKey is bumped by InvalidatePattern.
const epochKey = "cache:epoch"

func versionKey(key string) string {
	return key + ":ver"
}

// FillStamp is the invalidation state of a key at the start of a fill.
type FillStamp struct {
	key     string
	version string
	epoch   string
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readStamp(ctx context.Context, cmd mgetter, vk, ek string) (version, epoch string, err error) {
	vals, err := cmd.MGet(ctx, vk, ek).Result()
	if err != nil {
		return "", "", err
	}
	asString := func(v any) string {
		if str, ok := v.(string); ok {
			return str
		}
		return ""
	}
	return asString(vals[0]), asString(vals[1]), nil
}

// Stamp captures the invalidation state of key.
func (c *Cache) Stamp(ctx context.Context, key string) (FillStamp, error) {
	if key == "" {
		return FillStamp{}, ErrCacheKeyEmpty
	}
	version, epoch, err := readStamp(ctx, c.client, c.fullKey(versionKey(key)), c.fullKey(epochKey))
	if err != nil {
		return FillStamp{}, err
	}
	return FillStamp{key: key, version: version, epoch: epoch}, nil
}

// SetIfFresh stores value as JSON under the stamped key unless the key was
// invalidated after the stamp was taken. It reports whether it wrote.
func (c *Cache) SetIfFresh(ctx context.Context, stamp FillStamp, value any, ttl time.Duration) (bool, error) {
	if stamp.key == "" {
		return false, ErrCacheKeyEmpty
	}
	if ttl < 0 {
		return false, ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	vk, ek := c.fullKey(versionKey(stamp.key)), c.fullKey(epochKey)
	written := false

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		version, epoch, err := readStamp(ctx, tx, vk, ek)
		if err != nil {
			return err
		}
		if version != stamp.version || epoch != stamp.epoch {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.fullKey(stamp.key), data, ttl)
			return nil
		})
		written = err == nil
		return err
	}, vk, ek)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return written, err
}

// Invalidate deletes key and bumps its version.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.fullKey(key))
		pipe.Incr(ctx, c.fullKey(versionKey(key)))
		return nil
	})
	return err
}

// InvalidatePattern bumps the cache epoch, then deletes every key
// matching pattern. Fills stamped before the call are dropped.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) error {
	if err := c.client.Incr(ctx, c.fullKey(epochKey)).Err(); err != nil {
		return err
	}
	return c.DeleteByPattern(ctx, pattern)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// StudentKey generates the cache key for a student record.
func StudentKey(id int64) string {
	return fmt.Sprintf("%s%d", PrefixStudent, id)
}
