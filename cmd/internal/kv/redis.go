package kv

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// OpTimeout bounds every individual store call.
	OpTimeout time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultRedisConfig returns local-dev defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "127.0.0.1:6379",
		OpTimeout:    500 * time.Millisecond,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     20,
	}
}

// Redis is the production Store shared by the edge and the authority.
type Redis struct {
	rdb       redis.UniversalClient
	opTimeout time.Duration
}

// NewRedis builds a client from cfg. It does not ping; call Ping to check connectivity.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, ErrConfig
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultRedisConfig().OpTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	return NewRedisFromClient(rdb, cfg.OpTimeout), nil
}

// NewRedisFromClient wraps an existing client (tests use miniredis).
func NewRedisFromClient(rdb redis.UniversalClient, opTimeout time.Duration) *Redis {
	if opTimeout <= 0 {
		opTimeout = DefaultRedisConfig().OpTimeout
	}
	return &Redis{rdb: rdb, opTimeout: opTimeout}
}

func (r *Redis) bounded(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.opTimeout)
}

// Get returns the value for key or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("get", err)
	}
	return v, nil
}

// Set writes key=value with ttl.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Exists reports whether key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("exists", err)
	}
	return n > 0, nil
}

// Delete removes keys.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// ScanPrefix iterates with SCAN MATCH <prefix>* COUNT ScanCount.
// SCAN may return a key more than once; the result is deduplicated and sorted.
func (r *Redis) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	match := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, ScanCount).Result()
		if err != nil {
			return nil, unavailable("scan", err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
