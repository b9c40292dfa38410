package kv

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name    string
	store   Store
	advance func(d time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	mem := NewMemory()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mem.SetClock(func() time.Time { return clock })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return []backend{
		{name: "memory", store: mem, advance: func(d time.Duration) { clock = clock.Add(d) }},
		{name: "redis", store: NewRedisFromClient(rdb, time.Second), advance: mr.FastForward},
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.store.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.store.Set(ctx, "k1", "v1", time.Minute))
			v, err := b.store.Get(ctx, "k1")
			require.NoError(t, err)
			require.Equal(t, "v1", v)

			ok, err := b.store.Exists(ctx, "k1")
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, b.store.Delete(ctx, "k1", "never-existed"))
			ok, err = b.store.Exists(ctx, "k1")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, b.store.Set(ctx, "short", "x", 10*time.Second))
			b.advance(9 * time.Second)
			ok, err := b.store.Exists(ctx, "short")
			require.NoError(t, err)
			require.True(t, ok, "key must live until its TTL")

			b.advance(2 * time.Second)
			ok, err = b.store.Exists(ctx, "short")
			require.NoError(t, err)
			require.False(t, ok, "key must be gone after its TTL")
		})
	}
}

func TestStore_SetRejectsNonPositiveTTL(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			err := b.store.Set(context.Background(), "k", "v", 0)
			require.ErrorIs(t, err, ErrInvalidTTL)
		})
	}
}

func TestStore_ScanPrefix(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()

			for _, k := range []string{"jwt:blacklist:a", "jwt:blacklist:b", "jwt:user_invalidate:1", "other"} {
				require.NoError(t, b.store.Set(ctx, k, "x", time.Minute))
			}

			keys, err := b.store.ScanPrefix(ctx, "jwt:blacklist:")
			require.NoError(t, err)
			require.Equal(t, []string{"jwt:blacklist:a", "jwt:blacklist:b"}, keys)

			keys, err = b.store.ScanPrefix(ctx, "nothing:")
			require.NoError(t, err)
			require.Empty(t, keys)
		})
	}
}

func TestRedis_ScanPrefix_ManyKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisFromClient(rdb, time.Second)

	ctx := context.Background()
	for i := 0; i < 2500; i++ {
		require.NoError(t, s.Set(ctx, "refresh_token:"+strconv.Itoa(i), "x", time.Hour))
	}
	keys, err := s.ScanPrefix(ctx, "refresh_token:")
	require.NoError(t, err)
	require.Len(t, keys, 2500)
}

func TestRedis_UnavailableWrapsError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisFromClient(rdb, 200*time.Millisecond)

	mr.Close()

	_, err := s.Get(context.Background(), "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("transport failure must not look like a miss")
	}
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Fatalf("escapeGlob=%q", got)
	}
}

func TestNewRedis_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewRedis(RedisConfig{}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
