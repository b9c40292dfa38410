package refresh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/kv"
	"warden/cmd/security/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSalt = "pepper-pepper-pepper"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newCodec(t *testing.T) *codec.Codec {
	t.Helper()
	cfg := codec.DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	c, err := codec.New(cfg)
	require.NoError(t, err)
	return c
}

func newMemoryStore(t *testing.T) (*Store, *kv.Memory, *clock) {
	t.Helper()

	clk := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	mem := kv.NewMemory()
	mem.SetClock(clk.Now)

	s, err := New(mem, newCodec(t), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Salt: testSalt, Now: clk.Now})
	require.NoError(t, err)
	return s, mem, clk
}

func user(id int64) codec.Subject {
	return codec.Subject{UserID: id, Email: "u@example.com", Name: "U", Role: codec.RoleAdmin}
}

func TestCreate_WritesThreeLinkedKeysWithOneTTL(t *testing.T) {
	s, mem, clk := newMemoryStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, user(42))
	require.NoError(t, err)
	require.NotEmpty(t, sess.Raw)
	require.Equal(t, token.HashSaltedHex(sess.Raw, testSalt), sess.Hash)
	require.True(t, token.LooksLikeHash(sess.Hash))

	keys := []string{TokenPrefix + sess.Raw, UserPrefix + "42", HashPrefix + sess.Hash}
	var ttls []time.Duration
	for _, k := range keys {
		ttl, ok := mem.TTL(k)
		require.True(t, ok, "missing %s", k)
		ttls = append(ttls, ttl)
	}
	require.Equal(t, ttls[0], ttls[1])
	require.Equal(t, ttls[0], ttls[2])
	require.Equal(t, 7*24*time.Hour, ttls[0])

	owner, err := mem.Get(ctx, UserPrefix+"42")
	require.NoError(t, err)
	require.Equal(t, sess.Raw, owner)

	rec, err := s.FindByHash(ctx, sess.Hash)
	require.NoError(t, err)
	require.Equal(t, int64(42), rec.UserID)
	require.Equal(t, "u@example.com", rec.Email)
	require.True(t, rec.IssuedAt.Equal(clk.now))
	require.True(t, rec.ExpiryDate.Equal(clk.now.Add(7*24*time.Hour)))
}

// faultyKV fails writes of keys with setPrefix and, when failDelete is set,
// every delete.
type faultyKV struct {
	*kv.Memory
	setPrefix  string
	failDelete bool
}

var errInjected = errors.New("injected store failure")

func (f *faultyKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if strings.HasPrefix(key, f.setPrefix) {
		return errInjected
	}
	return f.Memory.Set(ctx, key, value, ttl)
}

func (f *faultyKV) Delete(ctx context.Context, keys ...string) error {
	if f.failDelete {
		return errInjected
	}
	return f.Memory.Delete(ctx, keys...)
}

func TestCreate_PartialWriteRollsBack(t *testing.T) {
	ctx := context.Background()

	for _, failDelete := range []bool{false, true} {
		var logs bytes.Buffer
		mem := kv.NewMemory()
		store := &faultyKV{Memory: mem, setPrefix: HashPrefix, failDelete: failDelete}
		s, err := New(store, newCodec(t), slog.New(slog.NewTextHandler(&logs, nil)), Options{Salt: testSalt})
		require.NoError(t, err)

		_, err = s.Create(ctx, user(9))
		require.ErrorIs(t, err, errInjected)

		tokens, err := mem.ScanPrefix(ctx, TokenPrefix)
		require.NoError(t, err)
		if failDelete {
			require.Len(t, tokens, 1, "rollback could not delete")
			require.Contains(t, logs.String(), "refresh.session.rollback_failed")
			continue
		}
		require.Empty(t, tokens)
		_, err = mem.Get(ctx, UserPrefix+"9")
		require.ErrorIs(t, err, kv.ErrNotFound)
		require.NotContains(t, logs.String(), "rollback_failed")
	}
}

func TestCreate_SecondSessionSupersedesFirst(t *testing.T) {
	s, _, clk := newMemoryStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, user(7))
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Second)
	second, err := s.Create(ctx, user(7))
	require.NoError(t, err)
	require.NotEqual(t, first.Hash, second.Hash)

	_, err = s.FindByHash(ctx, first.Hash)
	require.ErrorIs(t, err, ErrNotFound)

	rec, err := s.FindByHash(ctx, second.Hash)
	require.NoError(t, err)
	require.Equal(t, int64(7), rec.UserID)

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestDeleteByHash_IsIdempotent(t *testing.T) {
	s, mem, _ := newMemoryStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, user(3))
	require.NoError(t, err)

	ok, err := s.DeleteByHash(ctx, sess.Hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.DeleteByHash(ctx, sess.Hash)
	require.NoError(t, err)
	require.False(t, ok)

	for _, k := range []string{TokenPrefix + sess.Raw, UserPrefix + "3", HashPrefix + sess.Hash} {
		exists, err := mem.Exists(ctx, k)
		require.NoError(t, err)
		require.False(t, exists, "%s must be gone", k)
	}

	ok, err = s.DeleteByHash(ctx, "never-existed")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteByUser_SafeWhenAbsent(t *testing.T) {
	s, _, _ := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteByUser(ctx, 99))

	sess, err := s.Create(ctx, user(99))
	require.NoError(t, err)
	require.NoError(t, s.DeleteByUser(ctx, 99))
	require.NoError(t, s.DeleteByUser(ctx, 99))

	_, err = s.FindByHash(ctx, sess.Hash)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.DeleteByUser(ctx, 0), ErrInvalidUser)
}

func TestFindByHash_MissingLinkIsNotFound(t *testing.T) {
	cases := []string{"raw", "user", "hash"}

	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			s, mem, _ := newMemoryStore(t)
			ctx := context.Background()

			sess, err := s.Create(ctx, user(5))
			require.NoError(t, err)

			key := map[string]string{
				"raw":  TokenPrefix + sess.Raw,
				"user": UserPrefix + "5",
				"hash": HashPrefix + sess.Hash,
			}[missing]
			require.NoError(t, mem.Delete(ctx, key))

			_, err = s.FindByHash(ctx, sess.Hash)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFindByHash_RecordExpiryDeletesSession(t *testing.T) {
	s, mem, clk := newMemoryStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, user(11))
	require.NoError(t, err)

	// Keep the keys alive past the record's own expiry, as if the store's
	// clock lagged behind.
	rec := sess.Record
	rec.ExpiryDate = clk.now.Add(time.Minute)
	encoded, err := rec.encode()
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, TokenPrefix+sess.Raw, encoded, time.Hour))

	clk.now = clk.now.Add(time.Minute)
	_, err = s.FindByHash(ctx, sess.Hash)
	require.ErrorIs(t, err, ErrNotFound)

	for _, k := range []string{TokenPrefix + sess.Raw, UserPrefix + "11", HashPrefix + sess.Hash} {
		exists, err := mem.Exists(ctx, k)
		require.NoError(t, err)
		require.False(t, exists, "%s must be cleaned up", k)
	}
}

func TestSessionsForUser(t *testing.T) {
	s, _, _ := newMemoryStore(t)
	ctx := context.Background()

	got, err := s.SessionsForUser(ctx, 8)
	require.NoError(t, err)
	require.Empty(t, got)

	sess, err := s.Create(ctx, user(8))
	require.NoError(t, err)

	got, err = s.SessionsForUser(ctx, 8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, sess.Hash, got[0].TokenHash)
	require.True(t, got[0].ExpiryDate.Equal(sess.Record.ExpiryDate))
}

func TestNew_RejectsWeakSalt(t *testing.T) {
	t.Parallel()

	for _, salt := range []string{"", "   ", "short"} {
		_, err := New(kv.NewMemory(), newCodec(t), nil, Options{Salt: salt})
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("salt %q: expected ErrConfig, got %v", salt, err)
		}
	}
}

func TestStore_OverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := New(kv.NewRedisFromClient(rdb, time.Second), newCodec(t), nil, Options{Salt: testSalt})
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := s.Create(ctx, user(21))
	require.NoError(t, err)
	require.True(t, mr.Exists(HashPrefix+sess.Hash))
	require.Equal(t, mr.TTL(TokenPrefix+sess.Raw), mr.TTL(HashPrefix+sess.Hash))

	rec, err := s.FindByHash(ctx, sess.Hash)
	require.NoError(t, err)
	require.Equal(t, int64(21), rec.UserID)

	mr.FastForward(7*24*time.Hour + time.Second)
	_, err = s.FindByHash(ctx, sess.Hash)
	require.ErrorIs(t, err, ErrNotFound)
}
