package throttle_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/chefguard/internal/throttle"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration, time.Time) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unreachable")
}

func (failingStore) Release(context.Context, string) error {
	return errors.New("store unreachable")
}

func TestThrottle_MemoryStore_BlocksAfterLimit(t *testing.T) {
	clock := newClock()
	th := throttle.New("check-rate-limit", throttle.NewMemoryStore(),
		throttle.Config{MaxRequests: 30, Window: time.Minute},
		discardLogger(), &throttle.Options{TimeProvider: clock.Now})

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		res := th.Allow(ctx, "203.0.113.7")
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		clock.Advance(time.Second)
	}

	res := th.Allow(ctx, "203.0.113.7")
	assert.False(t, res.Allowed)
	assert.LessOrEqual(t, res.RetryAfter, 60)
	assert.Equal(t, 30, res.RetryAfter, "window opened 30s ago")
}

func TestThrottle_MemoryStore_WindowResets(t *testing.T) {
	clock := newClock()
	th := throttle.New("send-password-reset", throttle.NewMemoryStore(),
		throttle.Config{MaxRequests: 1, Window: 15 * time.Minute},
		discardLogger(), &throttle.Options{TimeProvider: clock.Now})

	ctx := context.Background()
	assert.True(t, th.Allow(ctx, "ip").Allowed)
	assert.False(t, th.Allow(ctx, "ip").Allowed)

	clock.Advance(15*time.Minute + time.Millisecond)
	assert.True(t, th.Allow(ctx, "ip").Allowed)
}

func TestThrottle_IsolatesKeysAndScopes(t *testing.T) {
	clock := newClock()
	store := throttle.NewMemoryStore()
	cfg := throttle.Config{MaxRequests: 1, Window: time.Minute}
	a := throttle.New("a", store, cfg, discardLogger(), &throttle.Options{TimeProvider: clock.Now})
	b := throttle.New("b", store, cfg, discardLogger(), &throttle.Options{TimeProvider: clock.Now})

	ctx := context.Background()
	assert.True(t, a.Allow(ctx, "ip-1").Allowed)
	assert.True(t, a.Allow(ctx, "ip-2").Allowed)
	assert.True(t, b.Allow(ctx, "ip-1").Allowed)
	assert.False(t, a.Allow(ctx, "ip-1").Allowed)
}

func TestThrottle_FailsOpenOnStoreError(t *testing.T) {
	th := throttle.New("scope", failingStore{}, throttle.Config{MaxRequests: 1, Window: time.Minute}, discardLogger(), nil)

	for i := 0; i < 5; i++ {
		assert.True(t, th.Allow(context.Background(), "ip").Allowed)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := throttle.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "short", time.Minute, now)
	_, _, _ = store.Hit(ctx, "long", time.Hour, now)
	require.Equal(t, 2, store.Len())

	removed := store.Sweep(now.Add(2 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestRedisStore_BlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newClock()
	store := throttle.NewRedisStore(client, "chefguard:throttle:")
	th := throttle.New("send-lockout-notification", store,
		throttle.Config{MaxRequests: 5, Window: 5 * time.Minute},
		discardLogger(), &throttle.Options{TimeProvider: clock.Now})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.True(t, th.Allow(ctx, "198.51.100.4").Allowed)
	}

	res := th.Allow(ctx, "198.51.100.4")
	assert.False(t, res.Allowed)
	assert.Equal(t, 300, res.RetryAfter)

	ttl := mr.TTL("chefguard:throttle:send-lockout-notification:198.51.100.4")
	assert.Equal(t, 5*time.Minute, ttl)

	mr.FastForward(5*time.Minute + time.Second)
	assert.True(t, th.Allow(ctx, "198.51.100.4").Allowed)
}

func TestRedisStore_UnreachableFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	th := throttle.New("scope", throttle.NewRedisStore(client, "t:"),
		throttle.Config{MaxRequests: 1, Window: time.Minute}, discardLogger(), nil)

	assert.True(t, th.Allow(context.Background(), "ip").Allowed)
	assert.True(t, th.Allow(context.Background(), "ip").Allowed)
}

func TestMemoryStore_Release(t *testing.T) {
	store := throttle.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "key", time.Minute, now)
	_, _, _ = store.Hit(ctx, "key", time.Minute, now)
	require.NoError(t, store.Release(ctx, "key"))

	count, _, err := store.Hit(ctx, "key", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStore_Release(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := throttle.NewRedisStore(client, "chefguard:throttle:")
	now := time.Now()
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "key", time.Minute, now)
	require.NoError(t, store.Release(ctx, "key"))
	assert.False(t, mr.Exists("chefguard:throttle:key"))

	count, _, err := store.Hit(ctx, "key", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_HitEvictsExpiredEntries(t *testing.T) {
	store := throttle.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// one new client address every 10ms for 100s
	for i := 0; i < 10000; i++ {
		at := now.Add(time.Duration(i) * 10 * time.Millisecond)
		_, _, err := store.Hit(ctx, fmt.Sprintf("client-%d", i), time.Minute, at)
		require.NoError(t, err)
	}
	require.Greater(t, store.Len(), 1000)

	_, _, err := store.Hit(ctx, "198.51.100.1", time.Minute, now.Add(100*time.Second+2*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len(), "expired windows are evicted without an external sweep")
}

func TestMemoryStore_HitKeepsLiveEntries(t *testing.T) {
	store := throttle.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "long", 15*time.Minute, now)
	_, _, _ = store.Hit(ctx, "short", time.Minute, now)

	count, _, err := store.Hit(ctx, "long", 15*time.Minute, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 1, store.Len())
}
