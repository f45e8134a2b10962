package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T) (*Cache, *MemoryStore, *fakeClock) {
	t.Helper()
	store, err := NewMemoryStore(16, 0)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return New(store, "memory", nil), store, clock
}

func TestGetOrComputeMemoizesUntilExpiry(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "https://signed.example/obj?v=" + strconv.Itoa(calls), nil
	}

	first, err := GetOrCompute(ctx, c, "download:obj", time.Minute, compute)
	require.NoError(t, err)
	second, err := GetOrCompute(ctx, c, "download:obj", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)

	third, err := GetOrCompute(ctx, c, "download:obj", time.Minute, compute)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeStructValues(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	type ticket struct {
		URL       string    `json:"url"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	want := ticket{URL: "https://signed.example", ExpiresAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)}

	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (ticket, error) { return want, nil })
	require.NoError(t, err)

	got, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (ticket, error) {
		t.Fatalf("compute must not run on a hit")
		return ticket{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want.URL, got.URL)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestGetOrComputeSkipsEmptyValues(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "", nil
	}

	_, err := GetOrCompute(ctx, c, "empty", time.Minute, compute)
	require.NoError(t, err)
	_, err = GetOrCompute(ctx, c, "empty", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.False(t, c.Has(ctx, "empty"))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("signing failed")

	_, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, c.Has(ctx, "k"))
}

func TestRemainingTTL(t *testing.T) {
	c, store, clock := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(-2), c.RemainingTTL(ctx, "absent"))

	require.NoError(t, store.Set(ctx, "forever", []byte(`"v"`), 0))
	assert.Equal(t, int64(-1), c.RemainingTTL(ctx, "forever"))

	require.NoError(t, store.Set(ctx, "short", []byte(`"v"`), 1500*time.Millisecond))
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, int64(1000), c.RemainingTTL(ctx, "short"))

	clock.Advance(time.Second)
	assert.Equal(t, int64(-2), c.RemainingTTL(ctx, "short"))
}

func TestInvalidate(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	_, err := GetOrCompute(ctx, c, "a", time.Minute, func(context.Context) (string, error) { return "x", nil })
	require.NoError(t, err)
	require.True(t, c.Has(ctx, "a"))

	c.Invalidate(ctx, "a", "missing")
	assert.False(t, c.Has(ctx, "a"))
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store, err := NewMemoryStore(2, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	_, _, _ = store.Get(ctx, "a")
	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))

	_, okA, _ := store.Get(ctx, "a")
	_, okB, _ := store.Get(ctx, "b")
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestMemoryStoreSweepRemovesExpired(t *testing.T) {
	store, err := NewMemoryStore(8, 0)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Now()}
	store.now = clock.Now
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	clock.Advance(2 * time.Second)

	store.sweep()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreCloseStopsJanitor(t *testing.T) {
	store, err := NewMemoryStore(8, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

// failingStore simulates an unreachable backend.
type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }
func (f failingStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, f.err
}
func (f failingStore) Close() error { return nil }

func TestCacheFailsOpen(t *testing.T) {
	c := New(failingStore{err: errors.New("connection refused")}, "redis", nil)
	ctx := context.Background()

	calls := 0
	for i := 0; i < 2; i++ {
		v, err := GetOrCompute(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
			calls++
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, 2, calls)
	assert.False(t, c.Has(ctx, "k"))
	assert.Equal(t, int64(-2), c.RemainingTTL(ctx, "k"))
	c.Invalidate(ctx, "k")
}

func TestNilCacheComputes(t *testing.T) {
	var c *Cache
	v, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.NoError(t, c.Close())
}
