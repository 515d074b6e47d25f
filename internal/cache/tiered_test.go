// internal/cache/tiered_test.go
package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/stats"
)

func i64(v int64) *int64 { return &v }

func sampleRows() []stats.DerivedRow {
	return []stats.DerivedRow{
		{Member: "kita", Day: 1, Fans: i64(100), EffectiveTarget: 10_000},
		{Member: "kita", Day: 2, Fans: i64(250), EffectiveTarget: 20_000},
	}
}

func newTestCache(t *testing.T, ttl time.Duration) *TieredCache {
	t.Helper()
	tc, err := NewTieredCache(Config{TTL: ttl, Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	return tc
}

func TestTieredCacheRoundTrip(t *testing.T) {
	tc := newTestCache(t, time.Hour)

	t0 := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	tc.now = func() time.Time { return t0 }

	tc.Set("akukin/data", sampleRows())

	rows, createdAt, ok := tc.Get("akukin/data")
	require.True(t, ok)
	assert.Equal(t, sampleRows(), rows)
	assert.True(t, createdAt.Equal(t0), "creation timestamp survives")
}

func TestTieredCacheTTL(t *testing.T) {
	t.Run("age exactly equal to TTL is expired", func(t *testing.T) {
		tc := newTestCache(t, time.Hour)

		t0 := time.Now()
		tc.now = func() time.Time { return t0 }
		tc.Set("k", sampleRows())

		// One nanosecond short of the TTL: still valid.
		tc.now = func() time.Time { return t0.Add(time.Hour - time.Nanosecond) }
		_, _, ok := tc.Get("k")
		assert.True(t, ok)

		// Exactly at the TTL: expired and purged.
		tc.now = func() time.Time { return t0.Add(time.Hour) }
		_, _, ok = tc.Get("k")
		assert.False(t, ok)

		// Purge removed both tiers.
		_, _, ok = tc.GetStale("k")
		assert.False(t, ok)
	})

	t.Run("expired entries are purged from disk on access", func(t *testing.T) {
		dir := t.TempDir()
		tc, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)

		t0 := time.Now()
		tc.now = func() time.Time { return t0 }
		tc.Set("k", sampleRows())

		files, _ := filepath.Glob(filepath.Join(dir, "*.cache"))
		require.Len(t, files, 1)

		tc.now = func() time.Time { return t0.Add(2 * time.Hour) }
		_, _, ok := tc.Get("k")
		require.False(t, ok)

		files, _ = filepath.Glob(filepath.Join(dir, "*.cache"))
		assert.Empty(t, files)
	})
}

func TestTieredCacheDurability(t *testing.T) {
	t.Run("entries survive a restart", func(t *testing.T) {
		dir := t.TempDir()

		tc1, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)
		tc1.Set("akukin/data", sampleRows())

		tc2, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)

		rows, _, ok := tc2.Get("akukin/data")
		require.True(t, ok)
		assert.Equal(t, sampleRows(), rows)
	})

	t.Run("entries already expired at load are purged, not loaded", func(t *testing.T) {
		dir := t.TempDir()

		tc1, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)
		tc1.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tc1.Set("old", sampleRows())

		tc2, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)

		_, _, ok := tc2.Get("old")
		assert.False(t, ok)

		files, _ := filepath.Glob(filepath.Join(dir, "*.cache"))
		assert.Empty(t, files, "expired file removed at load")
	})

	t.Run("unreadable cache files are dropped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.cache"), []byte("garbage"), 0o640))

		tc, err := NewTieredCache(Config{TTL: time.Hour, Dir: dir}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 0, tc.Stats().EntryCount)
	})
}

func TestTieredCacheInvalidate(t *testing.T) {
	t.Run("invalidating a missing key is a no-op", func(t *testing.T) {
		tc := newTestCache(t, time.Hour)
		assert.NotPanics(t, func() { tc.Invalidate("nope") })
	})

	t.Run("invalidate removes one key from both tiers", func(t *testing.T) {
		tc := newTestCache(t, time.Hour)
		tc.Set("a", sampleRows())
		tc.Set("b", sampleRows())

		tc.Invalidate("a")

		_, _, ok := tc.GetStale("a")
		assert.False(t, ok)
		_, _, ok = tc.Get("b")
		assert.True(t, ok)
	})

	t.Run("invalidate all clears everything", func(t *testing.T) {
		tc := newTestCache(t, time.Hour)
		tc.Set("a", sampleRows())
		tc.Set("b", sampleRows())

		tc.InvalidateAll()

		assert.Equal(t, 0, tc.Stats().EntryCount)
		_, _, ok := tc.GetStale("a")
		assert.False(t, ok)
	})
}

func TestTieredCacheStale(t *testing.T) {
	tc := newTestCache(t, time.Hour)

	t0 := time.Now()
	tc.now = func() time.Time { return t0 }
	tc.Set("k", sampleRows())

	tc.now = func() time.Time { return t0.Add(3 * time.Hour) }

	rows, createdAt, ok := tc.GetStale("k")
	require.True(t, ok, "stale peek still sees the expired entry")
	assert.Equal(t, sampleRows(), rows)
	assert.True(t, createdAt.Equal(t0))

	// And the peek did not purge it.
	_, _, ok = tc.GetStale("k")
	assert.True(t, ok)
}

func TestTieredCacheStats(t *testing.T) {
	tc := newTestCache(t, time.Hour)

	t0 := time.Now()
	tc.now = func() time.Time { return t0 }
	tc.Set("a", sampleRows())
	tc.Set("b", sampleRows())

	tc.now = func() time.Time { return t0.Add(10 * time.Minute) }
	s := tc.Stats()

	assert.Equal(t, 2, s.EntryCount)
	assert.Positive(t, s.ApproxBytes)
	require.Len(t, s.Ages, 2)
	for _, age := range s.Ages {
		assert.Equal(t, 10*time.Minute, age.Age)
	}
}
