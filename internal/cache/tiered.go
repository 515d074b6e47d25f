// internal/cache/tiered.go
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/stats"
)

// Entry is one cached dataset: the derived rows plus when they were made.
type Entry struct {
	Key       string             `json:"key"`
	CreatedAt time.Time          `json:"created_at"`
	Rows      []stats.DerivedRow `json:"rows"`
}

// Config holds cache tuning.
type Config struct {
	TTL time.Duration
	Dir string
}

// KeyAge pairs a cache key with its current age.
type KeyAge struct {
	Key string        `json:"key"`
	Age time.Duration `json:"age"`
}

// Stats is a point-in-time cache summary.
type Stats struct {
	EntryCount  int      `json:"entry_count"`
	ApproxBytes int64    `json:"approx_bytes"`
	Ages        []KeyAge `json:"ages"`
}

// TieredCache keeps derived datasets in memory with a durable on-disk
// copy. Memory is authoritative while the process runs; disk survives
// restarts. An entry is valid while now - created_at < ttl; anything at or
// past the TTL is purged from both tiers on access.
type TieredCache struct {
	mu     sync.RWMutex
	mem    map[string]*Entry
	ttl    time.Duration
	dir    string
	logger *zap.Logger

	now func() time.Time // swapped in tests
}

// NewTieredCache creates the cache and eagerly loads the durable tier,
// discarding anything already expired.
func NewTieredCache(cfg Config, logger *zap.Logger) (*TieredCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	tc := &TieredCache{
		mem:    make(map[string]*Entry),
		ttl:    cfg.TTL,
		dir:    cfg.Dir,
		logger: logger,
		now:    time.Now,
	}
	tc.loadDurable()
	return tc, nil
}

// Get returns the rows and creation time for key, or ok=false. Expired
// entries are deleted from both tiers before reporting a miss.
func (tc *TieredCache) Get(key string) ([]stats.DerivedRow, time.Time, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.mem[key]
	if !ok {
		// Not in memory; the durable tier may still have it (e.g. the
		// entry was written by a previous process and the startup load
		// raced a concurrent invalidation).
		entry = tc.readDurable(key)
		if entry == nil {
			cacheMisses.WithLabelValues("disk").Inc()
			return nil, time.Time{}, false
		}
		if tc.expired(entry) {
			tc.removeDurable(key)
			cacheMisses.WithLabelValues("disk").Inc()
			return nil, time.Time{}, false
		}
		// Promote into memory.
		tc.mem[key] = entry
		cacheHits.WithLabelValues("disk").Inc()
		cacheEntries.Set(float64(len(tc.mem)))
		return entry.Rows, entry.CreatedAt, true
	}

	if tc.expired(entry) {
		delete(tc.mem, key)
		tc.removeDurable(key)
		cacheEvictions.Inc()
		cacheMisses.WithLabelValues("memory").Inc()
		cacheEntries.Set(float64(len(tc.mem)))
		return nil, time.Time{}, false
	}

	cacheHits.WithLabelValues("memory").Inc()
	return entry.Rows, entry.CreatedAt, true
}

// TTL returns the configured entry lifetime.
func (tc *TieredCache) TTL() time.Duration {
	return tc.ttl
}

// GetStale returns whatever copy exists for key regardless of TTL and
// without the purge side effect of Get. The orchestrator peeks through
// this so an expired copy is still around as a last resort when every
// live source fails; the copy is replaced (not returned as valid) on the
// next successful refresh.
func (tc *TieredCache) GetStale(key string) ([]stats.DerivedRow, time.Time, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if entry, ok := tc.mem[key]; ok {
		return entry.Rows, entry.CreatedAt, true
	}
	if entry := tc.readDurable(key); entry != nil {
		return entry.Rows, entry.CreatedAt, true
	}
	return nil, time.Time{}, false
}

// Set stores rows under key. The memory write always succeeds; the durable
// write is best effort and only logged on failure.
func (tc *TieredCache) Set(key string, rows []stats.DerivedRow) {
	entry := &Entry{Key: key, CreatedAt: tc.now(), Rows: rows}

	tc.mu.Lock()
	tc.mem[key] = entry
	cacheEntries.Set(float64(len(tc.mem)))
	tc.mu.Unlock()

	if err := tc.writeDurable(entry); err != nil {
		tc.logger.Warn("durable cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Invalidate removes one key from both tiers. Unknown keys are a no-op.
func (tc *TieredCache) Invalidate(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	delete(tc.mem, key)
	tc.removeDurable(key)
	cacheEntries.Set(float64(len(tc.mem)))
}

// InvalidateAll clears both tiers.
func (tc *TieredCache) InvalidateAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for key := range tc.mem {
		tc.removeDurable(key)
	}
	// Sweep durable-only leftovers too.
	if files, err := filepath.Glob(filepath.Join(tc.dir, "*.cache")); err == nil {
		for _, f := range files {
			_ = os.Remove(f)
		}
	}
	tc.mem = make(map[string]*Entry)
	cacheEntries.Set(0)
}

// Stats reports entry count, approximate payload size and per-key ages.
func (tc *TieredCache) Stats() Stats {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	s := Stats{EntryCount: len(tc.mem)}
	now := tc.now()
	for key, entry := range tc.mem {
		s.ApproxBytes += int64(len(entry.Rows)) * approxRowBytes
		s.Ages = append(s.Ages, KeyAge{Key: key, Age: now.Sub(entry.CreatedAt)})
	}
	return s
}

// Flush writes every in-memory entry to the durable tier. Called at
// shutdown so best-effort writes that failed earlier get one more chance.
func (tc *TieredCache) Flush() {
	tc.mu.RLock()
	entries := make([]*Entry, 0, len(tc.mem))
	for _, e := range tc.mem {
		entries = append(entries, e)
	}
	tc.mu.RUnlock()

	for _, e := range entries {
		if err := tc.writeDurable(e); err != nil {
			tc.logger.Warn("flush write failed", zap.String("key", e.Key), zap.Error(err))
		}
	}
}

// approxRowBytes is a rough serialized size per derived row, good enough
// for the stats surface.
const approxRowBytes = 96

func (tc *TieredCache) expired(e *Entry) bool {
	return tc.now().Sub(e.CreatedAt) >= tc.ttl
}

// loadDurable reads every durable record at startup, purging expired ones
// instead of loading them.
func (tc *TieredCache) loadDurable() {
	files, err := filepath.Glob(filepath.Join(tc.dir, "*.cache"))
	if err != nil {
		tc.logger.Warn("durable cache scan failed", zap.Error(err))
		return
	}

	loaded, purged := 0, 0
	for _, path := range files {
		entry, err := tc.decodeFile(path)
		if err != nil {
			tc.logger.Warn("dropping unreadable cache file",
				zap.String("path", path), zap.Error(err))
			_ = os.Remove(path)
			continue
		}
		if tc.expired(entry) {
			_ = os.Remove(path)
			purged++
			continue
		}
		tc.mem[entry.Key] = entry
		loaded++
	}
	cacheEntries.Set(float64(len(tc.mem)))

	if loaded > 0 || purged > 0 {
		tc.logger.Info("durable cache loaded",
			zap.Int("entries", loaded),
			zap.Int("expired_purged", purged))
	}
}

func (tc *TieredCache) writeDurable(entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	path := tc.pathFor(entry.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, snappy.Encode(nil, raw), 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (tc *TieredCache) readDurable(key string) *Entry {
	entry, err := tc.decodeFile(tc.pathFor(key))
	if err != nil {
		return nil
	}
	return entry
}

func (tc *TieredCache) decodeFile(path string) (*Entry, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &entry, nil
}

func (tc *TieredCache) removeDurable(key string) {
	if err := os.Remove(tc.pathFor(key)); err != nil && !os.IsNotExist(err) {
		tc.logger.Warn("durable cache delete failed",
			zap.String("key", key), zap.Error(err))
	}
}

// pathFor maps a cache key to a durable file name. Keys contain club and
// dataset names, so path separators get flattened.
func (tc *TieredCache) pathFor(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(key)
	return filepath.Join(tc.dir, safe+".cache")
}
