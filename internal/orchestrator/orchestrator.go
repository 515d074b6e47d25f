// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/clubforge/fantrack/internal/cache"
	"github.com/clubforge/fantrack/internal/failover"
	"github.com/clubforge/fantrack/internal/stats"
	"github.com/clubforge/fantrack/internal/store"
)

// Router routes one logical read to a live backend.
type Router interface {
	Fetch(ctx context.Context, club, dataset string) ([]stats.RawObservation, failover.Source, error)
}

// Mirror receives freshly derived rows so the fallback store stays warm.
type Mirror interface {
	UpsertStats(ctx context.Context, club, dataset string, rows []stats.DerivedRow) error
}

// Result is one successful load. Warning is empty for fresh data and a
// human-readable staleness notice when a cached copy was served; the
// presentation layer shows it verbatim.
type Result struct {
	Rows      []stats.DerivedRow `json:"rows"`
	Source    string             `json:"source"`
	Warning   string             `json:"warning,omitempty"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Orchestrator composes fetch, derivation and caching for logical reads.
// It is the single owner of cache mutation for any key: concurrent loads
// of the same key share one in-flight fetch.
type Orchestrator struct {
	router  Router
	cache   *cache.TieredCache
	deriver *stats.Deriver
	mirror  Mirror // optional
	pacing  time.Duration
	logger  *zap.Logger

	group singleflight.Group
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMirror enables mirroring fresh primary reads to the secondary store.
func WithMirror(m Mirror) Option {
	return func(o *Orchestrator) { o.mirror = m }
}

// WithPacing sets the minimum spacing between upstream calls in a bulk
// sweep.
func WithPacing(d time.Duration) Option {
	return func(o *Orchestrator) { o.pacing = d }
}

// New creates an orchestrator.
func New(router Router, c *cache.TieredCache, deriver *stats.Deriver, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		router:  router,
		cache:   c,
		deriver: deriver,
		pacing:  2 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Key builds the cache key for a dataset.
func Key(club, dataset string) string {
	return club + "/" + dataset
}

// Load returns derived rows for the dataset: an unexpired cached copy when
// one exists, otherwise a fresh fetch, otherwise the best stale copy with
// a staleness warning. Only when every tier comes up empty does it return
// ErrNoDataAvailable.
//
// The cache is peeked rather than read destructively so that an expired
// copy survives long enough to serve as the last resort of this same
// logical read; a successful fetch replaces it via Set.
func (o *Orchestrator) Load(ctx context.Context, club, dataset string) (*Result, error) {
	key := Key(club, dataset)

	cachedRows, cachedAt, cached := o.cache.GetStale(key)
	if cached && time.Since(cachedAt) < o.cache.TTL() {
		loadsTotal.WithLabelValues("cache").Inc()
		return &Result{Rows: cachedRows, Source: "cache", FetchedAt: cachedAt}, nil
	}

	res, err := o.fetchShared(ctx, club, dataset, key)
	if err == nil {
		loadsTotal.WithLabelValues(res.Source).Inc()
		return res, nil
	}

	// Fatal faults are never papered over with old data.
	if isFatal(err) {
		loadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if cached {
		age := time.Since(cachedAt).Truncate(time.Minute)
		warning := fmt.Sprintf("serving cached data (age %s): live sources unavailable", age)
		o.logger.Warn("serving degraded cached copy",
			zap.String("key", key),
			zap.Duration("age", age),
			zap.Error(err))
		loadsTotal.WithLabelValues("degraded").Inc()
		return &Result{Rows: cachedRows, Source: "cache", Warning: warning, FetchedAt: cachedAt}, nil
	}

	loadsTotal.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%s: %w (temporarily unavailable: %v)", key, store.ErrNoDataAvailable, err)
}

// Refresh forces a fresh fetch for the dataset, bypassing the unexpired
// cache short-circuit. Used by the sweep and by on-demand refresh
// commands.
func (o *Orchestrator) Refresh(ctx context.Context, club, dataset string) (*Result, error) {
	return o.fetchShared(ctx, club, dataset, Key(club, dataset))
}

// Invalidate drops the cached copy of a dataset, e.g. after an external
// write made it stale.
func (o *Orchestrator) Invalidate(club, dataset string) {
	o.cache.Invalidate(Key(club, dataset))
}

// fetchShared runs one fetch-derive-store cycle per key, deduplicating
// concurrent callers through singleflight.
func (o *Orchestrator) fetchShared(ctx context.Context, club, dataset, key string) (*Result, error) {
	v, err, shared := o.group.Do(key, func() (interface{}, error) {
		return o.fetchAndStore(ctx, club, dataset, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		o.logger.Debug("fetch deduplicated", zap.String("key", key))
	}
	return v.(*Result), nil
}

func (o *Orchestrator) fetchAndStore(ctx context.Context, club, dataset, key string) (*Result, error) {
	raw, src, err := o.router.Fetch(ctx, club, dataset)
	if err != nil {
		return nil, err
	}

	derived, err := o.deriver.Derive(raw)
	if err != nil {
		return nil, err
	}

	o.cache.Set(key, derived)

	if o.mirror != nil && src == failover.SourcePrimary {
		go o.mirrorRows(club, dataset, derived)
	}

	return &Result{Rows: derived, Source: string(src), FetchedAt: time.Now()}, nil
}

// mirrorRows pushes fresh rows to the secondary store in the background.
func (o *Orchestrator) mirrorRows(club, dataset string, rows []stats.DerivedRow) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.mirror.UpsertStats(ctx, club, dataset, rows); err != nil {
		o.logger.Warn("secondary mirror failed",
			zap.String("club", club),
			zap.String("dataset", dataset),
			zap.Error(err))
	}
}

// CacheStats exposes the cache summary for the admin surface.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// InvalidateAll clears the whole cache.
func (o *Orchestrator) InvalidateAll() {
	o.cache.InvalidateAll()
}

// isFatal mirrors the coordinator's classification: auth, malformed
// payloads and broken datasets surface instead of degrading to cache.
func isFatal(err error) bool {
	var die *store.DataIntegrityError
	if errors.As(err, &die) {
		return true
	}
	var te *store.TransportError
	if errors.As(err, &te) {
		return !te.Retryable
	}
	return false
}
