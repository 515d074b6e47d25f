// internal/failover/coordinator.go
package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/stats"
	"github.com/clubforge/fantrack/internal/store"
)

// Source names which backend served a logical read.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// State is the coordinator's availability state.
type State int

const (
	StatePrimaryActive State = iota
	StateSecondaryActive
)

func (s State) String() string {
	if s == StatePrimaryActive {
		return "primary_active"
	}
	return "secondary_active"
}

// Fetcher is a backend that can produce raw observations for a dataset.
type Fetcher interface {
	FetchRaw(ctx context.Context, club, dataset string) ([]stats.RawObservation, error)
}

// Coordinator routes logical reads between the primary and secondary
// stores. One coordinator governs all datasets: primary availability is a
// property of the store, not of any one key.
//
// The per-call timeout here is an outer budget on top of the primary
// client's own retry loop, so a slow primary flips traffic to the
// secondary long before the retries would give up on their own.
type Coordinator struct {
	mu                 sync.Mutex
	state              State
	lastPrimaryFailure time.Time
	probing            bool

	primary   Fetcher
	secondary Fetcher
	timeout   time.Duration
	cooldown  time.Duration
	logger    *zap.Logger

	now func() time.Time // swapped in tests
}

// NewCoordinator creates a coordinator starting in the primary-active
// state.
func NewCoordinator(primary, secondary Fetcher, timeout, cooldown time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		state:     StatePrimaryActive,
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
	}
}

// State returns the current availability state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fetch performs one logical read, routed by the availability state.
func (c *Coordinator) Fetch(ctx context.Context, club, dataset string) ([]stats.RawObservation, Source, error) {
	tryPrimary, isProbe := c.route()

	if !tryPrimary {
		rows, err := c.secondary.FetchRaw(ctx, club, dataset)
		if err != nil {
			return nil, SourceSecondary, err
		}
		return rows, SourceSecondary, nil
	}

	rows, err := c.fetchPrimary(ctx, club, dataset)
	if err == nil {
		c.markPrimaryHealthy(isProbe)
		return rows, SourcePrimary, nil
	}

	c.markPrimaryFailed(isProbe, err)

	// Auth failures, malformed payloads and broken datasets would fail
	// against the secondary just the same; surface them instead of
	// masking the real problem with fallback data.
	if isFatal(err) {
		return nil, SourcePrimary, err
	}

	rows, serr := c.secondary.FetchRaw(ctx, club, dataset)
	if serr != nil {
		// Deliberately not wrapped: a total failure is terminal for this
		// read and the orchestrator falls back to cache regardless of how
		// each backend failed.
		return nil, SourceSecondary, fmt.Errorf("all backends failed: primary: %v, secondary: %v", err, serr)
	}
	return rows, SourceSecondary, nil
}

// route decides the backend for this read and, when the cooldown has
// elapsed, claims the single allowed recovery probe.
func (c *Coordinator) route() (tryPrimary, isProbe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePrimaryActive {
		return true, false
	}
	if c.probing {
		return false, false
	}
	if c.now().Sub(c.lastPrimaryFailure) >= c.cooldown {
		c.probing = true
		return true, true
	}
	return false, false
}

// fetchPrimary runs the primary client under the outer timeout budget.
func (c *Coordinator) fetchPrimary(ctx context.Context, club, dataset string) ([]stats.RawObservation, error) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.primary.FetchRaw(tctx, club, dataset)
}

func (c *Coordinator) markPrimaryHealthy(wasProbe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probing = false
	if c.state != StatePrimaryActive {
		c.logger.Info("primary store recovered, switching back",
			zap.Bool("via_probe", wasProbe))
	}
	c.state = StatePrimaryActive
}

func (c *Coordinator) markPrimaryFailed(wasProbe bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probing = false
	c.lastPrimaryFailure = c.now()
	if c.state == StatePrimaryActive {
		c.logger.Warn("primary store unavailable, failing over",
			zap.Duration("cooldown", c.cooldown),
			zap.Error(err))
	} else if wasProbe {
		c.logger.Info("primary probe failed, staying on secondary",
			zap.Error(err))
	}
	c.state = StateSecondaryActive
}

// isFatal reports errors that failover cannot fix.
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
