// internal/orchestrator/bulk.go
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DatasetRef names one dataset in a bulk sweep.
type DatasetRef struct {
	Club    string
	Dataset string
}

// SweepResult summarizes one bulk refresh.
type SweepResult struct {
	SweepID   string   `json:"sweep_id"`
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// RefreshAll refreshes every named dataset serially, spacing upstream
// calls to respect the provider's rate limit. The caller bounds the whole
// sweep with a context deadline; datasets not reached in time are skipped
// and left to cache fallback on their next read.
func (o *Orchestrator) RefreshAll(ctx context.Context, refs []DatasetRef) SweepResult {
	res := SweepResult{SweepID: uuid.NewString()}
	log := o.logger.With(zap.String("sweep_id", res.SweepID))

	limiter := rate.NewLimiter(rate.Every(o.pacing), 1)

	log.Info("bulk refresh starting", zap.Int("datasets", len(refs)))
	for i, ref := range refs {
		if err := limiter.Wait(ctx); err != nil {
			res.Skipped = len(refs) - i
			log.Warn("sweep deadline reached, skipping remainder",
				zap.Int("skipped", res.Skipped))
			break
		}

		if _, err := o.Refresh(ctx, ref.Club, ref.Dataset); err != nil {
			res.Failed++
			res.Errors = append(res.Errors,
				fmt.Sprintf("%s: %v", Key(ref.Club, ref.Dataset), err))
			log.Warn("dataset refresh failed",
				zap.String("club", ref.Club),
				zap.String("dataset", ref.Dataset),
				zap.Error(err))
			continue
		}
		res.Refreshed++
	}

	log.Info("bulk refresh finished",
		zap.Int("refreshed", res.Refreshed),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
	return res
}
