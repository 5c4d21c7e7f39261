package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/usergate-io/usergate/internal/metrics"
)

// Sweepable is the slice of a store a background sweeper needs.
type Sweepable interface {
	Sweep() int
	Len() int
}

// Sweeper periodically reclaims expired entries from a store. It is purely
// an optimization; reads stay correct whether or not it runs.
type Sweeper struct {
	store    Sweepable
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewSweeper builds a Sweeper ticking at the given interval. m may be nil.
func NewSweeper(store Sweepable, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger, metrics: m}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.store.Sweep()
			s.metrics.AddSwept(removed)
			s.metrics.SetCacheEntries(s.store.Len())
			if removed > 0 {
				s.logger.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}
