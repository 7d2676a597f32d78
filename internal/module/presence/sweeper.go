package presence

import (
	"context"
	"time"

	"github.com/codehive/collab-server/internal/shared/metrics"
	"go.uber.org/zap"
)

// Sweeper periodically removes stale cursors so the store stays bounded under
// churn. Reads stay correct without it, Active filters by age on its own.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store Store, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a new goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	removed, err := s.store.Sweep(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PresenceSweepErrors.Inc()
		}
		s.logger.Warn("presence sweep failed", zap.Error(err))
		return
	}

	if removed > 0 {
		if s.metrics != nil {
			s.metrics.CursorsSweptTotal.Add(float64(removed))
		}
		s.logger.Debug("presence sweep completed", zap.Int("removed", removed))
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
