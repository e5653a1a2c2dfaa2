// Package worker runs background maintenance loops.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/appointment-booking/internal/observability/metrics"
)

// MarkerSweeper deletes expired lock markers and reports how many it
// removed.  lock.SQLFallback implements it.
type MarkerSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// LockSweeper periodically purges fallback lock markers left behind by
// processes that died inside a critical section.
type LockSweeper struct {
	sweeper  MarkerSweeper
	interval time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.BookingMetrics
}

func NewLockSweeper(s MarkerSweeper, interval time.Duration, log logrus.FieldLogger, m *metrics.BookingMetrics) *LockSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LockSweeper{sweeper: s, interval: interval, log: log, metrics: m}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *LockSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.WithField("interval", w.interval).Info("lock sweeper started")
	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("lock sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *LockSweeper) sweep(ctx context.Context) {
	n, err := w.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Error("lock sweeper: sweep failed")
		}
		return
	}
	w.metrics.ObserveMarkersSwept(n)
	if n > 0 {
		w.log.WithField("removed", n).Warn("lock sweeper: removed expired lock markers")
	}
}
