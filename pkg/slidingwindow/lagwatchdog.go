package slidingwindow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartLagWatchdog periodically compares the end of the log with the window
// tail and warns when the window trails by more than maxLag counters.
func StartLagWatchdog(ctx context.Context, log *zap.SugaredLogger, m *Manager, interval time.Duration, maxLag int64) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tail := m.Tail()
			end := m.MaxCounter()
			// An empty window has nothing to lag behind.
			var lag int64
			if tail > 0 {
				lag = end - tail
			}
			m.metrics.SetLag(lag)
			if lag > maxLag {
				log.Warnw("lag too large", "lag", lag, "tail", tail, "maxCounter", end)
			}
		}
	}
}
