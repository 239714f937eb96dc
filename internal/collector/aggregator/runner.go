package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run flushes completed windows on a ticker and logs a summary line per
// queue. It returns when ctx is canceled.
func (qa *QueueAggregator) Run(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(qa.windowDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range qa.Flush() {
				logger.Debug("queue submission window",
					zap.Uint64("queue_id", w.QueueID),
					zap.Uint32("queue_idx", w.QueueIdx),
					zap.Uint64("submit_count", w.SubmitCount),
					zap.Float64("avg_duration_ns", w.AvgDurationNS),
					zap.Int64("max_duration_ns", w.MaxDurationNS),
					zap.Int64("min_duration_ns", w.MinDurationNS),
					zap.Float64("submit_rate_hz", w.SubmitRate),
				)
			}
		}
	}
}
