package aggregator

import (
	"context"
	"time"

	"github.com/quartzgfx/vktiming/internal/sink"
	"go.uber.org/zap"
)

// AggregatingSink wraps an EventSink, feeding every emitted event into a
// QueueAggregator before forwarding it unchanged. Used when
// VKTIMING_STATS_WINDOW_MS enables windowed diagnostics alongside the raw
// per-event trace stream.
type AggregatingSink struct {
	inner sink.EventSink
	agg   *QueueAggregator
	stop  context.CancelFunc
}

func NewAggregatingSink(inner sink.EventSink, window time.Duration, logger *zap.Logger) *AggregatingSink {
	agg := NewQueueAggregator(window)
	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx, logger)
	return &AggregatingSink{inner: inner, agg: agg, stop: cancel}
}

func (s *AggregatingSink) Emit(ev sink.TraceEvent) error {
	s.agg.Update(ev)
	return s.inner.Emit(ev)
}

func (s *AggregatingSink) Close() error {
	s.stop()
	return s.inner.Close()
}
