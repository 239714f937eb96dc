package sink

import "go.uber.org/zap"

// LogSink emits every event as a structured log line. Used when no trace
// bus collector is configured, and in tests.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ev TraceEvent) error {
	s.logger.Info("trace event",
		zap.Uint32("pid", ev.Pid),
		zap.Uint64("queue_id", ev.QueueID),
		zap.Uint32("queue_idx", ev.QueueIdx),
		zap.Int64("start_ns", ev.StartNS),
		zap.Int64("end_ns", ev.EndNS),
		zap.String("label", ev.Label),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
