package aggregator

import "time"

// QueueWindow is a summarized slice of a queue's submission timing over
// one aggregation window.
type QueueWindow struct {
	QueueID     uint64
	QueueIdx    uint32
	WindowStart time.Time
	WindowEnd   time.Time

	SubmitCount     uint64
	TotalDurationNS int64
	AvgDurationNS   float64
	MaxDurationNS   int64
	MinDurationNS   int64
	SubmitRate      float64 // submissions per second over the window
}
