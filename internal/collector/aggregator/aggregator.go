// Package aggregator buckets emitted timing events into per-queue windows
// and periodically summarizes them, independent of the raw per-event trace
// stream the sink already forwards.
package aggregator

import (
	"sync"
	"time"

	"github.com/quartzgfx/vktiming/internal/sink"
)

// QueueAggregator accumulates submission-interval statistics per queue
// over a rolling window, in the same style as InfraSight's per-pid
// GPUFingerprint/GPUAggregator windowing, but keyed by queue identity and
// driven off completed command-buffer intervals rather than raw eBPF events.
type QueueAggregator struct {
	windows        map[uint64]*QueueWindow
	mu             sync.Mutex
	windowDuration time.Duration
}

func NewQueueAggregator(window time.Duration) *QueueAggregator {
	return &QueueAggregator{
		windows:        make(map[uint64]*QueueWindow),
		windowDuration: window,
	}
}

func (qa *QueueAggregator) ensureWindow(queueID uint64, queueIdx uint32) *QueueWindow {
	win, ok := qa.windows[queueID]
	if !ok {
		now := time.Now()
		win = &QueueWindow{
			QueueID:     queueID,
			QueueIdx:    queueIdx,
			WindowStart: now,
			WindowEnd:   now.Add(qa.windowDuration),
			MinDurationNS: -1,
		}
		qa.windows[queueID] = win
	}
	return win
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Update folds one completed timing event into its queue's current window.
func (qa *QueueAggregator) Update(ev sink.TraceEvent) {
	qa.mu.Lock()
	defer qa.mu.Unlock()

	w := qa.ensureWindow(ev.QueueID, ev.QueueIdx)
	d := ev.EndNS - ev.StartNS
	if d < 0 {
		return
	}
	w.SubmitCount++
	w.TotalDurationNS += d
	w.AvgDurationNS = float64(w.TotalDurationNS) / float64(w.SubmitCount)
	w.MaxDurationNS = maxI64(w.MaxDurationNS, d)
	if w.MinDurationNS < 0 || d < w.MinDurationNS {
		w.MinDurationNS = d
	}
}

// Flush removes and returns every window whose end time has passed.
func (qa *QueueAggregator) Flush() []QueueWindow {
	qa.mu.Lock()
	defer qa.mu.Unlock()

	now := time.Now()
	var out []QueueWindow
	for id, w := range qa.windows {
		if now.After(w.WindowEnd) {
			duration := w.WindowEnd.Sub(w.WindowStart).Seconds()
			if duration > 0 {
				w.SubmitRate = float64(w.SubmitCount) / duration
			}
			out = append(out, *w)
			delete(qa.windows, id)
		}
	}
	return out
}
