// Package sink is the Event Sink Adapter: the thin boundary between the
// harvester worker and whatever trace bus timing events ultimately land
// on. It exposes a single EventSink interface; concrete sinks (log-only,
// gRPC) plug in behind it.
package sink

// TraceEvent is the Go-side rendering of the send_event C-ABI call: a
// completed GPU command-buffer interval correlated to the host boot
// clock.
type TraceEvent struct {
	Pid      uint32
	QueueID  uint64
	QueueIdx uint32 // (family_index << 16) | queue_index
	StartNS  int64
	EndNS    int64
	Label    string
}

// EventSink is the caller-owned boundary send_event crosses. The caller
// owns Label's backing string; a sink that needs it beyond the call must
// copy it.
type EventSink interface {
	Emit(ev TraceEvent) error
	Close() error
}
