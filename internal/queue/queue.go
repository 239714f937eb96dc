// Package queue holds the per-queue timing state: the query-pool ring, the
// pending-submission deque, the harvester's ticket semaphore, and the
// three sync events, along with the slot-allocation rules that keep a
// timing pair from ever straddling the ring boundary.
package queue

import (
	"sync"

	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

// Kind discriminates the two record shapes that flow through a queue's
// pending deque.
type Kind int

const (
	KindTimingPair Kind = iota
	KindSyncSample
)

// Submission is the unit of work a harvester worker pops off the pending
// deque once enqueued by the submission wrapper or the sync protocol.
type Submission struct {
	Kind       Kind
	Fence      vkabi.VkFence
	Slot       uint32
	Prefix     vkabi.VkCommandBuffer
	Suffix     vkabi.VkCommandBuffer // zero for a SyncSample
	UserCmdBuf vkabi.VkCommandBuffer // zero for a SyncSample; used only to build the event label
}

// State is the central per-queue entity described by the data model: one
// instance is created the first time the application retrieves a given
// queue handle, and torn down when its owning device is destroyed.
type State struct {
	Queue        vkabi.VkQueue
	Device       vkabi.VkDevice
	FamilyIndex  uint32
	QueueIndex   uint32

	QueryPool   vkabi.VkQueryPool
	CommandPool vkabi.VkCommandPool
	MaxQueries  uint32

	SupportsTimestamps bool
	TsPeriod           float32

	GPUWait  vkabi.VkEvent
	CPUWait  vkabi.VkEvent
	CPU2Wait vkabi.VkEvent

	mu       sync.Mutex
	nextSlot uint32
	pending  []*Submission
	syncing  bool
	exiting  bool
	drift    int64
	lastSync int64
	wrapGen  uint64

	ticket chan struct{}

	Logger *zap.Logger
}

// New constructs queue state for a freshly bootstrapped, timestamp-capable
// queue. The harvester worker is started separately by the caller once
// the returned state is registered, so tests can exercise slot allocation
// without spinning up a goroutine.
func New(queueHandle vkabi.VkQueue, device vkabi.VkDevice, family, index uint32, maxQueries uint32, logger *zap.Logger) *State {
	return &State{
		Queue:       queueHandle,
		Device:      device,
		FamilyIndex: family,
		QueueIndex:  index,
		MaxQueries:  maxQueries,
		ticket:      make(chan struct{}, maxQueries),
		Logger:      logger,
	}
}

// QueueIdx packs the family and queue index the way send_event expects:
// (family_index << 16) | queue_index.
func (s *State) QueueIdx() uint32 {
	return s.FamilyIndex<<16 | s.QueueIndex
}

// AllocatePair claims two consecutive slots for a timing pair, applying
// the no-straddle rule: if the cursor sits at MaxQueries-1 it resets to 0
// first and sacrifices the tail slot rather than split the pair across the
// ring boundary. Returns the first of the two slots.
func (s *State) AllocatePair() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextSlot >= s.MaxQueries-1 {
		s.nextSlot = 0
		s.wrapGen++
	}
	slot := s.nextSlot
	s.nextSlot = (slot + 2) % s.MaxQueries
	return slot
}

// AllocateSingle claims one slot for a sync sample. A single slot never
// straddles anything, so no wrap check is needed beyond modulo wraparound.
func (s *State) AllocateSingle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.nextSlot
	s.nextSlot = (slot + 1) % s.MaxQueries
	return slot
}

// WrapGeneration reports how many times the ring has sacrificed a tail
// slot, for diagnostics only; it has no effect on allocation behavior.
func (s *State) WrapGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapGen
}

// Push appends a submission to the pending deque and releases one ticket
// for the harvester worker.
func (s *State) Push(sub *Submission) {
	s.mu.Lock()
	s.pending = append(s.pending, sub)
	s.mu.Unlock()
	s.ticket <- struct{}{}
}

// PopFront removes and returns the oldest pending submission. Callers must
// only invoke this after acquiring a ticket via Wait, and only one
// harvester goroutine per queue ever calls it.
func (s *State) PopFront() (*Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, false
	}
	sub := s.pending[0]
	s.pending = s.pending[1:]
	return sub, true
}

// Wait blocks until a ticket is available or the queue starts exiting.
// Returns false once exiting has been observed and no further tickets
// remain to drain.
func (s *State) Wait() bool {
	_, ok := <-s.ticket
	return ok
}

// PendingLen reports the current depth of the pending deque.
func (s *State) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// BeginSync attempts to transition into the single-sync-in-flight state.
// Returns false if a sync is already outstanding.
func (s *State) BeginSync(now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return false
	}
	s.syncing = true
	s.lastSync = now
	return true
}

// EndSync clears the in-flight sync gate, whether the attempt completed or
// was abandoned.
func (s *State) EndSync() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}

// NeedsSync reports whether more than interval nanoseconds have elapsed
// since the last sync attempt and no sync is currently in flight.
func (s *State) NeedsSync(now int64, intervalNs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return false
	}
	return now-s.lastSync > intervalNs
}

// SetDrift records a newly measured drift offset.
func (s *State) SetDrift(d int64) {
	s.mu.Lock()
	s.drift = d
	s.mu.Unlock()
}

// Drift returns the current drift offset: host_ns ≈ drift + ticks*ts_period.
func (s *State) Drift() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drift
}

// ToHostNS converts a raw device tick count to a host boot-clock
// nanosecond timestamp using the current drift and tick period.
func (s *State) ToHostNS(ticks uint64) int64 {
	d := s.Drift()
	return d + int64(float64(ticks)*float64(s.TsPeriod)+0.5)
}

// TicksFromHostNS is the round-trip inverse of ToHostNS, used by tests to
// verify the conversion law holds within a tick's rounding error.
func (s *State) TicksFromHostNS(hostNS int64) uint64 {
	d := s.Drift()
	if s.TsPeriod == 0 {
		return 0
	}
	delta := float64(hostNS - d)
	if delta < 0 {
		delta = 0
	}
	return uint64(delta/float64(s.TsPeriod) + 0.5)
}

// BeginExit marks the queue as tearing down and closes the ticket channel
// so a blocked harvester wakes up: any tickets already queued drain
// normally, and the next receive past them reports closed.
func (s *State) BeginExit() {
	s.mu.Lock()
	s.exiting = true
	s.mu.Unlock()
	close(s.ticket)
}

// Exiting reports whether teardown has begun.
func (s *State) Exiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exiting
}
