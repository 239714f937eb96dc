package queue

import (
	"testing"

	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

func testState(maxQueries uint32) *State {
	return New(vkabi.VkQueue(1), vkabi.VkDevice(1), 0, 0, maxQueries, zap.NewNop())
}

func TestAllocatePairNeverStraddlesRingBoundary(t *testing.T) {
	s := testState(8)
	for i := 0; i < 20; i++ {
		slot := s.AllocatePair()
		if slot+1 >= s.MaxQueries {
			t.Fatalf("iteration %d: pair (%d,%d) straddles ring of size %d", i, slot, slot+1, s.MaxQueries)
		}
	}
}

func TestAllocatePairSacrificesTailSlot(t *testing.T) {
	s := testState(8)
	// A single-slot sync sample shifts the cursor's parity so a later pair
	// allocation lands exactly on the tail slot (7) of an 8-slot ring.
	s.AllocateSingle()             // consumes 0, cursor -> 1
	if slot := s.AllocatePair(); slot != 1 {
		t.Fatalf("expected slot 1, got %d", slot)
	}
	if slot := s.AllocatePair(); slot != 3 {
		t.Fatalf("expected slot 3, got %d", slot)
	}
	if slot := s.AllocatePair(); slot != 5 {
		t.Fatalf("expected slot 5, got %d", slot)
	}
	// cursor now sits at 7 == MaxQueries-1: the next pair must sacrifice it.
	before := s.WrapGeneration()
	slot := s.AllocatePair()
	if slot != 0 {
		t.Fatalf("expected the tail slot to be sacrificed and allocation to restart at 0, got %d", slot)
	}
	if s.WrapGeneration() != before+1 {
		t.Fatalf("expected wrap generation to advance by 1, got delta %d", s.WrapGeneration()-before)
	}
}

func TestPushPopFIFOOrder(t *testing.T) {
	s := testState(64)
	subs := []*Submission{
		{Kind: KindTimingPair, Slot: 0},
		{Kind: KindTimingPair, Slot: 2},
		{Kind: KindSyncSample, Slot: 4},
	}
	for _, sub := range subs {
		s.Push(sub)
	}
	for i, want := range subs {
		if !s.Wait() {
			t.Fatalf("wait %d: unexpectedly closed", i)
		}
		got, ok := s.PopFront()
		if !ok {
			t.Fatalf("pop %d: expected an item", i)
		}
		if got != want {
			t.Fatalf("pop %d: order mismatch", i)
		}
	}
}

func TestBeginEndSyncGate(t *testing.T) {
	s := testState(64)
	if !s.BeginSync(1000) {
		t.Fatal("expected first BeginSync to succeed")
	}
	if s.BeginSync(2000) {
		t.Fatal("expected second concurrent BeginSync to fail")
	}
	s.EndSync()
	if !s.BeginSync(3000) {
		t.Fatal("expected BeginSync to succeed again after EndSync")
	}
}

func TestNeedsSync(t *testing.T) {
	s := testState(64)
	if !s.NeedsSync(1000, 100) {
		t.Fatal("expected a queue that has never synced to need a sync")
	}
	s.BeginSync(1000)
	if s.NeedsSync(5000, 100) {
		t.Fatal("expected NeedsSync to be false while a sync is in flight")
	}
	s.EndSync()
	if s.NeedsSync(1050, 100) {
		t.Fatal("expected NeedsSync to be false within the interval")
	}
	if !s.NeedsSync(1200, 100) {
		t.Fatal("expected NeedsSync to be true once the interval elapses")
	}
}

func TestToHostNSRoundTrip(t *testing.T) {
	s := testState(64)
	s.TsPeriod = 2.5
	s.SetDrift(1_000_000)

	ticks := uint64(123456)
	hostNS := s.ToHostNS(ticks)
	back := s.TicksFromHostNS(hostNS)

	if back != ticks {
		t.Fatalf("round trip mismatch: started at %d ticks, got back %d", ticks, back)
	}
}

func TestWaitReturnsFalseAfterExitDrains(t *testing.T) {
	s := testState(64)
	s.Push(&Submission{Kind: KindTimingPair})
	s.BeginExit()

	if !s.Wait() {
		t.Fatal("expected the already-pushed ticket to drain before exit is observed")
	}
	if s.Wait() {
		t.Fatal("expected Wait to report closed once drained")
	}
}

func TestQueueIdxPacksFamilyAndIndex(t *testing.T) {
	s := New(vkabi.VkQueue(1), vkabi.VkDevice(1), 3, 7, 64, zap.NewNop())
	want := uint32(3)<<16 | 7
	if got := s.QueueIdx(); got != want {
		t.Fatalf("QueueIdx() = %#x, want %#x", got, want)
	}
}
