package submit

import (
	"reflect"
	"testing"
	"time"

	"github.com/quartzgfx/vktiming/internal/clock"
	"github.com/quartzgfx/vktiming/internal/queue"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

// syncInterval is passed as a very long window in these tests so the
// submission wrapper's own cadence check never fires a sync mid-test;
// the sync protocol itself is exercised separately in package sync.
const noSyncInterval = 365 * 24 * time.Hour

func TestSplitInfoSemaphorePlacement(t *testing.T) {
	wait := []vkabi.VkSemaphore{10}
	stage := []uint32{0x2000}
	signal := []vkabi.VkSemaphore{20}
	info := SubmitInfo{WaitSemaphores: wait, WaitDstStageMask: stage, SignalSemaphores: signal}

	const n = 3
	prefix := vkabi.VkCommandBuffer(100)
	suffix := vkabi.VkCommandBuffer(200)

	first := splitInfo(info, 0, n, prefix, 1, suffix)
	if !reflect.DeepEqual(first.waitSemaphores, wait) || !reflect.DeepEqual(first.waitDstStageMask, stage) {
		t.Fatalf("expected the first split to inherit wait semaphores, got %+v", first)
	}
	if first.signalSemaphores != nil {
		t.Fatalf("expected the first of %d splits to carry no signal semaphores, got %+v", n, first.signalSemaphores)
	}
	if !reflect.DeepEqual(first.commandBuffers, []vkabi.VkCommandBuffer{prefix, 1, suffix}) {
		t.Fatalf("expected [prefix, user, suffix], got %+v", first.commandBuffers)
	}

	middle := splitInfo(info, 1, n, prefix, 2, suffix)
	if middle.waitSemaphores != nil || middle.signalSemaphores != nil {
		t.Fatalf("expected the middle split to carry no semaphores, got %+v", middle)
	}

	last := splitInfo(info, 2, n, prefix, 3, suffix)
	if !reflect.DeepEqual(last.signalSemaphores, signal) {
		t.Fatalf("expected the last split to inherit signal semaphores, got %+v", last)
	}
	if last.waitSemaphores != nil {
		t.Fatalf("expected the last of %d splits to carry no wait semaphores, got %+v", n, last.waitSemaphores)
	}
}

func TestSplitInfoSingleBufferInheritsBoth(t *testing.T) {
	wait := []vkabi.VkSemaphore{10}
	signal := []vkabi.VkSemaphore{20}
	info := SubmitInfo{WaitSemaphores: wait, SignalSemaphores: signal}

	only := splitInfo(info, 0, 1, 100, 1, 200)
	if !reflect.DeepEqual(only.waitSemaphores, wait) || !reflect.DeepEqual(only.signalSemaphores, signal) {
		t.Fatalf("expected the sole split to inherit both wait and signal semaphores, got %+v", only)
	}
}

func testDeviceAndQueue(t *testing.T, maxQueries uint32) (*vkabi.DeviceRecord, *queue.State) {
	t.Helper()
	dev := &vkabi.DeviceRecord{Handle: vkabi.VkDevice(1)}
	q := queue.New(vkabi.VkQueue(1), dev.Handle, 0, 0, maxQueries, zap.NewNop())
	q.SupportsTimestamps = true
	q.TsPeriod = 1.0
	// Prime lastSync to now so the wrapper's own cadence check doesn't
	// enqueue a sync sample mid-test; noSyncInterval keeps it quiet after.
	now := clock.BootNS()
	q.BeginSync(now)
	q.EndSync()
	return dev, q
}

func TestSubmitZeroInfosIsPassthrough(t *testing.T) {
	dev, q := testDeviceAndQueue(t, 64)
	res := Submit(dev, q, nil, 0, noSyncInterval, zap.NewNop())
	if res != vkabi.VkSuccess {
		t.Fatalf("expected VkSuccess, got %d", res)
	}
	if q.PendingLen() != 0 {
		t.Fatalf("expected no pending records for a zero-submit-info call, got %d", q.PendingLen())
	}
}

func TestSubmitSingleCommandBufferPushesOneTimingPair(t *testing.T) {
	dev, q := testDeviceAndQueue(t, 64)
	infos := []SubmitInfo{{CommandBuffers: []vkabi.VkCommandBuffer{0xABCD}}}

	res := Submit(dev, q, infos, 0, noSyncInterval, zap.NewNop())
	if res != vkabi.VkSuccess {
		t.Fatalf("expected VkSuccess, got %d", res)
	}
	if q.PendingLen() != 1 {
		t.Fatalf("expected exactly one pending record, got %d", q.PendingLen())
	}

	sub, ok := q.PopFront()
	if !ok {
		t.Fatal("expected a pending record")
	}
	if sub.Kind != queue.KindTimingPair {
		t.Fatalf("expected KindTimingPair, got %v", sub.Kind)
	}
	if sub.UserCmdBuf != 0xABCD {
		t.Fatalf("expected UserCmdBuf to be preserved for labeling, got %#x", sub.UserCmdBuf)
	}
}

func TestSubmitMultipleCommandBuffersAllocateDistinctSlots(t *testing.T) {
	dev, q := testDeviceAndQueue(t, 64)
	infos := []SubmitInfo{{CommandBuffers: []vkabi.VkCommandBuffer{1, 2, 3}}}

	res := Submit(dev, q, infos, 0, noSyncInterval, zap.NewNop())
	if res != vkabi.VkSuccess {
		t.Fatalf("expected VkSuccess, got %d", res)
	}
	if q.PendingLen() != 3 {
		t.Fatalf("expected three pending records, got %d", q.PendingLen())
	}

	seen := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		sub, ok := q.PopFront()
		if !ok {
			t.Fatalf("expected pending record %d", i)
		}
		if seen[sub.Slot] {
			t.Fatalf("slot %d claimed by more than one submission", sub.Slot)
		}
		seen[sub.Slot] = true
	}
}

func TestSubmitEmptySubmitInfoIsForwardedWithoutPendingRecord(t *testing.T) {
	dev, q := testDeviceAndQueue(t, 64)
	infos := []SubmitInfo{{}} // a SubmitInfo with no command buffers at all

	res := Submit(dev, q, infos, 0, noSyncInterval, zap.NewNop())
	if res != vkabi.VkSuccess {
		t.Fatalf("expected VkSuccess, got %d", res)
	}
	if q.PendingLen() != 0 {
		t.Fatalf("expected no pending records for a command-buffer-less SubmitInfo, got %d", q.PendingLen())
	}
}

func TestFromSubmitInfosPreservesEveryEntryUnmodified(t *testing.T) {
	infos := []SubmitInfo{
		{},
		{
			CommandBuffers:   []vkabi.VkCommandBuffer{7, 8},
			WaitSemaphores:   []vkabi.VkSemaphore{1},
			WaitDstStageMask: []uint32{0x1000},
			SignalSemaphores: []vkabi.VkSemaphore{2},
		},
	}

	raw := fromSubmitInfos(infos)
	if len(raw) != len(infos) {
		t.Fatalf("expected one raw entry per original SubmitInfo, got %d", len(raw))
	}
	if raw[0].commandBuffers != nil {
		t.Fatalf("expected the empty entry to stay empty, got %+v", raw[0])
	}
	if !reflect.DeepEqual(raw[1].commandBuffers, infos[1].CommandBuffers) {
		t.Fatalf("expected the second entry's real command buffers to survive the full-array forward, got %+v, want %+v",
			raw[1].commandBuffers, infos[1].CommandBuffers)
	}
	if !reflect.DeepEqual(raw[1].waitSemaphores, infos[1].WaitSemaphores) ||
		!reflect.DeepEqual(raw[1].waitDstStageMask, infos[1].WaitDstStageMask) ||
		!reflect.DeepEqual(raw[1].signalSemaphores, infos[1].SignalSemaphores) {
		t.Fatalf("expected semaphores to survive the full-array forward unmodified, got %+v", raw[1])
	}
}

func TestSubmitEmptySubmitInfoAmongOthersStillWrapsTheRest(t *testing.T) {
	dev, q := testDeviceAndQueue(t, 64)
	infos := []SubmitInfo{
		{},
		{CommandBuffers: []vkabi.VkCommandBuffer{0x1111}},
	}

	res := Submit(dev, q, infos, 0, noSyncInterval, zap.NewNop())
	if res != vkabi.VkSuccess {
		t.Fatalf("expected VkSuccess, got %d", res)
	}
	if q.PendingLen() != 1 {
		t.Fatalf("expected exactly one pending timing-pair record for the entry with real command buffers, got %d", q.PendingLen())
	}
	sub, ok := q.PopFront()
	if !ok {
		t.Fatal("expected a pending record")
	}
	if sub.UserCmdBuf != 0x1111 {
		t.Fatalf("expected the real command buffer's timing pair to still be recorded, got %#x", sub.UserCmdBuf)
	}
}
