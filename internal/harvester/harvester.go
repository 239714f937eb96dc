// Package harvester runs the per-queue worker that waits on fences, reads
// query-pool results, converts device ticks to host-clock nanoseconds, and
// emits trace events — or, for a SyncSample, drives the host side of the
// drift-measurement handshake.
package harvester

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/quartzgfx/vktiming/internal/queue"
	"github.com/quartzgfx/vktiming/internal/sink"
	vksync "github.com/quartzgfx/vktiming/internal/sync"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Worker owns one queue's harvest loop.
type Worker struct {
	dev    *vkabi.DeviceRecord
	q      *queue.State
	sink   sink.EventSink
	pid    uint32
	budget int
	logger *zap.Logger

	wg sync.WaitGroup
}

func New(dev *vkabi.DeviceRecord, q *queue.State, evSink sink.EventSink, pid uint32, pollBudget int, logger *zap.Logger) *Worker {
	return &Worker{dev: dev, q: q, sink: evSink, pid: pid, budget: pollBudget, logger: logger}
}

// Start launches the worker goroutine. Exactly one per queue, matching the
// concurrency model's one-thread-per-instrumented-queue design.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		// Wait keeps handing out tickets pushed before BeginExit, so every
		// pending record is harvested before the loop ends.
		ok := w.q.Wait()
		if !ok {
			return
		}
		sub, has := w.q.PopFront()
		if !has {
			continue
		}
		switch sub.Kind {
		case queue.KindSyncSample:
			vksync.Harvest(w.dev, w.q, sub, w.budget, w.logger)
		case queue.KindTimingPair:
			w.harvestPair(sub)
		}
	}
}

func (w *Worker) harvestPair(sub *queue.Submission) {
	defer func() {
		vkabi.Call(w.dev.Dispatch.FreeCommandBuffers, uintptr(w.dev.Handle), uintptr(w.q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&sub.Prefix)))
		vkabi.Call(w.dev.Dispatch.FreeCommandBuffers, uintptr(w.dev.Handle), uintptr(w.q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&sub.Suffix)))
		vkabi.Call(w.dev.Dispatch.DestroyFence, uintptr(w.dev.Handle), uintptr(sub.Fence), 0)
	}()

	res := vkabi.CallResult(w.dev.Dispatch.WaitForFences,
		uintptr(w.dev.Handle), 1, vkabi.Ptr(unsafe.Pointer(&sub.Fence)), 1, uintptr(vkabi.WholeSizeFenceWait))
	if res != vkabi.VkSuccess {
		w.logger.Warn("fence wait failed, dropping timing pair", zap.Int32("result", int32(res)))
		return
	}

	var results [2]uint64
	res = vkabi.CallResult(w.dev.Dispatch.GetQueryPoolResults,
		uintptr(w.dev.Handle), uintptr(w.q.QueryPool), uintptr(sub.Slot), 2,
		unsafe.Sizeof(results), vkabi.Ptr(unsafe.Pointer(&results[0])), 8,
		uintptr(vkabi.QueryResult64Bit|vkabi.QueryResultWaitBit))
	if res != vkabi.VkSuccess {
		w.logger.Warn("query result unavailable, dropping timing pair",
			zap.Int32("result", int32(res)), zap.Uint32("slot", sub.Slot))
		return
	}

	startNS := w.q.ToHostNS(results[0])
	endNS := w.q.ToHostNS(results[1])
	if endNS < startNS {
		w.logger.Warn("disjoint gpu timing pair, dropping", zap.Int64("start_ns", startNS), zap.Int64("end_ns", endNS))
		return
	}

	label := fmt.Sprintf("CommandBuffer:%x", uint64(sub.UserCmdBuf))
	ev := sink.TraceEvent{
		Pid:      w.pid,
		QueueID:  uint64(w.q.Queue),
		QueueIdx: w.q.QueueIdx(),
		StartNS:  startNS,
		EndNS:    endNS,
		Label:    label,
	}
	if err := w.sink.Emit(ev); err != nil {
		w.logger.Error("failed to emit trace event", zap.Error(err))
	}
}

// Close tears a worker down: mark the queue exiting, join the goroutine,
// then release its GPU resources. Failed query-pool and command-pool
// destroy results are combined into one error; event destruction results
// are not checked.
func (w *Worker) Close() error {
	w.q.BeginExit()
	w.wg.Wait()

	var errs error
	if res := vkabi.CallResult(w.dev.Dispatch.DestroyQueryPool, uintptr(w.dev.Handle), uintptr(w.q.QueryPool), 0); res != vkabi.VkSuccess {
		errs = multierr.Append(errs, fmt.Errorf("destroy query pool: result %d", res))
	}
	if res := vkabi.CallResult(w.dev.Dispatch.DestroyCommandPool, uintptr(w.dev.Handle), uintptr(w.q.CommandPool), 0); res != vkabi.VkSuccess {
		errs = multierr.Append(errs, fmt.Errorf("destroy command pool: result %d", res))
	}
	for _, ev := range []vkabi.VkEvent{w.q.GPUWait, w.q.CPUWait, w.q.CPU2Wait} {
		vkabi.Call(w.dev.Dispatch.DestroyEvent, uintptr(w.dev.Handle), uintptr(ev), 0)
	}
	return errs
}
