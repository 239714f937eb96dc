// Package submit implements the Submission Wrapper: the intercepted
// vkQueueSubmit that splits every user command buffer between a prefix and
// a suffix timestamp-capturing command buffer, propagates semaphores
// correctly across the split, forwards the caller's fence once all
// wrapped work retires, and enqueues a TimingPair record per user command
// buffer for the harvester to pick up later.
package submit

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/quartzgfx/vktiming/internal/clock"
	"github.com/quartzgfx/vktiming/internal/queue"
	vksync "github.com/quartzgfx/vktiming/internal/sync"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

// SubmitInfo is the Go-native rendering of a single VkSubmitInfo, already
// unmarshaled from the caller's C arrays by the loader-facing interceptor
// in package layer. Keeping this boundary in plain Go slices is what lets
// the wrapper's splitting logic be exercised by tests without touching
// raw pointers.
type SubmitInfo struct {
	WaitSemaphores    []vkabi.VkSemaphore
	WaitDstStageMask  []uint32
	CommandBuffers    []vkabi.VkCommandBuffer
	SignalSemaphores  []vkabi.VkSemaphore
}

// Passthrough forwards infos to the driver completely unwrapped, for
// queues observed but not instrumented (§4.2 step 3: no timestamp-capable
// queue family). It must marshal the real command buffer/semaphore
// pointers and counts rather than dropping them, or a genuine application
// submission on such a queue is either lost or crashes the driver on a
// null-pointer/nonzero-count mismatch.
func Passthrough(dev *vkabi.DeviceRecord, queueHandle vkabi.VkQueue, infos []SubmitInfo, fence vkabi.VkFence) vkabi.VkResult {
	return rawSubmit(dev, queueHandle, fromSubmitInfos(infos), fence)
}

// Submit runs the full wrapper algorithm and returns the result the caller
// should hand back to the application. syncInterval is the sync cadence
// threshold (§4.3's 100ms bound, configurable).
func Submit(dev *vkabi.DeviceRecord, q *queue.State, infos []SubmitInfo, fence vkabi.VkFence, syncInterval time.Duration, logger *zap.Logger) vkabi.VkResult {
	if len(infos) == 0 {
		return rawSubmit(dev, q.Queue, nil, fence)
	}

	now := clock.BootNS()
	if q.NeedsSync(now, syncInterval.Nanoseconds()) && q.BeginSync(now) {
		if err := vksync.Enqueue(dev, q); err != nil {
			logger.Warn("failed to enqueue sync sample", zap.Error(err))
			q.EndSync()
		}
	}

	for _, info := range infos {
		if len(info.CommandBuffers) == 0 {
			// Mirrors the original: an empty SubmitInfo forwards the
			// entire original array as one unwrapped call with fence
			// zero, then the loop below still runs over every entry,
			// including this one's siblings that do carry command
			// buffers — those get wrapped and resubmitted normally, so
			// they end up submitted twice. That double-submission is the
			// original's own behavior, not a defect introduced here.
			res := rawSubmit(dev, q.Queue, fromSubmitInfos(infos), 0)
			if res != vkabi.VkSuccess {
				return res
			}
			continue
		}

		n := len(info.CommandBuffers)
		for j, userBuf := range info.CommandBuffers {
			prefix, suffix, err := allocatePair(dev, q)
			if err != nil {
				logger.Error("failed to allocate helper command buffers", zap.Error(err))
				return vkabi.VkErrorInitializationFailed
			}

			slot := q.AllocatePair()
			recordPrefix(dev, q, prefix, slot)
			recordSuffix(dev, q, suffix, slot)

			wrapped := splitInfo(info, j, n, prefix, userBuf, suffix)

			pairFence, err := createFence(dev)
			if err != nil {
				freeCommandBuffers(dev, q, prefix, suffix)
				logger.Error("failed to create timing-pair fence", zap.Error(err))
				return vkabi.VkErrorInitializationFailed
			}

			res := rawSubmit(dev, q.Queue, []rawSubmitInfo{wrapped}, pairFence)
			if res != vkabi.VkSuccess {
				// Defensive free: this pair was never pushed onto pending,
				// so its helper resources would otherwise leak.
				freeCommandBuffers(dev, q, prefix, suffix)
				vkabi.Call(dev.Dispatch.DestroyFence, uintptr(dev.Handle), uintptr(pairFence), 0)
				return res
			}

			q.Push(&queue.Submission{
				Kind:       queue.KindTimingPair,
				Fence:      pairFence,
				Slot:       slot,
				Prefix:     prefix,
				Suffix:     suffix,
				UserCmdBuf: userBuf,
			})
		}
	}

	if fence != 0 {
		// Our private per-pair fences consumed the application's own work;
		// this trailing zero-command submit carries the caller's fence so
		// its signal semantics still mean "everything above has retired".
		return rawSubmit(dev, q.Queue, nil, fence)
	}
	return vkabi.VkSuccess
}

// splitInfo builds the wrapped SubmitInfo for the j-th (of n) user command
// buffer in a SubmitInfo: it always carries exactly [prefix, userBuf,
// suffix], the first split inherits the original wait semaphores, and the
// last split inherits the original signal semaphores. A SubmitInfo with a
// single command buffer inherits both.
func splitInfo(info SubmitInfo, j, n int, prefix, userBuf, suffix vkabi.VkCommandBuffer) rawSubmitInfo {
	wrapped := rawSubmitInfo{commandBuffers: []vkabi.VkCommandBuffer{prefix, userBuf, suffix}}
	if j == 0 {
		wrapped.waitSemaphores = info.WaitSemaphores
		wrapped.waitDstStageMask = info.WaitDstStageMask
	}
	if j == n-1 {
		wrapped.signalSemaphores = info.SignalSemaphores
	}
	return wrapped
}

// fromSubmitInfos marshals the entire original, unmodified SubmitInfo
// array into its raw form for an unwrapped pass-through call.
func fromSubmitInfos(infos []SubmitInfo) []rawSubmitInfo {
	out := make([]rawSubmitInfo, len(infos))
	for i, info := range infos {
		out[i] = rawSubmitInfo{
			waitSemaphores:   info.WaitSemaphores,
			waitDstStageMask: info.WaitDstStageMask,
			commandBuffers:   info.CommandBuffers,
			signalSemaphores: info.SignalSemaphores,
		}
	}
	return out
}

func allocatePair(dev *vkabi.DeviceRecord, q *queue.State) (vkabi.VkCommandBuffer, vkabi.VkCommandBuffer, error) {
	prefix, err := allocateOne(dev, q)
	if err != nil {
		return 0, 0, err
	}
	suffix, err := allocateOne(dev, q)
	if err != nil {
		vkabi.Call(dev.Dispatch.FreeCommandBuffers, uintptr(dev.Handle), uintptr(q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&prefix)))
		return 0, 0, err
	}
	return prefix, suffix, nil
}

func allocateOne(dev *vkabi.DeviceRecord, q *queue.State) (vkabi.VkCommandBuffer, error) {
	var cmdBuf vkabi.VkCommandBuffer
	info := vkabi.VkCommandBufferAllocateInfo{
		SType:              vkabi.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        q.CommandPool,
		Level:              vkabi.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	res := vkabi.CallResult(dev.Dispatch.AllocateCommandBuffers,
		uintptr(dev.Handle), vkabi.Ptr(unsafe.Pointer(&info)), vkabi.Ptr(unsafe.Pointer(&cmdBuf)))
	if res != vkabi.VkSuccess {
		return 0, fmt.Errorf("allocate command buffer: result %d", res)
	}
	vkabi.PatchDispatch(cmdBuf, dev.Handle)
	return cmdBuf, nil
}

func freeCommandBuffers(dev *vkabi.DeviceRecord, q *queue.State, bufs ...vkabi.VkCommandBuffer) {
	for i := range bufs {
		vkabi.Call(dev.Dispatch.FreeCommandBuffers, uintptr(dev.Handle), uintptr(q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&bufs[i])))
	}
}

func createFence(dev *vkabi.DeviceRecord) (vkabi.VkFence, error) {
	var fence vkabi.VkFence
	info := vkabi.VkFenceCreateInfo{SType: vkabi.StructureTypeFenceCreateInfo}
	res := vkabi.CallResult(dev.Dispatch.CreateFence, uintptr(dev.Handle), vkabi.Ptr(unsafe.Pointer(&info)), vkabi.Ptr(unsafe.Pointer(&fence)))
	if res != vkabi.VkSuccess {
		return 0, fmt.Errorf("create fence: result %d", res)
	}
	return fence, nil
}

func beginOneTime(dev *vkabi.DeviceRecord, cmdBuf vkabi.VkCommandBuffer) {
	info := vkabi.VkCommandBufferBeginInfo{
		SType: vkabi.StructureTypeCommandBufferBeginInfo,
		Flags: vkabi.CommandBufferUsageOneTimeSubmitBit,
	}
	vkabi.CallResult(dev.Dispatch.BeginCommandBuffer, uintptr(cmdBuf), vkabi.Ptr(unsafe.Pointer(&info)))
}

func recordPrefix(dev *vkabi.DeviceRecord, q *queue.State, cmdBuf vkabi.VkCommandBuffer, slot uint32) {
	beginOneTime(dev, cmdBuf)
	vkabi.Call(dev.Dispatch.CmdResetQueryPool, uintptr(cmdBuf), uintptr(q.QueryPool), uintptr(slot), 2)
	vkabi.Call(dev.Dispatch.CmdWriteTimestamp, uintptr(cmdBuf), vkabi.PipelineStageBottomOfPipe, uintptr(q.QueryPool), uintptr(slot))
	vkabi.CallResult(dev.Dispatch.EndCommandBuffer, uintptr(cmdBuf))
}

func recordSuffix(dev *vkabi.DeviceRecord, q *queue.State, cmdBuf vkabi.VkCommandBuffer, slot uint32) {
	beginOneTime(dev, cmdBuf)
	vkabi.Call(dev.Dispatch.CmdWriteTimestamp, uintptr(cmdBuf), vkabi.PipelineStageBottomOfPipe, uintptr(q.QueryPool), uintptr(slot+1))
	vkabi.CallResult(dev.Dispatch.EndCommandBuffer, uintptr(cmdBuf))
}

// rawSubmitInfo is the marshaling-ready shape of a single VkSubmitInfo;
// kept distinct from SubmitInfo so the wrapper can build it with its own
// helper command buffers spliced in.
type rawSubmitInfo struct {
	waitSemaphores   []vkabi.VkSemaphore
	waitDstStageMask []uint32
	commandBuffers   []vkabi.VkCommandBuffer
	signalSemaphores []vkabi.VkSemaphore
}

// rawSubmit marshals one or more submit infos into the driver's C layout
// and calls through vkQueueSubmit. A nil infos slice submits zero
// SubmitInfo structs, which is how both the pass-through and
// fence-forwarding paths are expressed.
func rawSubmit(dev *vkabi.DeviceRecord, queueHandle vkabi.VkQueue, infos []rawSubmitInfo, fence vkabi.VkFence) vkabi.VkResult {
	if len(infos) == 0 {
		return vkabi.CallResult(dev.Dispatch.QueueSubmit, uintptr(queueHandle), 0, 0, uintptr(fence))
	}

	cInfos := make([]vkabi.VkSubmitInfo, len(infos))
	// Keep slice-backing arrays alive across the call by holding them in
	// this function's locals; purego.SyscallN does not retain them.
	keepAlive := make([][]vkabi.VkCommandBuffer, len(infos))
	keepAliveSem := make([][]vkabi.VkSemaphore, len(infos))
	keepAliveStage := make([][]uint32, len(infos))
	keepAliveSignal := make([][]vkabi.VkSemaphore, len(infos))

	for i, info := range infos {
		ci := &cInfos[i]
		ci.SType = vkabi.StructureTypeSubmitInfo
		if len(info.commandBuffers) > 0 {
			keepAlive[i] = info.commandBuffers
			ci.CommandBufferCount = uint32(len(info.commandBuffers))
			ci.PCommandBuffers = vkabi.Ptr(unsafe.Pointer(&keepAlive[i][0]))
		}
		if len(info.waitSemaphores) > 0 {
			keepAliveSem[i] = info.waitSemaphores
			keepAliveStage[i] = info.waitDstStageMask
			ci.WaitSemaphoreCount = uint32(len(info.waitSemaphores))
			ci.PWaitSemaphores = vkabi.Ptr(unsafe.Pointer(&keepAliveSem[i][0]))
			if len(keepAliveStage[i]) > 0 {
				ci.PWaitDstStageMask = vkabi.Ptr(unsafe.Pointer(&keepAliveStage[i][0]))
			}
		}
		if len(info.signalSemaphores) > 0 {
			keepAliveSignal[i] = info.signalSemaphores
			ci.SignalSemaphoreCount = uint32(len(info.signalSemaphores))
			ci.PSignalSemaphores = vkabi.Ptr(unsafe.Pointer(&keepAliveSignal[i][0]))
		}
	}

	return vkabi.CallResult(dev.Dispatch.QueueSubmit,
		uintptr(queueHandle), uintptr(len(cInfos)), vkabi.Ptr(unsafe.Pointer(&cInfos[0])), uintptr(fence))
}
