// Package sync implements the three-event CPU/GPU handshake that measures
// how far a queue's device tick counter has drifted from the host boot
// clock, so the harvester can convert raw GPU timestamps into host-clock
// nanoseconds.
package sync

import (
	"fmt"
	"unsafe"

	"github.com/quartzgfx/vktiming/internal/clock"
	"github.com/quartzgfx/vktiming/internal/queue"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

// Enqueue records and submits a sync command buffer, then pushes a
// SyncSample record onto the queue's pending deque. Call sites (the
// submission wrapper's cadence check, and queue bootstrap) must have
// already won the BeginSync gate before calling this.
func Enqueue(dev *vkabi.DeviceRecord, q *queue.State) error {
	slot := q.AllocateSingle()

	var cmdBuf vkabi.VkCommandBuffer
	allocInfo := vkabi.VkCommandBufferAllocateInfo{
		SType:              vkabi.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        q.CommandPool,
		Level:              vkabi.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	if res := vkabi.CallResult(dev.Dispatch.AllocateCommandBuffers,
		uintptr(dev.Handle), vkabi.Ptr(unsafe.Pointer(&allocInfo)), vkabi.Ptr(unsafe.Pointer(&cmdBuf))); res != vkabi.VkSuccess {
		return fmt.Errorf("vktiming: allocate sync command buffer: result %d", res)
	}
	vkabi.PatchDispatch(cmdBuf, dev.Handle)

	beginInfo := vkabi.VkCommandBufferBeginInfo{
		SType: vkabi.StructureTypeCommandBufferBeginInfo,
		Flags: vkabi.CommandBufferUsageOneTimeSubmitBit,
	}
	vkabi.CallResult(dev.Dispatch.BeginCommandBuffer, uintptr(cmdBuf), vkabi.Ptr(unsafe.Pointer(&beginInfo)))

	// S1: reset the slot this sample will write into.
	vkabi.Call(dev.Dispatch.CmdResetQueryPool, uintptr(cmdBuf), uintptr(q.QueryPool), uintptr(slot), 1)
	// S2: tell the harvester the GPU has reached this point.
	vkabi.Call(dev.Dispatch.CmdSetEvent, uintptr(cmdBuf), uintptr(q.CPUWait), vkabi.PipelineStageBottomOfPipe)
	// S3: block until the harvester releases us.
	events := [1]vkabi.VkEvent{q.GPUWait}
	vkabi.Call(dev.Dispatch.CmdWaitEvents, uintptr(cmdBuf), 1, vkabi.Ptr(unsafe.Pointer(&events[0])),
		vkabi.PipelineStageBottomOfPipe, vkabi.PipelineStageBottomOfPipe, 0, 0, 0, 0, 0)
	// S4: tell the harvester we are about to write the timestamp.
	vkabi.Call(dev.Dispatch.CmdSetEvent, uintptr(cmdBuf), uintptr(q.CPU2Wait), vkabi.PipelineStageBottomOfPipe)
	// S5: the sample itself.
	vkabi.Call(dev.Dispatch.CmdWriteTimestamp, uintptr(cmdBuf), vkabi.PipelineStageBottomOfPipe, uintptr(q.QueryPool), uintptr(slot))

	vkabi.CallResult(dev.Dispatch.EndCommandBuffer, uintptr(cmdBuf))

	var fence vkabi.VkFence
	fenceInfo := vkabi.VkFenceCreateInfo{SType: vkabi.StructureTypeFenceCreateInfo}
	vkabi.CallResult(dev.Dispatch.CreateFence, uintptr(dev.Handle), vkabi.Ptr(unsafe.Pointer(&fenceInfo)), vkabi.Ptr(unsafe.Pointer(&fence)))

	submit := vkabi.VkSubmitInfo{
		SType:              vkabi.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    vkabi.Ptr(unsafe.Pointer(&cmdBuf)),
	}
	if res := vkabi.CallResult(dev.Dispatch.QueueSubmit, uintptr(q.Queue), 1, vkabi.Ptr(unsafe.Pointer(&submit)), uintptr(fence)); res != vkabi.VkSuccess {
		vkabi.Call(dev.Dispatch.DestroyFence, uintptr(dev.Handle), uintptr(fence), 0)
		vkabi.Call(dev.Dispatch.FreeCommandBuffers, uintptr(dev.Handle), uintptr(q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&cmdBuf)))
		return fmt.Errorf("vktiming: submit sync command buffer: result %d", res)
	}

	q.Push(&queue.Submission{
		Kind:   queue.KindSyncSample,
		Fence:  fence,
		Slot:   slot,
		Prefix: cmdBuf,
	})
	return nil
}

// Harvest runs the host side of the handshake (H1-H6) once a SyncSample
// has been popped off the pending deque by the harvester worker. pollBudget
// bounds the busy-poll loops; exhausting it abandons the attempt, leaving
// drift unchanged, without blocking the worker forever on a GPU that never
// reaches the wait point.
func Harvest(dev *vkabi.DeviceRecord, q *queue.State, sub *queue.Submission, pollBudget int, logger *zap.Logger) {
	defer func() {
		vkabi.Call(dev.Dispatch.ResetEvent, uintptr(dev.Handle), uintptr(q.GPUWait))
		vkabi.Call(dev.Dispatch.ResetEvent, uintptr(dev.Handle), uintptr(q.CPUWait))
		vkabi.Call(dev.Dispatch.ResetEvent, uintptr(dev.Handle), uintptr(q.CPU2Wait))
		vkabi.Call(dev.Dispatch.FreeCommandBuffers, uintptr(dev.Handle), uintptr(q.CommandPool), 1, vkabi.Ptr(unsafe.Pointer(&sub.Prefix)))
		vkabi.Call(dev.Dispatch.DestroyFence, uintptr(dev.Handle), uintptr(sub.Fence), 0)
		q.EndSync()
	}()

	// H1: wait for the GPU to signal it has started.
	if !pollEventSet(dev, q.CPUWait, pollBudget) {
		logger.Warn("sync handshake abandoned waiting for cpu_wait", zap.Uint64("queue", uint64(q.Queue)))
		return
	}

	// H2: release the GPU.
	vkabi.Call(dev.Dispatch.SetEvent, uintptr(dev.Handle), uintptr(q.GPUWait))

	// H3: wait for the GPU to reach the timestamp write.
	if !pollEventSet(dev, q.CPU2Wait, pollBudget) {
		logger.Warn("sync handshake abandoned waiting for cpu2_wait", zap.Uint64("queue", uint64(q.Queue)))
		return
	}
	afterTS := clock.BootNS()

	// H4: wait for retirement and read the device's tick count.
	vkabi.Call(dev.Dispatch.WaitForFences, uintptr(dev.Handle), 1, vkabi.Ptr(unsafe.Pointer(&sub.Fence)), 1, uintptr(vkabi.WholeSizeFenceWait))

	var deviceTicks uint64
	res := vkabi.CallResult(dev.Dispatch.GetQueryPoolResults,
		uintptr(dev.Handle), uintptr(q.QueryPool), uintptr(sub.Slot), 1,
		unsafe.Sizeof(deviceTicks), vkabi.Ptr(unsafe.Pointer(&deviceTicks)), unsafe.Sizeof(deviceTicks),
		uintptr(vkabi.QueryResult64Bit|vkabi.QueryResultWaitBit))
	if res != vkabi.VkSuccess {
		logger.Warn("sync query result unavailable", zap.Int32("result", int32(res)))
		return
	}

	// H5: drift = host_ns - ts_period * device_ticks
	drift := afterTS - int64(float64(deviceTicks)*float64(q.TsPeriod)+0.5)
	q.SetDrift(drift)

	logger.Debug("sync drift measured",
		zap.Uint64("queue", uint64(q.Queue)),
		zap.Float32("ts_period", q.TsPeriod),
		zap.Uint64("device_ticks", deviceTicks),
		zap.Int64("drift_ns", drift),
	)
}

func pollEventSet(dev *vkabi.DeviceRecord, ev vkabi.VkEvent, budget int) bool {
	for i := 0; i < budget; i++ {
		if vkabi.CallResult(dev.Dispatch.GetEventStatus, uintptr(dev.Handle), uintptr(ev)) == vkabi.VkEventSet {
			return true
		}
	}
	return false
}
