// Package layer implements the loader-facing interceptors: instance and
// device creation/destruction, queue retrieval, queue submission, and the
// GetProcAddr pair the Vulkan loader calls to resolve every other
// function. It is the glue that wires the registry, queue state,
// submission wrapper, sync protocol, and harvester together into
// something a loader can actually load.
package layer

import (
	"os"
	"unsafe"

	"github.com/quartzgfx/vktiming/internal/clock"
	"github.com/quartzgfx/vktiming/internal/config"
	"github.com/quartzgfx/vktiming/internal/harvester"
	"github.com/quartzgfx/vktiming/internal/queue"
	"github.com/quartzgfx/vktiming/internal/registry"
	"github.com/quartzgfx/vktiming/internal/sink"
	"github.com/quartzgfx/vktiming/internal/submit"
	vksync "github.com/quartzgfx/vktiming/internal/sync"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"go.uber.org/zap"
)

// Layer is the process-wide state the six intercepted entry points share:
// the dispatch registry, the configured event sink, and the host pid
// stamped onto every emitted event.
type Layer struct {
	reg    *registry.Registry
	cfg    *config.Config
	sink   sink.EventSink
	logger *zap.Logger
	pid    uint32

	workers map[vkabi.VkQueue]*harvester.Worker
}

func New(cfg *config.Config, evSink sink.EventSink, logger *zap.Logger) *Layer {
	return &Layer{
		reg:     registry.New(),
		cfg:     cfg,
		sink:    evSink,
		logger:  logger,
		pid:     uint32(os.Getpid()),
		workers: make(map[vkabi.VkQueue]*harvester.Worker),
	}
}

// CreateInstance walks the pNext chain for the loader's link info, calls
// through to the next layer's/driver's vkCreateInstance, then registers
// the resulting instance together with the dispatch pointers it will need
// to forward future instance-level calls.
func (l *Layer) CreateInstance(createInfo *vkabi.VkInstanceCreateInfo, allocator uintptr, pInstance *vkabi.VkInstance) vkabi.VkResult {
	nextGIPA := vkabi.NextInstanceProcAddr(createInfo)
	if nextGIPA == 0 {
		return vkabi.VkErrorInitializationFailed
	}

	createFn := vkabi.ResolveInstanceProc(nextGIPA, 0, "vkCreateInstance")
	res := vkabi.CallResult(createFn, vkabi.Ptr(unsafe.Pointer(createInfo)), allocator, vkabi.Ptr(unsafe.Pointer(pInstance)))
	if res != vkabi.VkSuccess {
		return res
	}

	rec := &vkabi.InstanceRecord{
		Handle:   *pInstance,
		Dispatch: resolveInstanceDispatch(nextGIPA, *pInstance),
		NextGIPA: nextGIPA,
	}
	if err := l.reg.RegisterInstance(rec); err != nil {
		l.logger.Error("duplicate instance handle", zap.Error(err))
		return vkabi.VkErrorInitializationFailed
	}

	l.enumeratePhysicalDevices(rec)
	return vkabi.VkSuccess
}

func (l *Layer) enumeratePhysicalDevices(rec *vkabi.InstanceRecord) {
	var count uint32
	vkabi.CallResult(rec.Dispatch.EnumeratePhysicalDevices, uintptr(rec.Handle), vkabi.Ptr(unsafe.Pointer(&count)), 0)
	if count == 0 {
		return
	}
	devices := make([]vkabi.VkPhysicalDevice, count)
	vkabi.CallResult(rec.Dispatch.EnumeratePhysicalDevices, uintptr(rec.Handle), vkabi.Ptr(unsafe.Pointer(&count)), vkabi.Ptr(unsafe.Pointer(&devices[0])))
	for _, pd := range devices {
		l.reg.RegisterPhysicalDevice(&vkabi.PhysicalDeviceRecord{Handle: pd, Instance: rec.Handle})
	}
}

func (l *Layer) DestroyInstance(instance vkabi.VkInstance, allocator uintptr) {
	rec, ok := l.reg.Instance(instance)
	if !ok {
		return
	}
	vkabi.Call(rec.Dispatch.DestroyInstance, uintptr(instance), allocator)
	l.reg.RemoveInstance(instance)
}

// CreateDevice mirrors CreateInstance at the device level, then reads the
// physical device's timestamp period, which future queue bootstraps on
// this device use.
func (l *Layer) CreateDevice(physicalDevice vkabi.VkPhysicalDevice, createInfo *vkabi.VkDeviceCreateInfo, allocator uintptr, pDevice *vkabi.VkDevice) vkabi.VkResult {
	pdRec, ok := l.reg.PhysicalDevice(physicalDevice)
	if !ok {
		return vkabi.VkErrorInitializationFailed
	}
	instRec, ok := l.reg.Instance(pdRec.Instance)
	if !ok {
		return vkabi.VkErrorInitializationFailed
	}

	nextGDPA := vkabi.NextDeviceProcAddr(createInfo)
	if nextGDPA == 0 {
		return vkabi.VkErrorInitializationFailed
	}

	createFn := vkabi.ResolveInstanceProc(instRec.NextGIPA, pdRec.Instance, "vkCreateDevice")
	res := vkabi.CallResult(createFn, uintptr(physicalDevice), vkabi.Ptr(unsafe.Pointer(createInfo)), allocator, vkabi.Ptr(unsafe.Pointer(pDevice)))
	if res != vkabi.VkSuccess {
		return res
	}

	var props vkabi.VkPhysicalDeviceProperties
	vkabi.Call(instRec.Dispatch.GetPhysicalDeviceProperties, uintptr(physicalDevice), vkabi.Ptr(unsafe.Pointer(&props)))

	rec := &vkabi.DeviceRecord{
		Handle:          *pDevice,
		PhysicalDevice:  physicalDevice,
		Dispatch:        resolveDeviceDispatch(nextGDPA, instRec.NextGIPA, *pDevice),
		NextGDPA:        nextGDPA,
		TimestampPeriod: props.Limits.TimestampPeriod(),
	}
	if err := l.reg.RegisterDevice(rec); err != nil {
		l.logger.Error("duplicate device handle", zap.Error(err))
		return vkabi.VkErrorInitializationFailed
	}
	return vkabi.VkSuccess
}

func (l *Layer) DestroyDevice(device vkabi.VkDevice, allocator uintptr) {
	rec, ok := l.reg.Device(device)
	if !ok {
		return
	}
	for _, qr := range l.reg.QueuesOfDevice(device) {
		if w, ok := l.workers[qr.Handle]; ok {
			if err := w.Close(); err != nil {
				l.logger.Error("error tearing down queue worker", zap.Error(err))
			}
			delete(l.workers, qr.Handle)
		}
		l.reg.RemoveQueue(qr.Handle)
	}
	vkabi.Call(rec.Dispatch.DestroyDevice, uintptr(device), allocator)
	l.reg.RemoveDevice(device)
}

// GetDeviceQueue bootstraps per-queue timing state the first time a given
// queue handle is observed: query-pool, command pool, sync events, and the
// harvester worker, unless the queue family doesn't support timestamps.
func (l *Layer) GetDeviceQueue(device vkabi.VkDevice, family, index uint32, pQueue *vkabi.VkQueue) {
	devRec, ok := l.reg.Device(device)
	if !ok {
		return
	}
	vkabi.Call(devRec.Dispatch.GetDeviceQueue, uintptr(device), uintptr(family), uintptr(index), vkabi.Ptr(unsafe.Pointer(pQueue)))

	if _, exists := l.reg.Queue(*pQueue); exists {
		return
	}

	validBits := l.queueFamilyTimestampBits(devRec, family)
	if validBits == 0 {
		l.reg.RegisterQueue(&registry.QueueRecord{Handle: *pQueue, Device: device})
		l.logger.Info("queue family does not support timestamps, observing only",
			zap.Uint32("family", family), zap.Uint32("index", index))
		return
	}

	st := queue.New(*pQueue, device, family, index, l.cfg.MaxQueries, l.logger)
	st.SupportsTimestamps = true
	st.TsPeriod = devRec.TimestampPeriod

	if err := l.bootstrapQueueResources(devRec, st); err != nil {
		l.logger.Error("failed to bootstrap queue resources", zap.Error(err))
		l.reg.RegisterQueue(&registry.QueueRecord{Handle: *pQueue, Device: device})
		return
	}

	l.reg.RegisterQueue(&registry.QueueRecord{Handle: *pQueue, Device: device, State: st})

	w := harvester.New(devRec, st, l.sink, l.pid, l.cfg.SyncPollBudget, l.logger)
	w.Start()
	l.workers[*pQueue] = w

	// Enqueue the initial drift sample only after the worker is running to
	// pick it up: Enqueue just records and submits a command buffer, the
	// H1-H6 busy-poll handshake runs on the harvester goroutine, never on
	// the caller's thread.
	if st.BeginSync(clock.BootNS()) {
		if err := vksync.Enqueue(devRec, st); err != nil {
			st.EndSync()
			l.logger.Warn("initial sync failed, proceeding with zero drift", zap.Error(err))
		}
	}
}

func (l *Layer) queueFamilyTimestampBits(devRec *vkabi.DeviceRecord, family uint32) uint32 {
	instRec, ok := l.reg.Instance(l.instanceOf(devRec.PhysicalDevice))
	if !ok {
		return 0
	}
	var count uint32
	vkabi.Call(instRec.Dispatch.GetPhysicalDeviceQueueFamilyProperties, uintptr(devRec.PhysicalDevice), vkabi.Ptr(unsafe.Pointer(&count)), 0)
	if family >= count {
		return 0
	}
	props := make([]vkabi.VkQueueFamilyProperties, count)
	vkabi.Call(instRec.Dispatch.GetPhysicalDeviceQueueFamilyProperties, uintptr(devRec.PhysicalDevice), vkabi.Ptr(unsafe.Pointer(&count)), vkabi.Ptr(unsafe.Pointer(&props[0])))
	return props[family].TimestampValidBits
}

func (l *Layer) instanceOf(pd vkabi.VkPhysicalDevice) vkabi.VkInstance {
	if rec, ok := l.reg.PhysicalDevice(pd); ok {
		return rec.Instance
	}
	return 0
}

// bootstrapQueueResources creates a queue's query pool, command pool, and
// sync events. It does not enqueue the initial sync sample itself: that
// happens once the harvester worker is running, so the handshake's
// busy-poll waits land on the worker goroutine, not the caller's thread.
func (l *Layer) bootstrapQueueResources(devRec *vkabi.DeviceRecord, st *queue.State) error {
	qpInfo := vkabi.VkQueryPoolCreateInfo{
		SType:      vkabi.StructureTypeQueryPoolCreateInfo,
		QueryType:  vkabi.QueryTypeTimestamp,
		QueryCount: st.MaxQueries,
	}
	if res := vkabi.CallResult(devRec.Dispatch.CreateQueryPool, uintptr(devRec.Handle), vkabi.Ptr(unsafe.Pointer(&qpInfo)), 0, vkabi.Ptr(unsafe.Pointer(&st.QueryPool))); res != vkabi.VkSuccess {
		return queryPoolError(res)
	}

	cpInfo := vkabi.VkCommandPoolCreateInfo{
		SType:            vkabi.StructureTypeCommandPoolCreateInfo,
		Flags:            vkabi.CommandPoolCreateTransientBit | vkabi.CommandPoolCreateResetCommandBufferBit,
		QueueFamilyIndex: st.FamilyIndex,
	}
	if res := vkabi.CallResult(devRec.Dispatch.CreateCommandPool, uintptr(devRec.Handle), vkabi.Ptr(unsafe.Pointer(&cpInfo)), 0, vkabi.Ptr(unsafe.Pointer(&st.CommandPool))); res != vkabi.VkSuccess {
		return queryPoolError(res)
	}

	for _, evOut := range []*vkabi.VkEvent{&st.GPUWait, &st.CPUWait, &st.CPU2Wait} {
		evInfo := vkabi.VkEventCreateInfo{SType: vkabi.StructureTypeEventCreateInfo}
		if res := vkabi.CallResult(devRec.Dispatch.CreateEvent, uintptr(devRec.Handle), vkabi.Ptr(unsafe.Pointer(&evInfo)), 0, vkabi.Ptr(unsafe.Pointer(evOut))); res != vkabi.VkSuccess {
			return queryPoolError(res)
		}
	}

	return nil
}

// QueueSubmit is the intercepted vkQueueSubmit entry point.
func (l *Layer) QueueSubmit(queueHandle vkabi.VkQueue, submitCount uint32, submits []submit.SubmitInfo, fence vkabi.VkFence) vkabi.VkResult {
	qr, ok := l.reg.Queue(queueHandle)
	if !ok || qr.State == nil {
		return l.passthroughSubmit(queueHandle, submitCount, submits, fence)
	}
	st := qr.State.(*queue.State)
	devRec, ok := l.reg.Device(st.Device)
	if !ok {
		return vkabi.VkErrorInitializationFailed
	}
	return submit.Submit(devRec, st, submits, fence, l.cfg.SyncInterval, l.logger)
}

func (l *Layer) passthroughSubmit(queueHandle vkabi.VkQueue, submitCount uint32, submits []submit.SubmitInfo, fence vkabi.VkFence) vkabi.VkResult {
	qr, ok := l.reg.Queue(queueHandle)
	if !ok {
		return vkabi.VkErrorInitializationFailed
	}
	devRec, ok := l.reg.Device(qr.Device)
	if !ok {
		return vkabi.VkErrorInitializationFailed
	}
	// Queue observed but unsupported: never wrap, just forward the
	// caller's submission unmodified.
	return submit.Passthrough(devRec, queueHandle, submits, fence)
}

// ForwardGetInstanceProcAddr resolves any name this layer does not
// intercept itself against the next layer/driver's GetInstanceProcAddr
// captured at instance creation.
func (l *Layer) ForwardGetInstanceProcAddr(instance vkabi.VkInstance, name string) uintptr {
	rec, ok := l.reg.Instance(instance)
	if !ok {
		return 0
	}
	return uintptr(vkabi.ResolveInstanceProc(rec.NextGIPA, instance, name))
}

// ForwardGetDeviceProcAddr is the device-level analog.
func (l *Layer) ForwardGetDeviceProcAddr(device vkabi.VkDevice, name string) uintptr {
	rec, ok := l.reg.Device(device)
	if !ok {
		return 0
	}
	return uintptr(vkabi.ResolveDeviceProc(rec.NextGDPA, device, name))
}

func queryPoolError(res vkabi.VkResult) error {
	return &resourceError{res: res}
}

type resourceError struct{ res vkabi.VkResult }

func (e *resourceError) Error() string { return "vktiming: resource creation failed" }
