// Package vkabi holds the Vulkan handle types, struct layouts, and FFI
// plumbing the timing layer needs: just enough of the API surface to walk
// the loader's pNext chain, read physical-device limits and queue-family
// properties, build command buffers, and call through resolved driver
// function pointers via purego. It intentionally stops short of a full
// Vulkan binding.
package vkabi

import "unsafe"

type (
	VkInstance       uintptr
	VkPhysicalDevice uintptr
	VkDevice         uintptr
	VkQueue          uintptr
	VkCommandPool    uintptr
	VkCommandBuffer  uintptr
	VkQueryPool      uintptr
	VkFence          uintptr
	VkEvent          uintptr
	VkSemaphore      uintptr
	VkResult         int32
	VkDeviceSize     uint64
)

// PFN is a raw, unresolved driver or next-layer function pointer as handed
// back by vkGetInstanceProcAddr/vkGetDeviceProcAddr. Call sites resolve it
// through purego.SyscallN.
type PFN uintptr

// DispatchTable is the subset of the device/instance dispatch table the
// layer needs to forward calls to the driver or the next layer down.
type DispatchTable struct {
	GetInstanceProcAddr         PFN
	GetDeviceProcAddr           PFN
	DestroyInstance             PFN
	DestroyDevice               PFN
	EnumeratePhysicalDevices    PFN
	GetPhysicalDeviceProperties PFN
	GetPhysicalDeviceQueueFamilyProperties PFN
	GetDeviceQueue              PFN
	QueueSubmit                 PFN
	CreateQueryPool             PFN
	DestroyQueryPool            PFN
	ResetQueryPool              PFN
	GetQueryPoolResults         PFN
	CreateCommandPool           PFN
	DestroyCommandPool          PFN
	AllocateCommandBuffers      PFN
	FreeCommandBuffers          PFN
	BeginCommandBuffer          PFN
	EndCommandBuffer            PFN
	CmdWriteTimestamp           PFN
	CmdResetQueryPool           PFN
	CreateFence                 PFN
	DestroyFence                PFN
	WaitForFences               PFN
	ResetFences                 PFN
	CreateEvent                 PFN
	DestroyEvent                PFN
	SetEvent                    PFN
	ResetEvent                  PFN
	GetEventStatus              PFN
	CmdSetEvent                 PFN
	CmdWaitEvents               PFN
}

// InstanceRecord is the Dispatch Registry's immutable per-instance entry.
type InstanceRecord struct {
	Handle     VkInstance
	Dispatch   DispatchTable
	NextGIPA   PFN // the next layer's / driver's vkGetInstanceProcAddr, captured at creation
}

// PhysicalDeviceRecord back-references its owning instance only, per the
// data model: it never owns resources of its own.
type PhysicalDeviceRecord struct {
	Handle   VkPhysicalDevice
	Instance VkInstance
}

// DeviceRecord is the Dispatch Registry's immutable per-device entry.
type DeviceRecord struct {
	Handle         VkDevice
	PhysicalDevice VkPhysicalDevice
	Dispatch       DispatchTable
	NextGDPA       PFN
	TimestampPeriod float32
}

// VkQueueFamilyProperties mirrors enough of the driver struct to read
// TimestampValidBits; other fields are present only to keep the layout
// correct for GetPhysicalDeviceQueueFamilyProperties.
type VkQueueFamilyProperties struct {
	QueueFlags                  uint32
	QueueCount                  uint32
	TimestampValidBits          uint32
	MinImageTransferGranularity [3]uint32
}

// VkPhysicalDeviceLimits is large (exceeds 500 bytes on the wire); the
// layer only ever reads TimestampPeriod at its known offset so the rest is
// kept as an opaque blob, the same shortcut the purego Vulkan bindings in
// the example pack use for this struct.
type VkPhysicalDeviceLimits struct {
	Opaque [504]byte
}

func (l *VkPhysicalDeviceLimits) TimestampPeriod() float32 {
	const timestampPeriodOffset = 424 // matches the driver ABI's VkPhysicalDeviceLimits layout
	return *(*float32)(unsafe.Pointer(&l.Opaque[timestampPeriodOffset]))
}

type VkPhysicalDeviceProperties struct {
	ApiVersion        uint32
	DriverVersion     uint32
	VendorID          uint32
	DeviceID          uint32
	DeviceType        uint32
	DeviceName        [256]byte
	PipelineCacheUUID [16]byte
	_                 [4]byte // the C struct aligns Limits to 8 bytes
	Limits            VkPhysicalDeviceLimits
	SparseProperties  [24]byte
}

type VkQueryPoolCreateInfo struct {
	SType      uint32
	PNext      uintptr
	Flags      uint32
	QueryType  uint32
	QueryCount uint32
	PipelineStatistics uint32
}

type VkCommandPoolCreateInfo struct {
	SType            uint32
	PNext            uintptr
	Flags            uint32
	QueueFamilyIndex uint32
}

type VkCommandBufferAllocateInfo struct {
	SType              uint32
	PNext              uintptr
	CommandPool        VkCommandPool
	Level              uint32
	CommandBufferCount uint32
}

type VkCommandBufferBeginInfo struct {
	SType            uint32
	PNext            uintptr
	Flags            uint32
	PInheritanceInfo uintptr
}

type VkFenceCreateInfo struct {
	SType uint32
	PNext uintptr
	Flags uint32
}

type VkEventCreateInfo struct {
	SType uint32
	PNext uintptr
	Flags uint32
}

type VkSubmitInfo struct {
	SType                uint32
	PNext                uintptr
	WaitSemaphoreCount   uint32
	PWaitSemaphores      uintptr
	PWaitDstStageMask    uintptr
	CommandBufferCount   uint32
	PCommandBuffers      uintptr
	SignalSemaphoreCount uint32
	PSignalSemaphores    uintptr
}

// VkInstanceCreateInfo / VkDeviceCreateInfo mirror enough of the driver
// structs to walk the pNext chain for the layer-link-info node.
type VkInstanceCreateInfo struct {
	SType                   uint32
	PNext                   uintptr
	Flags                   uint32
	PApplicationInfo        uintptr
	EnabledLayerCount       uint32
	PpEnabledLayerNames     uintptr
	EnabledExtensionCount   uint32
	PpEnabledExtensionNames uintptr
}

type VkDeviceCreateInfo struct {
	SType                   uint32
	PNext                   uintptr
	Flags                   uint32
	QueueCreateInfoCount    uint32
	PQueueCreateInfos       uintptr
	EnabledLayerCount       uint32
	PpEnabledLayerNames     uintptr
	EnabledExtensionCount   uint32
	PpEnabledExtensionNames uintptr
	PEnabledFeatures        uintptr
}

// VkLayerFunction mirrors VK_LAYER_LINK_INFO's discriminated union tag.
type VkLayerFunction uint32

const (
	VkLayerLinkInfo            VkLayerFunction = 0
	VkLoaderDataCallback       VkLayerFunction = 1
	VkLoaderFeatures           VkLayerFunction = 2
)

// VkLayerInstanceLink / VkLayerDeviceLink are the singly linked list nodes
// the loader threads through pNext to hand each layer the next
// GetProcAddr down the chain.
type VkLayerInstanceLink struct {
	PNext                uintptr
	PfnNextGetInstanceProcAddr PFN
	PfnNextGetPhysicalDeviceProcAddr PFN
}

type VkLayerInstanceCreateInfo struct {
	SType    uint32
	PNext    uintptr
	Function VkLayerFunction
	Union    uintptr // &VkLayerInstanceLink when Function == VkLayerLinkInfo
}

type VkLayerDeviceLink struct {
	PNext              uintptr
	PfnNextGetInstanceProcAddr PFN
	PfnNextGetDeviceProcAddr   PFN
}

type VkLayerDeviceCreateInfo struct {
	SType    uint32
	PNext    uintptr
	Function VkLayerFunction
	Union    uintptr // &VkLayerDeviceLink when Function == VkLayerLinkInfo
}

type VkLayerProperties struct {
	LayerName   [256]byte
	SpecVersion uint32
	ImplVersion uint32
	Description [256]byte
}
