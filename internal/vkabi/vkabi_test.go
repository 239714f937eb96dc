package vkabi

import (
	"testing"
	"unsafe"
)

func TestMakeVersionPacksMajorMinorPatch(t *testing.T) {
	v := MakeVersion(1, 0, 5)
	if v != 1<<22|0<<12|5 {
		t.Fatalf("MakeVersion(1,0,5) = %#x, unexpected", v)
	}
}

func TestLayerSpecVersionMatchesMetadata(t *testing.T) {
	if LayerSpecVersion != MakeVersion(1, 0, 5) {
		t.Fatalf("LayerSpecVersion drifted from the documented 1.0.5")
	}
	if LayerName != "Timing" {
		t.Fatalf("LayerName = %q, want %q", LayerName, "Timing")
	}
	if LayerDescription != "command buffer timing" {
		t.Fatalf("LayerDescription = %q", LayerDescription)
	}
}

func TestCallWithNilFunctionPointerIsANoop(t *testing.T) {
	if got := Call(0, 1, 2, 3); got != 0 {
		t.Fatalf("Call with a nil PFN should return 0, got %d", got)
	}
	if got := CallResult(0, 1, 2); got != VkSuccess {
		t.Fatalf("CallResult with a nil PFN should report VkSuccess, got %d", got)
	}
}

func TestPatchDispatchCopiesParentTableSlot(t *testing.T) {
	// Simulate a dispatchable device object whose first pointer-sized word
	// is its dispatch table pointer, and a freshly allocated command
	// buffer whose slot starts out zeroed.
	var deviceSlot uintptr = 0xFEEDFACE
	var cmdBufSlot uintptr

	device := VkDevice(uintptr(unsafe.Pointer(&deviceSlot)))
	cmdBuf := VkCommandBuffer(uintptr(unsafe.Pointer(&cmdBufSlot)))

	PatchDispatch(cmdBuf, device)

	if cmdBufSlot != deviceSlot {
		t.Fatalf("expected the command buffer's dispatch slot to be patched to %#x, got %#x", deviceSlot, cmdBufSlot)
	}
}

func TestPatchDispatchIgnoresZeroHandles(t *testing.T) {
	// Must not panic.
	PatchDispatch(0, 0)
}

func TestResolveInstanceProcWithNilGetProcAddrReturnsZero(t *testing.T) {
	if got := ResolveInstanceProc(0, VkInstance(1), "vkCreateDevice"); got != 0 {
		t.Fatalf("expected a zero PFN when gipa is nil, got %#x", got)
	}
}

func TestResolveDeviceProcWithNilGetProcAddrReturnsZero(t *testing.T) {
	if got := ResolveDeviceProc(0, VkDevice(1), "vkQueueSubmit"); got != 0 {
		t.Fatalf("expected a zero PFN when gdpa is nil, got %#x", got)
	}
}

func TestNextInstanceProcAddrWalksPastUnrelatedNodesToLinkInfo(t *testing.T) {
	link := VkLayerInstanceLink{PfnNextGetInstanceProcAddr: PFN(0xABCD)}
	layerCreateInfo := VkLayerInstanceCreateInfo{
		SType:    StructureTypeLoaderInstanceCreateInfo,
		Function: VkLayerLinkInfo,
		Union:    uintptr(unsafe.Pointer(&link)),
	}
	// An unrelated node ahead of the link-info node in the chain, as a
	// real application's pNext chain would carry (e.g. validation
	// features, debug messenger create info).
	unrelated := baseInStructure{SType: 999, PNext: uintptr(unsafe.Pointer(&layerCreateInfo))}
	createInfo := VkInstanceCreateInfo{PNext: uintptr(unsafe.Pointer(&unrelated))}

	got := NextInstanceProcAddr(&createInfo)
	if got != PFN(0xABCD) {
		t.Fatalf("NextInstanceProcAddr = %#x, want %#x", got, PFN(0xABCD))
	}
}

func TestNextInstanceProcAddrAdvancesLinkNodeForNextLayer(t *testing.T) {
	tail := VkLayerInstanceLink{PfnNextGetInstanceProcAddr: PFN(0x2)}
	head := VkLayerInstanceLink{PNext: uintptr(unsafe.Pointer(&tail)), PfnNextGetInstanceProcAddr: PFN(0x1)}
	layerCreateInfo := VkLayerInstanceCreateInfo{
		SType:    StructureTypeLoaderInstanceCreateInfo,
		Function: VkLayerLinkInfo,
		Union:    uintptr(unsafe.Pointer(&head)),
	}
	createInfo := VkInstanceCreateInfo{PNext: uintptr(unsafe.Pointer(&layerCreateInfo))}

	first := NextInstanceProcAddr(&createInfo)
	if first != PFN(0x1) {
		t.Fatalf("first resolve = %#x, want %#x", first, PFN(0x1))
	}
	if layerCreateInfo.Union != uintptr(unsafe.Pointer(&tail)) {
		t.Fatal("expected the link-info node to be advanced to the tail link for the layer below")
	}
}

func TestNextInstanceProcAddrReturnsZeroWithoutLinkInfo(t *testing.T) {
	createInfo := VkInstanceCreateInfo{}
	if got := NextInstanceProcAddr(&createInfo); got != 0 {
		t.Fatalf("expected 0 with no pNext chain, got %#x", got)
	}
}

func TestNextDeviceProcAddrAdvancesLinkNodeForNextLayer(t *testing.T) {
	tail := VkLayerDeviceLink{PfnNextGetDeviceProcAddr: PFN(0x20)}
	head := VkLayerDeviceLink{PNext: uintptr(unsafe.Pointer(&tail)), PfnNextGetDeviceProcAddr: PFN(0x10)}
	layerCreateInfo := VkLayerDeviceCreateInfo{
		SType:    StructureTypeLoaderDeviceCreateInfo,
		Function: VkLayerLinkInfo,
		Union:    uintptr(unsafe.Pointer(&head)),
	}
	createInfo := VkDeviceCreateInfo{PNext: uintptr(unsafe.Pointer(&layerCreateInfo))}

	first := NextDeviceProcAddr(&createInfo)
	if first != PFN(0x10) {
		t.Fatalf("first resolve = %#x, want %#x", first, PFN(0x10))
	}
	if layerCreateInfo.Union != uintptr(unsafe.Pointer(&tail)) {
		t.Fatal("expected the link-info node to be advanced to the tail link for the layer below")
	}
}

func TestTimestampPeriodReadsDriverOffset(t *testing.T) {
	var limits VkPhysicalDeviceLimits
	want := float32(0.78125) // a typical nanoseconds-per-tick value on discrete GPUs
	*(*float32)(unsafe.Pointer(&limits.Opaque[424])) = want

	if got := limits.TimestampPeriod(); got != want {
		t.Fatalf("TimestampPeriod() = %v, want %v", got, want)
	}
}
