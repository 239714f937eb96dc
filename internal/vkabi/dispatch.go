package vkabi

import "unsafe"

// PatchDispatch copies the parent device object's dispatch-table pointer
// (the first pointer-sized word of any dispatchable Vulkan object) onto a
// command buffer the layer allocated itself. The loader requires every
// dispatchable object a layer hands back to carry a valid dispatch table
// pointer at offset zero; without this, the next layer down (or the
// driver) cannot dispatch calls made against it.
func PatchDispatch(cmdBuf VkCommandBuffer, device VkDevice) {
	if cmdBuf == 0 || device == 0 {
		return
	}
	src := *(*uintptr)(unsafe.Pointer(uintptr(device)))
	dst := (*uintptr)(unsafe.Pointer(uintptr(cmdBuf)))
	*dst = src
}
