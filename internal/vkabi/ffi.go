package vkabi

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// Call invokes a resolved driver or next-layer function pointer with
// uintptr-sized arguments and returns its raw result. Every outbound
// Vulkan call in this layer (aside from the handful wrapped by named Go
// functions elsewhere in this package) goes through this helper so the
// purego boundary stays in one place.
func Call(fn PFN, args ...uintptr) uintptr {
	if fn == 0 {
		return 0
	}
	r1, _, _ := purego.SyscallN(uintptr(fn), args...)
	return r1
}

// CallResult is Call plus a cast to VkResult, for the large majority of
// Vulkan entry points that return one.
func CallResult(fn PFN, args ...uintptr) VkResult {
	return VkResult(Call(fn, args...))
}

// NewCallback turns a Go function into a C-callable function pointer
// suitable for returning to the Vulkan loader from
// vkGetInstanceProcAddr/vkGetDeviceProcAddr. The signature must match
// purego's calling-convention requirements (plain numeric/pointer
// arguments, no Go-managed memory retained past the call).
func NewCallback(fn interface{}) uintptr {
	return purego.NewCallback(fn)
}

// Ptr returns a uintptr to the first byte of v, for building driver struct
// arguments out of Go values without cgo. The caller is responsible for
// keeping v alive for the duration of the call (Vulkan calls are
// synchronous, so this is safe as long as no goroutine preemption across
// the call retains the pointer beyond its lifetime, which purego.SyscallN
// guarantees by blocking the calling goroutine).
func Ptr(v unsafe.Pointer) uintptr {
	return uintptr(v)
}
