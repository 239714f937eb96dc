package vkabi

import "unsafe"

// cString returns a NUL-terminated byte slice for name, suitable for
// passing to a GetProcAddr-shaped function pointer.
func cString(name string) []byte {
	b := make([]byte, len(name)+1)
	copy(b, name)
	return b
}

// ResolveInstanceProc calls through an instance-level GetInstanceProcAddr
// function pointer to resolve name against the given instance (or against
// no instance at all, for the handful of instance-independent entry
// points such as vkCreateInstance itself).
func ResolveInstanceProc(gipa PFN, instance VkInstance, name string) PFN {
	cname := cString(name)
	return PFN(Call(gipa, uintptr(instance), Ptr(unsafe.Pointer(&cname[0]))))
}

// ResolveDeviceProc is the device-level analog of ResolveInstanceProc.
func ResolveDeviceProc(gdpa PFN, device VkDevice, name string) PFN {
	cname := cString(name)
	return PFN(Call(gdpa, uintptr(device), Ptr(unsafe.Pointer(&cname[0]))))
}
