package layer

import "github.com/quartzgfx/vktiming/internal/vkabi"

// resolveInstanceDispatch/resolveDeviceDispatch resolve the entry points
// this layer needs to forward calls through; everything else passes
// straight to whatever GetInstanceProcAddr/GetDeviceProcAddr returns for it.
func resolveInstanceDispatch(gipa vkabi.PFN, instance vkabi.VkInstance) vkabi.DispatchTable {
	resolve := func(name string) vkabi.PFN { return vkabi.ResolveInstanceProc(gipa, instance, name) }
	return vkabi.DispatchTable{
		GetInstanceProcAddr:                    gipa,
		DestroyInstance:                        resolve("vkDestroyInstance"),
		EnumeratePhysicalDevices:                resolve("vkEnumeratePhysicalDevices"),
		GetPhysicalDeviceProperties:             resolve("vkGetPhysicalDeviceProperties"),
		GetPhysicalDeviceQueueFamilyProperties:  resolve("vkGetPhysicalDeviceQueueFamilyProperties"),
	}
}

func resolveDeviceDispatch(gdpa vkabi.PFN, gipaForDevice vkabi.PFN, device vkabi.VkDevice) vkabi.DispatchTable {
	resolve := func(name string) vkabi.PFN { return vkabi.ResolveDeviceProc(gdpa, device, name) }
	return vkabi.DispatchTable{
		GetDeviceProcAddr:      gdpa,
		GetInstanceProcAddr:    gipaForDevice,
		DestroyDevice:          resolve("vkDestroyDevice"),
		GetDeviceQueue:         resolve("vkGetDeviceQueue"),
		QueueSubmit:            resolve("vkQueueSubmit"),
		CreateQueryPool:        resolve("vkCreateQueryPool"),
		DestroyQueryPool:       resolve("vkDestroyQueryPool"),
		ResetQueryPool:         resolve("vkResetQueryPool"),
		GetQueryPoolResults:    resolve("vkGetQueryPoolResults"),
		CreateCommandPool:      resolve("vkCreateCommandPool"),
		DestroyCommandPool:     resolve("vkDestroyCommandPool"),
		AllocateCommandBuffers: resolve("vkAllocateCommandBuffers"),
		FreeCommandBuffers:     resolve("vkFreeCommandBuffers"),
		BeginCommandBuffer:     resolve("vkBeginCommandBuffer"),
		EndCommandBuffer:       resolve("vkEndCommandBuffer"),
		CmdWriteTimestamp:      resolve("vkCmdWriteTimestamp"),
		CmdResetQueryPool:      resolve("vkCmdResetQueryPool"),
		CreateFence:            resolve("vkCreateFence"),
		DestroyFence:           resolve("vkDestroyFence"),
		WaitForFences:          resolve("vkWaitForFences"),
		ResetFences:            resolve("vkResetFences"),
		CreateEvent:            resolve("vkCreateEvent"),
		DestroyEvent:           resolve("vkDestroyEvent"),
		SetEvent:               resolve("vkSetEvent"),
		ResetEvent:             resolve("vkResetEvent"),
		GetEventStatus:         resolve("vkGetEventStatus"),
		CmdSetEvent:            resolve("vkCmdSetEvent"),
		CmdWaitEvents:          resolve("vkCmdWaitEvents"),
	}
}
