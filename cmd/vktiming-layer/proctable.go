package main

import (
	"github.com/quartzgfx/vktiming/internal/layer"
	"github.com/quartzgfx/vktiming/internal/vkabi"
)

// instanceInterceptTable/deviceInterceptTable are the only symbols this
// layer actually intercepts; vkGetInstanceProcAddr/vkGetDeviceProcAddr
// fall back to forwarding for every other name, per the loader protocol.
var instanceInterceptTable = map[string]uintptr{}
var deviceInterceptTable = map[string]uintptr{}

func init() {
	instanceInterceptTable["vkGetInstanceProcAddr"] = vkabi.NewCallback(TimingGetInstanceProcAddr)
	instanceInterceptTable["vkCreateInstance"] = vkabi.NewCallback(TimingCreateInstance)
	instanceInterceptTable["vkDestroyInstance"] = vkabi.NewCallback(TimingDestroyInstance)
	instanceInterceptTable["vkCreateDevice"] = vkabi.NewCallback(TimingCreateDevice)
	instanceInterceptTable["vkEnumerateInstanceLayerProperties"] = vkabi.NewCallback(TimingEnumerateInstanceLayerProperties)
	instanceInterceptTable["vkEnumerateInstanceExtensionProperties"] = vkabi.NewCallback(TimingEnumerateInstanceExtensionProperties)

	deviceInterceptTable["vkGetDeviceProcAddr"] = vkabi.NewCallback(TimingGetDeviceProcAddr)
	deviceInterceptTable["vkDestroyDevice"] = vkabi.NewCallback(TimingDestroyDevice)
	deviceInterceptTable["vkGetDeviceQueue"] = vkabi.NewCallback(TimingGetDeviceQueue)
	deviceInterceptTable["vkQueueSubmit"] = vkabi.NewCallback(TimingQueueSubmit)
	deviceInterceptTable["vkEnumerateDeviceLayerProperties"] = vkabi.NewCallback(TimingEnumerateDeviceLayerProperties)
	deviceInterceptTable["vkEnumerateDeviceExtensionProperties"] = vkabi.NewCallback(TimingEnumerateDeviceExtensionProperties)
}

func layerProperties(pCount *uint32, pProperties *vkabi.VkLayerProperties, instance bool) vkabi.VkResult {
	if instance {
		return layer.EnumerateInstanceLayerProperties(pCount, pProperties)
	}
	return layer.EnumerateDeviceLayerProperties(pCount, pProperties)
}
