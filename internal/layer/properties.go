package layer

import "github.com/quartzgfx/vktiming/internal/vkabi"

// Properties returns the layer's metadata block, reported by both
// vkEnumerate*LayerProperties entry points.
func Properties() vkabi.VkLayerProperties {
	var p vkabi.VkLayerProperties
	copy(p.LayerName[:], vkabi.LayerName)
	p.SpecVersion = vkabi.LayerSpecVersion
	p.ImplVersion = vkabi.LayerImplVersion
	copy(p.Description[:], vkabi.LayerDescription)
	return p
}

// EnumerateInstanceLayerProperties and its three siblings below report
// exactly this one layer and zero extensions, matching the layer's
// metadata block; mechanical loader-protocol entry points, not delegated
// to any lower layer.

func EnumerateInstanceLayerProperties(pCount *uint32, pProperties *vkabi.VkLayerProperties) vkabi.VkResult {
	if pProperties == nil {
		*pCount = 1
		return vkabi.VkSuccess
	}
	*pProperties = Properties()
	*pCount = 1
	return vkabi.VkSuccess
}

func EnumerateDeviceLayerProperties(pCount *uint32, pProperties *vkabi.VkLayerProperties) vkabi.VkResult {
	return EnumerateInstanceLayerProperties(pCount, pProperties)
}

func EnumerateInstanceExtensionProperties(pCount *uint32) vkabi.VkResult {
	*pCount = 0
	return vkabi.VkSuccess
}

func EnumerateDeviceExtensionProperties(pCount *uint32) vkabi.VkResult {
	*pCount = 0
	return vkabi.VkSuccess
}
