// Package main is the shared-library export boundary the Vulkan loader
// dlsyms by name. Everything behind these exported functions is plain Go
// plus purego; cgo is used here only because -buildmode=c-shared and
// //export require it to produce a loader-dlsym-able symbol table.
package main

import "C"

import (
	"os"
	"strconv"
	"time"
	"unsafe"

	"github.com/quartzgfx/vktiming/internal/collector/aggregator"
	"github.com/quartzgfx/vktiming/internal/config"
	"github.com/quartzgfx/vktiming/internal/layer"
	"github.com/quartzgfx/vktiming/internal/sink"
	"github.com/quartzgfx/vktiming/internal/submit"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"github.com/quartzgfx/vktiming/pkg/logutil"
	"go.uber.org/zap"
)

var theLayer *layer.Layer

func bootstrap() *layer.Layer {
	if theLayer != nil {
		return theLayer
	}
	logutil.InitLogger()
	logger := logutil.GetLogger()
	cfg := config.LoadConfig()

	var evSink sink.EventSink
	if os.Getenv("VKTIMING_SINK") == "grpc" {
		gs, err := sink.NewGRPCSink(cfg.ServerAdress, cfg.Serverport, cfg.Nodename, logger)
		if err != nil {
			logger.Warn("failed to start gRPC sink, falling back to log sink", zap.Error(err))
			evSink = sink.NewLogSink(logger)
		} else {
			evSink = gs
		}
	} else {
		evSink = sink.NewLogSink(logger)
	}

	if ms, err := strconv.Atoi(os.Getenv("VKTIMING_STATS_WINDOW_MS")); err == nil && ms > 0 {
		evSink = aggregator.NewAggregatingSink(evSink, time.Duration(ms)*time.Millisecond, logger)
	}

	theLayer = layer.New(cfg, evSink, logger)
	return theLayer
}

func goString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	return C.GoString((*C.char)(p))
}

//export TimingCreateInstance
func TimingCreateInstance(pCreateInfo unsafe.Pointer, pAllocator unsafe.Pointer, pInstance unsafe.Pointer) int32 {
	l := bootstrap()
	ci := (*vkabi.VkInstanceCreateInfo)(pCreateInfo)
	res := l.CreateInstance(ci, uintptr(pAllocator), (*vkabi.VkInstance)(pInstance))
	return int32(res)
}

//export TimingDestroyInstance
func TimingDestroyInstance(instance uintptr, pAllocator unsafe.Pointer) {
	bootstrap().DestroyInstance(vkabi.VkInstance(instance), uintptr(pAllocator))
}

//export TimingCreateDevice
func TimingCreateDevice(physicalDevice uintptr, pCreateInfo unsafe.Pointer, pAllocator unsafe.Pointer, pDevice unsafe.Pointer) int32 {
	l := bootstrap()
	ci := (*vkabi.VkDeviceCreateInfo)(pCreateInfo)
	res := l.CreateDevice(vkabi.VkPhysicalDevice(physicalDevice), ci, uintptr(pAllocator), (*vkabi.VkDevice)(pDevice))
	return int32(res)
}

//export TimingDestroyDevice
func TimingDestroyDevice(device uintptr, pAllocator unsafe.Pointer) {
	bootstrap().DestroyDevice(vkabi.VkDevice(device), uintptr(pAllocator))
}

//export TimingGetDeviceQueue
func TimingGetDeviceQueue(device uintptr, family uint32, index uint32, pQueue unsafe.Pointer) {
	bootstrap().GetDeviceQueue(vkabi.VkDevice(device), family, index, (*vkabi.VkQueue)(pQueue))
}

//export TimingQueueSubmit
func TimingQueueSubmit(queue uintptr, submitCount uint32, pSubmits unsafe.Pointer, fence uintptr) int32 {
	l := bootstrap()
	infos := parseSubmitInfos(pSubmits, submitCount)
	res := l.QueueSubmit(vkabi.VkQueue(queue), submitCount, infos, vkabi.VkFence(fence))
	return int32(res)
}

func parseSubmitInfos(pSubmits unsafe.Pointer, count uint32) []submit.SubmitInfo {
	if count == 0 || pSubmits == nil {
		return nil
	}
	raw := unsafe.Slice((*vkabi.VkSubmitInfo)(pSubmits), int(count))
	out := make([]submit.SubmitInfo, count)
	for i, r := range raw {
		info := submit.SubmitInfo{}
		if r.CommandBufferCount > 0 && r.PCommandBuffers != 0 {
			info.CommandBuffers = unsafe.Slice((*vkabi.VkCommandBuffer)(unsafe.Pointer(r.PCommandBuffers)), int(r.CommandBufferCount))
		}
		if r.WaitSemaphoreCount > 0 && r.PWaitSemaphores != 0 {
			info.WaitSemaphores = unsafe.Slice((*vkabi.VkSemaphore)(unsafe.Pointer(r.PWaitSemaphores)), int(r.WaitSemaphoreCount))
			if r.PWaitDstStageMask != 0 {
				info.WaitDstStageMask = unsafe.Slice((*uint32)(unsafe.Pointer(r.PWaitDstStageMask)), int(r.WaitSemaphoreCount))
			}
		}
		if r.SignalSemaphoreCount > 0 && r.PSignalSemaphores != 0 {
			info.SignalSemaphores = unsafe.Slice((*vkabi.VkSemaphore)(unsafe.Pointer(r.PSignalSemaphores)), int(r.SignalSemaphoreCount))
		}
		out[i] = info
	}
	return out
}

//export TimingGetInstanceProcAddr
func TimingGetInstanceProcAddr(instance uintptr, pName unsafe.Pointer) uintptr {
	name := goString(pName)
	if fn, ok := instanceInterceptTable[name]; ok {
		return fn
	}
	l := bootstrap()
	return l.ForwardGetInstanceProcAddr(vkabi.VkInstance(instance), name)
}

//export TimingGetDeviceProcAddr
func TimingGetDeviceProcAddr(device uintptr, pName unsafe.Pointer) uintptr {
	name := goString(pName)
	if fn, ok := deviceInterceptTable[name]; ok {
		return fn
	}
	l := bootstrap()
	return l.ForwardGetDeviceProcAddr(vkabi.VkDevice(device), name)
}

//export TimingEnumerateInstanceLayerProperties
func TimingEnumerateInstanceLayerProperties(pCount unsafe.Pointer, pProperties unsafe.Pointer) int32 {
	res := layerProperties((*uint32)(pCount), (*vkabi.VkLayerProperties)(pProperties), true)
	return int32(res)
}

//export TimingEnumerateDeviceLayerProperties
func TimingEnumerateDeviceLayerProperties(physicalDevice uintptr, pCount unsafe.Pointer, pProperties unsafe.Pointer) int32 {
	res := layerProperties((*uint32)(pCount), (*vkabi.VkLayerProperties)(pProperties), false)
	return int32(res)
}

//export TimingEnumerateInstanceExtensionProperties
func TimingEnumerateInstanceExtensionProperties(pLayerName unsafe.Pointer, pCount unsafe.Pointer) int32 {
	*(*uint32)(pCount) = 0
	return int32(vkabi.VkSuccess)
}

//export TimingEnumerateDeviceExtensionProperties
func TimingEnumerateDeviceExtensionProperties(physicalDevice uintptr, pLayerName unsafe.Pointer, pCount unsafe.Pointer) int32 {
	*(*uint32)(pCount) = 0
	return int32(vkabi.VkSuccess)
}

func main() {}
