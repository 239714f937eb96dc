// Package registry is the Dispatch Registry: four handle-keyed maps
// (instance, physical device, device, queue) each guarded by its own
// mutex. A lookup holds its map's mutex only while reading the map; the
// caller uses the returned record without that lock held.
package registry

import (
	"sync"

	"github.com/quartzgfx/vktiming/internal/vkabi"
	"github.com/quartzgfx/vktiming/internal/vkerr"
)

// QueueRecord is the registry's handle to a queue's timing state. The
// concrete *queue.State lives in package queue; registry stores it as an
// opaque interface value and callers type-assert it back.
type QueueRecord struct {
	Handle vkabi.VkQueue
	Device vkabi.VkDevice
	State  interface{}
}

type Registry struct {
	instMu sync.Mutex
	inst   map[vkabi.VkInstance]*vkabi.InstanceRecord

	pdMu sync.Mutex
	pd   map[vkabi.VkPhysicalDevice]*vkabi.PhysicalDeviceRecord

	devMu sync.Mutex
	dev   map[vkabi.VkDevice]*vkabi.DeviceRecord

	queueMu sync.Mutex
	queue   map[vkabi.VkQueue]*QueueRecord
}

func New() *Registry {
	return &Registry{
		inst:  make(map[vkabi.VkInstance]*vkabi.InstanceRecord),
		pd:    make(map[vkabi.VkPhysicalDevice]*vkabi.PhysicalDeviceRecord),
		dev:   make(map[vkabi.VkDevice]*vkabi.DeviceRecord),
		queue: make(map[vkabi.VkQueue]*QueueRecord),
	}
}

func (r *Registry) RegisterInstance(rec *vkabi.InstanceRecord) error {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	if _, ok := r.inst[rec.Handle]; ok {
		return vkerr.ErrAlreadyRegistered
	}
	r.inst[rec.Handle] = rec
	return nil
}

func (r *Registry) Instance(h vkabi.VkInstance) (*vkabi.InstanceRecord, bool) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	rec, ok := r.inst[h]
	return rec, ok
}

func (r *Registry) RemoveInstance(h vkabi.VkInstance) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	delete(r.inst, h)
}

func (r *Registry) RegisterPhysicalDevice(rec *vkabi.PhysicalDeviceRecord) {
	r.pdMu.Lock()
	defer r.pdMu.Unlock()
	// Physical devices are enumerable more than once across the lifetime
	// of an instance; last write wins rather than treating re-enumeration
	// as a duplicate-handle error.
	r.pd[rec.Handle] = rec
}

func (r *Registry) PhysicalDevice(h vkabi.VkPhysicalDevice) (*vkabi.PhysicalDeviceRecord, bool) {
	r.pdMu.Lock()
	defer r.pdMu.Unlock()
	rec, ok := r.pd[h]
	return rec, ok
}

func (r *Registry) RegisterDevice(rec *vkabi.DeviceRecord) error {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	if _, ok := r.dev[rec.Handle]; ok {
		return vkerr.ErrAlreadyRegistered
	}
	r.dev[rec.Handle] = rec
	return nil
}

func (r *Registry) Device(h vkabi.VkDevice) (*vkabi.DeviceRecord, bool) {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	rec, ok := r.dev[h]
	return rec, ok
}

func (r *Registry) RemoveDevice(h vkabi.VkDevice) {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	delete(r.dev, h)
}

func (r *Registry) RegisterQueue(rec *QueueRecord) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	r.queue[rec.Handle] = rec
}

func (r *Registry) Queue(h vkabi.VkQueue) (*QueueRecord, bool) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	rec, ok := r.queue[h]
	return rec, ok
}

func (r *Registry) RemoveQueue(h vkabi.VkQueue) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	delete(r.queue, h)
}

// QueuesOfDevice returns every registered queue that belongs to the given
// device. Used at device teardown to find queues whose workers still need
// to be torn down first.
func (r *Registry) QueuesOfDevice(h vkabi.VkDevice) []*QueueRecord {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	var out []*QueueRecord
	for _, q := range r.queue {
		if q.Device == h {
			out = append(out, q)
		}
	}
	return out
}
