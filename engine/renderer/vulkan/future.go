package vulkan

import (
	"context"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type semaphoreWait struct {
	handle vk.Semaphore
	stage  vk.PipelineStageFlags
}

// VulkanFuture is a node in a chain of queue operations. A future with a
// fence completes when the fence signals; every future completes only after
// all of its dependencies.
type VulkanFuture struct {
	context *VulkanContext
	fence   *VulkanFence
	// Semaphores the next submission or present has to wait on.
	waits []semaphoreWait
	// Semaphores consumed by this operation, destroyed on release.
	owned    []vk.Semaphore
	deps     []*VulkanFuture
	retained []*VulkanCommandBuffer
	released bool
}

var _ gpu.Future = (*VulkanFuture)(nil)

func newSemaphore(vc *VulkanContext) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var handle vk.Semaphore
	if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(vc.Device.LogicalDevice, &info, vc.Allocator, &handle)); err != nil {
		return nil, err
	}
	return handle, nil
}

// takeWaits hands over every pending semaphore in the chain. The caller owns
// them from here on.
func (f *VulkanFuture) takeWaits() []semaphoreWait {
	waits := f.waits
	f.waits = nil
	for _, d := range f.deps {
		waits = append(waits, d.takeWaits()...)
	}
	return waits
}

func (f *VulkanFuture) Then(cmd gpu.CommandBuffer) (gpu.Future, error) {
	cb, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign command buffer")
	}
	if cb.secondary {
		return nil, errors.Wrap(gpu.ErrCommandState, "secondary command buffers cannot be submitted")
	}
	if cb.tracker.State != gpu.CommandStateRecordingEnded {
		return nil, errors.Wrapf(gpu.ErrCommandState, "submit: state %s", cb.tracker.State)
	}

	signal, err := newSemaphore(f.context)
	if err != nil {
		return nil, err
	}
	fence, err := NewFence(f.context, false)
	if err != nil {
		vk.DestroySemaphore(f.context.Device.LogicalDevice, signal, f.context.Allocator)
		return nil, err
	}

	waits := f.takeWaits()
	next := &VulkanFuture{
		context:  f.context,
		fence:    fence,
		waits:    []semaphoreWait{{handle: signal, stage: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}},
		deps:     []*VulkanFuture{f},
		retained: []*VulkanCommandBuffer{cb},
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
	}
	if len(waits) > 0 {
		submitInfo.WaitSemaphoreCount = uint32(len(waits))
		submitInfo.PWaitSemaphores = make([]vk.Semaphore, len(waits))
		submitInfo.PWaitDstStageMask = make([]vk.PipelineStageFlags, len(waits))
		for i, w := range waits {
			submitInfo.PWaitSemaphores[i] = w.handle
			submitInfo.PWaitDstStageMask[i] = w.stage
			next.owned = append(next.owned, w.handle)
		}
	}

	device := f.context.Device
	if err := f.context.locks.SafeCall(QueueManagement, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		// Nothing was queued; the waits go back to the chain.
		f.waits = append(f.waits, waits...)
		fence.FenceDestroy(f.context)
		vk.DestroySemaphore(device.LogicalDevice, signal, f.context.Allocator)
		return nil, errors.Wrap(err, "submitting command buffer")
	}
	cb.tracker.State = gpu.CommandStateSubmitted
	return next, nil
}

func (f *VulkanFuture) Join(other gpu.Future) gpu.Future {
	o, ok := other.(*VulkanFuture)
	if !ok {
		core.LogError("joining foreign future, ignoring it")
		return f
	}
	return &VulkanFuture{context: f.context, deps: []*VulkanFuture{f, o}}
}

func (f *VulkanFuture) Done() bool {
	if f.released {
		return true
	}
	if f.fence != nil && !f.fence.Signaled(f.context) {
		return false
	}
	for _, d := range f.deps {
		if !d.Done() {
			return false
		}
	}
	return true
}

func (f *VulkanFuture) Wait(ctx context.Context) error {
	if f.released {
		return nil
	}
	for _, d := range f.deps {
		if err := d.Wait(ctx); err != nil {
			return err
		}
	}
	if f.fence != nil {
		return f.fence.FenceWait(ctx, f.context)
	}
	return ctx.Err()
}

func (f *VulkanFuture) Release() {
	if f.released {
		return
	}
	if !f.Done() {
		core.LogWarn("releasing a future that has not completed")
		return
	}
	device := f.context.Device.LogicalDevice
	if f.fence != nil {
		f.fence.FenceDestroy(f.context)
		f.fence = nil
	}
	// Signalled but never waited on. Safe to destroy once the fence passed.
	for _, w := range f.waits {
		vk.DestroySemaphore(device, w.handle, f.context.Allocator)
	}
	for _, s := range f.owned {
		vk.DestroySemaphore(device, s, f.context.Allocator)
	}
	for _, cb := range f.retained {
		cb.Free()
	}
	for _, d := range f.deps {
		d.Release()
	}
	f.waits, f.owned, f.retained, f.deps = nil, nil, nil, nil
	f.released = true
}
