package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// Descriptors of each type a pool reserves per set.
const descriptorsPerSet = 4

type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
	index  uint32
}

func (s *VulkanDescriptorSet) SetIndex() uint32 { return s.index }

type VulkanDescriptorPool struct {
	context *VulkanContext
	Handle  vk.DescriptorPool
}

var _ gpu.DescriptorPool = (*VulkanDescriptorPool)(nil)

func DescriptorPoolCreate(context *VulkanContext, maxSets uint32) (*VulkanDescriptorPool, error) {
	if maxSets == 0 {
		return nil, errors.New("descriptor pool needs room for at least one set")
	}
	var sizes []vk.DescriptorPoolSize
	for _, t := range []vk.DescriptorType{vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer, vk.DescriptorTypeInputAttachment} {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: maxSets * descriptorsPerSet})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var handle vk.DescriptorPool
	if err := resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanDescriptorPool{context: context, Handle: handle}, nil
}

func (p *VulkanDescriptorPool) Allocate(pipeline gpu.Pipeline, set uint32, writes ...gpu.DescriptorWrite) (gpu.DescriptorSet, error) {
	vp, ok := pipeline.(*VulkanPipeline)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign pipeline")
	}
	if int(set) >= len(vp.SetLayouts) {
		return nil, errors.Newf("pipeline %s has %d descriptor sets, asked for set %d", vp.name, len(vp.SetLayouts), set)
	}

	device := p.context.Device.LogicalDevice
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{vp.SetLayouts[set]},
	}
	var handle vk.DescriptorSet
	if err := p.context.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(device, &allocInfo, &handle))
	}); err != nil {
		return nil, err
	}

	updates := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		update := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          handle,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.Type),
		}
		if w.Type == gpu.DescriptorInputAttachment {
			img, ok := w.Image.(*VulkanImage)
			if !ok {
				return nil, errors.Wrapf(core.ErrUnsupported, "binding %d: input attachment is not a vulkan image", w.Binding)
			}
			update.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   img.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		} else {
			buf, ok := w.Buffer.Buffer.(*VulkanBuffer)
			if !ok {
				return nil, errors.Wrapf(core.ErrUnsupported, "binding %d: buffer is not a vulkan buffer", w.Binding)
			}
			update.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.Handle,
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Size),
			}}
		}
		updates = append(updates, update)
	}
	if len(updates) > 0 {
		vk.UpdateDescriptorSets(device, uint32(len(updates)), updates, 0, nil)
	}
	return &VulkanDescriptorSet{Handle: handle, index: set}, nil
}

// Reset returns every set to the pool. Sets still referenced by pending work
// must not be reset; callers wait for the frame that used them first.
func (p *VulkanDescriptorPool) Reset() error {
	return p.context.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkResetDescriptorPool", vk.ResetDescriptorPool(p.context.Device.LogicalDevice, p.Handle, 0))
	})
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = nil
	}
}
