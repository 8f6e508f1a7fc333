package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// VulkanBuffer lives in host visible, coherent memory that stays mapped for
// its whole life.
type VulkanBuffer struct {
	context *VulkanContext
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	mapped  unsafe.Pointer
	size    uint64
	usage   gpu.BufferUsage
}

var _ gpu.Buffer = (*VulkanBuffer)(nil)

func (b *VulkanBuffer) Size() uint64           { return b.size }
func (b *VulkanBuffer) Usage() gpu.BufferUsage { return b.usage }

func BufferCreate(context *VulkanContext, usage gpu.BufferUsage, size uint64) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be positive")
	}
	device := context.Device.LogicalDevice
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &VulkanBuffer{context: context, size: size, usage: usage}

	var handle vk.Buffer
	if err := resultError("vkCreateBuffer", vk.CreateBuffer(device, &bufferInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	b.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &requirements)
	memory, err := context.allocate(requirements,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit|vk.MemoryPropertyDeviceLocalBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "allocating buffer memory")
	}
	b.Memory = memory
	if err := resultError("vkBindBufferMemory", vk.BindBufferMemory(device, handle, memory, 0)); err != nil {
		b.Destroy()
		return nil, err
	}

	var mapped unsafe.Pointer
	if err := resultError("vkMapMemory", vk.MapMemory(device, memory, 0, vk.DeviceSize(size), 0, &mapped)); err != nil {
		b.Destroy()
		return nil, err
	}
	b.mapped = mapped
	return b, nil
}

func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.size {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (b *VulkanBuffer) Destroy() {
	device := b.context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}
