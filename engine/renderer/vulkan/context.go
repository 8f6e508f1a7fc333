package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice
	locks  *VulkanLockPool
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// every property in propertyFlags.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, errors.Newf("no memory type matches filter %#x with properties %#x", typeFilter, propertyFlags)
}

// allocate backs requirements with memory, preferring the first property set
// that the device can satisfy.
func (vc *VulkanContext) allocate(requirements vk.MemoryRequirements, preferred ...vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	requirements.Deref()
	var (
		index uint32
		err   error
	)
	for _, flags := range preferred {
		if index, err = vc.FindMemoryIndex(requirements.MemoryTypeBits, flags); err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := vc.locks.SafeCall(MemoryManagement, func() error {
		return resultError("vkAllocateMemory", vk.AllocateMemory(vc.Device.LogicalDevice, &allocateInfo, vc.Allocator, &memory))
	}); err != nil {
		return nil, err
	}
	return memory, nil
}
