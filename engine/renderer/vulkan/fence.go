package vulkan

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// fenceWaitSlice bounds each vkWaitForFences call so cancellation is noticed.
const fenceWaitSlice = 50 * time.Millisecond

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(vc *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := resultError("vkCreateFence", vk.CreateFence(vc.Device.LogicalDevice, &fenceCreateInfo, vc.Allocator, &pFence)); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(vc *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(vc.Device.LogicalDevice, vf.Handle, vc.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Signaled polls the fence without blocking.
func (vf *VulkanFence) Signaled(vc *VulkanContext) bool {
	if !vf.IsSignaled && vk.GetFenceStatus(vc.Device.LogicalDevice, vf.Handle) == vk.Success {
		vf.IsSignaled = true
	}
	return vf.IsSignaled
}

func (vf *VulkanFence) FenceWait(ctx context.Context, vc *VulkanContext) error {
	for !vf.IsSignaled {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := vk.WaitForFences(vc.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, uint64(fenceWaitSlice.Nanoseconds()))
		switch result {
		case vk.Success:
			vf.IsSignaled = true
		case vk.Timeout:
		default:
			return errors.Wrap(resultError("vkWaitForFences", result), "fence wait")
		}
	}
	return nil
}
