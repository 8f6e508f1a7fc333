package vulkan

import (
	"context"
	stdmath "math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type VulkanSwapchain struct {
	context     *VulkanContext
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Images      []*VulkanImage
	extent      gpu.Extent
	format      gpu.Format
}

var _ gpu.Swapchain = (*VulkanSwapchain)(nil)

func (vs *VulkanSwapchain) ImageCount() int { return len(vs.Images) }
func (vs *VulkanSwapchain) Extent() gpu.Extent { return vs.extent }
func (vs *VulkanSwapchain) Format() gpu.Format { return vs.format }
func (vs *VulkanSwapchain) Image(i int) gpu.Image { return vs.Images[i] }

// chooseSurfaceFormat prefers 8-bit BGRA in sRGB space, then anything the
// attachment formats can describe.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format, nil
		}
	}
	for _, format := range formats {
		if gpuFormat(format.Format) != gpu.FormatUndefined && !gpuFormat(format.Format).IsDepth() {
			return format, nil
		}
	}
	return vk.SurfaceFormat{}, errors.Wrap(core.ErrUnsupported, "no usable surface format")
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// SwapchainCreate builds a chain for extent. When old is given its handle is
// passed to the driver and it is destroyed once the new chain exists.
func SwapchainCreate(context *VulkanContext, extent gpu.Extent, old *VulkanSwapchain) (*VulkanSwapchain, error) {
	device := context.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return nil, errors.Wrap(err, "querying swapchain support")
	}
	support := device.SwapchainSupport

	surfaceFormat, err := chooseSurfaceFormat(support.Formats)
	if err != nil {
		return nil, err
	}
	presentMode := choosePresentMode(support.PresentModes)

	swapchainExtent := vk.Extent2D{Width: extent.Width, Height: extent.Height}
	if support.Capabilities.CurrentExtent.Width != stdmath.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = math.Clamp(swapchainExtent.Width, minExtent.Width, maxExtent.Width)
	swapchainExtent.Height = math.Clamp(swapchainExtent.Height, minExtent.Height, maxExtent.Height)
	if swapchainExtent.Width == 0 || swapchainExtent.Height == 0 {
		return nil, errors.Wrapf(core.ErrInvalidExtent, "surface is %dx%d", swapchainExtent.Width, swapchainExtent.Height)
	}

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	}
	if old != nil {
		swapchainCreateInfo.OldSwapchain = old.Handle
	}

	var handle vk.Swapchain
	if err := resultError("vkCreateSwapchain", vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	// A retired chain is unusable even if the new one fails below.
	if old != nil {
		old.Destroy()
	}

	swapchain := &VulkanSwapchain{
		context:     context,
		Handle:      handle,
		ImageFormat: surfaceFormat,
		extent:      gpu.Extent{Width: swapchainExtent.Width, Height: swapchainExtent.Height},
		format:      gpuFormat(surfaceFormat.Format),
	}

	var count uint32
	if err := resultError("vkGetSwapchainImages", vk.GetSwapchainImages(device.LogicalDevice, handle, &count, nil)); err != nil {
		swapchain.Destroy()
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := resultError("vkGetSwapchainImages", vk.GetSwapchainImages(device.LogicalDevice, handle, &count, handles)); err != nil {
		swapchain.Destroy()
		return nil, err
	}
	for _, h := range handles {
		img, err := wrapSwapchainImage(context, h, surfaceFormat.Format, swapchain.extent)
		if err != nil {
			swapchain.Destroy()
			return nil, err
		}
		swapchain.Images = append(swapchain.Images, img)
	}

	core.LogInfo("swapchain created: %dx%d, %d images, %s", swapchain.extent.Width, swapchain.extent.Height, len(swapchain.Images), swapchain.format)
	return swapchain, nil
}

func (vs *VulkanSwapchain) AcquireNextImage(ctx context.Context) (uint32, gpu.Future, bool, error) {
	semaphore, err := newSemaphore(vs.context)
	if err != nil {
		return 0, nil, false, err
	}
	device := vs.context.Device.LogicalDevice
	for {
		if err := ctx.Err(); err != nil {
			vk.DestroySemaphore(device, semaphore, vs.context.Allocator)
			return 0, nil, false, err
		}
		var index uint32
		result := vk.AcquireNextImage(device, vs.Handle, uint64(fenceWaitSlice.Nanoseconds()), semaphore, nil, &index)
		switch result {
		case vk.Success, vk.Suboptimal:
			ready := &VulkanFuture{
				context: vs.context,
				waits:   []semaphoreWait{{handle: semaphore, stage: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}},
			}
			return index, ready, result == vk.Suboptimal, nil
		case vk.Timeout, vk.NotReady:
			continue
		default:
			vk.DestroySemaphore(device, semaphore, vs.context.Allocator)
			return 0, nil, false, resultError("vkAcquireNextImage", result)
		}
	}
}

// Present queues index for display once after completes. A suboptimal
// present is reported as out of date so the chain gets rebuilt.
func (vs *VulkanSwapchain) Present(after gpu.Future, index uint32) (gpu.Future, error) {
	f, ok := after.(*VulkanFuture)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "presenting after a foreign future")
	}
	if int(index) >= len(vs.Images) {
		return nil, errors.Newf("present: image %d of %d", index, len(vs.Images))
	}
	waits := f.takeWaits()
	presented := &VulkanFuture{context: vs.context, deps: []*VulkanFuture{f}}
	semaphores := make([]vk.Semaphore, len(waits))
	for i, w := range waits {
		semaphores[i] = w.handle
	}
	presented.owned = semaphores

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(semaphores)),
		PWaitSemaphores:    semaphores,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{index},
	}
	var result vk.Result
	_ = vs.context.locks.SafeCall(QueueManagement, func() error {
		result = vk.QueuePresent(vs.context.Device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return presented, nil
	case vk.Suboptimal:
		return presented, errors.Wrap(core.ErrSwapchainOutOfDate, "present: suboptimal")
	default:
		return presented, resultError("vkQueuePresent", result)
	}
}

func (vs *VulkanSwapchain) Destroy() {
	for _, img := range vs.Images {
		img.Destroy()
	}
	vs.Images = nil
	if vs.Handle != nil {
		vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		vs.Handle = nil
	}
}
