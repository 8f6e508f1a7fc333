package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type VulkanImage struct {
	context *VulkanContext
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	extent  gpu.Extent
	format  gpu.Format
	// Swapchain images are owned by the swapchain; only the view is ours.
	owned bool
}

var _ gpu.Image = (*VulkanImage)(nil)

func (img *VulkanImage) Extent() gpu.Extent { return img.extent }
func (img *VulkanImage) Format() gpu.Format { return img.format }

func ImageCreate(context *VulkanContext, desc gpu.ImageDesc) (*VulkanImage, error) {
	if desc.Extent.IsZero() {
		return nil, errors.Wrapf(core.ErrInvalidExtent, "image of %dx%d", desc.Extent.Width, desc.Extent.Height)
	}
	format := vulkanFormat(desc.Format)
	if format == vk.FormatUndefined {
		return nil, errors.Wrapf(core.ErrUnsupported, "image format %s", desc.Format)
	}
	feature := vk.FormatFeatureColorAttachmentBit
	if desc.Format.IsDepth() {
		feature = vk.FormatFeatureDepthStencilAttachmentBit
	}
	if !DeviceSupportsFormat(context.Device, format, feature) {
		return nil, errors.Wrapf(core.ErrUnsupported, "%s attachments on this device", desc.Format)
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &VulkanImage{context: context, extent: desc.Extent, format: desc.Format, owned: true}
	device := context.Device.LogicalDevice

	var handle vk.Image
	if err := resultError("vkCreateImage", vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	img.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &requirements)
	preferred := []vk.MemoryPropertyFlags{vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)}
	if desc.Usage&gpu.ImageUsageTransient != 0 {
		// Tilers keep transient attachments on chip.
		lazy := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyLazilyAllocatedBit)
		preferred = append([]vk.MemoryPropertyFlags{lazy}, preferred...)
	}
	memory, err := context.allocate(requirements, preferred...)
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "allocating image memory")
	}
	img.Memory = memory
	if err := resultError("vkBindImageMemory", vk.BindImageMemory(device, handle, memory, 0)); err != nil {
		img.Destroy()
		return nil, err
	}

	if img.View, err = createImageView(context, handle, format, aspectMask(desc.Format)); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// wrapSwapchainImage gives a presentable image a view without taking ownership.
func wrapSwapchainImage(context *VulkanContext, handle vk.Image, format vk.Format, extent gpu.Extent) (*VulkanImage, error) {
	view, err := createImageView(context, handle, format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	return &VulkanImage{
		context: context,
		Handle:  handle,
		View:    view,
		extent:  extent,
		format:  gpuFormat(format),
	}, nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := resultError("vkCreateImageView", vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view)); err != nil {
		return nil, err
	}
	return view, nil
}

func (img *VulkanImage) Destroy() {
	device := img.context.Device.LogicalDevice
	allocator := img.context.Allocator
	if img.View != nil {
		vk.DestroyImageView(device, img.View, allocator)
		img.View = nil
	}
	if !img.owned {
		return
	}
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, allocator)
		img.Memory = nil
	}
}
