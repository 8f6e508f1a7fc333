package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type VulkanFramebuffer struct {
	context     *VulkanContext
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
	extent      gpu.Extent
}

var _ gpu.Framebuffer = (*VulkanFramebuffer)(nil)

func (vfb *VulkanFramebuffer) Extent() gpu.Extent { return vfb.extent }

// FramebufferCreate binds images to the attachments of renderpass, in order.
// Every image must have the same extent.
func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, images []gpu.Image) (*VulkanFramebuffer, error) {
	if len(images) != len(renderpass.desc.Attachments) {
		return nil, errors.Newf("framebuffer has %d images, render pass %d attachments", len(images), len(renderpass.desc.Attachments))
	}
	outFramebuffer := &VulkanFramebuffer{
		context:     context,
		Attachments: make([]vk.ImageView, len(images)),
		Renderpass:  renderpass,
	}
	for i, img := range images {
		vimg, ok := img.(*VulkanImage)
		if !ok {
			return nil, errors.Wrapf(core.ErrUnsupported, "framebuffer attachment %d is not a vulkan image", i)
		}
		if i == 0 {
			outFramebuffer.extent = vimg.Extent()
		} else if vimg.Extent() != outFramebuffer.extent {
			return nil, errors.Wrapf(core.ErrInvalidExtent, "attachment %d is %dx%d, framebuffer %dx%d",
				i, vimg.Extent().Width, vimg.Extent().Height, outFramebuffer.extent.Width, outFramebuffer.extent.Height)
		}
		outFramebuffer.Attachments[i] = vimg.View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           outFramebuffer.extent.Width,
		Height:          outFramebuffer.extent.Height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &pFramebuffer)); err != nil {
		return nil, err
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(vfb.context.Device.LogicalDevice, vfb.Handle, vfb.context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
