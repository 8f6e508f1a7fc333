package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type VulkanRenderpass struct {
	context *VulkanContext
	Handle  vk.RenderPass
	desc    gpu.RenderPassDesc
}

var _ gpu.RenderPass = (*VulkanRenderpass)(nil)

func (vr *VulkanRenderpass) Desc() gpu.RenderPassDesc { return vr.desc }

// RenderpassCreate builds a render pass from desc. Attachments read as inputs
// by a later subpass stay on chip between subpasses; each subpass waits for
// the attachment writes of the one before it.
func RenderpassCreate(context *VulkanContext, desc gpu.RenderPassDesc) (*VulkanRenderpass, error) {
	if len(desc.Subpasses) == 0 {
		return nil, errors.New("render pass needs at least one subpass")
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		storeOp := vk.AttachmentStoreOpDontCare
		if a.Store {
			storeOp = vk.AttachmentStoreOpStore
		}
		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		switch {
		case a.Present:
			finalLayout = vk.ImageLayoutPresentSrc
		case a.Format.IsDepth():
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		initialLayout := vk.ImageLayoutUndefined
		if a.Load == gpu.LoadOpLoad {
			initialLayout = finalLayout
		}
		attachmentDescriptions[i] = vk.AttachmentDescription{
			Format:         vulkanFormat(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(a.Load),
			StoreOp:        storeOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initialLayout,
			FinalLayout:    finalLayout,
		}
	}

	subpasses := make([]vk.SubpassDescription, len(desc.Subpasses))
	for i, sp := range desc.Subpasses {
		subpass := vk.SubpassDescription{
			PipelineBindPoint: vk.PipelineBindPointGraphics,
		}
		for _, a := range sp.Color {
			if a < 0 || a >= len(desc.Attachments) {
				return nil, errors.Newf("subpass %d references attachment %d of %d", i, a, len(desc.Attachments))
			}
			subpass.PColorAttachments = append(subpass.PColorAttachments, vk.AttachmentReference{
				Attachment: uint32(a),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
		subpass.ColorAttachmentCount = uint32(len(subpass.PColorAttachments))

		if sp.Depth != gpu.NoAttachment {
			subpass.PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(sp.Depth),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}

		for _, a := range sp.Inputs {
			if a < 0 || a >= len(desc.Attachments) {
				return nil, errors.Newf("subpass %d reads attachment %d of %d", i, a, len(desc.Attachments))
			}
			subpass.PInputAttachments = append(subpass.PInputAttachments, vk.AttachmentReference{
				Attachment: uint32(a),
				Layout:     vk.ImageLayoutShaderReadOnlyOptimal,
			})
		}
		subpass.InputAttachmentCount = uint32(len(subpass.PInputAttachments))
		subpasses[i] = subpass
	}

	attachmentWrites := vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit)
	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)

	// The previous frame on the queue may still be using the shared attachments.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  attachmentStages | vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		SrcAccessMask: attachmentWrites | vk.AccessFlags(vk.AccessInputAttachmentReadBit),
		DstStageMask:  attachmentStages,
		DstAccessMask: attachmentWrites | vk.AccessFlags(vk.AccessColorAttachmentReadBit|vk.AccessDepthStencilAttachmentReadBit),
	}}
	for i := 1; i < len(subpasses); i++ {
		dependencies = append(dependencies, vk.SubpassDependency{
			SrcSubpass:      uint32(i - 1),
			DstSubpass:      uint32(i),
			SrcStageMask:    attachmentStages,
			SrcAccessMask:   attachmentWrites,
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) | attachmentStages,
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit | vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if err := resultError("vkCreateRenderPass", vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass)); err != nil {
		return nil, err
	}
	return &VulkanRenderpass{context: context, Handle: pRenderPass, desc: desc}, nil
}

func (vr *VulkanRenderpass) Destroy() {
	if vr.Handle != nil {
		vk.DestroyRenderPass(vr.context.Device.LogicalDevice, vr.Handle, vr.context.Allocator)
		vr.Handle = nil
	}
}

func clearValues(clears []gpu.ClearValue, desc gpu.RenderPassDesc) []vk.ClearValue {
	values := make([]vk.ClearValue, len(desc.Attachments))
	for i := range values {
		if i >= len(clears) {
			break
		}
		if desc.Attachments[i].Format.IsDepth() {
			values[i].SetDepthStencil(clears[i].Depth, 0)
		} else {
			values[i].SetColor(clears[i].Color[:])
		}
	}
	return values
}
