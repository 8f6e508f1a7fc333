package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

/**
 * @brief Holds a Vulkan pipeline, its layout and the descriptor set layouts
 * the layout was built from.
 */
type VulkanPipeline struct {
	context *VulkanContext
	name    string
	desc    gpu.PipelineDesc

	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	/** @brief One layout per descriptor set index. */
	SetLayouts []vk.DescriptorSetLayout
	/** @brief Stages the push constant range is visible to. */
	PushConstantStages vk.ShaderStageFlags
}

var _ gpu.Pipeline = (*VulkanPipeline)(nil)

func (p *VulkanPipeline) Name() string             { return p.name }
func (p *VulkanPipeline) Desc() *gpu.PipelineDesc { return &p.desc }

func NewGraphicsPipeline(context *VulkanContext, desc gpu.PipelineDesc) (*VulkanPipeline, error) {
	renderpass, ok := desc.Subpass.Pass.(*VulkanRenderpass)
	if !ok {
		return nil, errors.Wrapf(core.ErrUnsupported, "pipeline %s: render pass is not a vulkan render pass", desc.Name)
	}
	if desc.Subpass.Index < 0 || desc.Subpass.Index >= len(renderpass.desc.Subpasses) {
		return nil, errors.Newf("pipeline %s: subpass %d of %d", desc.Name, desc.Subpass.Index, len(renderpass.desc.Subpasses))
	}
	outPipeline := &VulkanPipeline{
		context:            context,
		name:               desc.Name,
		desc:               desc,
		PushConstantStages: shaderStages(desc.PushConstantStages),
	}
	device := context.Device.LogicalDevice

	// Descriptor set layouts
	for i, bindings := range desc.SetLayouts {
		layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
		for j, b := range bindings {
			layoutBindings[j] = vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  descriptorType(b.Type),
				DescriptorCount: 1,
				StageFlags:      shaderStages(b.Stages),
			}
		}
		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(layoutBindings)),
			PBindings:    layoutBindings,
		}
		var layout vk.DescriptorSetLayout
		if err := resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(device, &layoutInfo, context.Allocator, &layout)); err != nil {
			outPipeline.Destroy()
			return nil, errors.Wrapf(err, "pipeline %s set %d", desc.Name, i)
		}
		outPipeline.SetLayouts = append(outPipeline.SetLayouts, layout)
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(outPipeline.SetLayouts)),
		PSetLayouts:    outPipeline.SetLayouts,
	}
	if desc.PushConstantSize > 0 {
		// NOTE: only 128 bytes are guaranteed.
		if desc.PushConstantSize > 128 {
			outPipeline.Destroy()
			return nil, errors.Newf("pipeline %s: %d bytes of push constants, at most 128 are portable", desc.Name, desc.PushConstantSize)
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: outPipeline.PushConstantStages,
			Offset:     0,
			Size:       desc.PushConstantSize,
		}}
	}

	if err := context.locks.SafeCall(PipelineManagement, func() error {
		var pPipelineLayout vk.PipelineLayout
		if err := resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(device, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout)); err != nil {
			return err
		}
		outPipeline.PipelineLayout = pPipelineLayout
		return nil
	}); err != nil {
		outPipeline.Destroy()
		return nil, err
	}

	// Shader stages
	vertex, err := NewShaderStage(context, desc.VertexSPIRV, vk.ShaderStageVertexBit)
	if err != nil {
		outPipeline.Destroy()
		return nil, errors.Wrapf(err, "pipeline %s vertex stage", desc.Name)
	}
	defer vertex.Destroy(context)
	fragment, err := NewShaderStage(context, desc.FragmentSPIRV, vk.ShaderStageFragmentBit)
	if err != nil {
		outPipeline.Destroy()
		return nil, errors.Wrapf(err, "pipeline %s fragment stage", desc.Name)
	}
	defer fragment.Destroy(context)

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if desc.CullBack {
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}

	writeMask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	blend := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    vk.False,
		ColorWriteMask: writeMask,
	}
	if desc.Blend == gpu.BlendAdditive {
		blend = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorOne,
			DstColorBlendFactor: vk.BlendFactorOne,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorOne,
			AlphaBlendOp:        vk.BlendOpMax,
			ColorWriteMask:      writeMask,
		}
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, desc.Subpass.ColorAttachmentCount())
	for i := range blendAttachments {
		blendAttachments[i] = blend
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.Vertex.Stride > 0 {
		attributes := make([]vk.VertexInputAttributeDescription, len(desc.Vertex.Attributes))
		for i, a := range desc.Vertex.Attributes {
			attributes[i] = vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  0,
				Format:   vertexFormat(a.Format),
				Offset:   a.Offset,
			}
		}
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.Vertex.Stride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInputInfo.PVertexAttributeDescriptions = attributes
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vertex.ShaderStageCreateInfo, fragment.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             uint32(desc.Subpass.Index),
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines))
	}); err != nil {
		outPipeline.Destroy()
		return nil, errors.Wrapf(err, "pipeline %s", desc.Name)
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline %s created.", desc.Name)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy() {
	context := pipeline.context
	device := context.Device.LogicalDevice
	_ = context.locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(device, pipeline.Handle, context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(device, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
	for _, layout := range pipeline.SetLayouts {
		vk.DestroyDescriptorSetLayout(device, layout, context.Allocator)
	}
	pipeline.SetLayouts = nil
}
