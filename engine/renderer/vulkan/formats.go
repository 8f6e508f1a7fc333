package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

func vulkanFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatA2B10G10R10Unorm:
		return vk.FormatA2b10g10r10UnormPack32
	case gpu.FormatR16G16B16A16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatD16Unorm:
		return vk.FormatD16Unorm
	}
	return vk.FormatUndefined
}

func gpuFormat(f vk.Format) gpu.Format {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatB8G8R8A8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatB8G8R8A8Srgb
	case vk.FormatA2b10g10r10UnormPack32:
		return gpu.FormatA2B10G10R10Unorm
	case vk.FormatR16g16b16a16Sfloat:
		return gpu.FormatR16G16B16A16Sfloat
	case vk.FormatD16Unorm:
		return gpu.FormatD16Unorm
	}
	return gpu.FormatUndefined
}

func vertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat
	}
	return vk.FormatR32g32b32a32Sfloat
}

func shaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return flags
}

func descriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorInputAttachment:
		return vk.DescriptorTypeInputAttachment
	}
	return vk.DescriptorTypeUniformBuffer
}

func loadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case gpu.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpDontCare
}

func subpassContents(c gpu.SubpassContents) vk.SubpassContents {
	if c == gpu.SubpassContentsSecondary {
		return vk.SubpassContentsSecondaryCommandBuffers
	}
	return vk.SubpassContentsInline
}

func indexType(t gpu.IndexType) vk.IndexType {
	if t == gpu.IndexTypeUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func imageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	if u&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if u&gpu.ImageUsageDepthAttachment != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if u&gpu.ImageUsageInputAttachment != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)
	}
	if u&gpu.ImageUsageTransient != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit)
	}
	if u&gpu.ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	return flags
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if u&gpu.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return flags
}

func aspectMask(f gpu.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}
