package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type VulkanCommandBuffer struct {
	context   *VulkanContext
	Handle    vk.CommandBuffer
	secondary bool
	subpass   gpu.Subpass
	tracker   gpu.CommandTracker
	// Secondaries executed by this buffer are freed with it.
	executed []*VulkanCommandBuffer
	// Resources bound while recording, kept alive until the work completes.
	retained []any
}

var (
	_ gpu.CommandBuffer   = (*VulkanCommandBuffer)(nil)
	_ gpu.PrimaryRecorder = (*VulkanCommandBuffer)(nil)
)

func (v *VulkanCommandBuffer) Secondary() bool { return v.secondary }

func NewVulkanCommandBuffer(context *VulkanContext, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		context:   context,
		secondary: !isPrimary,
		tracker:   gpu.CommandTracker{State: gpu.CommandStateNotAllocated},
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        context.Device.GraphicsCommandPool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := context.locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles))
	}); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.tracker.State = gpu.CommandStateReady
	return vCommandBuffer, nil
}

// NewPrimaryRecorder allocates a one-shot primary buffer and begins it.
func NewPrimaryRecorder(context *VulkanContext) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, true)
	if err != nil {
		return nil, err
	}
	if err := cb.begin(nil); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

// NewSecondaryRecorder begins a buffer that continues subpass of its pass.
func NewSecondaryRecorder(context *VulkanContext, subpass gpu.Subpass) (*VulkanCommandBuffer, error) {
	renderpass, ok := subpass.Pass.(*VulkanRenderpass)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "secondary recorder for a foreign render pass")
	}
	cb, err := NewVulkanCommandBuffer(context, false)
	if err != nil {
		return nil, err
	}
	cb.subpass = subpass
	inheritance := vk.CommandBufferInheritanceInfo{
		SType:      vk.StructureTypeCommandBufferInheritanceInfo,
		RenderPass: renderpass.Handle,
		Subpass:    uint32(subpass.Index),
	}
	if err := cb.begin(&inheritance); err != nil {
		cb.Free()
		return nil, err
	}
	// Secondaries live inside one subpass for their whole recording.
	cb.tracker.State = gpu.CommandStateInRenderPass
	cb.tracker.SubpassCount = 1
	cb.tracker.Contents = gpu.SubpassContentsInline
	return cb, nil
}

func (v *VulkanCommandBuffer) begin(inheritance *vk.CommandBufferInheritanceInfo) error {
	if err := v.tracker.Begin(); err != nil {
		return err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if inheritance != nil {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
		beginInfo.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{*inheritance}
	}
	return resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, &beginInfo))
}

func (v *VulkanCommandBuffer) Free() {
	for _, s := range v.executed {
		s.Free()
	}
	v.executed = nil
	v.retained = nil
	if v.Handle == nil {
		return
	}
	context := v.context
	_ = context.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.tracker.State = gpu.CommandStateNotAllocated
}

func (v *VulkanCommandBuffer) Discard() {
	v.Free()
}

func (v *VulkanCommandBuffer) SetViewport(extent gpu.Extent) {
	v.tracker.Inline("set viewport")
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (v *VulkanCommandBuffer) pipeline(op string, p gpu.Pipeline) *VulkanPipeline {
	vp, ok := p.(*VulkanPipeline)
	if !ok {
		v.tracker.Latch(errors.Wrapf(core.ErrUnsupported, "%s: foreign pipeline", op))
		return nil
	}
	return vp
}

func (v *VulkanCommandBuffer) BindPipeline(p gpu.Pipeline) {
	v.tracker.Inline("bind pipeline")
	vp := v.pipeline("bind pipeline", p)
	if vp == nil {
		return
	}
	if v.secondary && vp.desc.Subpass != v.subpass {
		v.tracker.Latch(errors.Newf("bind pipeline %q: built for subpass %d, recording for %d",
			vp.name, vp.desc.Subpass.Index, v.subpass.Index))
		return
	}
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, vp.Handle)
}

func (v *VulkanCommandBuffer) BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	v.tracker.Inline("bind descriptor sets")
	vp := v.pipeline("bind descriptor sets", p)
	if vp == nil || len(sets) == 0 {
		return
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vs, ok := s.(*VulkanDescriptorSet)
		if !ok {
			v.tracker.Latch(errors.Wrap(core.ErrUnsupported, "bind descriptor sets: foreign set"))
			return
		}
		handles[i] = vs.Handle
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, vp.PipelineLayout, first, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(p gpu.Pipeline, data []byte) {
	v.tracker.Inline("push constants")
	vp := v.pipeline("push constants", p)
	if vp == nil || len(data) == 0 {
		return
	}
	if uint32(len(data)) > vp.desc.PushConstantSize {
		v.tracker.Latch(errors.Newf("push constants: %d bytes, pipeline %s declares %d", len(data), vp.name, vp.desc.PushConstantSize))
		return
	}
	vk.CmdPushConstants(v.Handle, vp.PipelineLayout, vp.PushConstantStages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) BindVertexBuffers(first uint32, buffers ...gpu.BufferRange) {
	v.tracker.Inline("bind vertex buffers")
	handles := make([]vk.Buffer, len(buffers))
	offsets := make([]vk.DeviceSize, len(buffers))
	for i, r := range buffers {
		vb, ok := r.Buffer.(*VulkanBuffer)
		if !ok {
			v.tracker.Latch(errors.Wrap(core.ErrUnsupported, "bind vertex buffers: foreign buffer"))
			return
		}
		handles[i] = vb.Handle
		offsets[i] = vk.DeviceSize(r.Offset)
	}
	vk.CmdBindVertexBuffers(v.Handle, first, uint32(len(handles)), handles, offsets)
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer gpu.BufferRange, t gpu.IndexType) {
	v.tracker.Inline("bind index buffer")
	ib, ok := buffer.Buffer.(*VulkanBuffer)
	if !ok {
		v.tracker.Latch(errors.Wrap(core.ErrUnsupported, "bind index buffer: foreign buffer"))
		return
	}
	vk.CmdBindIndexBuffer(v.Handle, ib.Handle, vk.DeviceSize(buffer.Offset), indexType(t))
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	v.tracker.Inline("draw")
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	v.tracker.Inline("draw indexed")
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, clears []gpu.ClearValue, contents gpu.SubpassContents) error {
	renderpass, ok := pass.(*VulkanRenderpass)
	if !ok {
		return errors.Wrap(core.ErrUnsupported, "begin render pass: foreign render pass")
	}
	framebuffer, ok := fb.(*VulkanFramebuffer)
	if !ok {
		return errors.Wrap(core.ErrUnsupported, "begin render pass: foreign framebuffer")
	}
	if err := v.tracker.BeginRenderPass(len(renderpass.desc.Subpasses), contents); err != nil {
		return err
	}
	values := clearValues(clears, renderpass.desc)
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderpass.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: framebuffer.extent.Width, Height: framebuffer.extent.Height},
		},
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, subpassContents(contents))
	v.retained = append(v.retained, framebuffer)
	return nil
}

func (v *VulkanCommandBuffer) NextSubpass(contents gpu.SubpassContents) error {
	if err := v.tracker.NextSubpass(contents); err != nil {
		return err
	}
	vk.CmdNextSubpass(v.Handle, subpassContents(contents))
	return nil
}

func (v *VulkanCommandBuffer) EndRenderPass() error {
	if err := v.tracker.EndRenderPass(); err != nil {
		return err
	}
	vk.CmdEndRenderPass(v.Handle)
	return nil
}

func (v *VulkanCommandBuffer) ExecuteCommands(cmds ...gpu.CommandBuffer) error {
	if err := v.tracker.Execute(); err != nil {
		return err
	}
	handles := make([]vk.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		s, ok := c.(*VulkanCommandBuffer)
		if !ok {
			return errors.Wrap(core.ErrUnsupported, "execute commands: foreign command buffer")
		}
		if !s.secondary {
			return errors.Wrap(gpu.ErrCommandState, "execute commands: primary command buffer")
		}
		if s.tracker.State != gpu.CommandStateRecordingEnded {
			return errors.Wrapf(gpu.ErrCommandState, "execute commands: secondary is %s", s.tracker.State)
		}
		if s.subpass.Index != v.tracker.Subpass {
			return errors.Newf("execute commands: recorded for subpass %d, pass is in %d", s.subpass.Index, v.tracker.Subpass)
		}
		handles = append(handles, s.Handle)
	}
	if len(handles) == 0 {
		return nil
	}
	vk.CmdExecuteCommands(v.Handle, uint32(len(handles)), handles)
	for _, c := range cmds {
		s := c.(*VulkanCommandBuffer)
		s.tracker.State = gpu.CommandStateSubmitted
		v.executed = append(v.executed, s)
	}
	return nil
}

func (v *VulkanCommandBuffer) End() (gpu.CommandBuffer, error) {
	if v.secondary && v.tracker.State == gpu.CommandStateInRenderPass {
		v.tracker.State = gpu.CommandStateRecording
	}
	if err := v.tracker.End(); err != nil {
		return nil, err
	}
	if err := resultError("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return nil, err
	}
	return v, nil
}
