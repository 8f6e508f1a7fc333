package headless

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type Op int

const (
	OpSetViewport Op = iota
	OpBindPipeline
	OpBindDescriptorSets
	OpPushConstants
	OpBindVertexBuffers
	OpBindIndexBuffer
	OpDraw
	OpDrawIndexed
	OpBeginRenderPass
	OpNextSubpass
	OpEndRenderPass
	OpExecuteCommands
)

// Command is one recorded call with its arguments.
type Command struct {
	Op Op

	Viewport      gpu.Extent
	Pipeline      *Pipeline
	FirstSet      uint32
	Sets          []*DescriptorSet
	PushConstants []byte
	FirstBinding  uint32
	VertexBuffers []gpu.BufferRange
	IndexBuffer   gpu.BufferRange
	IndexType     gpu.IndexType

	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32

	RenderPass  *RenderPass
	Framebuffer *Framebuffer
	Clears      []gpu.ClearValue
	Contents    gpu.SubpassContents
	Secondaries []*CommandBuffer
}

type CommandBuffer struct {
	secondary bool
	subpass   gpu.Subpass
	commands  []Command
	submitted bool
	released  bool
}

func (c *CommandBuffer) Secondary() bool          { return c.secondary }
func (c *CommandBuffer) Subpass() gpu.Subpass     { return c.subpass }
func (c *CommandBuffer) Commands() []Command      { return c.commands }
func (c *CommandBuffer) Submitted() bool          { return c.submitted }
func (c *CommandBuffer) Released() bool           { return c.released }

// Flatten returns the commands with executed secondaries spliced in place.
func (c *CommandBuffer) Flatten() []Command {
	var out []Command
	for _, cmd := range c.commands {
		out = append(out, cmd)
		if cmd.Op == OpExecuteCommands {
			for _, sec := range cmd.Secondaries {
				out = append(out, sec.Flatten()...)
			}
		}
	}
	return out
}

// Filter returns the flattened commands with the given op.
func (c *CommandBuffer) Filter(op Op) []Command {
	var out []Command
	for _, cmd := range c.Flatten() {
		if cmd.Op == op {
			out = append(out, cmd)
		}
	}
	return out
}

type recorder struct {
	dev     *Device
	cb      *CommandBuffer
	tracker gpu.CommandTracker
}

func (r *recorder) record(op string, cmd Command) {
	r.tracker.Inline(op)
	r.cb.commands = append(r.cb.commands, cmd)
}

func (r *recorder) SetViewport(extent gpu.Extent) {
	r.record("set viewport", Command{Op: OpSetViewport, Viewport: extent})
}

func (r *recorder) BindPipeline(p gpu.Pipeline) {
	hp, ok := p.(*Pipeline)
	if !ok {
		r.tracker.Latch(errors.Wrap(core.ErrUnsupported, "bind pipeline: foreign pipeline"))
		return
	}
	if r.cb.secondary && hp.desc.Subpass != r.cb.subpass {
		r.tracker.Latch(errors.Newf("bind pipeline %q: built for subpass %d, recording for %d",
			hp.desc.Name, hp.desc.Subpass.Index, r.cb.subpass.Index))
	}
	r.record("bind pipeline", Command{Op: OpBindPipeline, Pipeline: hp})
}

func (r *recorder) BindDescriptorSets(p gpu.Pipeline, first uint32, sets ...gpu.DescriptorSet) {
	hp, _ := p.(*Pipeline)
	cmd := Command{Op: OpBindDescriptorSets, Pipeline: hp, FirstSet: first}
	for i, s := range sets {
		ds, ok := s.(*DescriptorSet)
		if !ok {
			r.tracker.Latch(errors.Wrap(core.ErrUnsupported, "bind descriptor sets: foreign set"))
			return
		}
		if ds.index != first+uint32(i) {
			r.tracker.Latch(errors.Newf("descriptor set allocated for slot %d bound at %d", ds.index, first+uint32(i)))
		}
		cmd.Sets = append(cmd.Sets, ds)
	}
	r.record("bind descriptor sets", cmd)
}

func (r *recorder) PushConstants(p gpu.Pipeline, data []byte) {
	if uint32(len(data)) > p.Desc().PushConstantSize {
		r.tracker.Latch(errors.Newf("push constants of %d bytes exceed range %d of %q", len(data), p.Desc().PushConstantSize, p.Name()))
	}
	hp, _ := p.(*Pipeline)
	r.record("push constants", Command{Op: OpPushConstants, Pipeline: hp, PushConstants: append([]byte(nil), data...)})
}

func (r *recorder) BindVertexBuffers(first uint32, buffers ...gpu.BufferRange) {
	r.record("bind vertex buffers", Command{Op: OpBindVertexBuffers, FirstBinding: first, VertexBuffers: buffers})
}

func (r *recorder) BindIndexBuffer(buffer gpu.BufferRange, t gpu.IndexType) {
	r.record("bind index buffer", Command{Op: OpBindIndexBuffer, IndexBuffer: buffer, IndexType: t})
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.record("draw", Command{
		Op:            OpDraw,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.record("draw indexed", Command{
		Op:            OpDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

func (r *recorder) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, clears []gpu.ClearValue, contents gpu.SubpassContents) error {
	rp, ok := pass.(*RenderPass)
	hfb, ok2 := fb.(*Framebuffer)
	if !ok || !ok2 {
		return errors.Wrap(core.ErrUnsupported, "begin render pass: foreign object")
	}
	if len(clears) != len(rp.desc.Attachments) {
		return errors.Newf("begin render pass: %d clear values for %d attachments", len(clears), len(rp.desc.Attachments))
	}
	if err := r.tracker.BeginRenderPass(len(rp.desc.Subpasses), contents); err != nil {
		return err
	}
	r.cb.commands = append(r.cb.commands, Command{
		Op:          OpBeginRenderPass,
		RenderPass:  rp,
		Framebuffer: hfb,
		Clears:      append([]gpu.ClearValue(nil), clears...),
		Contents:    contents,
	})
	return nil
}

func (r *recorder) NextSubpass(contents gpu.SubpassContents) error {
	if err := r.tracker.NextSubpass(contents); err != nil {
		return err
	}
	r.cb.commands = append(r.cb.commands, Command{Op: OpNextSubpass, Contents: contents})
	return nil
}

func (r *recorder) EndRenderPass() error {
	if err := r.tracker.EndRenderPass(); err != nil {
		return err
	}
	r.cb.commands = append(r.cb.commands, Command{Op: OpEndRenderPass})
	return nil
}

func (r *recorder) ExecuteCommands(cmds ...gpu.CommandBuffer) error {
	if err := r.tracker.Execute(); err != nil {
		return err
	}
	cmd := Command{Op: OpExecuteCommands}
	for _, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			return errors.Wrap(core.ErrUnsupported, "execute commands: foreign command buffer")
		}
		if !cb.secondary {
			return errors.Wrap(gpu.ErrCommandState, "execute commands: primary command buffer")
		}
		if cb.subpass.Index != r.tracker.Subpass {
			return errors.Newf("execute commands: recorded for subpass %d, pass is in %d", cb.subpass.Index, r.tracker.Subpass)
		}
		cmd.Secondaries = append(cmd.Secondaries, cb)
	}
	r.cb.commands = append(r.cb.commands, cmd)
	return nil
}

func (r *recorder) Discard() {
	if r.cb.released {
		return
	}
	r.cb.released = true
	r.tracker.State = gpu.CommandStateNotAllocated
	r.dev.mu.Lock()
	r.dev.stats.Discards++
	r.dev.mu.Unlock()
}

func (r *recorder) End() (gpu.CommandBuffer, error) {
	if err := r.tracker.End(); err != nil {
		return nil, err
	}
	return r.cb, nil
}
