package gpu

import "github.com/cockroachdb/errors"

// CommandBuffer is a finished recording, ready to execute or submit.
type CommandBuffer interface {
	Secondary() bool
}

// Recorder is implemented by both primary and secondary recordings. Recording
// failures are latched and reported by End.
type Recorder interface {
	SetViewport(extent Extent)
	BindPipeline(p Pipeline)
	BindDescriptorSets(p Pipeline, first uint32, sets ...DescriptorSet)
	PushConstants(p Pipeline, data []byte)
	BindVertexBuffers(first uint32, buffers ...BufferRange)
	BindIndexBuffer(buffer BufferRange, t IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	End() (CommandBuffer, error)
	// Discard frees a recording that will never be submitted.
	Discard()
}

type PrimaryRecorder interface {
	Recorder
	BeginRenderPass(pass RenderPass, fb Framebuffer, clears []ClearValue, contents SubpassContents) error
	NextSubpass(contents SubpassContents) error
	EndRenderPass() error
	ExecuteCommands(cmds ...CommandBuffer) error
}

type CommandState int

const (
	CommandStateReady CommandState = iota
	CommandStateRecording
	CommandStateInRenderPass
	CommandStateRecordingEnded
	CommandStateSubmitted
	CommandStateNotAllocated
)

func (s CommandState) String() string {
	switch s {
	case CommandStateReady:
		return "ready"
	case CommandStateRecording:
		return "recording"
	case CommandStateInRenderPass:
		return "in render pass"
	case CommandStateRecordingEnded:
		return "recording ended"
	case CommandStateSubmitted:
		return "submitted"
	}
	return "not allocated"
}

var ErrCommandState = errors.New("invalid command buffer state")

// CommandTracker validates the recording state machine shared by every
// backend's primary recorder.
type CommandTracker struct {
	State        CommandState
	Subpass      int
	SubpassCount int
	Contents     SubpassContents
	latched      error
}

func (t *CommandTracker) expect(op string, want CommandState) error {
	if t.State != want {
		return errors.Wrapf(ErrCommandState, "%s: state %s, want %s", op, t.State, want)
	}
	return nil
}

func (t *CommandTracker) Begin() error {
	if err := t.expect("begin", CommandStateReady); err != nil {
		return err
	}
	t.State = CommandStateRecording
	return nil
}

func (t *CommandTracker) BeginRenderPass(subpasses int, contents SubpassContents) error {
	if err := t.expect("begin render pass", CommandStateRecording); err != nil {
		return err
	}
	t.State = CommandStateInRenderPass
	t.Subpass = 0
	t.SubpassCount = subpasses
	t.Contents = contents
	return nil
}

func (t *CommandTracker) NextSubpass(contents SubpassContents) error {
	if err := t.expect("next subpass", CommandStateInRenderPass); err != nil {
		return err
	}
	if t.Subpass+1 >= t.SubpassCount {
		return errors.Wrapf(ErrCommandState, "next subpass: already in last subpass %d", t.Subpass)
	}
	t.Subpass++
	t.Contents = contents
	return nil
}

func (t *CommandTracker) EndRenderPass() error {
	if err := t.expect("end render pass", CommandStateInRenderPass); err != nil {
		return err
	}
	if t.Subpass != t.SubpassCount-1 {
		return errors.Wrapf(ErrCommandState, "end render pass: in subpass %d of %d", t.Subpass, t.SubpassCount)
	}
	t.State = CommandStateRecording
	return nil
}

// Inline checks that a draw-style command may be recorded directly.
func (t *CommandTracker) Inline(op string) {
	if t.latched != nil {
		return
	}
	if t.State == CommandStateInRenderPass && t.Contents == SubpassContentsSecondary {
		t.latched = errors.Wrapf(ErrCommandState, "%s: subpass expects secondary command buffers", op)
		return
	}
	if t.State != CommandStateRecording && t.State != CommandStateInRenderPass {
		t.latched = errors.Wrapf(ErrCommandState, "%s: state %s", op, t.State)
	}
}

func (t *CommandTracker) Execute() error {
	if err := t.expect("execute commands", CommandStateInRenderPass); err != nil {
		return err
	}
	if t.Contents != SubpassContentsSecondary {
		return errors.Wrap(ErrCommandState, "execute commands: subpass records inline")
	}
	return nil
}

// Latch records the first recording error.
func (t *CommandTracker) Latch(err error) {
	if t.latched == nil && err != nil {
		t.latched = err
	}
}

func (t *CommandTracker) End() error {
	if t.latched != nil {
		return t.latched
	}
	if err := t.expect("end", CommandStateRecording); err != nil {
		return err
	}
	t.State = CommandStateRecordingEnded
	return nil
}
