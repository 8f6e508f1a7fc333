package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type Phase int

const (
	// Geometry subpass is recording.
	PhaseDeferred Phase = iota
	// Lighting subpass is recording.
	PhaseLighting
	// Submitted; the finished future is available.
	PhaseFinished
	// Past the last pass.
	PhaseNone
)

func (p Phase) String() string {
	switch p {
	case PhaseDeferred:
		return "deferred"
	case PhaseLighting:
		return "lighting"
	case PhaseFinished:
		return "finished"
	}
	return "none"
}

// Frame walks one render pass through its phases. Only NextPass moves it
// forward; any failure aborts it for good.
type Frame struct {
	system        *FrameSystem
	recorder      gpu.PrimaryRecorder
	extent        gpu.Extent
	before        gpu.Future
	viewTransform mgl32.Mat4

	// Index of the next pass to hand out.
	step  int
	phase Phase
	err   error
}

func (f *Frame) Phase() Phase {
	return f.phase
}

// Err is the error that aborted the frame, if any.
func (f *Frame) Err() error {
	return f.err
}

func (f *Frame) abort(err error) error {
	if f.err == nil {
		f.err = err
	}
	return err
}

// NextPass advances the frame and returns a handle for the new phase. It
// returns a *DeferredPass, a *LightingPass, a *FinishedPass, then nil forever.
func (f *Frame) NextPass() (Pass, error) {
	if f.err != nil {
		return nil, errors.WithSecondaryError(core.ErrFrameAborted, f.err)
	}

	switch f.step {
	case 0:
		f.step++
		f.phase = PhaseDeferred
		return &DeferredPass{frame: f}, nil

	case 1:
		if err := f.recorder.NextSubpass(gpu.SubpassContentsSecondary); err != nil {
			return nil, f.abort(errors.Wrap(err, "advancing to lighting subpass"))
		}
		f.step++
		f.phase = PhaseLighting
		return &LightingPass{
			frame:         f,
			screenToWorld: f.viewTransform.Inv(),
		}, nil

	case 2:
		if err := f.recorder.EndRenderPass(); err != nil {
			return nil, f.abort(errors.Wrap(err, "ending deferred render pass"))
		}
		cmd, err := f.recorder.End()
		if err != nil {
			return nil, f.abort(errors.Wrap(err, "finishing frame command buffer"))
		}
		after, err := f.before.Then(cmd)
		if err != nil {
			return nil, f.abort(errors.Wrap(err, "submitting frame"))
		}
		f.step++
		f.phase = PhaseFinished
		return &FinishedPass{future: after}, nil
	}

	f.phase = PhaseNone
	return nil, nil
}

// check guards pass handles against use outside their phase.
func (f *Frame) check(want Phase) error {
	if f.err != nil {
		return errors.WithSecondaryError(core.ErrFrameAborted, f.err)
	}
	if f.phase != want {
		return errors.Wrapf(core.ErrPassExpired, "%s pass used during %s", want, f.phase)
	}
	return nil
}
