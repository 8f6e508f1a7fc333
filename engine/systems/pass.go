package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// Pass is one of *DeferredPass, *LightingPass or *FinishedPass.
type Pass interface {
	Phase() Phase
}

// DeferredPass accepts geometry recordings for subpass 0.
type DeferredPass struct {
	frame *Frame
}

func (p *DeferredPass) Phase() Phase { return PhaseDeferred }

func (p *DeferredPass) ViewportDimensions() gpu.Extent {
	return p.frame.extent
}

// Execute appends a secondary recording built against the deferred subpass.
func (p *DeferredPass) Execute(cmd gpu.CommandBuffer) error {
	if err := p.frame.check(PhaseDeferred); err != nil {
		return err
	}
	if err := p.frame.recorder.ExecuteCommands(cmd); err != nil {
		return p.frame.abort(errors.Wrap(err, "executing deferred commands"))
	}
	return nil
}

// LightingPass adds lights to the final image. Calls may come in any number
// and order; their contributions add up.
type LightingPass struct {
	frame         *Frame
	screenToWorld mgl32.Mat4
}

func (p *LightingPass) Phase() Phase { return PhaseLighting }

func (p *LightingPass) execute(build func(pool gpu.DescriptorPool, viewport gpu.Extent) (gpu.CommandBuffer, error)) error {
	if err := p.frame.check(PhaseLighting); err != nil {
		return err
	}
	fs := p.frame.system
	cmd, err := build(fs.arena.Descriptors(), p.frame.extent)
	if err != nil {
		return p.frame.abort(err)
	}
	if err := p.frame.recorder.ExecuteCommands(cmd); err != nil {
		return p.frame.abort(errors.Wrap(err, "executing lighting commands"))
	}
	return nil
}

func (p *LightingPass) AmbientLight(color mgl32.Vec3) error {
	return p.execute(func(pool gpu.DescriptorPool, viewport gpu.Extent) (gpu.CommandBuffer, error) {
		fs := p.frame.system
		return fs.ambient.Draw(pool, viewport, fs.diffuse, color)
	})
}

func (p *LightingPass) DirectionalLight(direction, color mgl32.Vec3) error {
	return p.execute(func(pool gpu.DescriptorPool, viewport gpu.Extent) (gpu.CommandBuffer, error) {
		fs := p.frame.system
		return fs.directional.Draw(pool, viewport, fs.diffuse, fs.normals, direction, color)
	})
}

func (p *LightingPass) PointLight(position, color mgl32.Vec3) error {
	return p.execute(func(pool gpu.DescriptorPool, viewport gpu.Extent) (gpu.CommandBuffer, error) {
		fs := p.frame.system
		return fs.point.Draw(pool, viewport, fs.diffuse, fs.normals, fs.depth, p.screenToWorld, position, color)
	})
}

// FinishedPass carries the completion of the submitted frame. Present after it.
type FinishedPass struct {
	future gpu.Future
}

func (p *FinishedPass) Phase() Phase { return PhaseFinished }

func (p *FinishedPass) Future() gpu.Future {
	return p.future
}
