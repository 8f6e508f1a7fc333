package renderer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
	"github.com/spaghettifunk/umbra/engine/systems"
)

// Window reports the drawable size in pixels. A zero size means minimized.
type Window interface {
	FramebufferSize() (width, height uint32)
}

// FixedWindow is a Window for offscreen rendering and tests.
type FixedWindow struct {
	Width, Height uint32
}

func (w *FixedWindow) FramebufferSize() (uint32, uint32) {
	return w.Width, w.Height
}

type Options struct {
	Shaders systems.ShaderSet
	Arena   systems.TransientArenaConfig
}

type Stats struct {
	// Frames presented.
	Frames uint64
	// Draw calls skipped because the window had no area.
	Skipped uint64
	// Acquires that found the swapchain out of date.
	OutOfDate uint64
	// Swapchain recreations, not counting the first creation.
	Recreations uint64
}

// Renderer drives one frame per Draw: acquire, record geometry and lights,
// submit and present. The swapchain is rebuilt lazily on the next Draw after
// it is reported out of date or the window is resized.
type Renderer struct {
	device    gpu.Device
	window    Window
	systems   *systems.SystemManager
	swapchain gpu.Swapchain

	// Completion of the last frame that used each swapchain image.
	fences   []gpu.Future
	last     int
	recreate bool

	lights []metadata.Light
	stats  Stats
}

func New(device gpu.Device, window Window, options Options) (*Renderer, error) {
	w, h := window.FramebufferSize()
	extent := gpu.Extent{Width: w, Height: h}
	if extent.IsZero() {
		return nil, errors.Wrap(core.ErrInvalidExtent, "renderer needs a visible window to start")
	}
	swapchain, err := device.CreateSwapchain(extent, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating swapchain")
	}
	sm, err := systems.NewSystemManager(device, systems.SystemManagerConfig{
		FinalFormat: swapchain.Format(),
		Slots:       swapchain.ImageCount(),
		Shaders:     options.Shaders,
		Arena:       options.Arena,
	})
	if err != nil {
		swapchain.Destroy()
		return nil, err
	}
	core.LogInfo("renderer started at %dx%d with %d swapchain images", w, h, swapchain.ImageCount())
	return &Renderer{
		device:    device,
		window:    window,
		systems:   sm,
		swapchain: swapchain,
		fences:    make([]gpu.Future, swapchain.ImageCount()),
		last:      -1,
	}, nil
}

func (r *Renderer) Geometry() *systems.GeometrySystem {
	return r.systems.GeometrySystem
}

func (r *Renderer) FrameSystem() *systems.FrameSystem {
	return r.systems.FrameSystem
}

func (r *Renderer) CreateMesh(config metadata.GeometryConfig) (metadata.MeshHandle, error) {
	return r.systems.GeometrySystem.CreateMeshFromConfig(config)
}

func (r *Renderer) EnqueueMesh(handle metadata.MeshHandle, model mgl32.Mat4) error {
	return r.systems.GeometrySystem.EnqueueMesh(handle, model)
}

func (r *Renderer) SetCameraParams(camera metadata.CameraParams) {
	r.systems.GeometrySystem.SetCameraParams(camera)
}

// SetLights replaces the lights applied to every following frame.
func (r *Renderer) SetLights(lights []metadata.Light) {
	r.lights = append(r.lights[:0], lights...)
}

func (r *Renderer) Lights() []metadata.Light {
	return r.lights
}

// Extent is the size of the current swapchain.
func (r *Renderer) Extent() gpu.Extent {
	return r.swapchain.Extent()
}

func (r *Renderer) Stats() Stats {
	return r.stats
}

// OnResize marks the swapchain for recreation before the next frame.
func (r *Renderer) OnResize(width, height uint32) {
	core.LogDebug("window resized to %dx%d", width, height)
	r.recreate = true
}

func (r *Renderer) windowExtent() gpu.Extent {
	w, h := r.window.FramebufferSize()
	return gpu.Extent{Width: w, Height: h}
}

func (r *Renderer) recreateSwapchain(extent gpu.Extent) error {
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device before swapchain recreation")
	}
	r.releaseFences()

	old := r.swapchain
	for i := 0; i < old.ImageCount(); i++ {
		r.systems.FrameSystem.ForgetTarget(old.Image(i))
	}
	swapchain, err := r.device.CreateSwapchain(extent, old)
	if err != nil {
		return errors.Wrap(err, "recreating swapchain")
	}
	r.swapchain = swapchain
	if swapchain.Format() != old.Format() {
		return errors.Newf("swapchain format changed from %s to %s", old.Format(), swapchain.Format())
	}
	if err := r.systems.Arena.Resize(swapchain.ImageCount()); err != nil {
		return err
	}
	r.fences = make([]gpu.Future, swapchain.ImageCount())
	r.last = -1
	r.recreate = false
	r.stats.Recreations++
	core.LogInfo("swapchain recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

func (r *Renderer) releaseFences() {
	for i, f := range r.fences {
		if f != nil {
			f.Release()
			r.fences[i] = nil
		}
	}
}

// Draw renders and presents one frame with the queued meshes and the current
// lights. It does nothing while the window has no area, and returns nil when
// the frame had to be dropped for a swapchain recreation. Either way the
// queued meshes are dropped with the frame.
func (r *Renderer) Draw(ctx context.Context) error {
	extent := r.windowExtent()
	if extent.IsZero() {
		r.stats.Skipped++
		r.systems.GeometrySystem.DropPending()
		return nil
	}
	if r.recreate || extent != r.swapchain.Extent() {
		if err := r.recreateSwapchain(extent); err != nil {
			return err
		}
	}

	index, acquired, suboptimal, err := r.swapchain.AcquireNextImage(ctx)
	if err != nil {
		if core.IsTransient(err) {
			r.stats.OutOfDate++
			r.recreate = true
			// The game queues the scene again next tick.
			r.systems.GeometrySystem.DropPending()
			return nil
		}
		return errors.Wrap(err, "acquiring swapchain image")
	}
	if suboptimal {
		r.recreate = true
	}

	// The slot's arena memory and descriptors are reused below.
	if fence := r.fences[index]; fence != nil {
		if err := fence.Wait(ctx); err != nil {
			return errors.Wrapf(err, "waiting for frame on image %d", index)
		}
		fence.Release()
		r.fences[index] = nil
	}
	if err := r.systems.Arena.Begin(int(index)); err != nil {
		return err
	}

	// The G-buffer is shared, so frames run one after the other.
	previous := r.device.Now()
	if r.last >= 0 && r.fences[r.last] != nil {
		previous = r.fences[r.last]
	}
	before := previous.Join(acquired)

	finished, err := r.record(before, r.swapchain.Image(int(index)))
	if err != nil {
		return err
	}

	presented, err := r.swapchain.Present(finished, index)
	if presented != nil {
		r.fences[index] = presented
	} else {
		r.fences[index] = finished
	}
	r.last = int(index)
	if err != nil {
		if core.IsTransient(err) {
			r.recreate = true
			return nil
		}
		return errors.Wrap(err, "presenting")
	}
	r.stats.Frames++
	return nil
}

func (r *Renderer) record(before gpu.Future, target gpu.Image) (gpu.Future, error) {
	gs := r.systems.GeometrySystem
	frame, err := r.systems.FrameSystem.BeginFrame(before, target, gs.CameraParams().ViewProjection())
	if err != nil {
		return nil, err
	}
	for {
		pass, err := frame.NextPass()
		if err != nil {
			return nil, err
		}
		switch p := pass.(type) {
		case nil:
			return nil, errors.New("frame ended without finishing")
		case *systems.DeferredPass:
			cmd, err := gs.Draw(p.ViewportDimensions())
			if err != nil {
				return nil, err
			}
			if err := p.Execute(cmd); err != nil {
				return nil, err
			}
		case *systems.LightingPass:
			if err := r.applyLights(p); err != nil {
				return nil, err
			}
		case *systems.FinishedPass:
			return p.Future(), nil
		}
	}
}

func (r *Renderer) applyLights(p *systems.LightingPass) error {
	for _, l := range r.lights {
		var err error
		switch l.Kind {
		case metadata.LightAmbient:
			err = p.AmbientLight(l.Color)
		case metadata.LightDirectional:
			err = p.DirectionalLight(l.Direction, l.Color)
		case metadata.LightPoint:
			err = p.PointLight(l.Position, l.Color)
		default:
			err = errors.Newf("unknown light kind %d", l.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) Shutdown() error {
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("waiting for device on shutdown: %s", err)
	}
	r.releaseFences()
	if err := r.systems.Shutdown(); err != nil {
		return err
	}
	r.swapchain.Destroy()
	return nil
}
