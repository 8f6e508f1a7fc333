package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/systems/lighting"
)

// Attachment slots of the deferred render pass.
const (
	AttachmentFinal = iota
	AttachmentDiffuse
	AttachmentNormals
	AttachmentDepth
)

const (
	DeferredSubpass = 0
	LightingSubpass = 1
)

const (
	DiffuseFormat = gpu.FormatA2B10G10R10Unorm
	NormalsFormat = gpu.FormatR16G16B16A16Sfloat
	DepthFormat   = gpu.FormatD16Unorm
)

// ShaderSet carries the compiled stages of every pipeline the frame uses.
type ShaderSet struct {
	GeometryVertex      []uint32
	GeometryFragment    []uint32
	LightingVertex      []uint32
	AmbientFragment     []uint32
	DirectionalFragment []uint32
	PointFragment       []uint32
}

type FrameSystemConfig struct {
	// Format of the images frames are rendered into, usually the swapchain's.
	FinalFormat gpu.Format
	Shaders     ShaderSet
}

// FrameSystem owns the two-subpass deferred render pass, the G-buffer and the
// lighting systems, and opens a Frame per draw.
type FrameSystem struct {
	device gpu.Device
	arena  *TransientArena
	pass   gpu.RenderPass

	extent  gpu.Extent
	diffuse gpu.Image
	normals gpu.Image
	depth   gpu.Image
	// Framebuffers per target image, valid for the current G-buffer.
	framebuffers map[gpu.Image]gpu.Framebuffer

	ambient     *lighting.AmbientLightingSystem
	directional *lighting.DirectionalLightingSystem
	point       *lighting.PointLightingSystem

	recreations int
}

func DeferredRenderPassDesc(final gpu.Format) gpu.RenderPassDesc {
	return gpu.RenderPassDesc{
		Attachments: []gpu.AttachmentDesc{
			AttachmentFinal:   {Format: final, Load: gpu.LoadOpClear, Store: true, Present: true},
			AttachmentDiffuse: {Format: DiffuseFormat, Load: gpu.LoadOpClear},
			AttachmentNormals: {Format: NormalsFormat, Load: gpu.LoadOpClear},
			AttachmentDepth:   {Format: DepthFormat, Load: gpu.LoadOpClear},
		},
		Subpasses: []gpu.SubpassDesc{
			DeferredSubpass: {
				Color: []int{AttachmentDiffuse, AttachmentNormals},
				Depth: AttachmentDepth,
			},
			LightingSubpass: {
				Color:  []int{AttachmentFinal},
				Depth:  gpu.NoAttachment,
				Inputs: []int{AttachmentDiffuse, AttachmentNormals, AttachmentDepth},
			},
		},
	}
}

func NewFrameSystem(device gpu.Device, arena *TransientArena, config FrameSystemConfig) (*FrameSystem, error) {
	pass, err := device.CreateRenderPass(DeferredRenderPassDesc(config.FinalFormat))
	if err != nil {
		return nil, errors.Wrap(err, "creating deferred render pass")
	}
	fs := &FrameSystem{
		device:       device,
		arena:        arena,
		pass:         pass,
		framebuffers: make(map[gpu.Image]gpu.Framebuffer),
	}

	lightingSubpass := gpu.Subpass{Pass: pass, Index: LightingSubpass}
	fs.ambient, err = lighting.NewAmbientLightingSystem(device, lightingSubpass, lighting.Shaders{
		Vertex: config.Shaders.LightingVertex, Fragment: config.Shaders.AmbientFragment,
	})
	if err != nil {
		return nil, err
	}
	fs.directional, err = lighting.NewDirectionalLightingSystem(device, lightingSubpass, lighting.Shaders{
		Vertex: config.Shaders.LightingVertex, Fragment: config.Shaders.DirectionalFragment,
	})
	if err != nil {
		return nil, err
	}
	fs.point, err = lighting.NewPointLightingSystem(device, lightingSubpass, lighting.Shaders{
		Vertex: config.Shaders.LightingVertex, Fragment: config.Shaders.PointFragment,
	})
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// DeferredSubpass is what the geometry pipeline must be built against.
func (fs *FrameSystem) DeferredSubpass() gpu.Subpass {
	return gpu.Subpass{Pass: fs.pass, Index: DeferredSubpass}
}

func (fs *FrameSystem) LightingSubpass() gpu.Subpass {
	return gpu.Subpass{Pass: fs.pass, Index: LightingSubpass}
}

func (fs *FrameSystem) GBufferExtent() gpu.Extent {
	return fs.extent
}

// GBufferRecreations counts how often the G-buffer was (re)built.
func (fs *FrameSystem) GBufferRecreations() int {
	return fs.recreations
}

// GBuffer returns the diffuse, normals and depth images.
func (fs *FrameSystem) GBuffer() (diffuse, normals, depth gpu.Image) {
	return fs.diffuse, fs.normals, fs.depth
}

func (fs *FrameSystem) recreateGBuffer(extent gpu.Extent) error {
	if extent.IsZero() {
		return errors.Wrapf(core.ErrInvalidExtent, "G-buffer %dx%d", extent.Width, extent.Height)
	}
	if fs.diffuse != nil {
		// Old attachments may still be referenced by frames in flight.
		if err := fs.device.WaitIdle(); err != nil {
			return errors.Wrap(err, "waiting before G-buffer recreation")
		}
		fs.destroyGBuffer()
	}

	usage := gpu.ImageUsageInputAttachment | gpu.ImageUsageTransient
	var err error
	if fs.diffuse, err = fs.device.CreateImage(gpu.ImageDesc{Extent: extent, Format: DiffuseFormat, Usage: usage | gpu.ImageUsageColorAttachment}); err != nil {
		return errors.Wrap(err, "creating diffuse attachment")
	}
	if fs.normals, err = fs.device.CreateImage(gpu.ImageDesc{Extent: extent, Format: NormalsFormat, Usage: usage | gpu.ImageUsageColorAttachment}); err != nil {
		return errors.Wrap(err, "creating normals attachment")
	}
	if fs.depth, err = fs.device.CreateImage(gpu.ImageDesc{Extent: extent, Format: DepthFormat, Usage: usage | gpu.ImageUsageDepthAttachment}); err != nil {
		return errors.Wrap(err, "creating depth attachment")
	}
	fs.extent = extent
	fs.recreations++
	core.LogDebug("G-buffer recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

func (fs *FrameSystem) destroyGBuffer() {
	for img, fb := range fs.framebuffers {
		fb.Destroy()
		delete(fs.framebuffers, img)
	}
	for _, img := range []gpu.Image{fs.diffuse, fs.normals, fs.depth} {
		if img != nil {
			img.Destroy()
		}
	}
	fs.diffuse, fs.normals, fs.depth = nil, nil, nil
}

func (fs *FrameSystem) framebuffer(target gpu.Image) (gpu.Framebuffer, error) {
	if fb, ok := fs.framebuffers[target]; ok {
		return fb, nil
	}
	fb, err := fs.device.CreateFramebuffer(fs.pass, []gpu.Image{target, fs.diffuse, fs.normals, fs.depth})
	if err != nil {
		return nil, errors.Wrap(err, "creating frame framebuffer")
	}
	fs.framebuffers[target] = fb
	return fb, nil
}

// ForgetTarget drops the cached framebuffer of a retired swapchain image.
func (fs *FrameSystem) ForgetTarget(target gpu.Image) {
	if fb, ok := fs.framebuffers[target]; ok {
		fb.Destroy()
		delete(fs.framebuffers, target)
	}
}

// BeginFrame starts recording a frame into target once before completes.
// viewTransform maps world space to clip space and is used by point lights.
func (fs *FrameSystem) BeginFrame(before gpu.Future, target gpu.Image, viewTransform mgl32.Mat4) (*Frame, error) {
	extent := target.Extent()
	if extent.IsZero() {
		return nil, errors.Wrapf(core.ErrInvalidExtent, "frame target is %dx%d", extent.Width, extent.Height)
	}
	if extent != fs.extent {
		if err := fs.recreateGBuffer(extent); err != nil {
			return nil, err
		}
	}
	fb, err := fs.framebuffer(target)
	if err != nil {
		return nil, err
	}

	rec, err := fs.device.NewPrimaryRecorder()
	if err != nil {
		return nil, errors.Wrap(err, "allocating frame command buffer")
	}
	clears := []gpu.ClearValue{
		AttachmentFinal:   gpu.ClearColor(0, 0, 0, 0),
		AttachmentDiffuse: gpu.ClearColor(0, 0, 0, 0),
		AttachmentNormals: gpu.ClearColor(0, 0, 0, 0),
		AttachmentDepth:   gpu.ClearDepth(1),
	}
	if err := rec.BeginRenderPass(fs.pass, fb, clears, gpu.SubpassContentsSecondary); err != nil {
		rec.Discard()
		return nil, errors.Wrap(err, "beginning deferred render pass")
	}
	return &Frame{
		system:        fs,
		recorder:      rec,
		extent:        extent,
		before:        before,
		viewTransform: viewTransform,
		phase:         PhaseDeferred,
	}, nil
}

func (fs *FrameSystem) Shutdown() error {
	fs.destroyGBuffer()
	fs.ambient.Shutdown()
	fs.directional.Shutdown()
	fs.point.Shutdown()
	fs.pass.Destroy()
	return nil
}
