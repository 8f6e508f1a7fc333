// Package headless implements the gpu contracts in memory. Recordings are kept
// for inspection and executed on submit by a small software rasterizer that runs
// the CPU programs attached to each pipeline.
package headless

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type Options struct {
	SwapchainImages int
	Format          gpu.Format
	// ManualCompletion leaves submitted work pending until it is waited on or
	// Complete is called, so callers can observe fence waits.
	ManualCompletion bool
}

type Stats struct {
	Submissions          int
	Acquires             int
	Presents             int
	SwapchainsCreated    int
	FenceWaits           int
	DescriptorPoolResets int
	ImagesCreated        int
	BuffersCreated       int
	WaitIdles            int
	// Recordings dropped without being submitted.
	Discards             int
}

type Device struct {
	mu   sync.Mutex
	opts Options

	stats      Stats
	pending    []*Future
	outOfDate  int
	suboptimal int
	presented  *Image
	destroyed  bool
}

var _ gpu.Device = (*Device)(nil)

func New(opts Options) *Device {
	if opts.SwapchainImages <= 0 {
		opts.SwapchainImages = 3
	}
	if opts.Format == gpu.FormatUndefined {
		opts.Format = gpu.FormatB8G8R8A8Unorm
	}
	return &Device{opts: opts}
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// InvalidateSurface makes the next acquire report an out-of-date swapchain.
func (d *Device) InvalidateSurface() {
	d.mu.Lock()
	d.outOfDate++
	d.mu.Unlock()
}

// MarkSuboptimal makes the next acquire succeed but report suboptimal.
func (d *Device) MarkSuboptimal() {
	d.mu.Lock()
	d.suboptimal++
	d.mu.Unlock()
}

// LastPresented returns the image most recently handed to Present.
func (d *Device) LastPresented() *Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presented
}

// Complete finishes every pending submission.
func (d *Device) Complete() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, f := range pending {
		f.pending = false
	}
}

func (d *Device) newFuture(deps ...*Future) *Future {
	f := &Future{dev: d, deps: deps}
	if d.opts.ManualCompletion {
		f.pending = true
		d.mu.Lock()
		d.pending = append(d.pending, f)
		d.mu.Unlock()
	}
	return f
}

func (d *Device) Now() gpu.Future {
	return &Future{dev: d}
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if len(desc.Subpasses) == 0 {
		return nil, errors.New("render pass needs at least one subpass")
	}
	for i, sp := range desc.Subpasses {
		for _, a := range append(append([]int{}, sp.Color...), sp.Inputs...) {
			if a < 0 || a >= len(desc.Attachments) {
				return nil, errors.Newf("subpass %d references attachment %d of %d", i, a, len(desc.Attachments))
			}
		}
		if sp.Depth != gpu.NoAttachment && (sp.Depth < 0 || sp.Depth >= len(desc.Attachments)) {
			return nil, errors.Newf("subpass %d depth attachment %d out of range", i, sp.Depth)
		}
	}
	return &RenderPass{desc: desc}, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, errors.Wrapf(core.ErrInvalidExtent, "image %dx%d", desc.Extent.Width, desc.Extent.Height)
	}
	d.mu.Lock()
	d.stats.ImagesCreated++
	d.mu.Unlock()
	return newImage(desc.Extent, desc.Format), nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.Image) (gpu.Framebuffer, error) {
	rp, ok := pass.(*RenderPass)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign render pass")
	}
	if len(attachments) != len(rp.desc.Attachments) {
		return nil, errors.Newf("framebuffer has %d attachments, render pass wants %d", len(attachments), len(rp.desc.Attachments))
	}
	fb := &Framebuffer{pass: rp, images: make([]*Image, len(attachments))}
	for i, a := range attachments {
		img, ok := a.(*Image)
		if !ok {
			return nil, errors.Wrapf(core.ErrUnsupported, "foreign image at attachment %d", i)
		}
		if i == 0 {
			fb.extent = img.extent
		} else if img.extent != fb.extent {
			return nil, errors.Newf("attachment %d is %v, framebuffer is %v", i, img.extent, fb.extent)
		}
		if img.format != rp.desc.Attachments[i].Format {
			return nil, errors.Newf("attachment %d format %s, render pass wants %s", i, img.format, rp.desc.Attachments[i].Format)
		}
		fb.images[i] = img
	}
	return fb, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Subpass.Pass == nil {
		return nil, errors.Newf("pipeline %q has no subpass", desc.Name)
	}
	if _, ok := desc.Subpass.Pass.(*RenderPass); !ok {
		return nil, errors.Wrapf(core.ErrUnsupported, "pipeline %q: foreign render pass", desc.Name)
	}
	if desc.Subpass.Index < 0 || desc.Subpass.Index >= len(desc.Subpass.Pass.Desc().Subpasses) {
		return nil, errors.Newf("pipeline %q: subpass %d out of range", desc.Name, desc.Subpass.Index)
	}
	return &Pipeline{desc: desc}, nil
}

func (d *Device) CreateBuffer(usage gpu.BufferUsage, size uint64) (gpu.Buffer, error) {
	if size == 0 {
		return nil, errors.New("zero sized buffer")
	}
	d.mu.Lock()
	d.stats.BuffersCreated++
	d.mu.Unlock()
	return &Buffer{usage: usage, data: make([]byte, size)}, nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32) (gpu.DescriptorPool, error) {
	return &DescriptorPool{dev: d, maxSets: maxSets}, nil
}

func (d *Device) NewPrimaryRecorder() (gpu.PrimaryRecorder, error) {
	r := &recorder{dev: d, cb: &CommandBuffer{}}
	if err := r.tracker.Begin(); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) NewSecondaryRecorder(subpass gpu.Subpass) (gpu.Recorder, error) {
	if _, ok := subpass.Pass.(*RenderPass); !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign render pass")
	}
	r := &recorder{dev: d, cb: &CommandBuffer{secondary: true, subpass: subpass}}
	if err := r.tracker.Begin(); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) CreateSwapchain(extent gpu.Extent, old gpu.Swapchain) (gpu.Swapchain, error) {
	if extent.IsZero() {
		return nil, errors.Wrapf(core.ErrInvalidExtent, "swapchain %dx%d", extent.Width, extent.Height)
	}
	if old != nil {
		old.Destroy()
	}
	sc := &Swapchain{dev: d, extent: extent, format: d.opts.Format}
	for i := 0; i < d.opts.SwapchainImages; i++ {
		sc.images = append(sc.images, newImage(extent, d.opts.Format))
	}
	d.mu.Lock()
	d.stats.SwapchainsCreated++
	d.mu.Unlock()
	return sc, nil
}

func (d *Device) WaitIdle() error {
	d.Complete()
	d.mu.Lock()
	d.stats.WaitIdles++
	d.mu.Unlock()
	return nil
}

func (d *Device) Destroy() {
	d.Complete()
	d.destroyed = true
}
