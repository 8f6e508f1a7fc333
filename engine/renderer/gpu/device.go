package gpu

import (
	"context"
)

// Future tracks completion of queued GPU work and chains more work after it.
type Future interface {
	// Then submits cmd to run after this future and returns its completion.
	// The receiver is consumed.
	Then(cmd CommandBuffer) (Future, error)
	// Join returns a future complete when both are.
	Join(other Future) Future
	// Wait blocks until the work is done or ctx is cancelled.
	Wait(ctx context.Context) error
	Done() bool
	// Release frees what the work retained. Only valid once Done.
	Release()
}

type Swapchain interface {
	ImageCount() int
	Extent() Extent
	Format() Format
	Image(i int) Image
	// AcquireNextImage returns core.ErrSwapchainOutOfDate when the surface no
	// longer matches; suboptimal means usable but due for recreation.
	AcquireNextImage(ctx context.Context) (index uint32, ready Future, suboptimal bool, err error)
	Present(after Future, index uint32) (Future, error)
	Destroy()
}

type Device interface {
	// Now returns an already-complete future.
	Now() Future
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreateImage(desc ImageDesc) (Image, error)
	CreateFramebuffer(pass RenderPass, attachments []Image) (Framebuffer, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateBuffer(usage BufferUsage, size uint64) (Buffer, error)
	CreateDescriptorPool(maxSets uint32) (DescriptorPool, error)
	NewPrimaryRecorder() (PrimaryRecorder, error)
	NewSecondaryRecorder(subpass Subpass) (Recorder, error)
	// CreateSwapchain sizes the new chain for extent; old, when non-nil, is
	// retired by the call.
	CreateSwapchain(extent Extent, old Swapchain) (Swapchain, error)
	WaitIdle() error
	Destroy()
}
