package renderer

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

func newTestRenderer(t *testing.T, opts headless.Options, window *FixedWindow) (*headless.Device, *Renderer) {
	t.Helper()
	dev := headless.New(opts)
	r, err := New(dev, window, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Shutdown() })
	return dev, r
}

func TestNewRejectsMinimizedWindow(t *testing.T) {
	_, err := New(headless.New(headless.Options{}), &FixedWindow{}, Options{})
	if !errors.Is(err, core.ErrInvalidExtent) {
		t.Fatalf("err = %v", err)
	}
}

func TestDrawPresentsEachFrame(t *testing.T) {
	dev, r := newTestRenderer(t, headless.Options{SwapchainImages: 2}, &FixedWindow{Width: 16, Height: 16})
	quad, err := r.CreateMesh(metadata.QuadConfig())
	if err != nil {
		t.Fatal(err)
	}
	r.SetCameraParams(metadata.IdentityCamera())
	r.SetLights([]metadata.Light{metadata.AmbientLight(mgl32.Vec3{1, 1, 1})})

	for i := 0; i < 4; i++ {
		if err := r.EnqueueMesh(quad, mgl32.Ident4()); err != nil {
			t.Fatal(err)
		}
		if err := r.Draw(context.Background()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	s := dev.Stats()
	if s.Presents != 4 || s.Submissions != 4 || r.Stats().Frames != 4 {
		t.Fatalf("device %+v renderer %+v", s, r.Stats())
	}
	img := dev.LastPresented()
	if img == nil || img.At(8, 8).Vec3() == (mgl32.Vec3{}) {
		t.Fatal("presented image is black at the centre")
	}
	if img.At(0, 0).Vec3() != (mgl32.Vec3{}) {
		t.Fatalf("background = %v", img.At(0, 0))
	}
}

func TestDrawSkipsZeroSizedWindow(t *testing.T) {
	window := &FixedWindow{Width: 8, Height: 8}
	dev, r := newTestRenderer(t, headless.Options{}, window)

	window.Width, window.Height = 0, 0
	for i := 0; i < 3; i++ {
		if err := r.Draw(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	s := dev.Stats()
	if s.Acquires != 0 || s.Submissions != 0 || s.Presents != 0 || s.SwapchainsCreated != 1 {
		t.Fatalf("minimized window touched the device: %+v", s)
	}
	if r.Stats().Skipped != 3 {
		t.Fatalf("skipped = %d", r.Stats().Skipped)
	}

	window.Width, window.Height = 8, 8
	if err := r.Draw(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dev.Stats().Presents != 1 {
		t.Fatal("drawing did not resume")
	}
}

func TestDroppedFramesForgetQueuedMeshes(t *testing.T) {
	window := &FixedWindow{Width: 8, Height: 8}
	dev, r := newTestRenderer(t, headless.Options{}, window)
	quad, err := r.CreateMesh(metadata.QuadConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	window.Width, window.Height = 0, 0
	if err := r.EnqueueMesh(quad, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(ctx); err != nil {
		t.Fatal(err)
	}
	if n := r.Geometry().PendingObjects(); n != 0 {
		t.Fatalf("minimized frame kept %d instances", n)
	}

	window.Width, window.Height = 8, 8
	dev.InvalidateSurface()
	if err := r.EnqueueMesh(quad, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(ctx); err != nil {
		t.Fatal(err)
	}
	if n := r.Geometry().PendingObjects(); n != 0 {
		t.Fatalf("out of date frame kept %d instances", n)
	}

	if err := r.EnqueueMesh(quad, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(ctx); err != nil {
		t.Fatal(err)
	}
	if dev.Stats().Presents != 1 {
		t.Fatalf("presents = %d, want 1", dev.Stats().Presents)
	}
	if n := r.Geometry().PendingObjects(); n != 0 {
		t.Fatalf("drawn frame kept %d instances", n)
	}
}

func TestOutOfDateRecreatesOnce(t *testing.T) {
	dev, r := newTestRenderer(t, headless.Options{}, &FixedWindow{Width: 8, Height: 8})
	ctx := context.Background()

	dev.InvalidateSurface()
	if err := r.Draw(ctx); err != nil {
		t.Fatalf("out of date frame: %v", err)
	}
	if dev.Stats().Presents != 0 || r.Stats().OutOfDate != 1 {
		t.Fatalf("device %+v renderer %+v", dev.Stats(), r.Stats())
	}
	for i := 0; i < 3; i++ {
		if err := r.Draw(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := dev.Stats().SwapchainsCreated; got != 2 {
		t.Fatalf("swapchains created = %d, want 2", got)
	}
	if r.Stats().Recreations != 1 || dev.Stats().Presents != 3 {
		t.Fatalf("renderer %+v", r.Stats())
	}
}

func TestSuboptimalRecreatesAfterPresent(t *testing.T) {
	dev, r := newTestRenderer(t, headless.Options{}, &FixedWindow{Width: 8, Height: 8})
	dev.MarkSuboptimal()
	_ = r.Draw(context.Background())
	if dev.Stats().Presents != 1 || r.Stats().Recreations != 0 {
		t.Fatal("suboptimal frame should still present")
	}
	_ = r.Draw(context.Background())
	if r.Stats().Recreations != 1 {
		t.Fatalf("recreations = %d", r.Stats().Recreations)
	}
}

func TestResizeRebuildsSwapchainAndGBuffer(t *testing.T) {
	window := &FixedWindow{Width: 8, Height: 8}
	dev, r := newTestRenderer(t, headless.Options{}, window)
	_ = r.Draw(context.Background())

	window.Width, window.Height = 20, 10
	r.OnResize(20, 10)
	if err := r.Draw(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.Extent().Width != 20 || r.FrameSystem().GBufferExtent().Height != 10 {
		t.Fatalf("extent %+v gbuffer %+v", r.Extent(), r.FrameSystem().GBufferExtent())
	}
	if r.Stats().Recreations != 1 || dev.Stats().SwapchainsCreated != 2 {
		t.Fatalf("renderer %+v", r.Stats())
	}
}

func TestDrawWaitsOnReusedImage(t *testing.T) {
	dev, r := newTestRenderer(t, headless.Options{SwapchainImages: 3, ManualCompletion: true}, &FixedWindow{Width: 8, Height: 8})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := r.Draw(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if dev.Stats().FenceWaits != 0 {
		t.Fatalf("waited before any image was reused: %d", dev.Stats().FenceWaits)
	}
	for i := 0; i < 4; i++ {
		if err := r.Draw(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := dev.Stats().FenceWaits; got != 4 {
		t.Fatalf("fence waits = %d, want 4", got)
	}
	if got := dev.Stats().DescriptorPoolResets; got != 7 {
		t.Fatalf("descriptor pool resets = %d, want 7", got)
	}
}

func TestParseRendererType(t *testing.T) {
	if k, err := ParseRendererType("headless"); err != nil || k != Headless {
		t.Fatalf("headless: %v %v", k, err)
	}
	if _, err := ParseRendererType("metal"); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateHeadlessDevice(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Renderer.Backend = "headless"
	dev, err := CreateDevice(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dev.(*headless.Device); !ok {
		t.Fatalf("device = %T", dev)
	}
}
