package systems

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// zeroImage stands in for the swapchain image of a minimized window.
type zeroImage struct{}

func (zeroImage) Extent() gpu.Extent { return gpu.Extent{} }
func (zeroImage) Format() gpu.Format { return gpu.FormatB8G8R8A8Unorm }
func (zeroImage) Destroy()           {}

// otherFramebuffer belongs to no backend; render passes refuse it.
type otherFramebuffer struct{}

func (otherFramebuffer) Extent() gpu.Extent { return gpu.Extent{Width: 8, Height: 8} }
func (otherFramebuffer) Destroy()           {}

func TestFramePassSequence(t *testing.T) {
	r := newTestRig(t)
	frame, err := r.sm.FrameSystem.BeginFrame(r.dev.Now(), r.target(t, 8, 8), mgl32.Ident4())
	if err != nil {
		t.Fatal(err)
	}

	want := []Phase{PhaseDeferred, PhaseLighting, PhaseFinished}
	for i, phase := range want {
		pass, err := frame.NextPass()
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if pass == nil || pass.Phase() != phase {
			t.Fatalf("pass %d = %v, want %s", i, pass, phase)
		}
		if frame.Phase() != phase {
			t.Fatalf("frame phase %s, want %s", frame.Phase(), phase)
		}
	}
	for i := 0; i < 3; i++ {
		pass, err := frame.NextPass()
		if pass != nil || err != nil {
			t.Fatalf("after finished: %v, %v", pass, err)
		}
	}
	if frame.Phase() != PhaseNone {
		t.Fatalf("phase = %s, want none", frame.Phase())
	}
	if got := r.dev.Stats().Submissions; got != 1 {
		t.Fatalf("submissions = %d, want 1", got)
	}
}

func TestExpiredPassHandles(t *testing.T) {
	r := newTestRig(t)
	frame, err := r.sm.FrameSystem.BeginFrame(r.dev.Now(), r.target(t, 8, 8), mgl32.Ident4())
	if err != nil {
		t.Fatal(err)
	}
	p0, _ := frame.NextPass()
	deferred := p0.(*DeferredPass)
	p1, _ := frame.NextPass()
	light := p1.(*LightingPass)

	cmd, err := r.sm.GeometrySystem.Draw(deferred.ViewportDimensions())
	if err != nil {
		t.Fatal(err)
	}
	if err := deferred.Execute(cmd); !errors.Is(err, core.ErrPassExpired) {
		t.Fatalf("deferred during lighting: %v", err)
	}
	// Misuse of a stale handle does not abort the frame.
	if err := light.AmbientLight(mgl32.Vec3{1, 1, 1}); err != nil {
		t.Fatalf("ambient: %v", err)
	}
	if _, err := frame.NextPass(); err != nil {
		t.Fatal(err)
	}
	if err := light.PointLight(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}); !errors.Is(err, core.ErrPassExpired) {
		t.Fatalf("lighting after finish: %v", err)
	}
}

func TestFrameAbortsOnError(t *testing.T) {
	r := newTestRig(t)
	fs := r.sm.FrameSystem
	frame, err := fs.BeginFrame(r.dev.Now(), r.target(t, 8, 8), mgl32.Ident4())
	if err != nil {
		t.Fatal(err)
	}
	p0, _ := frame.NextPass()
	deferred := p0.(*DeferredPass)

	rec, err := r.dev.NewSecondaryRecorder(fs.LightingSubpass())
	if err != nil {
		t.Fatal(err)
	}
	wrong, err := rec.End()
	if err != nil {
		t.Fatal(err)
	}
	if err := deferred.Execute(wrong); err == nil {
		t.Fatal("executing a lighting recording in the deferred subpass succeeded")
	}
	if frame.Err() == nil {
		t.Fatal("frame not aborted")
	}

	if _, err := frame.NextPass(); !errors.Is(err, core.ErrFrameAborted) {
		t.Fatalf("NextPass after abort: %v", err)
	}
	cmd, _ := r.sm.GeometrySystem.Draw(deferred.ViewportDimensions())
	if err := deferred.Execute(cmd); !errors.Is(err, core.ErrFrameAborted) {
		t.Fatalf("Execute after abort: %v", err)
	}
	if r.dev.Stats().Submissions != 0 {
		t.Fatal("aborted frame was submitted")
	}
}

func TestFrameRecordsSecondarySubpasses(t *testing.T) {
	r := newTestRig(t)
	gs := r.sm.GeometrySystem
	quad := mustMesh(t, gs, metadata.QuadConfig())
	_ = gs.EnqueueMesh(quad, mgl32.Ident4())

	var lastLight *LightingPass
	frame := r.drawFrame(t, r.target(t, 8, 8), func(p *LightingPass) error {
		lastLight = p
		if err := p.AmbientLight(mgl32.Vec3{1, 1, 1}); err != nil {
			return err
		}
		return p.DirectionalLight(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{1, 1, 1})
	})
	if frame.Err() != nil || lastLight == nil {
		t.Fatalf("frame err %v", frame.Err())
	}
	if got := r.dev.Stats().Submissions; got != 1 {
		t.Fatalf("submissions = %d", got)
	}
}

func TestGBufferRecreatedOnlyOnExtentChange(t *testing.T) {
	r := newTestRig(t)
	fs := r.sm.FrameSystem
	small := r.target(t, 8, 8)
	other := r.target(t, 8, 8)

	r.drawFrame(t, small, nil)
	diffuse, _, _ := fs.GBuffer()
	r.drawFrame(t, other, nil)
	r.drawFrame(t, small, nil)
	if fs.GBufferRecreations() != 1 {
		t.Fatalf("recreations = %d, want 1", fs.GBufferRecreations())
	}
	if r.dev.Stats().WaitIdles != 0 {
		t.Fatal("unexpected WaitIdle")
	}

	big := r.target(t, 16, 4)
	r.drawFrame(t, big, nil)
	if fs.GBufferRecreations() != 2 {
		t.Fatalf("recreations = %d, want 2", fs.GBufferRecreations())
	}
	if fs.GBufferExtent() != (gpu.Extent{Width: 16, Height: 4}) {
		t.Fatalf("extent = %+v", fs.GBufferExtent())
	}
	if !diffuse.(*headless.Image).Destroyed() {
		t.Fatal("old diffuse attachment not destroyed")
	}
	if r.dev.Stats().WaitIdles != 1 {
		t.Fatalf("wait idles = %d, want 1", r.dev.Stats().WaitIdles)
	}
}

func TestBeginFrameRejectsZeroTarget(t *testing.T) {
	r := newTestRig(t)
	fs := r.sm.FrameSystem
	if _, err := fs.BeginFrame(r.dev.Now(), zeroImage{}, mgl32.Ident4()); !errors.Is(err, core.ErrInvalidExtent) {
		t.Fatalf("err = %v", err)
	}
	if fs.GBufferRecreations() != 0 {
		t.Fatalf("recreations = %d, want 0", fs.GBufferRecreations())
	}
	if diffuse, normals, depth := fs.GBuffer(); diffuse != nil || normals != nil || depth != nil {
		t.Fatal("zero sized target allocated a G-buffer")
	}
}

func TestBeginFrameDiscardsRecorderOnFailure(t *testing.T) {
	r := newTestRig(t)
	fs := r.sm.FrameSystem
	target := r.target(t, 8, 8)
	r.drawFrame(t, target, nil)

	fs.framebuffers[target] = otherFramebuffer{}
	if _, err := fs.BeginFrame(r.dev.Now(), target, mgl32.Ident4()); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
	if got := r.dev.Stats().Discards; got != 1 {
		t.Fatalf("discards = %d, want 1", got)
	}
	delete(fs.framebuffers, target)
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{
		PhaseDeferred: "deferred",
		PhaseLighting: "lighting",
		PhaseFinished: "finished",
		PhaseNone:     "none",
	} {
		if p.String() != want {
			t.Errorf("%d.String() = %q", p, p.String())
		}
	}
}
