package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type lightCall func(*LightingPass) error

func ambient(c mgl32.Vec3) lightCall {
	return func(p *LightingPass) error { return p.AmbientLight(c) }
}

func directional(d, c mgl32.Vec3) lightCall {
	return func(p *LightingPass) error { return p.DirectionalLight(d, c) }
}

func point(pos, c mgl32.Vec3) lightCall {
	return func(p *LightingPass) error { return p.PointLight(pos, c) }
}

// renderQuad draws a camera-facing quad lit by calls, in order.
func renderQuad(t *testing.T, r *testRig, calls ...lightCall) *headless.Image {
	t.Helper()
	gs := r.sm.GeometrySystem
	if gs.MeshCount() == 0 {
		mustMesh(t, gs, metadata.QuadConfig())
	}
	gs.SetCameraParams(metadata.IdentityCamera())
	if err := gs.EnqueueMesh(0, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	target := r.target(t, 24, 24)
	r.drawFrame(t, target, func(p *LightingPass) error {
		for _, call := range calls {
			if err := call(p); err != nil {
				return err
			}
		}
		return nil
	})
	return target
}

func TestAmbientScalesDiffuse(t *testing.T) {
	r := newTestRig(t)
	color := mgl32.Vec3{0.5, 0.25, 1}
	final := renderQuad(t, r, ambient(color))
	d, _, _ := r.sm.FrameSystem.GBuffer()
	diffuse := d.(*headless.Image)

	if diffuse.At(12, 12).Vec3() == (mgl32.Vec3{}) {
		t.Fatal("quad did not reach the G-buffer")
	}
	if diffuse.At(0, 0) != (mgl32.Vec4{}) {
		t.Fatalf("background diffuse = %v", diffuse.At(0, 0))
	}
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			in := diffuse.At(x, y)
			want := mgl32.Vec3{in.X() * color.X(), in.Y() * color.Y(), in.Z() * color.Z()}
			if !final.At(x, y).Vec3().ApproxEqualThreshold(want, 1e-6) {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, final.At(x, y), want)
			}
		}
	}
}

func TestDirectionalFacingLight(t *testing.T) {
	r := newTestRig(t)
	color := mgl32.Vec3{1, 1, 1}
	// Pointing straight into the quad, unnormalized on purpose.
	lit := renderQuad(t, r, directional(mgl32.Vec3{0, 0, -4}, color))
	d, _, _ := r.sm.FrameSystem.GBuffer()
	diffuse := d.(*headless.Image)
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			if !lit.At(x, y).Vec3().ApproxEqualThreshold(diffuse.At(x, y).Vec3(), 1e-5) {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, lit.At(x, y), diffuse.At(x, y))
			}
		}
	}

	back := renderQuad(t, r, directional(mgl32.Vec3{0, 0, 1}, color))
	if back.At(12, 12).Vec3() != (mgl32.Vec3{}) {
		t.Fatalf("light from behind lit the quad: %v", back.At(12, 12))
	}
}

func TestPointLightSkipsBackground(t *testing.T) {
	r := newTestRig(t)
	final := renderQuad(t, r, point(mgl32.Vec3{0, 0, 0.5}, mgl32.Vec3{1, 1, 1}))
	if final.At(0, 0) != (mgl32.Vec4{}) {
		t.Fatalf("background = %v", final.At(0, 0))
	}
	d, _, _ := r.sm.FrameSystem.GBuffer()
	diffuse := d.(*headless.Image)
	// With a white light the output is diffuse scaled by the falloff.
	falloff := func(x, y int) float32 {
		return final.At(x, y).Vec3().Len() / diffuse.At(x, y).Vec3().Len()
	}
	centre, edge := falloff(12, 12), falloff(7, 12)
	if centre <= 0 || centre > 1 {
		t.Fatalf("centre falloff = %v", centre)
	}
	if edge >= centre {
		t.Fatalf("edge falloff %v >= centre %v", edge, centre)
	}
}

func TestLightOrderDoesNotMatter(t *testing.T) {
	lights := []lightCall{
		ambient(mgl32.Vec3{0.1, 0.1, 0.1}),
		directional(mgl32.Vec3{0.2, -0.1, -0.7}, mgl32.Vec3{0.2, 0.2, 0.2}),
		point(mgl32.Vec3{0.25, -0.25, 0.3}, mgl32.Vec3{1, 0, 0}),
		point(mgl32.Vec3{-0.3, 0.1, 0.2}, mgl32.Vec3{0, 1, 0}),
	}
	r := newTestRig(t)
	reference := renderQuad(t, r, lights...)

	perm := make([]lightCall, len(lights))
	for i, order := range [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}} {
		for j, k := range order {
			perm[j] = lights[k]
		}
		got := renderQuad(t, r, perm...)
		t.Logf("permutation %d", i)
		approxImage(t, got, reference, 1e-5)
	}
}

func TestLightsAccumulate(t *testing.T) {
	r := newTestRig(t)
	a := renderQuad(t, r, ambient(mgl32.Vec3{0.2, 0.2, 0.2}))
	b := renderQuad(t, r, point(mgl32.Vec3{0, 0, 0.5}, mgl32.Vec3{0, 0, 1}))
	both := renderQuad(t, r, ambient(mgl32.Vec3{0.2, 0.2, 0.2}), point(mgl32.Vec3{0, 0, 0.5}, mgl32.Vec3{0, 0, 1}))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			want := a.At(x, y).Vec3().Add(b.At(x, y).Vec3())
			if !both.At(x, y).Vec3().ApproxEqualThreshold(want, 1e-5) {
				t.Fatalf("(%d,%d) = %v, want %v", x, y, both.At(x, y), want)
			}
		}
	}
}
