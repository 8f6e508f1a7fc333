package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCameraLooksAtTarget(t *testing.T) {
	c := NewCamera()
	view := c.GetView()
	// The target lands on the negative Z axis in view space.
	p := view.Mul4x1(c.Target.Vec4(1))
	if !mgl32.FloatEqualThreshold(p.X(), 0, 1e-5) || !mgl32.FloatEqualThreshold(p.Y(), 0, 1e-5) || p.Z() >= 0 {
		t.Fatalf("target in view space = %v", p)
	}
	if c.IsDirty {
		t.Fatal("view still dirty after GetView")
	}
}

func TestCameraProjectionDepthRange(t *testing.T) {
	c := NewCamera()
	proj := c.Projection(16.0 / 9.0)
	near := proj.Mul4x1(mgl32.Vec4{0, 0, -c.Near, 1})
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -c.Far, 1})
	if z := near.Z() / near.W(); !mgl32.FloatEqualThreshold(z, 0, 1e-4) {
		t.Errorf("near depth = %v, want 0", z)
	}
	if z := far.Z() / far.W(); !mgl32.FloatEqualThreshold(z, 1, 1e-4) {
		t.Errorf("far depth = %v, want 1", z)
	}
	up := proj.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	if up.Y() >= 0 {
		t.Errorf("view up should map to negative clip Y, got %v", up.Y())
	}
}

func TestCameraOrbitKeepsDistance(t *testing.T) {
	c := NewCamera()
	before := c.Position.Sub(c.Target).Len()
	c.Orbit(1.2)
	after := c.Position.Sub(c.Target).Len()
	if !mgl32.FloatEqualThreshold(before, after, 1e-4) || !c.IsDirty {
		t.Fatalf("distance %v -> %v", before, after)
	}
}

func TestCameraZoomClamped(t *testing.T) {
	c := NewCamera()
	c.Zoom(1000)
	if c.FieldOfView != 10 {
		t.Fatalf("fov = %v", c.FieldOfView)
	}
	c.Zoom(-1000)
	if c.FieldOfView != 120 {
		t.Fatalf("fov = %v", c.FieldOfView)
	}
}
