package testbed

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
)

func TestUpdateAdvancesRotation(t *testing.T) {
	g := NewTestGame()
	for i := 0; i < 4; i++ {
		if err := g.Update(250 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	st := g.gs().state
	if !mgl32.FloatEqualThreshold(st.Current.Rotation, RotationSpeed, 1e-6) {
		t.Fatalf("rotation after 1s = %v", st.Current.Rotation)
	}
	mid := st.Blend(0.5).Rotation
	want := (st.Previous.Rotation + st.Current.Rotation) / 2
	if !mgl32.FloatEqualThreshold(mid, want, 1e-6) {
		t.Fatalf("blend = %v, want %v", mid, want)
	}
}

func TestSceneRendersHeadless(t *testing.T) {
	dev := headless.New(headless.Options{SwapchainImages: 2})
	r, err := renderer.New(dev, &renderer.FixedWindow{Width: 48, Height: 32}, renderer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	g := NewTestGame()
	if err := g.Initialize(r, core.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if r.Geometry().MeshCount() != 3 || len(r.Lights()) != 5 {
		t.Fatalf("meshes %d lights %d", r.Geometry().MeshCount(), len(r.Lights()))
	}
	if err := g.Render(r, 0); err != nil {
		t.Fatal(err)
	}
	if r.Geometry().PendingObjects() != 3 {
		t.Fatalf("pending = %d", r.Geometry().PendingObjects())
	}
}
