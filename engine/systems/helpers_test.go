package systems

import (
	"testing"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type testRig struct {
	dev *headless.Device
	sm  *SystemManager
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dev := headless.New(headless.Options{})
	sm, err := NewSystemManager(dev, SystemManagerConfig{
		FinalFormat: gpu.FormatB8G8R8A8Unorm,
		Slots:       2,
	})
	if err != nil {
		t.Fatalf("NewSystemManager: %v", err)
	}
	t.Cleanup(func() { _ = sm.Shutdown() })
	return &testRig{dev: dev, sm: sm}
}

func (r *testRig) target(t *testing.T, w, h uint32) *headless.Image {
	t.Helper()
	img, err := r.dev.CreateImage(gpu.ImageDesc{
		Extent: gpu.Extent{Width: w, Height: h},
		Format: gpu.FormatB8G8R8A8Unorm,
		Usage:  gpu.ImageUsageColorAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	return img.(*headless.Image)
}

// drawFrame runs a whole frame: the geometry recording, then lights.
func (r *testRig) drawFrame(t *testing.T, target gpu.Image, lights func(*LightingPass) error) *Frame {
	t.Helper()
	gs := r.sm.GeometrySystem
	frame, err := r.sm.FrameSystem.BeginFrame(r.dev.Now(), target, gs.CameraParams().ViewProjection())
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	for {
		pass, err := frame.NextPass()
		if err != nil {
			t.Fatalf("NextPass: %v", err)
		}
		if pass == nil {
			return frame
		}
		switch p := pass.(type) {
		case *DeferredPass:
			cmd, err := gs.Draw(p.ViewportDimensions())
			if err != nil {
				t.Fatalf("geometry Draw: %v", err)
			}
			if err := p.Execute(cmd); err != nil {
				t.Fatalf("Execute: %v", err)
			}
		case *LightingPass:
			if lights != nil {
				if err := lights(p); err != nil {
					t.Fatalf("lighting: %v", err)
				}
			}
		case *FinishedPass:
			if p.Future() == nil {
				t.Fatal("finished pass without future")
			}
		}
	}
}

func mustMesh(t *testing.T, gs *GeometrySystem, cfg metadata.GeometryConfig) metadata.MeshHandle {
	t.Helper()
	h, err := gs.CreateMeshFromConfig(cfg)
	if err != nil {
		t.Fatalf("CreateMesh %s: %v", cfg.Name, err)
	}
	return h
}

func approxImage(t *testing.T, a, b *headless.Image, eps float32) {
	t.Helper()
	ext := a.Extent()
	for y := 0; y < int(ext.Height); y++ {
		for x := 0; x < int(ext.Width); x++ {
			if !a.At(x, y).ApproxEqualThreshold(b.At(x, y), eps) {
				t.Fatalf("pixel (%d,%d): %v != %v", x, y, a.At(x, y), b.At(x, y))
			}
		}
	}
}
