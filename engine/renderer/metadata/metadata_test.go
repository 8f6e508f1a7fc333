package metadata

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

func TestVertexLayoutMatchesStruct(t *testing.T) {
	l := VertexLayout()
	if l.Stride != 36 || unsafe.Sizeof(Vertex{}) != 36 {
		t.Fatalf("stride = %d", l.Stride)
	}
	want := []uint32{0, 12, 24}
	for i, a := range l.Attributes {
		if a.Offset != want[i] || a.Location != uint32(i) {
			t.Errorf("attribute %d = %+v", i, a)
		}
	}
}

func TestPackIndices(t *testing.T) {
	small := GeometryConfig{Indices: []uint32{0, 1, 65535}}
	b, typ := small.PackIndices()
	if typ != gpu.IndexTypeUint16 || len(b) != 6 || binary.LittleEndian.Uint16(b[4:]) != 65535 {
		t.Fatalf("16 bit packing: %v %v", typ, b)
	}
	wide := GeometryConfig{Indices: []uint32{0, 70000}}
	b, typ = wide.PackIndices()
	if typ != gpu.IndexTypeUint32 || len(b) != 8 || binary.LittleEndian.Uint32(b[4:]) != 70000 {
		t.Fatalf("32 bit packing: %v %v", typ, b)
	}
}

func TestBuiltinGeometry(t *testing.T) {
	tests := []struct {
		cfg            GeometryConfig
		verts, indices int
	}{
		{CubeConfig(), 24, 36},
		{QuadConfig(), 4, 6},
		{TriangleConfig(), 3, 3},
	}
	for _, tt := range tests {
		if len(tt.cfg.Vertices) != tt.verts || len(tt.cfg.Indices) != tt.indices {
			t.Errorf("%s: %d vertices %d indices", tt.cfg.Name, len(tt.cfg.Vertices), len(tt.cfg.Indices))
		}
		for _, i := range tt.cfg.Indices {
			if int(i) >= len(tt.cfg.Vertices) {
				t.Errorf("%s: index %d out of range", tt.cfg.Name, i)
			}
		}
	}
}

func TestLightsFromScene(t *testing.T) {
	scene := core.DefaultConfig().Scene
	lights := LightsFromScene(scene)
	if len(lights) != 1+len(scene.Directional)+len(scene.Point) {
		t.Fatalf("%d lights", len(lights))
	}
	if lights[0].Kind != LightAmbient || lights[len(lights)-1].Kind != LightPoint {
		t.Fatalf("unexpected order: %v ... %v", lights[0].Kind, lights[len(lights)-1].Kind)
	}
}

func TestViewProjection(t *testing.T) {
	c := CameraParams{View: mgl32.Translate3D(1, 0, 0), Proj: mgl32.Scale3D(2, 2, 2)}
	p := c.ViewProjection().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{2, 0, 0, 1}) {
		t.Fatalf("p = %v", p)
	}
}
