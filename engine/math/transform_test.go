package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTransformModelIsTRS(t *testing.T) {
	pos := mgl32.Vec3{5, 0, -2}
	rot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})
	scale := mgl32.Vec3{2, 2, 2}
	tr := TransformFromPositionRotationScale(pos, rot, scale)

	want := mgl32.Translate3D(5, 0, -2).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(2, 2, 2))
	if got := tr.Model(); !got.ApproxEqual(want) {
		t.Fatalf("Model =\n%v\nwant\n%v", got, want)
	}

	// (1,0,0) scaled to (2,0,0), rotated to (0,2,0), translated to (5,2,-2).
	p := tr.Model().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.Vec3().ApproxEqualThreshold(mgl32.Vec3{5, 2, -2}, 1e-5) {
		t.Fatalf("transformed point = %v", p)
	}
}

func TestTransformDirtyTracking(t *testing.T) {
	tr := TransformCreate()
	if !tr.Model().ApproxEqual(mgl32.Ident4()) {
		t.Fatal("identity transform is not identity")
	}
	tr.Translate(mgl32.Vec3{1, 2, 3})
	if !tr.IsDirty {
		t.Fatal("translate did not mark dirty")
	}
	if got := tr.Model().Col(3); !got.ApproxEqual(mgl32.Vec4{1, 2, 3, 1}) {
		t.Fatalf("translation column = %v", got)
	}
	if tr.IsDirty {
		t.Fatal("Model did not clear dirty flag")
	}
}

func TestNilTransformModel(t *testing.T) {
	var tr *Transform
	if !tr.Model().ApproxEqual(mgl32.Ident4()) {
		t.Fatal("nil transform should yield identity")
	}
}
