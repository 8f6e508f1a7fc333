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

func TestCreateMeshHandlesAreDense(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	for want := 0; want < 5; want++ {
		h := mustMesh(t, gs, metadata.TriangleConfig())
		if int(h) != want {
			t.Fatalf("handle %d, want %d", h, want)
		}
	}
	m, err := gs.Mesh(3)
	if err != nil || m.Handle != 3 || m.IndexCount != 3 {
		t.Fatalf("Mesh(3) = %+v, %v", m, err)
	}
}

func TestCreateMeshRejectsBadIndices(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	_, err := gs.CreateMesh(metadata.TriangleConfig().Vertices, []uint32{0, 1, 3})
	if err == nil {
		t.Fatal("expected out of range index error")
	}
	if gs.MeshCount() != 0 {
		t.Fatal("failed mesh was stored")
	}
}

func TestEnqueueUnknownMesh(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	if err := gs.EnqueueMesh(0, mgl32.Ident4()); !errors.Is(err, core.ErrUnknownMesh) {
		t.Fatalf("err = %v, want ErrUnknownMesh", err)
	}
	if _, err := gs.Mesh(7); !errors.Is(err, core.ErrUnknownMesh) {
		t.Fatalf("err = %v, want ErrUnknownMesh", err)
	}
}

func TestDrawIssuesOneIndexedDrawPerInstance(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	h := mustMesh(t, gs, metadata.CubeConfig())

	for _, k := range []int{0, 1, 4, 9} {
		for i := 0; i < k; i++ {
			if err := gs.EnqueueMesh(h, mgl32.Translate3D(float32(i), 0, 0)); err != nil {
				t.Fatal(err)
			}
		}
		cmd, err := gs.Draw(gpu.Extent{Width: 8, Height: 8})
		if err != nil {
			t.Fatal(err)
		}
		if gs.PendingObjects() != 0 {
			t.Fatalf("k=%d: %d objects left after draw", k, gs.PendingObjects())
		}
		draws := cmd.(*headless.CommandBuffer).Filter(headless.OpDrawIndexed)
		if len(draws) != k {
			t.Fatalf("k=%d: %d indexed draws", k, len(draws))
		}
		for i, d := range draws {
			if d.FirstInstance != uint32(i) || d.InstanceCount != 1 || d.IndexCount != 36 {
				t.Errorf("k=%d draw %d = %+v", k, i, d)
			}
		}
	}
}

func TestDrawQuadAndTriangle(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	quad := mustMesh(t, gs, metadata.QuadConfig())
	tri := mustMesh(t, gs, metadata.TriangleConfig())
	gs.SetCameraParams(metadata.IdentityCamera())

	if err := gs.EnqueueMesh(quad, mgl32.Ident4()); err != nil {
		t.Fatal(err)
	}
	if err := gs.EnqueueMesh(tri, mgl32.Translate3D(5, 0, 0)); err != nil {
		t.Fatal(err)
	}
	cmd, err := gs.Draw(gpu.Extent{Width: 16, Height: 16})
	if err != nil {
		t.Fatal(err)
	}

	quadMesh, _ := gs.Mesh(quad)
	triMesh, _ := gs.Mesh(tri)
	want := []struct {
		instance uint32
		count    uint32
		index    gpu.Buffer
	}{
		{0, 6, quadMesh.IndexBuffer},
		{1, 3, triMesh.IndexBuffer},
	}

	var bound gpu.Buffer
	var got int
	for _, c := range cmd.(*headless.CommandBuffer).Flatten() {
		switch c.Op {
		case headless.OpBindIndexBuffer:
			bound = c.IndexBuffer.Buffer
		case headless.OpDrawIndexed:
			if got >= len(want) {
				t.Fatalf("unexpected extra draw %+v", c)
			}
			w := want[got]
			if c.FirstInstance != w.instance || c.IndexCount != w.count || bound != w.index {
				t.Errorf("draw %d: instance %d count %d, want instance %d count %d on own index buffer",
					got, c.FirstInstance, c.IndexCount, w.instance, w.count)
			}
			got++
		}
	}
	if got != 2 {
		t.Fatalf("%d indexed draws, want 2", got)
	}
}

func TestDrawRecordsBindingsInOrder(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	h := mustMesh(t, gs, metadata.QuadConfig())
	_ = gs.EnqueueMesh(h, mgl32.Ident4())
	cmd, err := gs.Draw(gpu.Extent{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	var ops []headless.Op
	for _, c := range cmd.(*headless.CommandBuffer).Commands() {
		ops = append(ops, c.Op)
	}
	want := []headless.Op{
		headless.OpSetViewport,
		headless.OpBindPipeline,
		headless.OpBindDescriptorSets,
		headless.OpBindVertexBuffers,
		headless.OpBindIndexBuffer,
		headless.OpDrawIndexed,
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("op %d = %v, want %v", i, ops[i], want[i])
		}
	}
	sets := cmd.(*headless.CommandBuffer).Commands()[2].Sets
	if len(sets) != 2 || sets[0].SetIndex() != 0 || sets[1].SetIndex() != 1 {
		t.Fatalf("descriptor sets = %+v", sets)
	}
}

func TestCameraParamsPersistAcrossDraws(t *testing.T) {
	gs := newTestRig(t).sm.GeometrySystem
	cam := metadata.CameraParams{View: mgl32.Translate3D(0, 0, -3), Proj: mgl32.Perspective(1, 1, 0.1, 10)}
	gs.SetCameraParams(cam)
	for i := 0; i < 2; i++ {
		if _, err := gs.Draw(gpu.Extent{Width: 2, Height: 2}); err != nil {
			t.Fatal(err)
		}
		if gs.CameraParams() != cam {
			t.Fatal("camera changed by draw")
		}
	}
}
