package metadata

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

/** @brief A mesh vertex as consumed by the geometry subpass. */
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
}

/** @brief Vertex of the full-screen triangle drawn by the lighting subpass. */
type ScreenVertex struct {
	Position mgl32.Vec2
}

func VertexLayout() gpu.VertexLayout {
	return gpu.VertexLayout{
		Stride: uint32(unsafe.Sizeof(Vertex{})),
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.VertexFormatFloat3, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
			{Location: 1, Format: gpu.VertexFormatFloat3, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
			{Location: 2, Format: gpu.VertexFormatFloat3, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
		},
	}
}

func ScreenVertexLayout() gpu.VertexLayout {
	return gpu.VertexLayout{
		Stride: uint32(unsafe.Sizeof(ScreenVertex{})),
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.VertexFormatFloat2, Offset: 0},
		},
	}
}

// FullscreenTriangle covers the whole viewport with a single triangle.
var FullscreenTriangle = []ScreenVertex{
	{Position: mgl32.Vec2{-1, -1}},
	{Position: mgl32.Vec2{-1, 3}},
	{Position: mgl32.Vec2{3, -1}},
}
