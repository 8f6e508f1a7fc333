package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

/**
 * @brief Represents the configuration for a geometry.
 */
type GeometryConfig struct {
	/** @brief The Name of the geometry. */
	Name string
	/** @brief An array of Vertices. */
	Vertices []Vertex
	/** @brief An array of Indices. */
	Indices []uint32
}

/**
 * @brief Packs the indices as 16 bit when every index fits, 32 bit otherwise.
 */
func (g *GeometryConfig) PackIndices() ([]byte, gpu.IndexType) {
	wide := false
	for _, i := range g.Indices {
		if i > stdmath.MaxUint16 {
			wide = true
			break
		}
	}
	if wide {
		out := make([]byte, 4*len(g.Indices))
		for n, i := range g.Indices {
			binary.LittleEndian.PutUint32(out[4*n:], i)
		}
		return out, gpu.IndexTypeUint32
	}
	out := make([]byte, 2*len(g.Indices))
	for n, i := range g.Indices {
		binary.LittleEndian.PutUint16(out[2*n:], uint16(i))
	}
	return out, gpu.IndexTypeUint16
}

func v3(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x, y, z} }

/** @brief A 2x2x2 cube centred on the origin, one colour per corner. */
func CubeConfig() GeometryConfig {
	type face struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}
	faces := []face{
		{v3(0, 0, 1), [4]mgl32.Vec3{v3(-1, -1, 1), v3(1, -1, 1), v3(1, 1, 1), v3(-1, 1, 1)}},
		{v3(1, 0, 0), [4]mgl32.Vec3{v3(1, -1, 1), v3(1, -1, -1), v3(1, 1, -1), v3(1, 1, 1)}},
		{v3(0, 0, -1), [4]mgl32.Vec3{v3(-1, -1, -1), v3(1, -1, -1), v3(1, 1, -1), v3(-1, 1, -1)}},
		{v3(-1, 0, 0), [4]mgl32.Vec3{v3(-1, -1, 1), v3(-1, -1, -1), v3(-1, 1, -1), v3(-1, 1, 1)}},
		{v3(0, 1, 0), [4]mgl32.Vec3{v3(-1, 1, 1), v3(1, 1, 1), v3(1, 1, -1), v3(-1, 1, -1)}},
		{v3(0, -1, 0), [4]mgl32.Vec3{v3(-1, -1, 1), v3(1, -1, 1), v3(1, -1, -1), v3(-1, -1, -1)}},
	}
	cfg := GeometryConfig{Name: "cube"}
	for _, f := range faces {
		base := uint32(len(cfg.Vertices))
		for _, c := range f.corners {
			// Corner colour follows position: (-1..1) mapped to (0..1).
			color := c.Add(v3(1, 1, 1)).Mul(0.5)
			cfg.Vertices = append(cfg.Vertices, Vertex{Position: c, Color: color, Normal: f.normal})
		}
		cfg.Indices = append(cfg.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return cfg
}

/** @brief A unit quad in the XY plane facing +Z. */
func QuadConfig() GeometryConfig {
	n := v3(0, 0, 1)
	return GeometryConfig{
		Name: "quad",
		Vertices: []Vertex{
			{Position: v3(-0.5, -0.5, 0), Color: v3(1, 0, 0), Normal: n},
			{Position: v3(0.5, -0.5, 0), Color: v3(0, 1, 0), Normal: n},
			{Position: v3(0.5, 0.5, 0), Color: v3(0, 0, 1), Normal: n},
			{Position: v3(-0.5, 0.5, 0), Color: v3(1, 1, 1), Normal: n},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

/** @brief A single triangle in the XY plane facing +Z. */
func TriangleConfig() GeometryConfig {
	n := v3(0, 0, 1)
	return GeometryConfig{
		Name: "triangle",
		Vertices: []Vertex{
			{Position: v3(-0.5, -0.25, 0), Color: v3(1, 0, 0), Normal: n},
			{Position: v3(0, 0.5, 0), Color: v3(0, 1, 0), Normal: n},
			{Position: v3(0.25, -0.1, 0), Color: v3(0, 0, 1), Normal: n},
		},
		Indices: []uint32{0, 1, 2},
	}
}
