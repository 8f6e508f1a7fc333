package metadata

import (
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// MeshHandle indexes the mesh store. Handles are dense, start at 0 and are
// never reused.
type MeshHandle uint32

// Mesh is immutable once created.
type Mesh struct {
	Handle       MeshHandle
	Name         string
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	IndexType    gpu.IndexType
	VertexCount  uint32
	IndexCount   uint32
}
