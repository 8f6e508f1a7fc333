package systems

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type GeometrySystemConfig struct {
	// The deferred subpass of the frame system's render pass.
	Subpass       gpu.Subpass
	VertexSPIRV   []uint32
	FragmentSPIRV []uint32
}

type objectEntry struct {
	mesh metadata.MeshHandle
	data metadata.ObjectData
}

// GeometrySystem owns the mesh store and the per-frame instance list, and
// records the geometry subpass.
type GeometrySystem struct {
	device   gpu.Device
	arena    *TransientArena
	subpass  gpu.Subpass
	pipeline gpu.Pipeline

	meshes  []*metadata.Mesh
	objects []objectEntry
	camera  metadata.CameraParams
}

func NewGeometrySystem(device gpu.Device, arena *TransientArena, config GeometrySystemConfig) (*GeometrySystem, error) {
	if config.Subpass.Pass == nil {
		err := errors.New("func NewGeometrySystem - config.Subpass must be set")
		core.LogWarn(err.Error())
		return nil, err
	}
	pipeline, err := device.CreatePipeline(gpu.PipelineDesc{
		Name:          "geometry",
		VertexSPIRV:   config.VertexSPIRV,
		FragmentSPIRV: config.FragmentSPIRV,
		Vertex:        metadata.VertexLayout(),
		Subpass:       config.Subpass,
		Blend:         gpu.BlendNone,
		DepthTest:     true,
		CullBack:      true,
		SetLayouts: [][]gpu.DescriptorBinding{
			{{Binding: 0, Type: gpu.DescriptorUniformBuffer, Stages: gpu.ShaderStageVertex}},
			{{Binding: 0, Type: gpu.DescriptorStorageBuffer, Stages: gpu.ShaderStageVertex}},
		},
		VertexProgram:   geometryVertexProgram,
		FragmentProgram: geometryFragmentProgram,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating geometry pipeline")
	}
	return &GeometrySystem{
		device:   device,
		arena:    arena,
		subpass:  config.Subpass,
		pipeline: pipeline,
		camera:   metadata.IdentityCamera(),
	}, nil
}

// CreateMesh uploads an immutable mesh. The returned handle is the number of
// meshes created before it.
func (gs *GeometrySystem) CreateMesh(vertices []metadata.Vertex, indices []uint32) (metadata.MeshHandle, error) {
	return gs.CreateMeshFromConfig(metadata.GeometryConfig{Vertices: vertices, Indices: indices})
}

func (gs *GeometrySystem) CreateMeshFromConfig(config metadata.GeometryConfig) (metadata.MeshHandle, error) {
	if len(config.Vertices) == 0 || len(config.Indices) == 0 {
		return 0, errors.Newf("mesh %q needs vertices and indices", config.Name)
	}
	for _, i := range config.Indices {
		if int(i) >= len(config.Vertices) {
			return 0, errors.Newf("mesh %q: index %d out of range for %d vertices", config.Name, i, len(config.Vertices))
		}
	}

	vdata := gpu.Bytes(config.Vertices)
	vb, err := gs.device.CreateBuffer(gpu.BufferUsageVertex, uint64(len(vdata)))
	if err != nil {
		return 0, errors.Wrapf(err, "creating vertex buffer for mesh %q", config.Name)
	}
	if err := vb.Write(0, vdata); err != nil {
		vb.Destroy()
		return 0, err
	}

	idata, indexType := config.PackIndices()
	ib, err := gs.device.CreateBuffer(gpu.BufferUsageIndex, uint64(len(idata)))
	if err != nil {
		vb.Destroy()
		return 0, errors.Wrapf(err, "creating index buffer for mesh %q", config.Name)
	}
	if err := ib.Write(0, idata); err != nil {
		vb.Destroy()
		ib.Destroy()
		return 0, err
	}

	handle := metadata.MeshHandle(len(gs.meshes))
	gs.meshes = append(gs.meshes, &metadata.Mesh{
		Handle:       handle,
		Name:         config.Name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexType:    indexType,
		VertexCount:  uint32(len(config.Vertices)),
		IndexCount:   uint32(len(config.Indices)),
	})
	core.LogDebug("mesh %q created with handle %d (%d vertices, %d indices)", config.Name, handle, len(config.Vertices), len(config.Indices))
	return handle, nil
}

func (gs *GeometrySystem) Mesh(handle metadata.MeshHandle) (*metadata.Mesh, error) {
	if int(handle) >= len(gs.meshes) {
		return nil, errors.Wrapf(core.ErrUnknownMesh, "handle %d, %d meshes", handle, len(gs.meshes))
	}
	return gs.meshes[handle], nil
}

func (gs *GeometrySystem) MeshCount() int {
	return len(gs.meshes)
}

// EnqueueMesh schedules one instance of the mesh for the next Draw.
func (gs *GeometrySystem) EnqueueMesh(handle metadata.MeshHandle, model mgl32.Mat4) error {
	if int(handle) >= len(gs.meshes) {
		return errors.Wrapf(core.ErrUnknownMesh, "enqueue of handle %d", handle)
	}
	gs.objects = append(gs.objects, objectEntry{mesh: handle, data: metadata.ObjectData{Model: model}})
	return nil
}

// PendingObjects is the number of instances waiting for the next Draw.
func (gs *GeometrySystem) PendingObjects() int {
	return len(gs.objects)
}

// DropPending forgets the instances queued for a frame that will not be drawn.
func (gs *GeometrySystem) DropPending() {
	gs.objects = gs.objects[:0]
}

func (gs *GeometrySystem) SetCameraParams(camera metadata.CameraParams) {
	gs.camera = camera
}

func (gs *GeometrySystem) CameraParams() metadata.CameraParams {
	return gs.camera
}

func (gs *GeometrySystem) Pipeline() gpu.Pipeline {
	return gs.pipeline
}

// Draw records every enqueued instance, in order, into a secondary recording
// for the deferred subpass and empties the instance list. Instance i of the
// recording reads its model matrix from element i of the object buffer.
func (gs *GeometrySystem) Draw(viewport gpu.Extent) (gpu.CommandBuffer, error) {
	// The list is consumed even when recording fails.
	objects := gs.objects
	gs.objects = gs.objects[:0]

	camera, err := gs.arena.Upload(gpu.BufferUsageUniform, gpu.ValueBytes(&gs.camera))
	if err != nil {
		return nil, errors.Wrap(err, "uploading camera")
	}
	data := make([]metadata.ObjectData, max(len(objects), 1))
	for i, o := range objects {
		data[i] = o.data
	}
	models, err := gs.arena.Upload(gpu.BufferUsageStorage, gpu.Bytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "uploading object data")
	}

	pool := gs.arena.Descriptors()
	cameraSet, err := pool.Allocate(gs.pipeline, 0, gpu.BufferWrite(0, gpu.DescriptorUniformBuffer, camera))
	if err != nil {
		return nil, errors.Wrap(err, "allocating camera descriptor set")
	}
	objectSet, err := pool.Allocate(gs.pipeline, 1, gpu.BufferWrite(0, gpu.DescriptorStorageBuffer, models))
	if err != nil {
		return nil, errors.Wrap(err, "allocating object descriptor set")
	}

	rec, err := gs.device.NewSecondaryRecorder(gs.subpass)
	if err != nil {
		return nil, err
	}
	rec.SetViewport(viewport)
	rec.BindPipeline(gs.pipeline)
	rec.BindDescriptorSets(gs.pipeline, 0, cameraSet, objectSet)
	for i, o := range objects {
		mesh := gs.meshes[o.mesh]
		rec.BindVertexBuffers(0, gpu.BufferRange{Buffer: mesh.VertexBuffer, Size: mesh.VertexBuffer.Size()})
		rec.BindIndexBuffer(gpu.BufferRange{Buffer: mesh.IndexBuffer, Size: mesh.IndexBuffer.Size()}, mesh.IndexType)
		rec.DrawIndexed(mesh.IndexCount, 1, 0, 0, uint32(i))
	}
	cmd, err := rec.End()
	if err != nil {
		rec.Discard()
		return nil, errors.Wrap(err, "recording geometry")
	}
	return cmd, nil
}

func (gs *GeometrySystem) Shutdown() error {
	for _, m := range gs.meshes {
		m.VertexBuffer.Destroy()
		m.IndexBuffer.Destroy()
	}
	gs.meshes = nil
	gs.objects = nil
	gs.pipeline.Destroy()
	return nil
}

var objectDataSize = int(unsafe.Sizeof(metadata.ObjectData{}))

// geometryVertexProgram mirrors deferred.vert: proj * view * model * position,
// colour passed through and the normal rotated into world space.
func geometryVertexProgram(in gpu.VertexInput) gpu.VertexOutput {
	var camera metadata.CameraParams
	copy(gpu.ValueBytes(&camera), in.Resources.Buffer(0, 0))
	var object metadata.ObjectData
	if objects := in.Resources.Buffer(1, 0); len(objects) >= (int(in.InstanceIndex)+1)*objectDataSize {
		copy(gpu.ValueBytes(&object), objects[int(in.InstanceIndex)*objectDataSize:])
	}

	pos := in.Attributes[0]
	pos[3] = 1
	normal := object.Model.Mat3().Mul3x1(in.Attributes[2].Vec3())
	return gpu.VertexOutput{
		Position: camera.Proj.Mul4(camera.View).Mul4(object.Model).Mul4x1(pos),
		Varyings: []mgl32.Vec4{
			in.Attributes[1],
			normal.Vec4(0),
		},
	}
}

// geometryFragmentProgram mirrors deferred.frag: diffuse and normal targets.
func geometryFragmentProgram(in *gpu.FragmentInput, out []mgl32.Vec4) bool {
	c := in.Varyings[0]
	out[0] = mgl32.Vec4{c[0], c[1], c[2], 1}
	out[1] = in.Varyings[1]
	return true
}
