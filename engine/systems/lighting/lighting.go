// Package lighting holds the additive full-screen passes of the lighting
// subpass. Every light is one draw of a screen-covering triangle whose
// fragments add their contribution to the final image.
package lighting

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// Shaders are the compiled stages of one lighting pipeline. Empty slices are
// fine for backends that only run the CPU programs.
type Shaders struct {
	Vertex   []uint32
	Fragment []uint32
}

// Order of the subpass inputs. Descriptor binding i holds input i.
const (
	inputDiffuse = iota
	inputNormals
	inputDepth
)

type fullscreenPass struct {
	device   gpu.Device
	subpass  gpu.Subpass
	pipeline gpu.Pipeline
	vertices gpu.Buffer
}

func newFullscreenPass(device gpu.Device, subpass gpu.Subpass, name string, shaders Shaders, inputs int, pushSize uint32, program gpu.FragmentProgram) (*fullscreenPass, error) {
	layout := make([]gpu.DescriptorBinding, inputs)
	for i := range layout {
		layout[i] = gpu.DescriptorBinding{Binding: uint32(i), Type: gpu.DescriptorInputAttachment, Stages: gpu.ShaderStageFragment}
	}
	pipeline, err := device.CreatePipeline(gpu.PipelineDesc{
		Name:               name,
		VertexSPIRV:        shaders.Vertex,
		FragmentSPIRV:      shaders.Fragment,
		Vertex:             metadata.ScreenVertexLayout(),
		Subpass:            subpass,
		Blend:              gpu.BlendAdditive,
		SetLayouts:         [][]gpu.DescriptorBinding{layout},
		PushConstantSize:   pushSize,
		PushConstantStages: gpu.ShaderStageFragment,
		FragmentProgram:    program,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s pipeline", name)
	}

	data := gpu.Bytes(metadata.FullscreenTriangle)
	vertices, err := device.CreateBuffer(gpu.BufferUsageVertex, uint64(len(data)))
	if err != nil {
		pipeline.Destroy()
		return nil, errors.Wrapf(err, "creating %s vertex buffer", name)
	}
	if err := vertices.Write(0, data); err != nil {
		pipeline.Destroy()
		vertices.Destroy()
		return nil, err
	}
	return &fullscreenPass{device: device, subpass: subpass, pipeline: pipeline, vertices: vertices}, nil
}

// record builds the secondary recording of one light: bind, push, draw 3.
func (p *fullscreenPass) record(pool gpu.DescriptorPool, viewport gpu.Extent, inputs []gpu.Image, push []byte) (gpu.CommandBuffer, error) {
	writes := make([]gpu.DescriptorWrite, len(inputs))
	for i, img := range inputs {
		writes[i] = gpu.InputAttachmentWrite(uint32(i), img)
	}
	set, err := pool.Allocate(p.pipeline, 0, writes...)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %s descriptor set", p.pipeline.Name())
	}

	rec, err := p.device.NewSecondaryRecorder(p.subpass)
	if err != nil {
		return nil, err
	}
	rec.SetViewport(viewport)
	rec.BindPipeline(p.pipeline)
	rec.BindDescriptorSets(p.pipeline, 0, set)
	rec.PushConstants(p.pipeline, push)
	rec.BindVertexBuffers(0, gpu.BufferRange{Buffer: p.vertices, Size: p.vertices.Size()})
	rec.Draw(uint32(len(metadata.FullscreenTriangle)), 1, 0, 0)
	cmd, err := rec.End()
	if err != nil {
		rec.Discard()
		return nil, errors.Wrapf(err, "recording %s", p.pipeline.Name())
	}
	return cmd, nil
}

func (p *fullscreenPass) destroy() {
	p.vertices.Destroy()
	p.pipeline.Destroy()
}

func decode[T any](b []byte) T {
	var v T
	copy(gpu.ValueBytes(&v), b)
	return v
}

func vec4(v mgl32.Vec3, w float32) mgl32.Vec4 {
	return mgl32.Vec4{v[0], v[1], v[2], w}
}

// mulRGB is the component-wise product used to tint the diffuse colour.
func mulRGB(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
