package gpu

import "github.com/go-gl/mathgl/mgl32"

type VertexFormat int

const (
	VertexFormatFloat2 VertexFormat = iota
	VertexFormatFloat3
	VertexFormatFloat4
)

func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat2:
		return 2
	case VertexFormatFloat3:
		return 3
	}
	return 4
}

type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexLayout describes a single interleaved vertex binding.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type BlendMode int

const (
	BlendNone BlendMode = iota
	// Colour: src*One + dst*One. Alpha: max(src, dst).
	BlendAdditive
)

type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorInputAttachment
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type PipelineDesc struct {
	Name          string
	VertexSPIRV   []uint32
	FragmentSPIRV []uint32
	Vertex        VertexLayout
	Subpass       Subpass
	Blend         BlendMode
	DepthTest     bool
	CullBack      bool
	// SetLayouts[i] is descriptor set i.
	SetLayouts         [][]DescriptorBinding
	PushConstantSize   uint32
	PushConstantStages ShaderStage

	// CPU mirrors of the SPIR-V stages, run by software backends. Hardware
	// backends ignore them.
	VertexProgram   VertexProgram
	FragmentProgram FragmentProgram
}

type Pipeline interface {
	Name() string
	Desc() *PipelineDesc
	Destroy()
}

// Resources gives CPU programs access to what the draw bound.
type Resources interface {
	// Buffer returns the bytes bound at (set, binding), or nil.
	Buffer(set, binding uint32) []byte
	PushConstants() []byte
}

type VertexInput struct {
	// Attributes in the order of VertexLayout.Attributes; missing components
	// read as 0, w as 1.
	Attributes    []mgl32.Vec4
	VertexIndex   uint32
	InstanceIndex uint32
	Resources     Resources
}

type VertexOutput struct {
	Position mgl32.Vec4
	Varyings []mgl32.Vec4
}

// VertexProgram nil means the first attribute is passed through as the clip
// space position.
type VertexProgram func(in VertexInput) VertexOutput

type FragmentInput struct {
	X, Y int
	// Normalised device coordinates of the pixel centre.
	ScreenCoord mgl32.Vec2
	Depth       float32
	Varyings    []mgl32.Vec4
	// Subpass inputs in the order the subpass declares them; depth in X.
	Inputs    []mgl32.Vec4
	Resources Resources
}

// FragmentProgram writes one value per colour attachment of its subpass and
// returns false to discard the fragment.
type FragmentProgram func(in *FragmentInput, out []mgl32.Vec4) bool
