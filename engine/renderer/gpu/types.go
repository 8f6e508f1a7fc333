// Package gpu holds the backend-neutral contracts the frame systems record
// against. Backends (vulkan, headless) implement Device and everything it hands
// out.
package gpu

type Extent struct {
	Width, Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatA2B10G10R10Unorm
	FormatR16G16B16A16Sfloat
	FormatD16Unorm
)

func (f Format) IsDepth() bool {
	return f == FormatD16Unorm
}

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatA2B10G10R10Unorm:
		return "A2B10G10R10_UNORM_PACK32"
	case FormatR16G16B16A16Sfloat:
		return "R16G16B16A16_SFLOAT"
	case FormatD16Unorm:
		return "D16_UNORM"
	}
	return "UNDEFINED"
}

type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthAttachment
	ImageUsageInputAttachment
	// Contents never leave the render pass.
	ImageUsageTransient
	ImageUsageTransferSrc
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
)

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

func (t IndexType) Size() uint64 {
	if t == IndexTypeUint16 {
		return 2
	}
	return 4
}

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type SubpassContents int

const (
	SubpassContentsInline SubpassContents = iota
	SubpassContentsSecondary
)

type ClearValue struct {
	Color [4]float32
	Depth float32
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(d float32) ClearValue {
	return ClearValue{Depth: d}
}

type ImageDesc struct {
	Extent Extent
	Format Format
	Usage  ImageUsage
}

type Image interface {
	Extent() Extent
	Format() Format
	Destroy()
}

type Framebuffer interface {
	Extent() Extent
	Destroy()
}

type Buffer interface {
	Size() uint64
	Usage() BufferUsage
	// Write copies data into host-visible memory at offset.
	Write(offset uint64, data []byte) error
	Destroy()
}

// BufferRange is a slice of a Buffer, as handed out by the transient arena.
type BufferRange struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}
