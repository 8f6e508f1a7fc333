package gpu

type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	// Buffer descriptors.
	Buffer BufferRange
	// Input attachment descriptors.
	Image Image
}

func BufferWrite(binding uint32, typ DescriptorType, r BufferRange) DescriptorWrite {
	return DescriptorWrite{Binding: binding, Type: typ, Buffer: r}
}

func InputAttachmentWrite(binding uint32, img Image) DescriptorWrite {
	return DescriptorWrite{Binding: binding, Type: DescriptorInputAttachment, Image: img}
}

type DescriptorSet interface {
	SetIndex() uint32
}

// DescriptorPool hands out sets that live until the next Reset.
type DescriptorPool interface {
	Allocate(p Pipeline, set uint32, writes ...DescriptorWrite) (DescriptorSet, error)
	Reset() error
	Destroy()
}
