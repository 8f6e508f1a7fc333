package gpu

type LoadOp int

const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

type AttachmentDesc struct {
	Format Format
	Load   LoadOp
	Store  bool
	// The attachment is handed to the presentation engine after the pass.
	Present bool
}

// NoAttachment marks an unused depth slot in a SubpassDesc.
const NoAttachment = -1

type SubpassDesc struct {
	Color  []int
	Depth  int
	Inputs []int
}

type RenderPassDesc struct {
	Attachments []AttachmentDesc
	Subpasses   []SubpassDesc
}

type RenderPass interface {
	Desc() RenderPassDesc
	Destroy()
}

// Subpass names one subpass of a render pass; pipelines are built against it.
type Subpass struct {
	Pass  RenderPass
	Index int
}

func (s Subpass) Desc() SubpassDesc {
	return s.Pass.Desc().Subpasses[s.Index]
}

func (s Subpass) ColorAttachmentCount() int {
	return len(s.Desc().Color)
}
