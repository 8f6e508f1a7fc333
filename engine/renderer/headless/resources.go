package headless

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// Image stores every format as float RGBA; depth lives in X.
type Image struct {
	extent    gpu.Extent
	format    gpu.Format
	pixels    []mgl32.Vec4
	destroyed bool
}

func newImage(extent gpu.Extent, format gpu.Format) *Image {
	return &Image{
		extent: extent,
		format: format,
		pixels: make([]mgl32.Vec4, int(extent.Width)*int(extent.Height)),
	}
}

func (i *Image) Extent() gpu.Extent { return i.extent }
func (i *Image) Format() gpu.Format { return i.format }
func (i *Image) Destroy()           { i.destroyed = true }
func (i *Image) Destroyed() bool    { return i.destroyed }

func (i *Image) At(x, y int) mgl32.Vec4 {
	return i.pixels[y*int(i.extent.Width)+x]
}

func (i *Image) Set(x, y int, v mgl32.Vec4) {
	i.pixels[y*int(i.extent.Width)+x] = v
}

func (i *Image) Fill(v mgl32.Vec4) {
	for p := range i.pixels {
		i.pixels[p] = v
	}
}

type RenderPass struct {
	desc gpu.RenderPassDesc
}

func (r *RenderPass) Desc() gpu.RenderPassDesc { return r.desc }
func (r *RenderPass) Destroy()                 {}

type Framebuffer struct {
	pass      *RenderPass
	extent    gpu.Extent
	images    []*Image
	destroyed bool
}

func (f *Framebuffer) Extent() gpu.Extent { return f.extent }
func (f *Framebuffer) Destroy()           { f.destroyed = true }

// Attachment returns the image bound at index i.
func (f *Framebuffer) Attachment(i int) *Image { return f.images[i] }

type Pipeline struct {
	desc gpu.PipelineDesc
}

func (p *Pipeline) Name() string             { return p.desc.Name }
func (p *Pipeline) Desc() *gpu.PipelineDesc { return &p.desc }
func (p *Pipeline) Destroy()                 {}

type Buffer struct {
	usage     gpu.BufferUsage
	data      []byte
	destroyed bool
}

func (b *Buffer) Size() uint64          { return uint64(len(b.data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) Destroy()              { b.destroyed = true }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// Bytes exposes the buffer contents.
func (b *Buffer) Bytes() []byte { return b.data }

type DescriptorSet struct {
	index  uint32
	writes map[uint32]gpu.DescriptorWrite
}

func (s *DescriptorSet) SetIndex() uint32 { return s.index }

func (s *DescriptorSet) Write(binding uint32) (gpu.DescriptorWrite, bool) {
	w, ok := s.writes[binding]
	return w, ok
}

type DescriptorPool struct {
	dev       *Device
	maxSets   uint32
	allocated uint32
}

func (p *DescriptorPool) Allocate(pl gpu.Pipeline, set uint32, writes ...gpu.DescriptorWrite) (gpu.DescriptorSet, error) {
	if p.allocated >= p.maxSets {
		return nil, errors.Newf("descriptor pool exhausted (%d sets)", p.maxSets)
	}
	hp, ok := pl.(*Pipeline)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign pipeline")
	}
	if int(set) >= len(hp.desc.SetLayouts) {
		return nil, errors.Newf("pipeline %q has no descriptor set %d", hp.desc.Name, set)
	}
	layout := hp.desc.SetLayouts[set]
	ds := &DescriptorSet{index: set, writes: make(map[uint32]gpu.DescriptorWrite, len(writes))}
	for _, w := range writes {
		found := false
		for _, b := range layout {
			if b.Binding == w.Binding {
				if b.Type != w.Type {
					return nil, errors.Newf("set %d binding %d: layout type %d, write type %d", set, w.Binding, b.Type, w.Type)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Newf("set %d has no binding %d", set, w.Binding)
		}
		ds.writes[w.Binding] = w
	}
	p.allocated++
	return ds, nil
}

func (p *DescriptorPool) Reset() error {
	p.allocated = 0
	p.dev.mu.Lock()
	p.dev.stats.DescriptorPoolResets++
	p.dev.mu.Unlock()
	return nil
}

func (p *DescriptorPool) Destroy() {}
