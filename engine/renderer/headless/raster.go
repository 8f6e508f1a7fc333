package headless

import (
	"encoding/binary"
	stdmath "math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type execState struct {
	pass     *RenderPass
	fb       *Framebuffer
	subpass  int
	viewport gpu.Extent

	pipeline  *Pipeline
	sets      map[uint32]*DescriptorSet
	push      []byte
	vertex    []gpu.BufferRange
	index     gpu.BufferRange
	indexType gpu.IndexType
}

func (s *execState) Buffer(set, binding uint32) []byte {
	ds, ok := s.sets[set]
	if !ok {
		return nil
	}
	w, ok := ds.writes[binding]
	if !ok || w.Buffer.Buffer == nil {
		return nil
	}
	buf, ok := w.Buffer.Buffer.(*Buffer)
	if !ok {
		return nil
	}
	size := w.Buffer.Size
	if size == 0 {
		size = buf.Size() - w.Buffer.Offset
	}
	return buf.data[w.Buffer.Offset : w.Buffer.Offset+size]
}

func (s *execState) PushConstants() []byte {
	return s.push
}

func (d *Device) execute(cb *CommandBuffer) error {
	st := &execState{sets: map[uint32]*DescriptorSet{}}
	return d.run(st, cb.commands)
}

func (d *Device) run(st *execState, cmds []Command) error {
	for i, c := range cmds {
		if err := d.apply(st, c); err != nil {
			return errors.Wrapf(err, "command %d", i)
		}
	}
	return nil
}

func (d *Device) apply(st *execState, c Command) error {
	switch c.Op {
	case OpBeginRenderPass:
		st.pass, st.fb, st.subpass = c.RenderPass, c.Framebuffer, 0
		st.viewport = c.Framebuffer.extent
		for i, a := range c.RenderPass.desc.Attachments {
			if a.Load != gpu.LoadOpClear {
				continue
			}
			cv := c.Clears[i]
			if a.Format.IsDepth() {
				c.Framebuffer.images[i].Fill(mgl32.Vec4{cv.Depth, 0, 0, 0})
			} else {
				c.Framebuffer.images[i].Fill(mgl32.Vec4(cv.Color))
			}
		}
	case OpNextSubpass:
		st.subpass++
	case OpEndRenderPass:
		st.pass, st.fb = nil, nil
	case OpExecuteCommands:
		for _, sec := range c.Secondaries {
			inner := &execState{
				pass:     st.pass,
				fb:       st.fb,
				subpass:  st.subpass,
				viewport: st.viewport,
				sets:     map[uint32]*DescriptorSet{},
			}
			if err := d.run(inner, sec.commands); err != nil {
				return errors.Wrap(err, "secondary")
			}
		}
	case OpSetViewport:
		st.viewport = c.Viewport
	case OpBindPipeline:
		st.pipeline = c.Pipeline
	case OpBindDescriptorSets:
		for i, s := range c.Sets {
			st.sets[c.FirstSet+uint32(i)] = s
		}
	case OpPushConstants:
		st.push = c.PushConstants
	case OpBindVertexBuffers:
		st.vertex = c.VertexBuffers
	case OpBindIndexBuffer:
		st.index, st.indexType = c.IndexBuffer, c.IndexType
	case OpDraw, OpDrawIndexed:
		return d.rasterize(st, c)
	}
	return nil
}

func (d *Device) rasterize(st *execState, c Command) error {
	p := st.pipeline
	if p == nil {
		return errors.New("draw without a bound pipeline")
	}
	if p.desc.FragmentProgram == nil {
		// Nothing to evaluate on the CPU; the draw stays recorded only.
		return nil
	}
	if st.fb == nil {
		return errors.New("draw outside a render pass")
	}
	if len(st.vertex) == 0 {
		return errors.New("draw without a vertex buffer")
	}

	count := c.VertexCount
	if c.Op == OpDrawIndexed {
		count = c.IndexCount
	}
	for inst := c.FirstInstance; inst < c.FirstInstance+c.InstanceCount; inst++ {
		verts := make([]gpu.VertexOutput, count)
		for i := uint32(0); i < count; i++ {
			vi := c.FirstVertex + i
			if c.Op == OpDrawIndexed {
				idx, err := st.readIndex(c.FirstIndex + i)
				if err != nil {
					return err
				}
				vi = uint32(int64(idx) + int64(c.VertexOffset))
			}
			attrs, err := st.fetch(p.desc.Vertex, vi)
			if err != nil {
				return err
			}
			in := gpu.VertexInput{Attributes: attrs, VertexIndex: vi, InstanceIndex: inst, Resources: st}
			if p.desc.VertexProgram != nil {
				verts[i] = p.desc.VertexProgram(in)
			} else {
				a := attrs[0]
				verts[i] = gpu.VertexOutput{Position: mgl32.Vec4{a.X(), a.Y(), a.Z(), 1}}
			}
		}
		for t := uint32(0); t+2 < count; t += 3 {
			st.triangle(verts[t], verts[t+1], verts[t+2])
		}
	}
	return nil
}

func (st *execState) readIndex(i uint32) (uint32, error) {
	buf, ok := st.index.Buffer.(*Buffer)
	if !ok {
		return 0, errors.New("indexed draw without an index buffer")
	}
	off := st.index.Offset + uint64(i)*st.indexType.Size()
	if off+st.indexType.Size() > buf.Size() {
		return 0, errors.Newf("index %d out of bounds", i)
	}
	if st.indexType == gpu.IndexTypeUint16 {
		return uint32(binary.LittleEndian.Uint16(buf.data[off:])), nil
	}
	return binary.LittleEndian.Uint32(buf.data[off:]), nil
}

func (st *execState) fetch(layout gpu.VertexLayout, vi uint32) ([]mgl32.Vec4, error) {
	buf, ok := st.vertex[0].Buffer.(*Buffer)
	if !ok {
		return nil, errors.New("vertex buffer is not a headless buffer")
	}
	base := st.vertex[0].Offset + uint64(vi)*uint64(layout.Stride)
	attrs := make([]mgl32.Vec4, len(layout.Attributes))
	for i, a := range layout.Attributes {
		v := mgl32.Vec4{0, 0, 0, 1}
		for c := 0; c < a.Format.Components(); c++ {
			off := base + uint64(a.Offset) + uint64(c)*4
			if off+4 > buf.Size() {
				return nil, errors.Newf("vertex %d attribute %d out of bounds", vi, a.Location)
			}
			v[c] = stdmath.Float32frombits(binary.LittleEndian.Uint32(buf.data[off:]))
		}
		attrs[i] = v
	}
	return attrs, nil
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (px-ax)*(by-ay) - (py-ay)*(bx-ax)
}

func (st *execState) triangle(v0, v1, v2 gpu.VertexOutput) {
	verts := [3]gpu.VertexOutput{v0, v1, v2}
	vp := st.viewport
	fbExt := st.fb.extent
	width := int(min(vp.Width, fbExt.Width))
	height := int(min(vp.Height, fbExt.Height))

	var sx, sy, sz [3]float32
	for k, v := range verts {
		w := v.Position.W()
		if w <= 0 {
			return
		}
		sx[k] = (v.Position.X()/w + 1) * 0.5 * float32(vp.Width)
		sy[k] = (v.Position.Y()/w + 1) * 0.5 * float32(vp.Height)
		sz[k] = v.Position.Z() / w
	}
	area := edge(sx[0], sy[0], sx[1], sy[1], sx[2], sy[2])
	if area == 0 {
		return
	}

	minX := max(0, int(stdmath.Floor(float64(min(sx[0], sx[1], sx[2])))))
	maxX := min(width-1, int(stdmath.Ceil(float64(max(sx[0], sx[1], sx[2])))))
	minY := max(0, int(stdmath.Floor(float64(min(sy[0], sy[1], sy[2])))))
	maxY := min(height-1, int(stdmath.Ceil(float64(max(sy[0], sy[1], sy[2])))))

	p := st.pipeline
	sub := st.pass.desc.Subpasses[st.subpass]
	colors := make([]*Image, len(sub.Color))
	for i, a := range sub.Color {
		colors[i] = st.fb.images[a]
	}
	var depth *Image
	if sub.Depth != gpu.NoAttachment {
		depth = st.fb.images[sub.Depth]
	}
	out := make([]mgl32.Vec4, len(colors))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cx, cy := float32(x)+0.5, float32(y)+0.5
			w0 := edge(sx[1], sy[1], sx[2], sy[2], cx, cy) / area
			w1 := edge(sx[2], sy[2], sx[0], sy[0], cx, cy) / area
			w2 := edge(sx[0], sy[0], sx[1], sy[1], cx, cy) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*sz[0] + w1*sz[1] + w2*sz[2]
			if z < 0 || z > 1 {
				continue
			}
			if p.desc.DepthTest && depth != nil && z >= depth.At(x, y).X() {
				continue
			}

			in := gpu.FragmentInput{
				X:           x,
				Y:           y,
				ScreenCoord: mgl32.Vec2{cx/float32(vp.Width)*2 - 1, cy/float32(vp.Height)*2 - 1},
				Depth:       z,
				Resources:   st,
			}
			if n := len(v0.Varyings); n > 0 {
				in.Varyings = make([]mgl32.Vec4, n)
				for i := 0; i < n; i++ {
					in.Varyings[i] = v0.Varyings[i].Mul(w0).Add(v1.Varyings[i].Mul(w1)).Add(v2.Varyings[i].Mul(w2))
				}
			}
			if len(sub.Inputs) > 0 {
				in.Inputs = make([]mgl32.Vec4, len(sub.Inputs))
				for i, a := range sub.Inputs {
					in.Inputs[i] = st.fb.images[a].At(x, y)
				}
			}
			for i := range out {
				out[i] = mgl32.Vec4{}
			}
			if !p.desc.FragmentProgram(&in, out) {
				continue
			}
			for i, img := range colors {
				img.Set(x, y, blend(p.desc.Blend, img.At(x, y), out[i]))
			}
			if p.desc.DepthTest && depth != nil {
				depth.Set(x, y, mgl32.Vec4{z, 0, 0, 0})
			}
		}
	}
}

func blend(mode gpu.BlendMode, dst, src mgl32.Vec4) mgl32.Vec4 {
	if mode != gpu.BlendAdditive {
		return src
	}
	return mgl32.Vec4{
		dst[0] + src[0],
		dst[1] + src[1],
		dst[2] + src[2],
		max(dst[3], src[3]),
	}
}
