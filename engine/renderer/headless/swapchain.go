package headless

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// Swapchain hands out its images round robin.
type Swapchain struct {
	dev       *Device
	extent    gpu.Extent
	format    gpu.Format
	images    []*Image
	next      uint32
	destroyed bool
}

func (s *Swapchain) ImageCount() int      { return len(s.images) }
func (s *Swapchain) Extent() gpu.Extent   { return s.extent }
func (s *Swapchain) Format() gpu.Format   { return s.format }
func (s *Swapchain) Image(i int) gpu.Image { return s.images[i] }
func (s *Swapchain) Destroy()             { s.destroyed = true }

func (s *Swapchain) AcquireNextImage(ctx context.Context) (uint32, gpu.Future, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, false, err
	}
	if s.destroyed {
		return 0, nil, false, errors.Wrap(core.ErrSwapchainOutOfDate, "swapchain retired")
	}
	d := s.dev
	d.mu.Lock()
	if d.outOfDate > 0 {
		d.outOfDate--
		d.mu.Unlock()
		return 0, nil, false, core.ErrSwapchainOutOfDate
	}
	suboptimal := false
	if d.suboptimal > 0 {
		d.suboptimal--
		suboptimal = true
	}
	d.stats.Acquires++
	d.mu.Unlock()

	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, &Future{dev: d}, suboptimal, nil
}

func (s *Swapchain) Present(after gpu.Future, index uint32) (gpu.Future, error) {
	if int(index) >= len(s.images) {
		return nil, errors.Newf("present of image %d, swapchain has %d", index, len(s.images))
	}
	f, ok := after.(*Future)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign future")
	}
	d := s.dev
	d.mu.Lock()
	d.stats.Presents++
	d.presented = s.images[index]
	d.mu.Unlock()
	return d.newFuture(f), nil
}
