package headless

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// Future is complete once it is no longer pending and every dependency is.
// Work is executed eagerly on Then; completion only models fence signalling.
type Future struct {
	dev      *Device
	pending  bool
	deps     []*Future
	retained []*CommandBuffer
	released bool
}

var _ gpu.Future = (*Future)(nil)

func (f *Future) Then(cmd gpu.CommandBuffer) (gpu.Future, error) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return nil, errors.Wrap(core.ErrUnsupported, "foreign command buffer")
	}
	if cb.secondary {
		return nil, errors.Wrap(gpu.ErrCommandState, "secondary command buffers cannot be submitted")
	}
	if cb.submitted {
		return nil, errors.Wrap(gpu.ErrCommandState, "command buffer already submitted")
	}
	if err := f.dev.execute(cb); err != nil {
		return nil, errors.Wrap(err, "executing command buffer")
	}
	cb.submitted = true
	f.dev.mu.Lock()
	f.dev.stats.Submissions++
	f.dev.mu.Unlock()

	next := f.dev.newFuture(f)
	next.retained = append(next.retained, cb)
	return next, nil
}

func (f *Future) Join(other gpu.Future) gpu.Future {
	o, ok := other.(*Future)
	if !ok {
		core.LogError("joining foreign future, ignoring it")
		return f
	}
	return &Future{dev: f.dev, deps: []*Future{f, o}}
}

func (f *Future) Done() bool {
	if f.pending {
		return false
	}
	for _, d := range f.deps {
		if !d.Done() {
			return false
		}
	}
	// Completed chains are never consulted again.
	f.deps = nil
	return true
}

func (f *Future) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Done() {
		return nil
	}
	f.dev.mu.Lock()
	f.dev.stats.FenceWaits++
	f.dev.mu.Unlock()
	f.complete()
	return nil
}

func (f *Future) complete() {
	f.pending = false
	for _, d := range f.deps {
		d.complete()
	}
	f.deps = nil
}

func (f *Future) Release() {
	if f.released {
		return
	}
	if !f.Done() {
		core.LogWarn("releasing a future that has not completed")
		return
	}
	for _, cb := range f.retained {
		cb.released = true
	}
	f.retained = nil
	f.released = true
}
