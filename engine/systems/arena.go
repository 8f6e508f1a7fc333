package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

// UploadAlignment satisfies minUniformBufferOffsetAlignment and
// minStorageBufferOffsetAlignment on every implementation we target.
const UploadAlignment uint64 = 256

type TransientArenaConfig struct {
	// Initial size of each host-visible block. Larger uploads get their own block.
	BlockSize uint64
	// Descriptor sets each slot can hand out between two Begin calls.
	MaxSetsPerSlot uint32
}

func DefaultTransientArenaConfig() TransientArenaConfig {
	return TransientArenaConfig{
		BlockSize:      64 * 1024,
		MaxSetsPerSlot: 256,
	}
}

type arenaBlock struct {
	usage  gpu.BufferUsage
	buffer gpu.Buffer
	used   uint64
}

type arenaSlot struct {
	blocks []*arenaBlock
	pool   gpu.DescriptorPool
}

// TransientArena is a per frame-in-flight bump allocator for uniform and
// storage uploads and their descriptor sets. A slot may only be rewound once
// the GPU finished the frame that last used it.
type TransientArena struct {
	device  gpu.Device
	config  TransientArenaConfig
	slots   []*arenaSlot
	current int
}

func NewTransientArena(device gpu.Device, config TransientArenaConfig, slots int) (*TransientArena, error) {
	if config.BlockSize == 0 || config.MaxSetsPerSlot == 0 {
		err := errors.New("func NewTransientArena - block size and max sets must be > 0")
		core.LogWarn(err.Error())
		return nil, err
	}
	a := &TransientArena{device: device, config: config}
	if err := a.Resize(slots); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *TransientArena) SlotCount() int {
	return len(a.slots)
}

func (a *TransientArena) Slot() int {
	return a.current
}

// Resize follows the swapchain image count. Surviving slots keep their blocks.
func (a *TransientArena) Resize(slots int) error {
	if slots <= 0 {
		return errors.Newf("transient arena needs at least one slot, got %d", slots)
	}
	for len(a.slots) > slots {
		last := a.slots[len(a.slots)-1]
		last.destroy()
		a.slots = a.slots[:len(a.slots)-1]
	}
	for len(a.slots) < slots {
		pool, err := a.device.CreateDescriptorPool(a.config.MaxSetsPerSlot)
		if err != nil {
			return errors.Wrap(err, "creating arena descriptor pool")
		}
		a.slots = append(a.slots, &arenaSlot{pool: pool})
	}
	if a.current >= len(a.slots) {
		a.current = 0
	}
	return nil
}

// Begin makes slot current and rewinds it.
func (a *TransientArena) Begin(slot int) error {
	if slot < 0 || slot >= len(a.slots) {
		return errors.Newf("arena slot %d out of range [0,%d)", slot, len(a.slots))
	}
	a.current = slot
	s := a.slots[slot]
	for _, b := range s.blocks {
		b.used = 0
	}
	if err := s.pool.Reset(); err != nil {
		return errors.Wrapf(err, "resetting descriptor pool of slot %d", slot)
	}
	return nil
}

// Upload copies data into the current slot and returns where it landed.
func (a *TransientArena) Upload(usage gpu.BufferUsage, data []byte) (gpu.BufferRange, error) {
	size := uint64(len(data))
	if size == 0 {
		return gpu.BufferRange{}, errors.New("empty upload")
	}
	s := a.slots[a.current]

	var block *arenaBlock
	var offset uint64
	for _, b := range s.blocks {
		if b.usage != usage {
			continue
		}
		off := math.AlignUp(b.used, UploadAlignment)
		if off+size <= b.buffer.Size() {
			block, offset = b, off
			break
		}
	}
	if block == nil {
		bufSize := max(a.config.BlockSize, math.AlignUp(size, UploadAlignment))
		buf, err := a.device.CreateBuffer(usage, bufSize)
		if err != nil {
			return gpu.BufferRange{}, errors.Wrap(err, "growing transient arena")
		}
		core.LogDebug("transient arena slot %d grew by %d bytes", a.current, bufSize)
		block = &arenaBlock{usage: usage, buffer: buf}
		s.blocks = append(s.blocks, block)
	}

	if err := block.buffer.Write(offset, data); err != nil {
		return gpu.BufferRange{}, err
	}
	block.used = offset + size
	return gpu.BufferRange{Buffer: block.buffer, Offset: offset, Size: size}, nil
}

// Descriptors is the current slot's pool; sets from it live until the slot is
// rewound.
func (a *TransientArena) Descriptors() gpu.DescriptorPool {
	return a.slots[a.current].pool
}

func (a *TransientArena) Destroy() {
	for _, s := range a.slots {
		s.destroy()
	}
	a.slots = nil
}

func (s *arenaSlot) destroy() {
	for _, b := range s.blocks {
		b.buffer.Destroy()
	}
	s.blocks = nil
	s.pool.Destroy()
}
