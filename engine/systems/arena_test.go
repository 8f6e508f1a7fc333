package systems

import (
	"bytes"
	"testing"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
)

func newTestArena(t *testing.T, blockSize uint64, slots int) (*headless.Device, *TransientArena) {
	t.Helper()
	dev := headless.New(headless.Options{})
	a, err := NewTransientArena(dev, TransientArenaConfig{BlockSize: blockSize, MaxSetsPerSlot: 8}, slots)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Destroy)
	return dev, a
}

func upload(t *testing.T, a *TransientArena, usage gpu.BufferUsage, data []byte) gpu.BufferRange {
	t.Helper()
	r, err := a.Upload(usage, data)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestArenaAlignsUploads(t *testing.T) {
	_, a := newTestArena(t, 4096, 1)
	if err := a.Begin(0); err != nil {
		t.Fatal(err)
	}
	var offsets []uint64
	for _, n := range []int{16, 1, 300, 64} {
		offsets = append(offsets, upload(t, a, gpu.BufferUsageUniform, make([]byte, n)).Offset)
	}
	want := []uint64{0, 256, 512, 1024}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", offsets, want)
		}
	}
}

func TestArenaBeginRewindsOnlyItsSlot(t *testing.T) {
	_, a := newTestArena(t, 1024, 2)

	_ = a.Begin(0)
	first := upload(t, a, gpu.BufferUsageUniform, []byte("slot zero"))
	_ = upload(t, a, gpu.BufferUsageUniform, []byte("more"))

	_ = a.Begin(1)
	other := upload(t, a, gpu.BufferUsageUniform, []byte("slot one"))
	if other.Buffer == first.Buffer {
		t.Fatal("slots share a block")
	}

	_ = a.Begin(0)
	again := upload(t, a, gpu.BufferUsageUniform, []byte("overwrite"))
	if again.Buffer != first.Buffer || again.Offset != 0 {
		t.Fatalf("slot 0 not rewound: %+v", again)
	}
	got := other.Buffer.(*headless.Buffer).Bytes()[other.Offset : other.Offset+other.Size]
	if !bytes.Equal(got, []byte("slot one")) {
		t.Fatalf("slot 1 data clobbered: %q", got)
	}
}

func TestArenaGrows(t *testing.T) {
	dev, a := newTestArena(t, 512, 1)
	_ = a.Begin(0)
	base := dev.Stats().BuffersCreated

	r1 := upload(t, a, gpu.BufferUsageStorage, make([]byte, 300))
	r2 := upload(t, a, gpu.BufferUsageStorage, make([]byte, 300))
	if r1.Buffer == r2.Buffer || r2.Offset != 0 {
		t.Fatalf("second upload should open a new block: %+v", r2)
	}
	big := upload(t, a, gpu.BufferUsageStorage, make([]byte, 2000))
	if big.Buffer.Size() != 2048 {
		t.Fatalf("oversized block = %d bytes, want 2048", big.Buffer.Size())
	}
	if got := dev.Stats().BuffersCreated - base; got != 3 {
		t.Fatalf("buffers created = %d, want 3", got)
	}

	// Rewinding reuses the grown blocks.
	_ = a.Begin(0)
	for i := 0; i < 3; i++ {
		upload(t, a, gpu.BufferUsageStorage, make([]byte, 300))
	}
	if got := dev.Stats().BuffersCreated - base; got != 3 {
		t.Fatalf("buffers created after rewind = %d, want 3", got)
	}
}

func TestArenaSeparatesUsages(t *testing.T) {
	_, a := newTestArena(t, 1024, 1)
	_ = a.Begin(0)
	u := upload(t, a, gpu.BufferUsageUniform, []byte{1})
	s := upload(t, a, gpu.BufferUsageStorage, []byte{2})
	if u.Buffer == s.Buffer {
		t.Fatal("uniform and storage share a block")
	}
	if s.Buffer.Usage() != gpu.BufferUsageStorage {
		t.Fatalf("usage = %v", s.Buffer.Usage())
	}
}

func TestArenaBeginResetsDescriptors(t *testing.T) {
	dev, a := newTestArena(t, 1024, 3)
	for i := 0; i < 3; i++ {
		if err := a.Begin(i); err != nil {
			t.Fatal(err)
		}
		if a.Slot() != i {
			t.Fatalf("slot = %d", a.Slot())
		}
	}
	if got := dev.Stats().DescriptorPoolResets; got != 3 {
		t.Fatalf("pool resets = %d", got)
	}
	if err := a.Begin(3); err == nil {
		t.Fatal("out of range slot accepted")
	}
}

func TestArenaResize(t *testing.T) {
	_, a := newTestArena(t, 1024, 3)
	_ = a.Begin(2)
	if err := a.Resize(2); err != nil {
		t.Fatal(err)
	}
	if a.SlotCount() != 2 || a.Slot() != 0 {
		t.Fatalf("slots %d current %d", a.SlotCount(), a.Slot())
	}
	if err := a.Resize(0); err == nil {
		t.Fatal("zero slots accepted")
	}
	if _, err := a.Upload(gpu.BufferUsageUniform, nil); err == nil {
		t.Fatal("empty upload accepted")
	}
}
