package math

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Fatal("int clamp")
	}
	if Clamp[uint32](10, 20, 30) != 20 {
		t.Fatal("uint32 clamp")
	}
}

func TestLerp(t *testing.T) {
	if Lerp[float32](2, 4, 0) != 2 || Lerp[float32](2, 4, 0.5) != 3 {
		t.Fatal("lerp")
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want uint64 }{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}
