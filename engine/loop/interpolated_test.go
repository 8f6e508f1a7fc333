package loop

import "testing"

type angle float32

func (a angle) Lerp(to angle, t float32) angle {
	return angle(float32(a)*(1-t) + float32(to)*t)
}

func TestInterpolatedBlend(t *testing.T) {
	s := NewInterpolated(angle(0))
	s.Advance(1)
	s.Advance(2)
	if s.Previous != 1 || s.Current != 2 {
		t.Fatalf("state = %+v", s)
	}
	tests := map[float32]angle{0: 1, 0.5: 1.5, 0.75: 1.75}
	for alpha, want := range tests {
		if got := s.Blend(alpha); got != want {
			t.Errorf("Blend(%v) = %v, want %v", alpha, got, want)
		}
	}
}
