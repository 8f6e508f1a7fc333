package math

import (
	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

type Float interface {
	constraints.Float
}

// Lerp interpolates between a and b; t = 0 yields a.
func Lerp[T Float](a, b, t T) T {
	return a + (b-a)*t
}

// AlignUp rounds n up to the next multiple of align, which must be a power of two.
func AlignUp[T constraints.Unsigned](n, align T) T {
	return (n + align - 1) &^ (align - 1)
}
