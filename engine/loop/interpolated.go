package loop

// Lerper is implemented by simulation snapshots that can be blended.
type Lerper[T any] interface {
	Lerp(to T, t float32) T
}

// Interpolated keeps the previous and current simulation snapshot. Rendering
// between fixed updates blends the two.
type Interpolated[T Lerper[T]] struct {
	Previous T
	Current  T
}

func NewInterpolated[T Lerper[T]](initial T) *Interpolated[T] {
	return &Interpolated[T]{Previous: initial, Current: initial}
}

// Advance shifts current into previous and stores next.
func (i *Interpolated[T]) Advance(next T) {
	i.Previous = i.Current
	i.Current = next
}

func (i *Interpolated[T]) Blend(alpha float32) T {
	return i.Previous.Lerp(i.Current, alpha)
}
