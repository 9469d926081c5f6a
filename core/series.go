package core

import "golang.org/x/exp/constraints"

// Series is an append-only sequence of ordered values, newest last.
// Strategies use it to compare indicator streams between candles.
type Series[T constraints.Ordered] []T

func (s Series[T]) Values() []T {
	return s
}

func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value position steps back from the end; Last(0) is
// the newest value.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns the newest size values, or the whole series when it
// is shorter.
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Crossover reports whether the series moved above ref on the newest
// value. Both series need at least two values.
func (s Series[T]) Crossover(ref Series[T]) bool {
	return s.Last(0) > ref.Last(0) && s.Last(1) <= ref.Last(1)
}

// Crossunder reports whether the series moved below ref on the newest
// value.
func (s Series[T]) Crossunder(ref Series[T]) bool {
	return s.Last(0) <= ref.Last(0) && s.Last(1) > ref.Last(1)
}

// Cross reports a cross in either direction.
func (s Series[T]) Cross(ref Series[T]) bool {
	return s.Crossover(ref) || s.Crossunder(ref)
}
