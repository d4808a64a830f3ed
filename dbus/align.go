package dbus

import "golang.org/x/exp/constraints"

// alignUp rounds v up to the next multiple of n. n must be a power of
// two; every D-Bus alignment boundary (1, 2, 4, 8) is.
func alignUp[T constraints.Integer](v, n T) T {
	if n <= 1 {
		return v
	}
	return (v + n - 1) &^ (n - 1)
}

// padding returns the number of bytes needed to advance v to the next
// multiple of n.
func padding[T constraints.Integer](v, n T) T {
	return alignUp(v, n) - v
}
