package lnutils

// Map takes an input slice, and applies the function f to each element,
// yielding a new slice.
func Map[T1, T2 any](s []T1, f func(T1) T2) []T2 {
	r := make([]T2, len(s))

	for i, v := range s {
		r[i] = f(v)
	}

	return r
}

// Filter returns the elements of s for which keep returns true, preserving
// their order.
func Filter[T any](s []T, keep func(T) bool) []T {
	r := make([]T, 0, len(s))

	for _, v := range s {
		if keep(v) {
			r = append(r, v)
		}
	}

	return r
}
