package util

// Ptr returns the address of a copy of v. Optional request fields such as
// sampling options are pointers so that zero stays distinguishable from
// unset.
func Ptr[T any](v T) *T { return &v }

// Coalesce picks the first argument that is not the zero value of T.
// It is used to layer per-request settings over configured defaults.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
