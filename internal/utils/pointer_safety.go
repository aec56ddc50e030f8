// Package utils holds generic helpers for optional JSON fields.
package utils

// Value dereferences v, returning the zero value for nil. Nullable backend fields
// such as a task's detail decode to *T.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
