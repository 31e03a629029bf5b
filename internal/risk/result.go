package risk

// Result is a tagged parse outcome: either Valid(value) or Invalid(reason).
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

// Valid wraps an accepted value.
func Valid[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Invalid records why a value was rejected.
func Invalid[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

// IsValid reports whether the value was accepted.
func (r Result[T]) IsValid() bool { return r.ok }

// Reason returns the rejection reason, empty for valid results.
func (r Result[T]) Reason() string { return r.reason }

// OrElse returns the value if valid, otherwise fallback.
func (r Result[T]) OrElse(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}
