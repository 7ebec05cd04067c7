package crypto

// Secret wraps a value that must never be rendered by Printf/JSON. Only
// Expose (used by key-generation tooling and the node's own signing path)
// retrieves the underlying value.
type Secret[T any] struct {
	inner T
}

func NewSecret[T any](v T) Secret[T] {
	return Secret[T]{inner: v}
}

// Expose is the single, explicit escape hatch for intentional export.
func (s Secret[T]) Expose() T {
	return s.inner
}

func (s Secret[T]) String() string {
	return "<redacted>"
}

func (s Secret[T]) GoString() string {
	return "<redacted>"
}

// MarshalJSON ensures a Secret never leaks into logs or wire payloads that
// happen to be JSON-encoded; callers that need to persist a private key go
// through Expose explicitly and encode the exposed value themselves.
func (s Secret[T]) MarshalJSON() ([]byte, error) {
	return []byte(`"<redacted>"`), nil
}
