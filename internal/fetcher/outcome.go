package fetcher

// Outcome is the result of fetching one identifier from one source.
// It is either a success carrying the fetched value, or a failure carrying the
// source's default value together with the reason. Value is always safe to use.
type Outcome[T any] struct {
	// Value is the fetched value, or the source default when Err is set.
	Value T

	// Err is the reason the fetch degraded to the default. Nil on success.
	Err error
}

// Succeeded returns a successful outcome.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failed returns a degraded outcome holding the default value.
func Failed[T any](def T, reason error) Outcome[T] {
	return Outcome[T]{Value: def, Err: reason}
}

// OK reports whether the outcome holds a fetched value.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// CountFailed returns how many outcomes degraded to their default.
func CountFailed[T any](outcomes []Outcome[T]) int {
	n := 0
	for _, o := range outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}
