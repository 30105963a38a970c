package semantic

// lazy memoizes the first successful result of a load.
// Failed loads are retried on the next call.
type lazy[T any] struct {
	loaded bool
	value  T
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	if l.loaded {
		return l.value, nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	l.value, l.loaded = v, true
	return v, nil
}

func (l *lazy[T]) set(v T) { l.value, l.loaded = v, true }

func (l *lazy[T]) reset() {
	var zero T
	l.value, l.loaded = zero, false
}
