package semantic

import (
	"iter"
	"slices"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrEmptyValues = errors.New("value list must not be empty")
)

// MultiValue maps keys to one or more values, keeping keys in first-insertion order.
// Lookups by key return the first value. The zero value is ready to use.
type MultiValue[V any] struct {
	keys []string
	data map[string][]V
}

func NewMultiValue[V any]() *MultiValue[V] { return &MultiValue[V]{} }

func (m *MultiValue[V]) Get(key string) (V, error) {
	v, ok := m.Lookup(key)
	if !ok {
		return v, errors.Wrapf(ErrKeyNotFound, "%q", key)
	}
	return v, nil
}

func (m *MultiValue[V]) Lookup(key string) (V, bool) {
	values, ok := m.data[key]
	if !ok || len(values) == 0 {
		var zero V
		return zero, false
	}
	return values[0], true
}

// Values returns a copy of every value under key, or def when key is absent.
func (m *MultiValue[V]) Values(key string, def []V) []V {
	values, ok := m.data[key]
	if !ok {
		return def
	}
	return slices.Clone(values)
}

func (m *MultiValue[V]) Has(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Set replaces every value under key.
func (m *MultiValue[V]) Set(key string, values []V) error {
	if len(values) == 0 {
		return errors.Wrapf(ErrEmptyValues, "%q", key)
	}

	m.ensure(key)
	m.data[key] = slices.Clone(values)
	return nil
}

func (m *MultiValue[V]) Append(key string, v V) {
	m.ensure(key)
	m.data[key] = append(m.data[key], v)
}

func (m *MultiValue[V]) Del(key string) {
	if _, ok := m.data[key]; !ok {
		return
	}
	delete(m.data, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

func (m *MultiValue[V]) Keys() []string { return slices.Clone(m.keys) }

func (m *MultiValue[V]) Len() int { return len(m.keys) }

// All yields every key with its first value.
func (m *MultiValue[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.data[k][0]) {
				return
			}
		}
	}
}

// Lists yields every key with all of its values.
func (m *MultiValue[V]) Lists() iter.Seq2[string, []V] {
	return func(yield func(string, []V) bool) {
		for _, k := range m.keys {
			if !yield(k, slices.Clone(m.data[k])) {
				return
			}
		}
	}
}

func (m *MultiValue[V]) ensure(key string) {
	if m.data == nil {
		m.data = make(map[string][]V)
	}
	if _, ok := m.data[key]; !ok {
		m.keys = append(m.keys, key)
	}
}
