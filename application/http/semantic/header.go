package semantic

import (
	"iter"
	"slices"
	"strings"

	"webstack/application/http"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

var ErrInvalidHeaderValue = errors.New("invalid header value")

// Headers is a case-insensitive, insertion-ordered header set.
// Names keep the case they were last set with. The zero value is ready to use.
type Headers struct {
	order  []string // lower-cased names.
	fields map[string]*headerField
}

type headerField struct {
	name   string
	values []string
}

func NewHeaders() *Headers { return &Headers{} }

// HeadersFrom builds headers from raw fields; repeated names keep every value.
func HeadersFrom(fields []http.Field) *Headers {
	h := NewHeaders()
	for _, f := range fields {
		h.Add(string(f.Name), string(f.Value))
	}
	return h
}

// Get returns the first value of name.
func (h *Headers) Get(name string) (string, bool) {
	f, ok := h.fields[strings.ToLower(name)]
	if !ok || len(f.values) == 0 {
		return "", false
	}
	return f.values[0], true
}

func (h *Headers) Values(name string) []string {
	f, ok := h.fields[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return slices.Clone(f.values)
}

func (h *Headers) Has(name string) bool {
	_, ok := h.fields[strings.ToLower(name)]
	return ok
}

// Set replaces every value of name, keeping its position.
func (h *Headers) Set(name, value string) {
	f := h.field(name)
	f.name, f.values = name, []string{value}
}

func (h *Headers) Add(name, value string) {
	f := h.field(name)
	f.values = append(f.values, value)
}

// SetDefault sets name only when it is absent.
func (h *Headers) SetDefault(name, value string) {
	if !h.Has(name) {
		h.Set(name, value)
	}
}

func (h *Headers) Del(name string) {
	key := strings.ToLower(name)
	if _, ok := h.fields[key]; !ok {
		return
	}
	delete(h.fields, key)
	h.order = slices.DeleteFunc(h.order, func(k string) bool { return k == key })
}

func (h *Headers) Len() int { return len(h.order) }

// All yields every name and value pair in insertion order.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, key := range h.order {
			f := h.fields[key]
			for _, v := range f.values {
				if !yield(f.name, v) {
					return
				}
			}
		}
	}
}

func (h *Headers) Fields() []http.Field {
	fields := make([]http.Field, 0, len(h.order))
	for name, value := range h.All() {
		fields = append(fields, http.NewField(name, value))
	}
	return fields
}

func (h *Headers) Clone() *Headers {
	clone := NewHeaders()
	for name, value := range h.All() {
		clone.Add(name, value)
	}
	return clone
}

// Validate rejects names that are not tokens and values carrying control
// characters other than HTAB, which could split the header.
func (h *Headers) Validate() error {
	for name, value := range h.All() {
		if !httpguts.ValidHeaderFieldName(name) {
			return errors.Wrapf(ErrInvalidHeaderValue, "name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return errors.Wrapf(ErrInvalidHeaderValue, "%s: %q", name, value)
		}
	}
	return nil
}

func (h *Headers) field(name string) *headerField {
	if h.fields == nil {
		h.fields = make(map[string]*headerField)
	}

	key := strings.ToLower(name)
	f, ok := h.fields[key]
	if !ok {
		f = &headerField{name: name}
		h.fields[key] = f
		h.order = append(h.order, key)
	}
	return f
}
