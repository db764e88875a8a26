package doc

import (
	"iter"
	"maps"
	"slices"
)

// Document is an ordered mapping from unique string keys to values.
// Key order is insertion order; setting an existing key replaces the
// value in place without moving the key.
type Document struct {
	keys   []string
	values []any
	index  map[string]int
}

// New returns an empty Document.
func New() *Document {
	return &Document{index: map[string]int{}}
}

// Set assigns v under key, replacing any previous value in place.
// It returns the document to allow chained construction.
func (d *Document) Set(key string, v any) *Document {
	if d.index == nil {
		d.index = map[string]int{}
	}
	if i, ok := d.index[key]; ok {
		d.values[i] = v
		return d
	}
	d.index[key] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, v)
	return d
}

// Get returns the value under key, or nil when absent.
func (d *Document) Get(key string) any {
	v, _ := d.Lookup(key)
	return v
}

// Lookup returns the value under key and whether the key is present.
// A present key holding nil reports (nil, true).
func (d *Document) Lookup(key string) (any, bool) {
	if d == nil || d.index == nil {
		return nil, false
	}
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.values[i], true
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Lookup(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if d.index == nil {
		return false
	}
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.values = append(d.values[:i], d.values[i+1:]...)
	delete(d.index, key)
	for k, j := range d.index {
		if j > i {
			d.index[k] = j - 1
		}
	}
	return true
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// All iterates over entries in insertion order.
func (d *Document) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if d == nil {
			return
		}
		for i, k := range d.keys {
			if !yield(k, d.values[i]) {
				return
			}
		}
	}
}

// Merge copies every entry of src into d in src order, replacing
// existing keys.
func (d *Document) Merge(src *Document) *Document {
	for k, v := range src.All() {
		d.Set(k, v)
	}
	return d
}

// Clone returns a deep copy. Nested documents and sequences are
// copied; scalar values and Ref identifiers are shared.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := New()
	for k, v := range d.All() {
		out.Set(k, CloneValue(v))
	}
	return out
}

// CloneValue deep-copies a document value.
func CloneValue(v any) any {
	switch x := v.(type) {
	case *Document:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out
	case *Ref:
		r := *x
		return &r
	default:
		return v
	}
}

// FromMap builds a Document from a plain map with keys sorted for a
// deterministic order.
func FromMap(m map[string]any) *Document {
	d := New()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d.Set(k, m[k])
	}
	return d
}

// AsMap converts the document to nested plain maps and slices,
// dropping key order. Scalar values are shared.
func (d *Document) AsMap() map[string]any {
	out := make(map[string]any, d.Len())
	for k, v := range d.All() {
		out[k] = valueAsAny(v)
	}
	return out
}

func valueAsAny(v any) any {
	switch x := v.(type) {
	case *Document:
		return x.AsMap()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = valueAsAny(e)
		}
		return out
	default:
		return v
	}
}
