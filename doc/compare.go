package doc

import (
	"bytes"
	"reflect"
	"time"
)

// Equal reports deep equality: same keys in the same order with equal
// values. Numeric values compare by type and value, time values via
// time.Time.Equal.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d.Len() == 0 && o.Len() == 0
	}
	if len(d.keys) != len(o.keys) {
		return false
	}
	for i, k := range d.keys {
		if o.keys[i] != k {
			return false
		}
		if !valueEqual(d.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Document:
		y, ok := b.(*Document)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valueEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case *Ref:
		y, ok := b.(*Ref)
		return ok && x.Equal(y)
	default:
		return reflect.DeepEqual(a, b)
	}
}
