package mapping

import (
	"fmt"
	"reflect"
)

// Enum is the closed name table of a restricted-enumeration type.
// Values of such a type persist as their names; enum-typed map keys
// persist as name-keyed document entries.
type Enum struct {
	typ    reflect.Type
	names  map[any]string
	values map[string]any
}

// RegisterEnum declares E a restricted-enumeration type with the given
// value-to-name table. Names must be unique.
func RegisterEnum[E comparable](c *Context, names map[E]string) error {
	t := reflect.TypeFor[E]()
	e := &Enum{
		typ:    t,
		names:  make(map[any]string, len(names)),
		values: make(map[string]any, len(names)),
	}
	for v, name := range names {
		if name == "" {
			return fmt.Errorf("mapping: enum %s: empty name for %v", t, v)
		}
		if prev, ok := e.values[name]; ok {
			return fmt.Errorf("mapping: enum %s: name %q used for %v and %v", t, name, prev, v)
		}
		e.names[v] = name
		e.values[name] = v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.enums[t]; ok {
		return fmt.Errorf("mapping: enum %s registered twice", t)
	}
	c.enums[t] = e
	return nil
}

// EnumFor returns the enum table for t, if one is registered.
func (c *Context) EnumFor(t reflect.Type) (*Enum, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.enums[t]
	return e, ok
}

// Type returns the enumeration's Go type.
func (e *Enum) Type() reflect.Type { return e.typ }

// Name returns the name of v.
func (e *Enum) Name(v any) (string, bool) {
	n, ok := e.names[v]
	return n, ok
}

// Value returns the value named name.
func (e *Enum) Value(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}
