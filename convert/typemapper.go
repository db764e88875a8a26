package convert

import (
	"reflect"

	"github.com/docfold/docmap/doc"
	"github.com/docfold/docmap/mapping"
)

// TypeKey is the default reserved key recording the writer's runtime
// type for polymorphic reads.
const TypeKey = "_type"

// typeMapper writes and resolves type discriminators. A discriminator
// is written only when the runtime type is not recoverable from the
// declared type; on read, an absent, unknown or unassignable
// discriminator silently falls back to the requested type.
type typeMapper struct {
	ctx *mapping.Context
	key string
}

// ShouldWrite reports whether a value of runtime type needs a
// discriminator in a context declared as declared.
func (m *typeMapper) ShouldWrite(runtime, declared reflect.Type) bool {
	if declared == nil {
		return true
	}
	if declared.Kind() == reflect.Pointer {
		declared = declared.Elem()
	}
	if declared.Kind() == reflect.Interface {
		return true
	}
	return runtime != declared
}

// WriteType records runtime's alias under the discriminator key.
func (m *typeMapper) WriteType(runtime reflect.Type, d *doc.Document) {
	d.Set(m.key, m.ctx.AliasFor(runtime))
}

// ReadType resolves the discriminator in d against fallback. The
// resolved type is used only when it is assignable to fallback (equal
// to it, or implementing it when fallback is an interface).
func (m *typeMapper) ReadType(d *doc.Document, fallback reflect.Type) reflect.Type {
	v, ok := d.Lookup(m.key)
	if !ok {
		return fallback
	}
	name, ok := v.(string)
	if !ok {
		return fallback
	}
	t, ok := m.ctx.TypeByName(name)
	if !ok {
		return fallback
	}
	if fallback == nil {
		return t
	}
	target := fallback
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	switch {
	case t == target:
		return t
	case target.Kind() == reflect.Interface && (t.Implements(target) || reflect.PointerTo(t).Implements(target)):
		return t
	default:
		// a discriminator naming an unrelated type is ignored
		return fallback
	}
}
