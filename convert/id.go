package convert

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConvertID coerces an identifier value toward the identifier type the
// caller wants. A hex string asked to be a native object id becomes
// one; a textual target keeps the source unchanged; composite
// identifiers (multi-field structs) convert like any other entity.
// Anything else passes through unmodified and is left to fail
// downstream if it is genuinely incompatible.
func (c *Converter) ConvertID(id any, target reflect.Type) (any, error) {
	if id == nil || target == nil {
		return id, nil
	}

	if s, ok := id.(string); ok && target == objectIDType {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid, nil
		}
		return id, nil
	}
	if target.Kind() == reflect.String {
		return id, nil
	}

	t := reflect.TypeOf(id)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && !c.reg.Simple(t) {
		if _, err := c.ctx.Entity(t); err == nil {
			return c.ConvertToStoreValue(id)
		}
	}
	return id, nil
}
