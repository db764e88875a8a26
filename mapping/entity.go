package mapping

import (
	"fmt"
	"reflect"
	"strings"
)

// TagName is the struct tag consulted for property mapping:
//
//	Field T `doc:"key,opt,..."`
//
// The first element overrides the document key ("-" skips the field).
// Options: "id" marks the identifier property, "ref" marks a
// foreign-document reference, "omitempty" elides zero values on write.
const TagName = "doc"

// IDKey is the reserved document key the identifier property is
// written under.
const IDKey = "_id"

// Entity is the persistent shape of one struct type: its ordered
// properties, identifier and collection, plus an optional constructor
// binding for immutable types.
type Entity struct {
	typ        reflect.Type
	collection string
	properties []*Property
	idProp     *Property
	creator    *Creator
}

// Type returns the described struct type.
func (e *Entity) Type() reflect.Type { return e.typ }

// Collection returns the collection documents of this entity live in.
func (e *Entity) Collection() string { return e.collection }

// Properties returns the persistent properties in field order.
func (e *Entity) Properties() []*Property { return e.properties }

// IDProperty returns the identifier property, or nil.
func (e *Entity) IDProperty() *Property { return e.idProp }

// Creator returns the registered constructor binding, or nil for
// property-settable entities.
func (e *Entity) Creator() *Creator { return e.creator }

// Property is one persistent property of an entity.
type Property struct {
	Name       string
	Key        string
	FieldIndex []int
	Type       reflect.Type
	ID         bool
	Ref        bool
	OmitEmpty  bool
}

func (c *Context) buildEntity(t reflect.Type) (*Entity, error) {
	e := &Entity{typ: t, collection: c.collectionFor(t)}
	if cr, ok := c.creators[t]; ok {
		e.creator = cr
	}
	if err := c.collectProperties(e, t, nil); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Context) collectProperties(e *Entity, t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		index := append(append([]int{}, prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get(TagName) == "" {
			// embedded structs flatten into the owner
			if err := c.collectProperties(e, field.Type, index); err != nil {
				return err
			}
			continue
		}

		prop, err := parseProperty(field, index)
		if err != nil {
			return fmt.Errorf("mapping: %s.%s: %w", t, field.Name, err)
		}
		if prop == nil {
			continue
		}
		for _, existing := range e.properties {
			if existing.Key == prop.Key {
				return fmt.Errorf("mapping: %s: duplicate document key %q (%s, %s)",
					t, prop.Key, existing.Name, prop.Name)
			}
		}
		if prop.ID {
			if e.idProp != nil {
				return fmt.Errorf("mapping: %s: identifier declared twice (%s, %s)",
					t, e.idProp.Name, prop.Name)
			}
			e.idProp = prop
		}
		e.properties = append(e.properties, prop)
	}
	return nil
}

func parseProperty(field reflect.StructField, index []int) (*Property, error) {
	prop := &Property{
		Name:       field.Name,
		Key:        field.Name,
		FieldIndex: index,
		Type:       field.Type,
	}

	tag := field.Tag.Get(TagName)
	if tag == "-" {
		return nil, nil
	}
	parts := strings.Split(tag, ",")
	if tag != "" && parts[0] != "" {
		prop.Key = parts[0]
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "id":
			prop.ID = true
		case "ref":
			prop.Ref = true
		case "omitempty":
			prop.OmitEmpty = true
		case "":
		default:
			return nil, fmt.Errorf("unknown tag option %q", opt)
		}
	}

	// a field named ID with no contrary tag is the identifier
	if !prop.ID && strings.EqualFold(field.Name, "id") && (tag == "" || parts[0] == "") {
		prop.ID = true
	}
	if prop.ID && (tag == "" || parts[0] == "") {
		prop.Key = IDKey
	}
	return prop, nil
}
