// Package mapping describes the persistent shape of Go types: which
// struct fields persist, under which document keys, which field is the
// identifier, which fields are references, and how immutable types are
// constructed. The description for a type is built once and cached;
// the convert package treats it as immutable shared input.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ErrNotEntity is returned by Context.Entity for types that have no
// mapped persistent shape (anything that is not a struct).
var ErrNotEntity = errors.New("mapping: not a mapped entity type")

// Context is the entity metadata provider. The zero value is not
// usable; create one with NewContext. Registration (creators, enums,
// aliases, collections) must finish before the Context is shared with
// a converter; lookups afterwards are safe for concurrent use.
type Context struct {
	mu          sync.RWMutex
	entities    map[reflect.Type]*Entity
	collections map[reflect.Type]string
	creators    map[reflect.Type]*Creator
	enums       map[reflect.Type]*Enum
	aliases     map[string]reflect.Type
	aliasOf     map[reflect.Type]string
	byName      map[string]reflect.Type
}

// NewContext returns an empty metadata context.
func NewContext() *Context {
	return &Context{
		entities:    map[reflect.Type]*Entity{},
		collections: map[reflect.Type]string{},
		creators:    map[reflect.Type]*Creator{},
		enums:       map[reflect.Type]*Enum{},
		aliases:     map[string]reflect.Type{},
		aliasOf:     map[reflect.Type]string{},
		byName:      map[string]reflect.Type{},
	}
}

// Entity returns the metadata for t, building and caching it on first
// use. Pointer types are unwrapped. Returns ErrNotEntity for
// non-struct types.
func (c *Context) Entity(t reflect.Type) (*Entity, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotEntity, t)
	}

	c.mu.RLock()
	e, ok := c.entities[t]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entities[t]; ok {
		return e, nil
	}
	e, err := c.buildEntity(t)
	if err != nil {
		return nil, err
	}
	c.entities[t] = e
	if t.Name() != "" {
		c.byName[typePathName(t)] = t
	}
	return e, nil
}

// RegisterCollection overrides the collection name for the type of
// prototype. Without an override the collection defaults to the
// lower-cased type name, or to the result of a Collection() string
// method when the type has one.
func (c *Context) RegisterCollection(prototype any, name string) {
	t := baseType(prototype)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections[t] = name
}

// RegisterAlias registers a short discriminator alias for the type of
// prototype. Aliased types write the alias instead of the full type
// path, and documents carrying either form resolve back to the type.
func (c *Context) RegisterAlias(alias string, prototype any) error {
	t := baseType(prototype)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.aliases[alias]; ok && prev != t {
		return fmt.Errorf("mapping: alias %q already registered for %s", alias, prev)
	}
	c.aliases[alias] = t
	c.aliasOf[t] = alias
	c.byName[typePathName(t)] = t
	return nil
}

// AliasFor returns the discriminator written for t: a registered alias
// when present, the full type path otherwise.
func (c *Context) AliasFor(t reflect.Type) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.aliasOf[t]; ok {
		return a
	}
	return typePathName(t)
}

// TypeByName resolves a discriminator value back to a type. It knows
// registered aliases and the type paths of every entity seen so far.
func (c *Context) TypeByName(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.aliases[name]; ok {
		return t, true
	}
	t, ok := c.byName[name]
	return t, ok
}

func (c *Context) collectionFor(t reflect.Type) string {
	if name, ok := c.collections[t]; ok {
		return name
	}
	if namer, ok := reflect.New(t).Interface().(interface{ Collection() string }); ok {
		return namer.Collection()
	}
	return strings.ToLower(t.Name())
}

func typePathName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func baseType(prototype any) reflect.Type {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
