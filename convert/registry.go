package convert

import (
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Direction tags a converter registration.
type Direction string

const (
	Reading Direction = "reading"
	Writing Direction = "writing"
)

// ConvertFunc converts one value. Writing converters receive the
// domain value and return a document-safe value (or *doc.Document);
// reading converters receive the stored value and return the domain
// value.
type ConvertFunc func(v any) (any, error)

// KeyFunc converts a map key. Writing key converters return the
// document key string; reading key converters receive it.
type KeyFunc func(v any) (any, error)

// Registry holds user-supplied custom converters and the simple-type
// classification. Register everything before handing the registry to a
// converter; lookups are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	writers    map[reflect.Type]ConvertFunc
	readers    map[reflect.Type]ConvertFunc
	keyWriters map[reflect.Type]KeyFunc
	keyReaders map[reflect.Type]KeyFunc
	simple     map[reflect.Type]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		writers:    map[reflect.Type]ConvertFunc{},
		readers:    map[reflect.Type]ConvertFunc{},
		keyWriters: map[reflect.Type]KeyFunc{},
		keyReaders: map[reflect.Type]KeyFunc{},
		simple:     map[reflect.Type]bool{},
	}
}

// RegisterWriter registers fn to convert values of type from on the
// write path. Registering an interface type applies to every
// implementation without an exact registration.
func (r *Registry) RegisterWriter(from reflect.Type, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[from] = fn
}

// RegisterReader registers fn to produce values of type to on the
// read path.
func (r *Registry) RegisterReader(to reflect.Type, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[to] = fn
}

// RegisterKeyWriter registers a map-key converter for key type from.
func (r *Registry) RegisterKeyWriter(from reflect.Type, fn KeyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyWriters[from] = fn
}

// RegisterKeyReader registers a map-key converter producing key type
// to.
func (r *Registry) RegisterKeyReader(to reflect.Type, fn KeyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyReaders[to] = fn
}

// RegisterSimpleType declares t document-native: values of t are
// stored as-is with no decomposition.
func (r *Registry) RegisterSimpleType(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simple[t] = true
}

// Writer returns the most specific writing converter for t: an exact
// registration first, then a registration for an interface t
// implements.
func (r *Registry) Writer(t reflect.Type) (ConvertFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.writers, t)
}

// Reader returns the most specific reading converter producing t.
func (r *Registry) Reader(t reflect.Type) (ConvertFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.readers, t)
}

// KeyWriter returns the map-key writer for t.
func (r *Registry) KeyWriter(t reflect.Type) (KeyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.keyWriters, t)
}

// KeyReader returns the map-key reader producing t.
func (r *Registry) KeyReader(t reflect.Type) (KeyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.keyReaders, t)
}

func lookup[F any](m map[reflect.Type]F, t reflect.Type) (F, bool) {
	if fn, ok := m[t]; ok {
		return fn, true
	}
	// assignable-supertype match: an exact hit always wins over this
	var best reflect.Type
	var bestFn F
	for rt, fn := range m {
		if rt.Kind() != reflect.Interface || !t.Implements(rt) {
			continue
		}
		// prefer the narrower interface when several match
		if best == nil || rt.NumMethod() > best.NumMethod() {
			best, bestFn = rt, fn
		}
	}
	if best != nil {
		return bestFn, true
	}
	var zero F
	return zero, false
}

func (r *Registry) registeredSimple(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.simple[t]
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	bytesType      = reflect.TypeOf([]byte(nil))
	objectIDType   = reflect.TypeOf(primitive.ObjectID{})
	decimal128Type = reflect.TypeOf(primitive.Decimal128{})
)

// Simple reports whether t is a document-native scalar needing no
// decomposition: booleans, numerics, strings, byte slices, timestamps,
// ObjectIDs, Decimal128s, and registered simple types.
func (r *Registry) Simple(t reflect.Type) bool {
	r.mu.RLock()
	registered := r.simple[t]
	r.mu.RUnlock()
	if registered {
		return true
	}
	switch t {
	case timeType, bytesType, objectIDType, decimal128Type:
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
