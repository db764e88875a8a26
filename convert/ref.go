package convert

import (
	"reflect"
	"sync"

	"github.com/docfold/docmap/debug"
	"github.com/docfold/docmap/doc"
	"github.com/docfold/docmap/mapping"
)

// RefResolver converts values into foreign-reference pointers on write
// and fetches referenced documents on read. Implementations own any
// retry, timeout or caching policy; the engine calls Resolve at most
// once per reference.
type RefResolver interface {
	// ToPointer derives the pointer for a referenced value. v is the
	// referenced entity (never an existing *doc.Ref; those pass
	// through unwrapped).
	ToPointer(v any, prop *mapping.Property) (*doc.Ref, error)

	// Resolve fetches the document the pointer identifies.
	Resolve(ref *doc.Ref) (*doc.Document, error)
}

// Lazy defers resolution of a referenced entity until first access.
// Get resolves at most once, even under concurrent access; a failed
// resolution is remembered and returned from every subsequent Get.
type Lazy[T any] struct {
	ref  *doc.Ref
	once sync.Once
	fn   func() (any, error)
	v    T
	err  error
}

// LazyRef returns an unresolved Lazy for tests and manual wiring.
func LazyRef[T any](ref *doc.Ref, fn func() (any, error)) *Lazy[T] {
	return &Lazy[T]{ref: ref, fn: fn}
}

// Ref returns the pointer without resolving it.
func (l *Lazy[T]) Ref() *doc.Ref {
	return l.ref
}

// Get resolves the reference on first call and returns the entity.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		if l.fn == nil {
			return
		}
		if debug.Resolve() {
			debug.Logf("resolve %v\n", l.ref)
		}
		v, err := l.fn()
		if err != nil {
			l.err = err
			return
		}
		if v != nil {
			l.v = v.(T)
		}
	})
	return l.v, l.err
}

// engine hooks, implemented on *Lazy[T] for every instantiation.

type lazyBinder interface {
	bindLazy(ref *doc.Ref, fn func() (any, error))
	lazyTarget() reflect.Type
	lazyRef() *doc.Ref
}

func (l *Lazy[T]) bindLazy(ref *doc.Ref, fn func() (any, error)) {
	l.ref = ref
	l.fn = fn
}

func (l *Lazy[T]) lazyTarget() reflect.Type {
	return reflect.TypeFor[T]()
}

func (l *Lazy[T]) lazyRef() *doc.Ref {
	return l.ref
}

var (
	lazyBinderType    = reflect.TypeOf((*lazyBinder)(nil)).Elem()
	optionalValueType = reflect.TypeOf((*optionalValue)(nil)).Elem()
)

// isLazy reports whether t is a Lazy[...] or a pointer to one.
func isLazy(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		return t.Implements(lazyBinderType)
	}
	return reflect.PointerTo(t).Implements(lazyBinderType)
}

func isOptional(t reflect.Type) bool {
	return t.Implements(optionalValueType) ||
		reflect.PointerTo(t).Implements(optionalValueType)
}
