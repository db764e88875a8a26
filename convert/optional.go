package convert

import "reflect"

// OptionalValueKey is the reserved key holding the present value of an
// optional.
const OptionalValueKey = "value"

// Optional wraps a possibly-absent value. It persists as a nested
// document holding the converted value under OptionalValueKey when
// present, and as an empty document when absent.
type Optional[T any] struct {
	v       T
	present bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{v: v, present: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.v, o.present
}

// Present reports whether a value is held.
func (o Optional[T]) Present() bool {
	return o.present
}

// engine hooks; implemented on the value and pointer forms so the
// write and read paths can handle any Optional[T] instantiation.

type optionalValue interface {
	optionalGet() (any, bool)
	optionalTarget() reflect.Type
}

type optionalSetter interface {
	optionalTarget() reflect.Type
	setOptional(v any, present bool)
}

func (o Optional[T]) optionalGet() (any, bool) {
	return o.v, o.present
}

func (o Optional[T]) optionalTarget() reflect.Type {
	return reflect.TypeFor[T]()
}

func (o *Optional[T]) setOptional(v any, present bool) {
	if !present {
		*o = Optional[T]{}
		return
	}
	*o = Optional[T]{v: v.(T), present: true}
}
