package convert

import (
	"fmt"
	"reflect"

	"github.com/docfold/docmap/doc"
)

// MappingError reports a structural mismatch between a document shape
// and the target type, or an invalid map key.
type MappingError struct {
	Path    string // document path (e.g. "owner.addresses[0].street")
	Message string
	Err     error
}

func (e *MappingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("mapping error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("mapping error: %s", e.Message)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// InstantiationError reports a constructor parameter that could be
// satisfied neither from the document nor from a default expression.
type InstantiationError struct {
	Type    reflect.Type
	Param   string // bound document key of the offending parameter
	Message string
	Err     error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("cannot instantiate %s: parameter %q: %s", e.Type, e.Param, e.Message)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// NoConverterError reports that neither a registered converter nor a
// structural rule applies for the required direction.
type NoConverterError struct {
	From      reflect.Type
	To        reflect.Type
	Direction Direction
	Path      string
}

func (e *NoConverterError) Error() string {
	switch {
	case e.From != nil && e.To != nil:
		return fmt.Sprintf("no %s converter from %s to %s", e.Direction, e.From, e.To)
	case e.From != nil:
		return fmt.Sprintf("no %s converter for %s", e.Direction, e.From)
	default:
		return fmt.Sprintf("no %s converter producing %s", e.Direction, e.To)
	}
}

// ResolutionError reports a failed foreign-reference fetch. For lazy
// references it surfaces at access time, not at read time.
type ResolutionError struct {
	Ref *doc.Ref
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %v: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
