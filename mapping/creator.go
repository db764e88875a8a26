package mapping

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Creator binds an immutable entity type to a constructor function.
// Each constructor parameter is bound to a document key, optionally
// with a default expression evaluated against the source document when
// the key is absent.
type Creator struct {
	fn     reflect.Value
	params []Param
}

// Param is one constructor parameter binding.
type Param struct {
	key        string
	hasDefault bool
	defaultSrc string
	prog       *vm.Program
}

// Bind binds a constructor parameter to a document key.
func Bind(key string) Param {
	return Param{key: key}
}

// BindDefault binds a constructor parameter to a document key with a
// fallback expression. The expression is compiled at registration and
// evaluated against an environment holding the source document's
// entries by key, e.g.:
//
//	mapping.BindDefault("fullname", `firstname + " " + lastname`)
func BindDefault(key, expression string) Param {
	return Param{key: key, hasDefault: true, defaultSrc: expression}
}

// RegisterCreator registers fn as the constructor for the type of
// prototype. fn must be a non-variadic function returning exactly the
// prototype's type (or a pointer to it), with one parameter per
// binding. Must be called before the type's metadata is first looked
// up.
func (c *Context) RegisterCreator(prototype any, fn any, params ...Param) error {
	t := baseType(prototype)
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.IsVariadic() {
		return fmt.Errorf("mapping: creator for %s must be a non-variadic function", t)
	}
	if ft.NumOut() != 1 {
		return fmt.Errorf("mapping: creator for %s must return exactly one value", t)
	}
	if out := ft.Out(0); out != t && out != reflect.PointerTo(t) {
		return fmt.Errorf("mapping: creator for %s returns %s", t, out)
	}
	if ft.NumIn() != len(params) {
		return fmt.Errorf("mapping: creator for %s takes %d parameters, %d bindings given",
			t, ft.NumIn(), len(params))
	}
	for i := range params {
		if params[i].key == "" {
			return fmt.Errorf("mapping: creator for %s: parameter %d has no document key", t, i)
		}
		if !params[i].hasDefault {
			continue
		}
		prog, err := expr.Compile(params[i].defaultSrc)
		if err != nil {
			return fmt.Errorf("mapping: creator for %s: default for %q: %w",
				t, params[i].key, err)
		}
		params[i].prog = prog
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[t]; ok {
		return fmt.Errorf("mapping: creator registered after metadata for %s was built", t)
	}
	c.creators[t] = &Creator{fn: fv, params: params}
	return nil
}

// Params returns the ordered parameter bindings.
func (cr *Creator) Params() []Param { return cr.params }

// ParamType returns the declared type of parameter i.
func (cr *Creator) ParamType(i int) reflect.Type { return cr.fn.Type().In(i) }

// New invokes the constructor.
func (cr *Creator) New(args []reflect.Value) reflect.Value {
	return cr.fn.Call(args)[0]
}

// Key returns the bound document key.
func (p Param) Key() string { return p.key }

// HasDefault reports whether the parameter carries a fallback
// expression.
func (p Param) HasDefault() bool { return p.hasDefault }

// EvalDefault evaluates the fallback expression against env.
func (p Param) EvalDefault(env map[string]any) (any, error) {
	if p.prog == nil {
		return nil, fmt.Errorf("mapping: parameter %q has no default", p.key)
	}
	return vm.Run(p.prog, env)
}
