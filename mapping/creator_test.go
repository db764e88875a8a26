package mapping

import (
	"reflect"
	"testing"
)

type frozen struct {
	id   string
	name string
}

func newFrozen(id, name string) frozen {
	return frozen{id: id, name: name}
}

func TestRegisterCreator(t *testing.T) {
	ctx := NewContext()
	err := ctx.RegisterCreator(frozen{}, newFrozen,
		Bind("_id"), BindDefault("name", `"unknown"`))
	if err != nil {
		t.Fatalf("RegisterCreator() error = %v", err)
	}

	e, err := ctx.Entity(reflect.TypeOf(frozen{}))
	if err != nil {
		t.Fatal(err)
	}
	cr := e.Creator()
	if cr == nil {
		t.Fatal("Creator() = nil")
	}
	if got := cr.ParamType(1); got != reflect.TypeOf("") {
		t.Errorf("ParamType(1) = %v", got)
	}

	params := cr.Params()
	if params[0].Key() != "_id" || params[0].HasDefault() {
		t.Errorf("param 0 = %+v", params[0])
	}
	if !params[1].HasDefault() {
		t.Fatal("param 1 has no default")
	}
	v, err := params[1].EvalDefault(map[string]any{})
	if err != nil || v != "unknown" {
		t.Errorf("EvalDefault() = %v, %v", v, err)
	}

	out := cr.New([]reflect.Value{reflect.ValueOf("a"), reflect.ValueOf("b")})
	if f := out.Interface().(frozen); f.id != "a" || f.name != "b" {
		t.Errorf("New() = %+v", f)
	}
}

func TestCreatorDefaultSeesDocument(t *testing.T) {
	ctx := NewContext()
	type namedFrozen struct{ full string }
	err := ctx.RegisterCreator(namedFrozen{},
		func(full string) namedFrozen { return namedFrozen{full: full} },
		BindDefault("fullname", `firstname + " " + lastname`))
	if err != nil {
		t.Fatal(err)
	}
	e, err := ctx.Entity(reflect.TypeOf(namedFrozen{}))
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Creator().Params()[0].EvalDefault(map[string]any{
		"firstname": "Dave", "lastname": "Matthews",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != "Dave Matthews" {
		t.Errorf("EvalDefault() = %v", v)
	}
}

func TestRegisterCreatorValidation(t *testing.T) {
	cases := []struct {
		name   string
		fn     any
		params []Param
	}{
		{"not a function", 42, nil},
		{"wrong return type", func(string) int { return 0 }, []Param{Bind("x")}},
		{"arity mismatch", newFrozen, []Param{Bind("_id")}},
		{"empty key", newFrozen, []Param{Bind("_id"), Bind("")}},
		{"bad expression", newFrozen, []Param{Bind("_id"), BindDefault("name", `((`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := NewContext()
			if err := ctx.RegisterCreator(frozen{}, tc.fn, tc.params...); err == nil {
				t.Error("registration accepted")
			}
		})
	}
}

func TestEnum(t *testing.T) {
	type suit int
	const (
		hearts suit = iota
		spades
	)
	ctx := NewContext()
	err := RegisterEnum(ctx, map[suit]string{hearts: "HEARTS", spades: "SPADES"})
	if err != nil {
		t.Fatal(err)
	}

	e, ok := ctx.EnumFor(reflect.TypeOf(hearts))
	if !ok {
		t.Fatal("EnumFor() = false")
	}
	if n, ok := e.Name(spades); !ok || n != "SPADES" {
		t.Errorf("Name(spades) = %q, %v", n, ok)
	}
	if v, ok := e.Value("HEARTS"); !ok || v != hearts {
		t.Errorf("Value(HEARTS) = %v, %v", v, ok)
	}
	if _, ok := e.Name(suit(99)); ok {
		t.Error("unknown value has a name")
	}

	if err := RegisterEnum(ctx, map[suit]string{hearts: "H"}); err == nil {
		t.Error("double registration accepted")
	}
	if err := RegisterEnum(NewContext(), map[suit]string{hearts: "X", spades: "X"}); err == nil {
		t.Error("duplicate names accepted")
	}
}
