package mapping

import (
	"errors"
	"reflect"
	"testing"
)

type address struct {
	Street string
	City   string `doc:"town"`
	note   string
}

type Meta struct {
	CreatedBy string
}

type account struct {
	ID      string
	Balance float64 `doc:"balance,omitempty"`
	Owner   *person `doc:"owner,ref"`
	Secret  string  `doc:"-"`
	Meta
	Audit Meta `doc:"audit"`
}

type person struct {
	ID   string
	Name string
}

func TestEntityProperties(t *testing.T) {
	ctx := NewContext()
	e, err := ctx.Entity(reflect.TypeOf(account{}))
	if err != nil {
		t.Fatalf("Entity() error = %v", err)
	}

	byName := map[string]*Property{}
	for _, p := range e.Properties() {
		byName[p.Name] = p
	}

	t.Run("identifier by convention", func(t *testing.T) {
		id := e.IDProperty()
		if id == nil || id.Name != "ID" {
			t.Fatalf("IDProperty() = %+v", id)
		}
		if id.Key != IDKey {
			t.Errorf("id key = %q, want %q", id.Key, IDKey)
		}
	})

	t.Run("tag options", func(t *testing.T) {
		b := byName["Balance"]
		if b == nil || b.Key != "balance" || !b.OmitEmpty {
			t.Errorf("Balance = %+v", b)
		}
		o := byName["Owner"]
		if o == nil || !o.Ref {
			t.Errorf("Owner = %+v", o)
		}
		if _, ok := byName["Secret"]; ok {
			t.Error("doc:\"-\" field was mapped")
		}
	})

	t.Run("embedded flattening", func(t *testing.T) {
		p := byName["CreatedBy"]
		if p == nil {
			t.Fatal("embedded Meta field not promoted")
		}
		if len(p.FieldIndex) != 2 {
			t.Errorf("FieldIndex = %v, want nested index", p.FieldIndex)
		}
		// a tagged struct field of the same type stays nested
		if a := byName["Audit"]; a == nil || a.Key != "audit" {
			t.Errorf("Audit = %+v", a)
		}
	})
}

func TestEntityKeyOverride(t *testing.T) {
	ctx := NewContext()
	e, err := ctx.Entity(reflect.TypeOf(address{}))
	if err != nil {
		t.Fatal(err)
	}
	props := e.Properties()
	if len(props) != 2 {
		t.Fatalf("Properties() = %d, want 2", len(props))
	}
	if props[0].Key != "Street" || props[1].Key != "town" {
		t.Errorf("keys = %q, %q", props[0].Key, props[1].Key)
	}
	if e.IDProperty() != nil {
		t.Error("address has no identifier, got one")
	}
}

func TestEntityErrors(t *testing.T) {
	ctx := NewContext()

	if _, err := ctx.Entity(reflect.TypeOf("x")); !errors.Is(err, ErrNotEntity) {
		t.Errorf("Entity(string) error = %v, want ErrNotEntity", err)
	}

	type twoIDs struct {
		ID    string
		Other string `doc:",id"`
	}
	if _, err := ctx.Entity(reflect.TypeOf(twoIDs{})); err == nil {
		t.Error("duplicate identifier accepted")
	}

	type dupKeys struct {
		A string `doc:"x"`
		B string `doc:"x"`
	}
	if _, err := ctx.Entity(reflect.TypeOf(dupKeys{})); err == nil {
		t.Error("duplicate keys accepted")
	}
}

func TestCollectionNames(t *testing.T) {
	ctx := NewContext()
	e, err := ctx.Entity(reflect.TypeOf(person{}))
	if err != nil {
		t.Fatal(err)
	}
	if e.Collection() != "person" {
		t.Errorf("Collection() = %q, want person", e.Collection())
	}

	ctx2 := NewContext()
	ctx2.RegisterCollection(account{}, "accounts")
	e2, err := ctx2.Entity(reflect.TypeOf(&account{}))
	if err != nil {
		t.Fatal(err)
	}
	if e2.Collection() != "accounts" {
		t.Errorf("Collection() = %q, want accounts", e2.Collection())
	}
}

func TestAliases(t *testing.T) {
	ctx := NewContext()
	if err := ctx.RegisterAlias("person", person{}); err != nil {
		t.Fatal(err)
	}
	pt := reflect.TypeOf(person{})
	if got := ctx.AliasFor(pt); got != "person" {
		t.Errorf("AliasFor = %q", got)
	}
	if tt, ok := ctx.TypeByName("person"); !ok || tt != pt {
		t.Errorf("TypeByName(person) = %v, %v", tt, ok)
	}
	// full path resolves too
	if tt, ok := ctx.TypeByName(pt.PkgPath() + ".person"); !ok || tt != pt {
		t.Errorf("TypeByName(path) = %v, %v", tt, ok)
	}
	// unaliased types fall back to their path
	at := reflect.TypeOf(address{})
	if got := ctx.AliasFor(at); got != at.PkgPath()+".address" {
		t.Errorf("AliasFor(address) = %q", got)
	}
}
