package doc

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentOrder(t *testing.T) {
	d := New().Set("b", 1).Set("a", 2).Set("c", 3)

	got := d.Keys()
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}

	t.Run("replace keeps position", func(t *testing.T) {
		d.Set("a", 9)
		if d.Keys()[1] != "a" {
			t.Errorf("key a moved after replace: %v", d.Keys())
		}
		if d.Get("a") != 9 {
			t.Errorf("Get(a) = %v, want 9", d.Get("a"))
		}
	})

	t.Run("delete reindexes", func(t *testing.T) {
		if !d.Delete("b") {
			t.Fatal("Delete(b) = false")
		}
		if d.Has("b") {
			t.Error("b still present after delete")
		}
		if d.Get("c") != 3 {
			t.Errorf("Get(c) = %v after delete, want 3", d.Get("c"))
		}
		if d.Len() != 2 {
			t.Errorf("Len() = %d, want 2", d.Len())
		}
	})
}

func TestDocumentLookupNil(t *testing.T) {
	d := New().Set("x", nil)
	v, ok := d.Lookup("x")
	if !ok || v != nil {
		t.Errorf("Lookup(x) = (%v, %v), want (nil, true)", v, ok)
	}
	if _, ok := d.Lookup("y"); ok {
		t.Error("Lookup(y) = present for absent key")
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	inner := New().Set("n", int64(1))
	d := New().Set("inner", inner).Set("seq", []any{"a", inner})

	c := d.Clone()
	inner.Set("n", int64(2))

	ci := c.Get("inner").(*Document)
	if ci.Get("n") != int64(1) {
		t.Errorf("clone shares nested document: %v", ci.Get("n"))
	}
	cs := c.Get("seq").([]any)
	if cs[1].(*Document).Get("n") != int64(1) {
		t.Error("clone shares sequence element")
	}
}

func TestDocumentEqual(t *testing.T) {
	oid := primitive.NewObjectID()
	now := time.Now()

	mk := func() *Document {
		return New().
			Set("_id", oid).
			Set("when", now).
			Set("tags", []any{"a", nil, "b"}).
			Set("bin", []byte{1, 2}).
			Set("ref", NewRef("people", "p1"))
	}
	a, b := mk(), mk()
	if !a.Equal(b) {
		t.Fatal("identical documents not Equal")
	}

	b.Set("tags", []any{"a", "b"})
	if a.Equal(b) {
		t.Error("documents with different sequences Equal")
	}

	c := New().Set("when", now).Set("_id", oid)
	d := New().Set("_id", oid).Set("when", now)
	if c.Equal(d) {
		t.Error("key order ignored by Equal")
	}
}

func TestFromMapAndAsMap(t *testing.T) {
	d := FromMap(map[string]any{"b": int64(2), "a": int64(1)})
	if d.Keys()[0] != "a" {
		t.Errorf("FromMap keys not sorted: %v", d.Keys())
	}
	d.Set("nested", New().Set("x", "y"))
	m := d.AsMap()
	nested, ok := m["nested"].(map[string]any)
	if !ok || nested["x"] != "y" {
		t.Errorf("AsMap nested = %#v", m["nested"])
	}
}

func TestMarshalJSON(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("50ca271c4566a2b08f2d667a")
	if err != nil {
		t.Fatal(err)
	}
	d := New().
		Set("_id", oid).
		Set("name", "Oliver").
		Set("n", int64(5)).
		Set("none", nil).
		Set("seq", []any{int32(1), "two"}).
		Set("ref", NewRef("accounts", "a1"))

	want := `{"_id":"50ca271c4566a2b08f2d667a","name":"Oliver","n":5,` +
		`"none":null,"seq":[1,"two"],"ref":{"$ref":"accounts","$id":"a1"}}`
	if got := d.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
