package convert

import (
	"fmt"
	"testing"

	"github.com/docfold/docmap/doc"
	"github.com/docfold/docmap/mapping"
)

type Address struct {
	Street string
	City   string `doc:"town"`
}

type Person struct {
	ID   string
	Name string
	Age  int
	Addr *Address `doc:"address"`
}

type Account struct {
	ID      string
	Balance int64   `doc:"balance"`
	Owner   *Person `doc:"owner,ref"`
}

type Shape interface {
	Area() float64
}

type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return 3.14159 * c.Radius * c.Radius }

type Rect struct {
	W float64
	H float64
}

func (r Rect) Area() float64 { return r.W * r.H }

// Blob satisfies Shape only through its pointer.
type Blob struct {
	Size int64
}

func (b *Blob) Area() float64 { return float64(b.Size) }

type Drawing struct {
	ID    string
	Main  Shape   `doc:"main"`
	Items []Shape `doc:"items"`
}

type Color int

const (
	Red Color = iota
	Green
	Blue
)

var colorNames = map[Color]string{Red: "red", Green: "green", Blue: "blue"}

type Invoice struct {
	ID     string
	Amount int64  `doc:"amount"`
	Note   string `doc:"note"`
}

func newInvoice(id string, amount int64, note string) Invoice {
	return Invoice{ID: id, Amount: amount, Note: note}
}

func testContext(t *testing.T) *mapping.Context {
	t.Helper()
	ctx := mapping.NewContext()
	for alias, proto := range map[string]any{
		"circle":  Circle{},
		"rect":    Rect{},
		"person":  Person{},
		"account": Account{},
	} {
		if err := ctx.RegisterAlias(alias, proto); err != nil {
			t.Fatalf("RegisterAlias(%q): %v", alias, err)
		}
	}
	ctx.RegisterCollection(Person{}, "people")
	if err := mapping.RegisterEnum(ctx, colorNames); err != nil {
		t.Fatalf("RegisterEnum: %v", err)
	}
	return ctx
}

// memResolver resolves references from an in-memory collection map and
// counts resolutions.
type memResolver struct {
	docs  map[string]*doc.Document // "collection/id"
	calls int
	err   error
}

func (r *memResolver) ToPointer(v any, prop *mapping.Property) (*doc.Ref, error) {
	p, ok := v.(Person)
	if !ok {
		return nil, fmt.Errorf("unexpected referenced value %T", v)
	}
	return doc.NewRef("people", p.ID), nil
}

func (r *memResolver) Resolve(ref *doc.Ref) (*doc.Document, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	d, ok := r.docs[fmt.Sprintf("%s/%v", ref.Collection, ref.ID)]
	if !ok {
		return nil, fmt.Errorf("no document at %v", ref)
	}
	return d, nil
}
