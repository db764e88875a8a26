package convert

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/docfold/docmap/doc"
)

type yearMonth struct {
	Y int
	M int
}

func TestMapKeyConverters(t *testing.T) {
	reg := NewRegistry()
	ymType := reflect.TypeOf(yearMonth{})
	reg.RegisterKeyWriter(ymType, func(v any) (any, error) {
		ym := v.(yearMonth)
		return fmt.Sprintf("%04d-%02d", ym.Y, ym.M), nil
	})
	reg.RegisterKeyReader(ymType, func(v any) (any, error) {
		var ym yearMonth
		if _, err := fmt.Sscanf(v.(string), "%d-%d", &ym.Y, &ym.M); err != nil {
			return nil, err
		}
		return ym, nil
	})
	c := New(testContext(t), WithRegistry(reg))

	d := doc.New()
	in := map[yearMonth]int{{2024, 5}: 3, {2023, 12}: 1}
	if err := c.Write(in, d); err != nil {
		t.Fatal(err)
	}
	want := doc.New().Set("2023-12", int64(1)).Set("2024-05", int64(3))
	if !d.Equal(want) {
		t.Fatalf("got %v, want %v", d, want)
	}

	var got map[yearMonth]int
	if err := c.Read(d, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip: got %v, want %v", got, in)
	}
}

func TestRegisteredSimpleType(t *testing.T) {
	type point struct {
		X int
		Y int
	}
	reg := NewRegistry()
	reg.RegisterSimpleType(reflect.TypeOf(point{}))
	c := New(testContext(t), WithRegistry(reg))

	got, err := c.ConvertToStoreValue(point{X: 1, Y: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got != (point{X: 1, Y: 2}) {
		t.Errorf("got %v (%T), want the value untouched", got, got)
	}
}
