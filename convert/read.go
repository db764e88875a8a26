package convert

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docfold/docmap/debug"
	"github.com/docfold/docmap/doc"
	"github.com/docfold/docmap/mapping"
)

// Read reconstructs a typed value from d. target must be a non-nil
// pointer; its pointee type is the requested type. When d carries a
// discriminator resolving to a subtype of the requested type, the
// subtype is constructed instead; an unrelated discriminator is
// ignored.
func (c *Converter) Read(d *doc.Document, target any) error {
	if target == nil {
		return &MappingError{Message: "read target cannot be nil"}
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return &MappingError{Message: fmt.Sprintf("read target must be a non-nil pointer, got %T", target)}
	}
	if debug.Read() {
		debug.Logf("read %v into %T\n", d, target)
	}
	return c.readValue(d, val.Elem(), "")
}

// readValue reconstructs one value from its stored form.
func (c *Converter) readValue(store any, out reflect.Value, path string) error {
	declared := out.Type()

	if store == nil {
		out.Set(reflect.Zero(declared))
		return nil
	}

	if declared.Kind() == reflect.Pointer {
		switch declared {
		case documentType:
			d, ok := store.(*doc.Document)
			if !ok {
				return &MappingError{Path: path, Message: fmt.Sprintf("cannot read %T as a raw document", store)}
			}
			out.Set(reflect.ValueOf(d.Clone()))
			return nil
		case refType:
			ref, ok := store.(*doc.Ref)
			if !ok {
				return &MappingError{Path: path, Message: fmt.Sprintf("cannot read %T as a reference pointer", store)}
			}
			out.Set(reflect.ValueOf(ref))
			return nil
		}
		if isLazy(declared) {
			return c.readLazy(store, out, path)
		}
		if out.IsNil() {
			out.Set(reflect.New(declared.Elem()))
		}
		return c.readValue(store, out.Elem(), path)
	}

	if isLazy(declared) {
		return c.readLazy(store, out, path)
	}
	if isOptional(declared) {
		return c.readOptional(store, out, path)
	}

	if ref, ok := store.(*doc.Ref); ok {
		v, err := c.resolveAndRead(ref, declared, path)
		if err != nil {
			return err
		}
		if v == nil {
			out.Set(reflect.Zero(declared))
			return nil
		}
		out.Set(reflect.ValueOf(v))
		return nil
	}

	if d, ok := store.(*doc.Document); ok {
		return c.readDocument(d, out, path)
	}
	if seq, ok := store.([]any); ok {
		return c.readSequence(seq, out, path)
	}

	// scalar store
	if enum, ok := c.ctx.EnumFor(declared); ok {
		name, ok := store.(string)
		if !ok {
			return &MappingError{Path: path, Message: fmt.Sprintf("expected enumeration name, got %T", store)}
		}
		v, ok := enum.Value(name)
		if !ok {
			return &MappingError{Path: path, Message: fmt.Sprintf("unknown %s name %q", declared, name)}
		}
		out.Set(reflect.ValueOf(v))
		return nil
	}

	matched, err := coerceScalar(store, out, path)
	if matched {
		return err
	}
	if fn, ok := c.reg.Reader(declared); ok {
		v, err := fn(store)
		if err != nil {
			return err
		}
		return assign(v, out, path)
	}
	return &NoConverterError{From: reflect.TypeOf(store), To: declared, Direction: Reading, Path: path}
}

// readDocument reconstructs a keyed value: entity, map, raw document,
// optional, or the canonical textual form for plain-text targets.
func (c *Converter) readDocument(d *doc.Document, out reflect.Value, path string) error {
	declared := out.Type()

	effective := c.tm.ReadType(d, declared)
	if fn, ok := c.reg.Reader(effective); ok {
		v, err := fn(d)
		if err != nil {
			return err
		}
		return assign(v, out, path)
	}
	if effective != declared {
		tmp := reflect.New(effective)
		if err := c.readDocumentAs(d, tmp.Elem(), path); err != nil {
			return err
		}
		// a subtype implementing declared only through its pointer is
		// assigned in pointer form
		if !effective.AssignableTo(declared) && reflect.PointerTo(effective).AssignableTo(declared) {
			return assign(tmp.Interface(), out, path)
		}
		return assign(tmp.Elem().Interface(), out, path)
	}
	return c.readDocumentAs(d, out, path)
}

func (c *Converter) readDocumentAs(d *doc.Document, out reflect.Value, path string) error {
	declared := out.Type()

	if isOptional(declared) {
		return c.readOptional(d, out, path)
	}

	switch declared.Kind() {
	case reflect.Struct:
		if c.reg.Simple(declared) {
			return &MappingError{Path: path, Message: fmt.Sprintf("cannot read a nested document into %s", declared)}
		}
		return c.readEntity(d, out, path)
	case reflect.Map:
		return c.readMap(d, out, path)
	case reflect.String:
		// an arbitrary document read as text yields its canonical form
		out.SetString(d.String())
		return nil
	case reflect.Interface:
		if declared.NumMethod() == 0 {
			out.Set(reflect.ValueOf(d.Clone()))
			return nil
		}
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read a document into %s without a discriminator", declared)}
	default:
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read a keyed document into %s", declared)}
	}
}

func (c *Converter) readEntity(d *doc.Document, out reflect.Value, path string) error {
	e, err := c.ctx.Entity(out.Type())
	if err != nil {
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot map %s", out.Type()), Err: err}
	}
	if cr := e.Creator(); cr != nil {
		return c.readViaCreator(d, e, cr, out, path)
	}

	for _, prop := range e.Properties() {
		store, ok := d.Lookup(prop.Key)
		if !ok {
			continue
		}
		fv := out.FieldByIndex(prop.FieldIndex)
		childPath := childKey(path, prop.Key)
		if prop.Ref {
			if err := c.readRefProperty(store, fv, childPath); err != nil {
				return err
			}
			continue
		}
		if err := c.readValue(store, fv, childPath); err != nil {
			return err
		}
	}
	return nil
}

// readViaCreator constructs an immutable entity through its registered
// constructor binding. Each parameter comes from its bound document
// key, or from its default expression when the key is absent.
func (c *Converter) readViaCreator(d *doc.Document, e *mapping.Entity, cr *mapping.Creator, out reflect.Value, path string) error {
	params := cr.Params()
	args := make([]reflect.Value, len(params))

	for i, p := range params {
		pt := cr.ParamType(i)
		store, present := d.Lookup(p.Key())

		switch {
		case present && store != nil:
			arg := reflect.New(pt).Elem()
			if err := c.readValue(store, arg, childKey(path, p.Key())); err != nil {
				return err
			}
			args[i] = arg

		case p.HasDefault():
			v, err := p.EvalDefault(d.AsMap())
			if err != nil {
				return &InstantiationError{Type: e.Type(), Param: p.Key(), Message: "default expression failed", Err: err}
			}
			arg, err := argValue(v, pt)
			if err != nil {
				return &InstantiationError{Type: e.Type(), Param: p.Key(), Message: err.Error()}
			}
			args[i] = arg

		case present: // explicit null, no default
			if isNilable(pt.Kind()) {
				args[i] = reflect.Zero(pt)
				continue
			}
			return &InstantiationError{Type: e.Type(), Param: p.Key(), Message: "document holds a null and the parameter has no default"}

		default:
			return &InstantiationError{Type: e.Type(), Param: p.Key(), Message: "no document value and no default"}
		}
	}

	res := cr.New(args)
	if res.Kind() == reflect.Pointer && out.Kind() == reflect.Struct {
		res = res.Elem()
	}
	out.Set(res)
	return nil
}

func argValue(v any, pt reflect.Type) (reflect.Value, error) {
	if v == nil {
		if isNilable(pt.Kind()) {
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("default evaluated to null, parameter is %s", pt)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(pt) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(pt) {
		return rv.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("default evaluated to %T, parameter is %s", v, pt)
}

func (c *Converter) readSequence(seq []any, out reflect.Value, path string) error {
	declared := out.Type()
	switch declared.Kind() {
	case reflect.Slice:
		out.Set(reflect.MakeSlice(declared, len(seq), len(seq)))
	case reflect.Array:
		if out.Len() != len(seq) {
			return &MappingError{Path: path, Message: fmt.Sprintf("array length mismatch: document holds %d, %s wants %d", len(seq), declared, out.Len())}
		}
	case reflect.Interface:
		if declared.NumMethod() == 0 {
			out.Set(reflect.ValueOf(doc.CloneValue(seq)))
			return nil
		}
		fallthrough
	default:
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read a sequence into %s", declared)}
	}
	for i, ev := range seq {
		if err := c.readValue(ev, out.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) readMap(d *doc.Document, out reflect.Value, path string) error {
	declared := out.Type()
	keyType := declared.Key()
	valType := declared.Elem()
	out.Set(reflect.MakeMapWithSize(declared, d.Len()))

	for k, v := range d.All() {
		if k == c.cfg.typeKey {
			continue
		}
		key, err := c.readMapKey(c.unescapeMapKey(k), keyType, path)
		if err != nil {
			return err
		}
		rv := reflect.New(valType).Elem()
		if err := c.readValue(v, rv, childKey(path, k)); err != nil {
			return err
		}
		out.SetMapIndex(key, rv)
	}
	return nil
}

func (c *Converter) readMapKey(k string, keyType reflect.Type, path string) (reflect.Value, error) {
	if fn, ok := c.reg.KeyReader(keyType); ok {
		v, err := fn(k)
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(keyType) {
			if !rv.Type().ConvertibleTo(keyType) {
				return reflect.Value{}, &MappingError{Path: path, Message: fmt.Sprintf("key converter produced %T, want %s", v, keyType)}
			}
			rv = rv.Convert(keyType)
		}
		return rv, nil
	}
	if enum, ok := c.ctx.EnumFor(keyType); ok {
		v, ok := enum.Value(k)
		if !ok {
			return reflect.Value{}, &MappingError{Path: path, Message: fmt.Sprintf("unknown %s name %q", keyType, k)}
		}
		return reflect.ValueOf(v), nil
	}
	if keyType.Kind() == reflect.String {
		return reflect.ValueOf(k).Convert(keyType), nil
	}
	kp := reflect.New(keyType)
	if tu, ok := kp.Interface().(encoding.TextUnmarshaler); ok {
		if err := tu.UnmarshalText([]byte(k)); err != nil {
			return reflect.Value{}, &MappingError{Path: path, Message: fmt.Sprintf("cannot read map key %q as %s", k, keyType), Err: err}
		}
		return kp.Elem(), nil
	}
	return reflect.Value{}, &MappingError{Path: path, Message: fmt.Sprintf("cannot read map keys as %s", keyType)}
}

func (c *Converter) readRefProperty(store any, fv reflect.Value, path string) error {
	switch x := store.(type) {
	case nil:
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	case *doc.Ref:
		if fv.Type() == refType {
			fv.Set(reflect.ValueOf(x))
			return nil
		}
		if isLazy(fv.Type()) {
			return c.bindLazyRef(x, fv, path)
		}
		v, err := c.resolveAndRead(x, fv.Type(), path)
		if err != nil {
			return err
		}
		if v == nil {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		return assign(v, fv, path)
	case *doc.Document:
		// an already-inlined referenced document reads structurally
		return c.readValue(x, fv, path)
	default:
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read %T as a reference", store)}
	}
}

func (c *Converter) readLazy(store any, out reflect.Value, path string) error {
	if out.Kind() == reflect.Pointer {
		if out.IsNil() {
			out.Set(reflect.New(out.Type().Elem()))
		}
		out = out.Elem()
	}
	binder := out.Addr().Interface().(lazyBinder)
	switch x := store.(type) {
	case *doc.Ref:
		return c.bindLazyTo(x, binder, path)
	case *doc.Document:
		target := binder.lazyTarget()
		d := x.Clone()
		binder.bindLazy(nil, func() (any, error) {
			return c.readInto(d, target, path)
		})
		return nil
	default:
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read %T as a lazy reference", store)}
	}
}

func (c *Converter) bindLazyRef(ref *doc.Ref, fv reflect.Value, path string) error {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	return c.bindLazyTo(ref, fv.Addr().Interface().(lazyBinder), path)
}

func (c *Converter) bindLazyTo(ref *doc.Ref, binder lazyBinder, path string) error {
	target := binder.lazyTarget()
	binder.bindLazy(ref, func() (any, error) {
		return c.resolveAndRead(ref, target, path)
	})
	return nil
}

func (c *Converter) readOptional(store any, out reflect.Value, path string) error {
	d, ok := store.(*doc.Document)
	if !ok {
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot read %T as an optional", store)}
	}
	setter := out.Addr().Interface().(optionalSetter)
	v, present := d.Lookup(OptionalValueKey)
	if !present || v == nil {
		setter.setOptional(nil, false)
		return nil
	}
	inner, err := c.readInto(v, setter.optionalTarget(), childKey(path, OptionalValueKey))
	if err != nil {
		return err
	}
	setter.setOptional(inner, true)
	return nil
}

// resolveAndRead fetches the referenced document synchronously and
// reads it as t. The engine never retries a failed resolution.
func (c *Converter) resolveAndRead(ref *doc.Ref, t reflect.Type, path string) (any, error) {
	if c.cfg.resolver == nil {
		return nil, &ResolutionError{Ref: ref, Err: errors.New("no resolver configured")}
	}
	if debug.Resolve() {
		debug.Logf("resolve %v\n", ref)
	}
	d, err := c.cfg.resolver.Resolve(ref)
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}
	if d == nil {
		return nil, nil
	}
	return c.readInto(d, t, path)
}

func (c *Converter) readInto(store any, t reflect.Type, path string) (any, error) {
	out := reflect.New(t).Elem()
	if err := c.readValue(store, out, path); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func assign(v any, out reflect.Value, path string) error {
	if v == nil {
		out.Set(reflect.Zero(out.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(out.Type()) {
		out.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(out.Type()) {
		out.Set(rv.Convert(out.Type()))
		return nil
	}
	return &MappingError{Path: path, Message: fmt.Sprintf("cannot assign %T to %s", v, out.Type())}
}

// coerceScalar assigns a scalar store value into a simple target,
// applying numeric widening/narrowing with overflow checks, identifier
// coercion, and the textual round-trip for arbitrary-precision
// numerics. It reports whether a coercion rule applied.
func coerceScalar(store any, out reflect.Value, path string) (bool, error) {
	declared := out.Type()
	sv := reflect.ValueOf(store)

	if sv.Type() == declared {
		out.Set(sv)
		return true, nil
	}

	switch declared {
	case objectIDType:
		s, ok := store.(string)
		if !ok {
			return false, nil
		}
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return true, &MappingError{Path: path, Message: fmt.Sprintf("%q is not a valid object id", s), Err: err}
		}
		out.Set(reflect.ValueOf(oid))
		return true, nil
	case decimal128Type:
		var text string
		switch x := store.(type) {
		case string:
			text = x
		case int32:
			text = strconv.FormatInt(int64(x), 10)
		case int64:
			text = strconv.FormatInt(x, 10)
		case float64:
			text = strconv.FormatFloat(x, 'g', -1, 64)
		default:
			return false, nil
		}
		dec, err := primitive.ParseDecimal128(text)
		if err != nil {
			return true, &MappingError{Path: path, Message: fmt.Sprintf("%q is not a valid decimal", text), Err: err}
		}
		out.Set(reflect.ValueOf(dec))
		return true, nil
	case timeType:
		s, ok := store.(string)
		if !ok {
			return false, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return true, &MappingError{Path: path, Message: fmt.Sprintf("%q is not a valid timestamp", s), Err: err}
		}
		out.Set(reflect.ValueOf(ts))
		return true, nil
	}

	switch declared.Kind() {
	case reflect.Bool:
		b, ok := store.(bool)
		if !ok {
			return false, nil
		}
		out.SetBool(b)
		return true, nil

	case reflect.String:
		switch x := store.(type) {
		case string:
			out.SetString(x)
			return true, nil
		case primitive.ObjectID:
			// identifier narrowing for string-typed id properties
			out.SetString(x.Hex())
			return true, nil
		}
		return false, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok, err := storeInt(store, path)
		if !ok || err != nil {
			return ok, err
		}
		if out.OverflowInt(n) {
			return true, &MappingError{Path: path, Message: fmt.Sprintf("value %d overflows %s", n, declared)}
		}
		out.SetInt(n)
		return true, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok, err := storeInt(store, path)
		if !ok || err != nil {
			return ok, err
		}
		if n < 0 || out.OverflowUint(uint64(n)) {
			return true, &MappingError{Path: path, Message: fmt.Sprintf("value %d overflows %s", n, declared)}
		}
		out.SetUint(uint64(n))
		return true, nil

	case reflect.Float32, reflect.Float64:
		switch x := store.(type) {
		case float64:
			out.SetFloat(x)
			return true, nil
		case int32:
			out.SetFloat(float64(x))
			return true, nil
		case int64:
			out.SetFloat(float64(x))
			return true, nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return true, &MappingError{Path: path, Message: fmt.Sprintf("cannot read %q as %s", x, declared), Err: err}
			}
			out.SetFloat(f)
			return true, nil
		case primitive.Decimal128:
			f, err := strconv.ParseFloat(x.String(), 64)
			if err != nil {
				return true, &MappingError{Path: path, Message: fmt.Sprintf("cannot read %v as %s", x, declared), Err: err}
			}
			out.SetFloat(f)
			return true, nil
		}
		return false, nil
	}

	if sv.Type().AssignableTo(declared) {
		out.Set(sv)
		return true, nil
	}
	if s, ok := store.(string); ok && out.CanAddr() {
		if tu, ok := out.Addr().Interface().(encoding.TextUnmarshaler); ok {
			if err := tu.UnmarshalText([]byte(s)); err != nil {
				return true, &MappingError{Path: path, Message: fmt.Sprintf("cannot read %q as %s", s, declared), Err: err}
			}
			return true, nil
		}
	}
	return false, nil
}

func storeInt(store any, path string) (int64, bool, error) {
	switch x := store.(type) {
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case float64:
		n := int64(x)
		if float64(n) != x {
			return 0, true, &MappingError{Path: path, Message: fmt.Sprintf("value %v is not a whole number", x)}
		}
		return n, true, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, true, &MappingError{Path: path, Message: fmt.Sprintf("cannot read %q as an integer", x), Err: err}
		}
		return n, true, nil
	default:
		return 0, false, nil
	}
}
