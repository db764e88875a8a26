package convert

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docfold/docmap/debug"
	"github.com/docfold/docmap/doc"
	"github.com/docfold/docmap/mapping"
)

var (
	documentType = reflect.TypeOf((*doc.Document)(nil))
	refType      = reflect.TypeOf((*doc.Ref)(nil))
)

// Write decomposes v into target. The declared type is taken to be
// v's own runtime type, so Write by itself never emits a
// discriminator; use WriteAs to write a value under a wider declared
// type. Writing nil is a no-op. On error target may hold a partial
// result; callers needing atomicity write into a fresh document.
func (c *Converter) Write(v any, target *doc.Document) error {
	return c.WriteAs(v, reflect.TypeOf(v), target)
}

// WriteAs decomposes v into target as a value declared as the given
// type. When v's runtime type is not recoverable from declared (a
// subtype written into a supertype-declared context), the type
// discriminator is recorded.
func (c *Converter) WriteAs(v any, declared reflect.Type, target *doc.Document) error {
	if v == nil {
		return nil
	}
	if debug.Write() {
		debug.Logf("write %T as %v\n", v, declared)
	}

	// top-level raw documents pass through unchanged
	if d, ok := v.(*doc.Document); ok {
		target.Merge(d)
		return nil
	}

	val := reflect.ValueOf(v)
	if fn, ok := c.reg.Writer(val.Type()); ok {
		out, err := fn(v)
		if err != nil {
			return err
		}
		return mergeConverted(out, target)
	}

	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Type() != reflect.TypeOf(v) {
		if fn, ok := c.reg.Writer(val.Type()); ok {
			out, err := fn(val.Interface())
			if err != nil {
				return err
			}
			return mergeConverted(out, target)
		}
	}

	switch val.Kind() {
	case reflect.Struct:
		if c.reg.Simple(val.Type()) {
			return &MappingError{Message: fmt.Sprintf("cannot write simple value %s at document top level", val.Type())}
		}
		return c.writeEntityInto(target, val, declared, "")
	case reflect.Map:
		return c.writeMapInto(target, val, "")
	default:
		return &MappingError{Message: fmt.Sprintf("cannot write %s at document top level", val.Type())}
	}
}

// ConvertToStoreValue converts v to its document-safe representation
// without a target document: scalars stay scalars, containers become
// sequences or nested documents, entities become nested documents. An
// optional declared type controls discriminator emission the same way
// WriteAs does.
func (c *Converter) ConvertToStoreValue(v any, declared ...reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	dt := reflect.TypeOf(v)
	if len(declared) > 0 && declared[0] != nil {
		dt = declared[0]
	}
	return c.writeValue(reflect.ValueOf(v), dt, "")
}

func mergeConverted(out any, target *doc.Document) error {
	switch x := out.(type) {
	case *doc.Document:
		target.Merge(x)
		return nil
	case map[string]any:
		target.Merge(doc.FromMap(x))
		return nil
	default:
		return &MappingError{Message: fmt.Sprintf("custom writer produced %T, need keyed data at document top level", out)}
	}
}

// writeValue converts one value to its document representation.
// declared is the statically known type at this position; it steers
// discriminator emission for nested entities.
func (c *Converter) writeValue(val reflect.Value, declared reflect.Type, path string) (any, error) {
	if !val.IsValid() {
		return nil, nil
	}

	if val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	t := val.Type()

	// registry first: custom writers win over everything
	if fn, ok := c.reg.Writer(t); ok {
		return fn(val.Interface())
	}

	// reference pointers pass through, never double-wrapped
	if t == refType {
		if val.IsNil() {
			return nil, nil
		}
		return val.Interface(), nil
	}
	if t == documentType {
		if val.IsNil() {
			return nil, nil
		}
		return c.nestedRawDocument(val.Interface().(*doc.Document), declared), nil
	}

	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, nil
		}
		dt := declared
		if dt != nil && dt.Kind() == reflect.Pointer {
			dt = dt.Elem()
		}
		return c.writeValue(val.Elem(), dt, path)
	}

	if isLazy(t) {
		return c.writeLazy(val)
	}
	if opt, ok := val.Interface().(optionalValue); ok {
		return c.writeOptional(opt, path)
	}

	if enum, ok := c.ctx.EnumFor(t); ok {
		name, ok := enum.Name(val.Interface())
		if !ok {
			return nil, &MappingError{Path: path, Message: fmt.Sprintf("value %v outside enumeration %s", val.Interface(), t)}
		}
		return name, nil
	}

	if c.reg.Simple(t) {
		return c.storeScalar(val, path)
	}

	switch val.Kind() {
	case reflect.Struct:
		d := doc.New()
		if err := c.writeEntityInto(d, val, declared, path); err != nil {
			return nil, err
		}
		return d, nil
	case reflect.Map:
		d := doc.New()
		if err := c.writeMapInto(d, val, path); err != nil {
			return nil, err
		}
		return d, nil
	case reflect.Slice, reflect.Array:
		return c.writeSequence(val, path)
	default:
		if tm, ok := textMarshaler(val); ok {
			b, err := tm.MarshalText()
			if err != nil {
				return nil, &MappingError{Path: path, Message: "text marshal failed", Err: err}
			}
			return string(b), nil
		}
		return nil, &NoConverterError{From: t, Direction: Writing, Path: path}
	}
}

func (c *Converter) writeEntityInto(target *doc.Document, val reflect.Value, declared reflect.Type, path string) error {
	e, err := c.ctx.Entity(val.Type())
	if err != nil {
		return &MappingError{Path: path, Message: fmt.Sprintf("cannot map %s", val.Type()), Err: err}
	}

	if c.tm.ShouldWrite(val.Type(), declared) {
		c.tm.WriteType(val.Type(), target)
	}

	for _, prop := range e.Properties() {
		fv := val.FieldByIndex(prop.FieldIndex)
		childPath := childKey(path, prop.Key)

		if isNilable(fv.Kind()) && fv.IsNil() {
			continue
		}
		if prop.OmitEmpty && fv.IsZero() {
			continue
		}

		if prop.ID {
			if skipEmptyID(fv) {
				continue
			}
			id, err := c.writeValue(fv, prop.Type, childPath)
			if err != nil {
				return err
			}
			target.Set(prop.Key, id)
			continue
		}

		if prop.Ref {
			ref, err := c.toPointer(fv, prop, childPath)
			if err != nil {
				return err
			}
			target.Set(prop.Key, ref)
			continue
		}

		out, err := c.writeValue(fv, prop.Type, childPath)
		if err != nil {
			return err
		}
		target.Set(prop.Key, out)
	}
	return nil
}

func (c *Converter) writeSequence(val reflect.Value, path string) ([]any, error) {
	out := make([]any, val.Len())
	elemDeclared := val.Type().Elem()
	for i := 0; i < val.Len(); i++ {
		ev, err := c.writeValue(val.Index(i), elemDeclared, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = ev // nil elements persist as null entries
	}
	return out, nil
}

func (c *Converter) writeMapInto(target *doc.Document, val reflect.Value, path string) error {
	type entry struct {
		key string
		val any
	}
	entries := make([]entry, 0, val.Len())
	elemDeclared := val.Type().Elem()

	iter := val.MapRange()
	for iter.Next() {
		key, err := c.writeMapKey(iter.Key(), path)
		if err != nil {
			return err
		}
		v, err := c.writeValue(iter.Value(), elemDeclared, childKey(path, key))
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, val: v})
	}
	// Go maps iterate in random order; sort for a deterministic document
	slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.key, b.key) })
	for _, en := range entries {
		target.Set(en.key, en.val)
	}
	return nil
}

// writeMapKey converts a map key to its document key string and
// applies the path-separator escaping rules.
func (c *Converter) writeMapKey(key reflect.Value, path string) (string, error) {
	var s string
	switch {
	case keyFnApplies(c.reg, key.Type()):
		fn, _ := c.reg.KeyWriter(key.Type())
		out, err := fn(key.Interface())
		if err != nil {
			return "", err
		}
		str, ok := out.(string)
		if !ok {
			return "", &MappingError{Path: path, Message: fmt.Sprintf("key converter for %s produced %T, want string", key.Type(), out)}
		}
		s = str
	default:
		if enum, ok := c.ctx.EnumFor(key.Type()); ok {
			name, ok := enum.Name(key.Interface())
			if !ok {
				return "", &MappingError{Path: path, Message: fmt.Sprintf("map key %v outside enumeration %s", key.Interface(), key.Type())}
			}
			s = name
			break
		}
		if key.Kind() == reflect.String {
			s = key.String()
			break
		}
		if tm, ok := textMarshaler(key); ok {
			b, err := tm.MarshalText()
			if err != nil {
				return "", &MappingError{Path: path, Message: "map key text marshal failed", Err: err}
			}
			s = string(b)
			break
		}
		if str, ok := key.Interface().(fmt.Stringer); ok {
			s = str.String()
			break
		}
		return "", &MappingError{Path: path, Message: fmt.Sprintf("cannot use %s as a map key", key.Type())}
	}
	return c.escapeMapKey(s, path)
}

func (c *Converter) escapeMapKey(key, path string) (string, error) {
	if !strings.Contains(key, ".") {
		return key, nil
	}
	if c.cfg.mapKeyReplacement == "" {
		return "", &MappingError{
			Path:    path,
			Message: fmt.Sprintf("map key %q contains the path separator and no replacement is configured", key),
		}
	}
	if strings.Contains(key, c.cfg.mapKeyReplacement) {
		return "", &MappingError{
			Path:    path,
			Message: fmt.Sprintf("map key %q already contains the replacement token %q", key, c.cfg.mapKeyReplacement),
		}
	}
	return strings.ReplaceAll(key, ".", c.cfg.mapKeyReplacement), nil
}

func (c *Converter) unescapeMapKey(key string) string {
	if c.cfg.mapKeyReplacement == "" {
		return key
	}
	return strings.ReplaceAll(key, c.cfg.mapKeyReplacement, ".")
}

func (c *Converter) writeLazy(val reflect.Value) (any, error) {
	if val.Kind() != reflect.Pointer {
		if !val.CanAddr() {
			cp := reflect.New(val.Type())
			cp.Elem().Set(val)
			val = cp
		} else {
			val = val.Addr()
		}
	}
	if val.IsNil() {
		return nil, nil
	}
	ref := val.Interface().(lazyBinder).lazyRef()
	if ref == nil {
		return nil, nil
	}
	return ref, nil
}

func (c *Converter) writeOptional(opt optionalValue, path string) (any, error) {
	d := doc.New()
	v, present := opt.optionalGet()
	if !present {
		return d, nil
	}
	out, err := c.writeValue(reflect.ValueOf(v), opt.optionalTarget(), childKey(path, OptionalValueKey))
	if err != nil {
		return nil, err
	}
	d.Set(OptionalValueKey, out)
	return d, nil
}

// nestedRawDocument copies a caller-supplied document appearing below
// the top level, stripping a discriminator that does not resolve to
// the declared type.
func (c *Converter) nestedRawDocument(d *doc.Document, declared reflect.Type) *doc.Document {
	out := d.Clone()
	v, ok := out.Lookup(c.cfg.typeKey)
	if !ok {
		return out
	}
	name, _ := v.(string)
	t, known := c.ctx.TypeByName(name)
	consistent := known && declared != nil && c.tm.ReadType(out, declared) == t
	if !consistent {
		out.Delete(c.cfg.typeKey)
	}
	return out
}

// toPointer converts a referenced value to a foreign-reference
// pointer. Existing pointers pass through; otherwise the resolver (or,
// without one, the reference metadata) derives the pointer.
func (c *Converter) toPointer(val reflect.Value, prop *mapping.Property, path string) (*doc.Ref, error) {
	for val.Kind() == reflect.Interface || val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, nil
		}
		if val.Type() == refType {
			return val.Interface().(*doc.Ref), nil
		}
		val = val.Elem()
	}
	if isLazy(val.Type()) {
		v, err := c.writeLazy(val)
		if err != nil || v == nil {
			return nil, err
		}
		return v.(*doc.Ref), nil
	}
	if c.cfg.resolver != nil {
		return c.cfg.resolver.ToPointer(val.Interface(), prop)
	}
	return c.metadataPointer(val, path)
}

// metadataPointer derives a pointer from the referenced entity's own
// metadata: its collection and identifier value.
func (c *Converter) metadataPointer(val reflect.Value, path string) (*doc.Ref, error) {
	e, err := c.ctx.Entity(val.Type())
	if err != nil {
		return nil, &MappingError{Path: path, Message: fmt.Sprintf("reference to unmapped type %s", val.Type()), Err: err}
	}
	idProp := e.IDProperty()
	if idProp == nil {
		return nil, &MappingError{Path: path, Message: fmt.Sprintf("referenced type %s has no identifier", val.Type())}
	}
	id, err := c.writeValue(val.FieldByIndex(idProp.FieldIndex), idProp.Type, childKey(path, idProp.Key))
	if err != nil {
		return nil, err
	}
	return doc.NewRef(e.Collection(), id), nil
}

// storeScalar normalizes a simple value to its document-native form.
func (c *Converter) storeScalar(val reflect.Value, path string) (any, error) {
	switch val.Type() {
	case timeType, objectIDType, decimal128Type, bytesType:
		return val.Interface(), nil
	}
	if c.reg.registeredSimple(val.Type()) {
		return val.Interface(), nil
	}
	switch val.Kind() {
	case reflect.Bool:
		return val.Bool(), nil
	case reflect.String:
		return val.String(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return int32(val.Int()), nil
	case reflect.Int, reflect.Int64:
		return val.Int(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(val.Uint()), nil
	case reflect.Uint, reflect.Uint64:
		u := val.Uint()
		if u > math.MaxInt64 {
			return nil, &MappingError{Path: path, Message: fmt.Sprintf("value %d overflows the document numeric range", u)}
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return val.Float(), nil
	default:
		return nil, &NoConverterError{From: val.Type(), Direction: Writing, Path: path}
	}
}

func skipEmptyID(val reflect.Value) bool {
	v := val
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	switch {
	case v.Kind() == reflect.String:
		return v.String() == ""
	case v.Type() == objectIDType:
		return v.Interface().(primitive.ObjectID).IsZero()
	default:
		return false
	}
}

func keyFnApplies(r *Registry, t reflect.Type) bool {
	_, ok := r.KeyWriter(t)
	return ok
}

func textMarshaler(val reflect.Value) (encoding.TextMarshaler, bool) {
	if tm, ok := val.Interface().(encoding.TextMarshaler); ok {
		return tm, true
	}
	if val.CanAddr() {
		if tm, ok := val.Addr().Interface().(encoding.TextMarshaler); ok {
			return tm, true
		}
	}
	return nil, false
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

func childKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
