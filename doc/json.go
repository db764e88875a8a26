package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MarshalJSON renders the document as JSON with keys in insertion
// order. ObjectIDs marshal as their hex form, Decimal128 and times as
// strings, refs in DBRef shape ({"$ref": ..., "$id": ...}).
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSONDoc(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the canonical JSON text, used when a document is read
// into a textual target and for debug traces.
func (d *Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("doc(!%v)", err)
	}
	return string(b)
}

func writeJSONDoc(buf *bytes.Buffer, d *Document) error {
	buf.WriteByte('{')
	first := true
	for k, v := range d.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeJSONValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case *Document:
		return writeJSONDoc(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case *Ref:
		buf.WriteString(`{"$ref":`)
		if err := jsonAppend(buf, x.Collection); err != nil {
			return err
		}
		buf.WriteString(`,"$id":`)
		if err := writeJSONValue(buf, x.ID); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case primitive.ObjectID:
		return jsonAppend(buf, x.Hex())
	case primitive.Decimal128:
		return jsonAppend(buf, x.String())
	case time.Time:
		return jsonAppend(buf, x.UTC().Format(time.RFC3339Nano))
	default:
		return jsonAppend(buf, v)
	}
}

func jsonAppend(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
