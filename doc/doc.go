// Package doc contains the document model: an insertion-ordered,
// string-keyed mapping of scalars, nested documents, sequences and
// foreign-reference pointers. It is the schemaless unit that the
// convert package writes into and reads from.
//
// Permitted values inside a Document are:
//
//   - nil
//   - bool, int32, int64, float64, string
//   - []byte
//   - time.Time
//   - primitive.ObjectID, primitive.Decimal128
//   - *Document (nested mapping)
//   - []any (ordered sequence of permitted values)
//   - *Ref (foreign-reference pointer)
//
// Documents are mutable and not safe for concurrent mutation; the
// convert package creates them per call and never shares them.
package doc
