package doc

import "fmt"

// Ref points at a document in another collection. It carries no
// payload; resolution is delegated to a convert.RefResolver.
type Ref struct {
	Collection string
	ID         any
}

// NewRef returns a pointer to the (collection, id) pair.
func NewRef(collection string, id any) *Ref {
	return &Ref{Collection: collection, ID: id}
}

func (r *Ref) String() string {
	return fmt.Sprintf("ref(%s/%v)", r.Collection, r.ID)
}

// Equal compares collection and identifier.
func (r *Ref) Equal(o *Ref) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Collection == o.Collection && valueEqual(r.ID, o.ID)
}
