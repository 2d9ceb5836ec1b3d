// Package columnar defines the logical buffer representation produced by
// the builders and consumed by the array bridge and the reverse
// interpreter.
//
// Data mirrors the observable buffer semantics of the Arrow memory model
// (validity, values, offsets, dictionary keys and values, children)
// without depending on any concrete array library's in-memory layout.
// Integer values are held widened to 64 bits; appends are range checked
// against the declared field width, so truncating to the physical width at
// the array boundary is lossless.
package columnar

import (
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// Data is one finalized column (or column subtree) of a batch
type Data struct {
	Field schema.Field
	Len   int

	// Validity holds one flag per logical element, true = non-null.
	// A nil slice means all elements are valid.
	Validity []bool

	// Exactly one value slice is populated for primitive columns
	Bools  []bool
	Ints   []int64   // signed integers and date64 milliseconds
	Uints  []uint64
	Floats []float64
	Strs   []string

	// Offsets delimits child regions for list and map columns,
	// Len+1 monotonically non-decreasing entries
	Offsets []int32

	// Dense union buffers: per-row variant id and offset into that
	// variant's child column
	TypeIDs      []int8
	ChildOffsets []int32

	// Dictionary encoding: per-row key into Dict's values
	Keys []int32
	Dict *Data

	// Children: one per struct/tuple field, one list element column,
	// two map columns (key, value), or one column per union variant
	Children []*Data
}

// IsValid reports whether element i is non-null
func (d *Data) IsValid(i int) bool {
	if d.Validity == nil {
		return true
	}
	return d.Validity[i]
}

// NullCount counts null elements
func (d *Data) NullCount() int {
	n := 0
	for _, v := range d.Validity {
		if !v {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of d and its descendants
func (d *Data) Validate() error {
	if d.Validity != nil && len(d.Validity) != d.Len {
		return errors.Newf(errors.ErrorTypeInternal,
			"column %q: validity length %d does not match %d elements",
			d.Field.Name, len(d.Validity), d.Len)
	}
	if d.Offsets != nil {
		if len(d.Offsets) != d.Len+1 {
			return errors.Newf(errors.ErrorTypeInternal,
				"column %q: offset buffer must have %d entries, has %d",
				d.Field.Name, d.Len+1, len(d.Offsets))
		}
		for i := 1; i < len(d.Offsets); i++ {
			if d.Offsets[i] < d.Offsets[i-1] {
				return errors.Newf(errors.ErrorTypeInternal,
					"column %q: offsets decrease at entry %d", d.Field.Name, i)
			}
		}
	}
	if d.Dict != nil {
		if err := d.Dict.Validate(); err != nil {
			return err
		}
	}
	for _, child := range d.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}
