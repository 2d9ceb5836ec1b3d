// Package arrowcast converts between row-oriented Go values and Arrow
// columnar arrays.
//
// The conversion core is a typed event stream: serialization walks rows
// and emits scalar and structural events, per-field consumers fold the
// events into columnar buffers, and a replay source turns buffers back
// into events for deserialization. Schemas can be declared directly or
// traced from sample values, with widening rules that merge the types
// observed across rows.
//
// The high level entry points cover the common cases:
//
//	fields, err := arrowcast.TraceSchema(rows, schema.TraceOptions{})
//	arrs, err := arrowcast.ToArrays(rows, fields)
//	err = arrowcast.FromArrays(fields, arrs, &rows)
//
// Record batches and incremental building are available through
// ToRecord, FromRecord and the Builder type. Schemas containing union
// fields are handled by the builder tree; everything else runs through a
// compiled program that avoids per-field dispatch.
package arrowcast
