package arrowcast

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowcast/arrowcast/pkg/arrowbridge"
	"github.com/arrowcast/arrowcast/pkg/builder"
	"github.com/arrowcast/arrowcast/pkg/bytecode"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/extract"
	"github.com/arrowcast/arrowcast/pkg/schema"
	"github.com/arrowcast/arrowcast/pkg/values"
)

// TraceSchema infers one field per record column from sample rows
func TraceSchema(rows any, opts schema.TraceOptions) ([]schema.Field, error) {
	tracer := schema.NewTracer(opts)
	if err := values.SerializeRows(rows, event.NewStripOuterSequence(tracer)); err != nil {
		return nil, err
	}
	root, err := tracer.ToField("")
	if err != nil {
		return nil, err
	}
	if root.Type != schema.TypeStruct {
		return nil, errors.Newf(errors.ErrorTypeSchemaInference,
			"rows must be records, traced a %s instead", root.Type)
	}
	return root.Children, nil
}

// TraceField infers the field for a single value
func TraceField(name string, v any, opts schema.TraceOptions) (schema.Field, error) {
	tracer := schema.NewTracer(opts)
	if err := values.Serialize(v, tracer); err != nil {
		return schema.Field{}, err
	}
	return tracer.ToField(name)
}

// recordSink abstracts the two conversion backends: the compiled program
// interpreter and the builder tree
type recordSink interface {
	event.Sink
	Len() int
	Finish() error
	Build() ([]*columnar.Data, error)
}

// Builder accumulates rows incrementally and finalizes them into arrays
// or a record batch. Building resets the Builder for the next batch.
type Builder struct {
	fields []schema.Field
	sink   recordSink
	mem    memory.Allocator
}

// NewBuilder compiles the schema into a program, falling back to the
// builder tree for schemas the compiler does not support (unions)
func NewBuilder(fields []schema.Field) (*Builder, error) {
	prog, err := bytecode.Compile(fields)
	if err == nil {
		return &Builder{fields: fields, sink: bytecode.NewInterpreter(prog)}, nil
	}
	if !errors.IsType(err, errors.ErrorTypeUnsupportedType) {
		return nil, err
	}
	rb, err := builder.NewRecord(fields)
	if err != nil {
		return nil, err
	}
	return &Builder{fields: fields, sink: rb}, nil
}

// WithAllocator sets the arrow allocator used when finalizing
func (b *Builder) WithAllocator(mem memory.Allocator) *Builder {
	b.mem = mem
	return b
}

// Push appends one record
func (b *Builder) Push(row any) error {
	return values.Serialize(row, b.sink)
}

// Extend appends every record of a slice or array of rows
func (b *Builder) Extend(rows any) error {
	return values.SerializeRows(rows, event.NewStripOuterSequence(b.sink))
}

// Len reports the number of records accumulated so far
func (b *Builder) Len() int {
	return b.sink.Len()
}

// BuildColumns finalizes the accumulated rows into logical columns
func (b *Builder) BuildColumns() ([]*columnar.Data, error) {
	return b.sink.Build()
}

// BuildArrays finalizes the accumulated rows into one array per field
func (b *Builder) BuildArrays() ([]arrow.Array, error) {
	cols, err := b.sink.Build()
	if err != nil {
		return nil, err
	}
	arrs := make([]arrow.Array, len(cols))
	for i, d := range cols {
		arr, err := arrowbridge.ToArrow(d, b.mem)
		if err != nil {
			for _, a := range arrs[:i] {
				a.Release()
			}
			return nil, err
		}
		arrs[i] = arr
	}
	return arrs, nil
}

// BuildRecord finalizes the accumulated rows into an arrow record
func (b *Builder) BuildRecord() (arrow.Record, error) {
	cols, err := b.sink.Build()
	if err != nil {
		return nil, err
	}
	return arrowbridge.NewRecord(cols, b.mem)
}

// ToArrays converts rows to one array per field
func ToArrays(rows any, fields []schema.Field) ([]arrow.Array, error) {
	b, err := NewBuilder(fields)
	if err != nil {
		return nil, err
	}
	if err := b.Extend(rows); err != nil {
		return nil, err
	}
	return b.BuildArrays()
}

// ToRecord converts rows to an arrow record
func ToRecord(rows any, fields []schema.Field) (arrow.Record, error) {
	b, err := NewBuilder(fields)
	if err != nil {
		return nil, err
	}
	if err := b.Extend(rows); err != nil {
		return nil, err
	}
	return b.BuildRecord()
}

// FromArrays reads arrays back into rows; out must be a pointer to a
// slice of records. Arrays of unequal length replay only the rows every
// array covers.
func FromArrays(fields []schema.Field, arrs []arrow.Array, out any) error {
	if len(fields) != len(arrs) {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"%d fields but %d arrays", len(fields), len(arrs))
	}
	cols := make([]*columnar.Data, len(arrs))
	for i, arr := range arrs {
		d, err := arrowbridge.FromArrow(arr, fields[i])
		if err != nil {
			return err
		}
		cols[i] = d
	}
	src, err := extract.NewSource(cols)
	if err != nil {
		return err
	}
	return values.Deserialize(src, out)
}

// FromRecord reads an arrow record back into rows, recovering the
// logical fields from the record's schema
func FromRecord(rec arrow.Record, out any) error {
	_, cols, err := arrowbridge.FromRecord(rec)
	if err != nil {
		return err
	}
	src, err := extract.NewSource(cols)
	if err != nil {
		return err
	}
	return values.Deserialize(src, out)
}

// ToArray converts a slice of values to a single array of field f
func ToArray(items any, f schema.Field) (arrow.Array, error) {
	bld, err := builder.New(f)
	if err != nil {
		return nil, err
	}
	if err := values.SerializeRows(items, event.NewStripOuterSequence(bld)); err != nil {
		return nil, err
	}
	if err := bld.Finish(); err != nil {
		return nil, err
	}
	d, err := bld.Build()
	if err != nil {
		return nil, err
	}
	return arrowbridge.ToArrow(d, nil)
}

// FromArray reads a single array back into a slice of values
func FromArray(arr arrow.Array, f schema.Field, out any) error {
	d, err := arrowbridge.FromArrow(arr, f)
	if err != nil {
		return err
	}
	src, err := extract.NewColumnSource(d)
	if err != nil {
		return err
	}
	return values.Deserialize(src, out)
}
