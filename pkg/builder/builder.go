// Package builder implements the per-field state machines that consume an
// event stream and incrementally produce columnar buffers.
//
// One builder exists per schema field, composed recursively for container
// types. Builders are exclusively owned by their parent (or by the
// top-level record builder), accept events strictly in the traversal
// grammar and fail with protocol errors on malformed nesting. Build
// finalizes the accumulated buffers into columnar data and resets the
// builder for the next batch.
package builder

import (
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// Builder consumes events for one field and produces its columnar buffers
type Builder interface {
	event.Sink

	// AcceptDefault appends the type's zero value while counting it as
	// present; used by container builders to keep child buffers aligned
	AcceptDefault() error

	// Len returns the number of logical elements appended so far
	Len() int

	// Finish verifies the builder is between values (state machine at
	// start) so the batch can be finalized
	Finish() error

	// Build finalizes the buffers into columnar data and resets the
	// builder for a new batch
	Build() (*columnar.Data, error)
}

// New creates the builder tree for a field
func New(f schema.Field) (Builder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return newBuilder(f)
}

func newBuilder(f schema.Field) (Builder, error) {
	switch f.Type {
	case schema.TypeNull:
		return &nullBuilder{field: f}, nil
	case schema.TypeBool:
		return &boolBuilder{field: f}, nil
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		return &intBuilder{field: f}, nil
	case schema.TypeUint8, schema.TypeUint16, schema.TypeUint32, schema.TypeUint64:
		return &uintBuilder{field: f}, nil
	case schema.TypeFloat16, schema.TypeFloat32, schema.TypeFloat64:
		return &floatBuilder{field: f}, nil
	case schema.TypeUtf8, schema.TypeLargeUtf8:
		return &stringBuilder{field: f}, nil
	case schema.TypeDate64:
		return newDate64Builder(f), nil
	case schema.TypeStruct:
		if f.IsTupleStruct() {
			return newTupleBuilder(f)
		}
		return newStructBuilder(f)
	case schema.TypeList, schema.TypeLargeList:
		return newListBuilder(f)
	case schema.TypeMap:
		return newMapBuilder(f)
	case schema.TypeUnion:
		return newUnionBuilder(f)
	case schema.TypeDictionary:
		return newDictionaryBuilder(f), nil
	}
	return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
		"no builder for data type %s", f.Type)
}

// valueRouter forwards events to a child builder until one complete value
// (a scalar or a balanced container) has been consumed
type valueRouter struct {
	depth int
}

// route forwards ev to b, returning done=true once the value is complete
func (r *valueRouter) route(b Builder, ev event.Event) (done bool, err error) {
	switch {
	case ev.IsStart():
		if err := b.Accept(ev); err != nil {
			return false, err
		}
		r.depth++
		return false, nil
	case ev.IsEnd():
		if r.depth == 0 {
			return false, errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s", ev)
		}
		if err := b.Accept(ev); err != nil {
			return false, err
		}
		r.depth--
		return r.depth == 0, nil
	case ev.IsMarker():
		// variant markers annotate the value that follows
		return false, b.Accept(ev)
	default:
		if err := b.Accept(ev); err != nil {
			return false, err
		}
		return r.depth == 0, nil
	}
}

func notNullable(f schema.Field) error {
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"field %q is not nullable", f.Name)
}

// RecordBuilder consumes one record-shaped value (struct events) at a time
// and builds one column per schema field
type RecordBuilder struct {
	fields []schema.Field
	inner  *structBuilder
}

// NewRecord creates a record builder over the given columns
func NewRecord(fields []schema.Field) (*RecordBuilder, error) {
	root := schema.New("", schema.TypeStruct, false).WithChildren(fields...)
	if err := root.Validate(); err != nil {
		return nil, err
	}
	sb, err := newStructBuilder(root)
	if err != nil {
		return nil, err
	}
	return &RecordBuilder{fields: fields, inner: sb}, nil
}

// Accept implements event.Sink
func (r *RecordBuilder) Accept(ev event.Event) error {
	return r.inner.Accept(ev)
}

// Len returns the number of complete records consumed
func (r *RecordBuilder) Len() int {
	return r.inner.Len()
}

// Finish verifies no record is in progress
func (r *RecordBuilder) Finish() error {
	return r.inner.Finish()
}

// Build finalizes one column per field and resets for the next batch
func (r *RecordBuilder) Build() ([]*columnar.Data, error) {
	data, err := r.inner.Build()
	if err != nil {
		return nil, err
	}
	return data.Children, nil
}
