// Package extract replays finalized columns back into an event stream.
//
// The source emits the exact stream a builder would have consumed to
// produce the columns: an outer list of records, each record a struct of
// the top-level fields. Dictionary keys are dereferenced to their values
// and date64 columns with a datetime strategy are formatted back into
// strings, so a round trip through build and extract is lossless at the
// event level.
package extract

import (
	"github.com/arrowcast/arrowcast/pkg/coerce"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// Source replays a batch of columns as events, one record per row.
// It implements event.Source.
type Source struct {
	cols []*columnar.Data
	col  *columnar.Data
	rows int

	buf     []event.Event
	pos     int
	row     int
	started bool
	closed  bool
}

// NewSource prepares a replay over cols. The row count is the minimum
// length over all columns, so a batch with uneven columns replays only
// the rows every column covers.
func NewSource(cols []*columnar.Data) (*Source, error) {
	rows := 0
	for i, d := range cols {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if i == 0 || d.Len < rows {
			rows = d.Len
		}
	}
	return &Source{cols: cols, rows: rows}, nil
}

// NewColumnSource replays a single column's values as the elements of one
// outer list, without the record struct framing
func NewColumnSource(col *columnar.Data) (*Source, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	return &Source{col: col, rows: col.Len}, nil
}

// Next returns the next event; ok is false once the stream is exhausted
func (s *Source) Next() (event.Event, bool, error) {
	if !s.started {
		s.started = true
		return event.StartListEvent(), true, nil
	}
	for s.pos >= len(s.buf) {
		if s.row >= s.rows {
			if s.closed {
				return event.Event{}, false, nil
			}
			s.closed = true
			return event.EndListEvent(), true, nil
		}
		var buf []event.Event
		var err error
		if s.col != nil {
			buf, err = valueEvents(s.buf[:0], s.col, s.row)
		} else {
			buf, err = s.recordEvents(s.buf[:0], s.row)
		}
		if err != nil {
			return event.Event{}, false, err
		}
		s.buf, s.pos = buf, 0
		s.row++
	}
	ev := s.buf[s.pos]
	s.pos++
	return ev, true, nil
}

func (s *Source) recordEvents(out []event.Event, row int) ([]event.Event, error) {
	out = append(out, event.StartStructEvent())
	for _, d := range s.cols {
		out = append(out, event.StrEvent(d.Field.Name))
		var err error
		out, err = valueEvents(out, d, row)
		if err != nil {
			return nil, err
		}
	}
	return append(out, event.EndStructEvent()), nil
}

// valueEvents appends the events for element i of column d
func valueEvents(out []event.Event, d *columnar.Data, i int) ([]event.Event, error) {
	if !d.IsValid(i) {
		return append(out, event.NullEvent()), nil
	}
	switch d.Field.Type {
	case schema.TypeNull:
		return append(out, event.NullEvent()), nil
	case schema.TypeBool:
		return append(out, event.BoolEvent(d.Bools[i])), nil
	case schema.TypeInt8:
		return append(out, event.I8Event(int8(d.Ints[i]))), nil
	case schema.TypeInt16:
		return append(out, event.I16Event(int16(d.Ints[i]))), nil
	case schema.TypeInt32:
		return append(out, event.I32Event(int32(d.Ints[i]))), nil
	case schema.TypeInt64:
		return append(out, event.I64Event(d.Ints[i])), nil
	case schema.TypeUint8:
		return append(out, event.U8Event(uint8(d.Uints[i]))), nil
	case schema.TypeUint16:
		return append(out, event.U16Event(uint16(d.Uints[i]))), nil
	case schema.TypeUint32:
		return append(out, event.U32Event(uint32(d.Uints[i]))), nil
	case schema.TypeUint64:
		return append(out, event.U64Event(d.Uints[i])), nil
	case schema.TypeFloat16, schema.TypeFloat32:
		return append(out, event.F32Event(float32(d.Floats[i]))), nil
	case schema.TypeFloat64:
		return append(out, event.F64Event(d.Floats[i])), nil
	case schema.TypeUtf8, schema.TypeLargeUtf8:
		return append(out, event.StrEvent(d.Strs[i])), nil
	case schema.TypeDate64:
		return date64Events(out, d, i)
	case schema.TypeDictionary:
		return append(out, event.StrEvent(d.Dict.Strs[d.Keys[i]])), nil
	case schema.TypeStruct:
		return structEvents(out, d, i)
	case schema.TypeList, schema.TypeLargeList:
		return rangeEvents(out, d, i, event.StartListEvent(), event.EndListEvent())
	case schema.TypeMap:
		return mapEvents(out, d, i)
	case schema.TypeUnion:
		return unionEvents(out, d, i)
	}
	return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
		"column %q: cannot replay data type %s", d.Field.Name, d.Field.Type)
}

func date64Events(out []event.Event, d *columnar.Data, i int) ([]event.Event, error) {
	switch d.Field.Strategy() {
	case schema.StrategyNaiveStrAsDate64:
		return append(out, event.StrEvent(coerce.FormatNaiveDatetime(d.Ints[i]))), nil
	case schema.StrategyUTCStrAsDate64:
		return append(out, event.StrEvent(coerce.FormatUTCDatetime(d.Ints[i]))), nil
	}
	return append(out, event.I64Event(d.Ints[i])), nil
}

func structEvents(out []event.Event, d *columnar.Data, i int) ([]event.Event, error) {
	if d.Field.IsTupleStruct() {
		out = append(out, event.StartTupleEvent())
		for _, child := range d.Children {
			var err error
			out, err = valueEvents(out, child, i)
			if err != nil {
				return nil, err
			}
		}
		return append(out, event.EndTupleEvent()), nil
	}
	out = append(out, event.StartStructEvent())
	for _, child := range d.Children {
		out = append(out, event.StrEvent(child.Field.Name))
		var err error
		out, err = valueEvents(out, child, i)
		if err != nil {
			return nil, err
		}
	}
	return append(out, event.EndStructEvent()), nil
}

func rangeEvents(out []event.Event, d *columnar.Data, i int, start, end event.Event) ([]event.Event, error) {
	out = append(out, start)
	child := d.Children[0]
	for j := d.Offsets[i]; j < d.Offsets[i+1]; j++ {
		var err error
		out, err = valueEvents(out, child, int(j))
		if err != nil {
			return nil, err
		}
	}
	return append(out, end), nil
}

func mapEvents(out []event.Event, d *columnar.Data, i int) ([]event.Event, error) {
	out = append(out, event.StartMapEvent())
	key, value := d.Children[0], d.Children[1]
	for j := d.Offsets[i]; j < d.Offsets[i+1]; j++ {
		var err error
		out, err = valueEvents(out, key, int(j))
		if err != nil {
			return nil, err
		}
		out, err = valueEvents(out, value, int(j))
		if err != nil {
			return nil, err
		}
	}
	return append(out, event.EndMapEvent()), nil
}

func unionEvents(out []event.Event, d *columnar.Data, i int) ([]event.Event, error) {
	id := d.TypeIDs[i]
	if id < 0 || int(id) >= len(d.Children) {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"column %q: variant id %d out of range", d.Field.Name, id)
	}
	variant := d.Children[id]
	out = append(out, event.VariantEvent(variant.Field.Name, int(id)))
	return valueEvents(out, variant, int(d.ChildOffsets[i]))
}
