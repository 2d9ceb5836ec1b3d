package builder

import (
	"github.com/arrowcast/arrowcast/pkg/coerce"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
	stringpool "github.com/arrowcast/arrowcast/pkg/strings"
)

// nullBuilder backs a null-typed column; it only counts elements
type nullBuilder struct {
	field schema.Field
	n     int
}

func (b *nullBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Null, event.Default:
		b.n++
		return nil
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in null column %q", ev, b.field.Name)
}

func (b *nullBuilder) AcceptDefault() error { b.n++; return nil }
func (b *nullBuilder) Len() int             { return b.n }
func (b *nullBuilder) Finish() error        { return nil }

func (b *nullBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{Field: b.field, Len: b.n}
	b.n = 0
	return d, nil
}

type boolBuilder struct {
	field    schema.Field
	values   []bool
	validity []bool
}

func (b *boolBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Bool:
		b.values = append(b.values, ev.BoolVal)
		b.validity = append(b.validity, true)
		return nil
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, false)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in bool column %q", ev, b.field.Name)
}

func (b *boolBuilder) AcceptDefault() error {
	b.values = append(b.values, false)
	b.validity = append(b.validity, true)
	return nil
}

func (b *boolBuilder) Len() int      { return len(b.values) }
func (b *boolBuilder) Finish() error { return nil }

func (b *boolBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Bools:    b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}

type intBuilder struct {
	field    schema.Field
	values   []int64
	validity []bool
}

func (b *intBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, 0)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	v, err := coerce.ToInt64(ev, b.field.Type)
	if err != nil {
		return err
	}
	b.values = append(b.values, v)
	b.validity = append(b.validity, true)
	return nil
}

func (b *intBuilder) AcceptDefault() error {
	b.values = append(b.values, 0)
	b.validity = append(b.validity, true)
	return nil
}

func (b *intBuilder) Len() int      { return len(b.values) }
func (b *intBuilder) Finish() error { return nil }

func (b *intBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Ints:     b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}

type uintBuilder struct {
	field    schema.Field
	values   []uint64
	validity []bool
}

func (b *uintBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, 0)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	v, err := coerce.ToUint64(ev, b.field.Type)
	if err != nil {
		return err
	}
	b.values = append(b.values, v)
	b.validity = append(b.validity, true)
	return nil
}

func (b *uintBuilder) AcceptDefault() error {
	b.values = append(b.values, 0)
	b.validity = append(b.validity, true)
	return nil
}

func (b *uintBuilder) Len() int      { return len(b.values) }
func (b *uintBuilder) Finish() error { return nil }

func (b *uintBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Uints:    b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}

type floatBuilder struct {
	field    schema.Field
	values   []float64
	validity []bool
}

func (b *floatBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, 0)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	v, err := coerce.ToFloat64(ev, b.field.Type)
	if err != nil {
		return err
	}
	b.values = append(b.values, v)
	b.validity = append(b.validity, true)
	return nil
}

func (b *floatBuilder) AcceptDefault() error {
	b.values = append(b.values, 0)
	b.validity = append(b.validity, true)
	return nil
}

func (b *floatBuilder) Len() int      { return len(b.values) }
func (b *floatBuilder) Finish() error { return nil }

func (b *floatBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Floats:   b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}

type stringBuilder struct {
	field    schema.Field
	values   []string
	validity []bool
}

func (b *stringBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Str:
		b.values = append(b.values, ev.StrVal)
		b.validity = append(b.validity, true)
		return nil
	case event.Bytes:
		// copy: the event's byte slice may be reused by the producer
		b.values = append(b.values, stringpool.Clone(stringpool.BytesToString(ev.BytesVal)))
		b.validity = append(b.validity, true)
		return nil
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, "")
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in string column %q", ev, b.field.Name)
}

func (b *stringBuilder) AcceptDefault() error {
	b.values = append(b.values, "")
	b.validity = append(b.validity, true)
	return nil
}

func (b *stringBuilder) Len() int      { return len(b.values) }
func (b *stringBuilder) Finish() error { return nil }

func (b *stringBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Strs:     b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}

// date64Builder stores millisecond timestamps, optionally transcoding
// RFC 3339 strings per the field's strategy hint
type date64Builder struct {
	field    schema.Field
	strategy string
	values   []int64
	validity []bool
}

func newDate64Builder(f schema.Field) *date64Builder {
	return &date64Builder{field: f, strategy: f.Strategy()}
}

func (b *date64Builder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.values = append(b.values, 0)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	case event.Str:
		var ms int64
		var err error
		switch b.strategy {
		case schema.StrategyNaiveStrAsDate64:
			ms, err = coerce.ParseNaiveDatetime(ev.StrVal)
		case schema.StrategyUTCStrAsDate64:
			ms, err = coerce.ParseUTCDatetime(ev.StrVal)
		default:
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"date64 column %q has no string strategy", b.field.Name)
		}
		if err != nil {
			return err
		}
		b.values = append(b.values, ms)
		b.validity = append(b.validity, true)
		return nil
	}
	ms, err := coerce.ToInt64(ev, schema.TypeInt64)
	if err != nil {
		return err
	}
	b.values = append(b.values, ms)
	b.validity = append(b.validity, true)
	return nil
}

func (b *date64Builder) AcceptDefault() error {
	b.values = append(b.values, 0)
	b.validity = append(b.validity, true)
	return nil
}

func (b *date64Builder) Len() int      { return len(b.values) }
func (b *date64Builder) Finish() error { return nil }

func (b *date64Builder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.values),
		Ints:     b.values,
		Validity: b.validity,
	}
	b.values = nil
	b.validity = nil
	return d, nil
}
