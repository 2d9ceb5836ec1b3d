package builder

import (
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// dictionaryBuilder interns string values into a deduplicated value table
// in first-seen order and appends the assigned index to the key buffer
type dictionaryBuilder struct {
	field    schema.Field
	interned map[string]int32
	values   []string
	keys     []int32
	validity []bool
}

func newDictionaryBuilder(f schema.Field) *dictionaryBuilder {
	return &dictionaryBuilder{
		field:    f,
		interned: make(map[string]int32),
	}
}

func (b *dictionaryBuilder) intern(s string) int32 {
	if code, ok := b.interned[s]; ok {
		return code
	}
	code := int32(len(b.values))
	b.interned[s] = code
	b.values = append(b.values, s)
	return code
}

func (b *dictionaryBuilder) Accept(ev event.Event) error {
	switch ev.Kind {
	case event.Str:
		b.keys = append(b.keys, b.intern(ev.StrVal))
		b.validity = append(b.validity, true)
		return nil
	case event.Bytes:
		b.keys = append(b.keys, b.intern(string(ev.BytesVal)))
		b.validity = append(b.validity, true)
		return nil
	case event.Null:
		if !b.field.Nullable {
			return notNullable(b.field)
		}
		b.keys = append(b.keys, 0)
		b.validity = append(b.validity, false)
		return nil
	case event.Default:
		return b.AcceptDefault()
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in dictionary column %q", ev, b.field.Name)
}

func (b *dictionaryBuilder) AcceptDefault() error {
	b.keys = append(b.keys, b.intern(""))
	b.validity = append(b.validity, true)
	return nil
}

func (b *dictionaryBuilder) Len() int      { return len(b.keys) }
func (b *dictionaryBuilder) Finish() error { return nil }

func (b *dictionaryBuilder) Build() (*columnar.Data, error) {
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.keys),
		Keys:     b.keys,
		Validity: b.validity,
		Dict: &columnar.Data{
			Field: b.field.Children[1],
			Len:   len(b.values),
			Strs:  b.values,
		},
	}
	b.keys = nil
	b.validity = nil
	b.values = nil
	b.interned = make(map[string]int32)
	return d, nil
}
