package builder

import (
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// container builder states
const (
	stateStart = iota
	stateFields // struct: between children, expecting a field name or end
	stateValue  // routing a child value
)

type structBuilder struct {
	field    schema.Field
	children []Builder
	validity []bool
	state    int
	active   int
	router   valueRouter
}

func newStructBuilder(f schema.Field) (*structBuilder, error) {
	children := make([]Builder, len(f.Children))
	for i, cf := range f.Children {
		child, err := newBuilder(cf)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return &structBuilder{field: f, children: children}, nil
}

func (b *structBuilder) Accept(ev event.Event) error {
	switch b.state {
	case stateStart:
		switch ev.Kind {
		case event.StartStruct:
			b.state = stateFields
			b.active = 0
			return nil
		case event.Null:
			if !b.field.Nullable {
				return notNullable(b.field)
			}
			if err := b.defaultChildren(); err != nil {
				return err
			}
			b.validity = append(b.validity, false)
			return nil
		case event.Default:
			return b.AcceptDefault()
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s at start of struct %q", ev, b.field.Name)

	case stateFields:
		switch ev.Kind {
		case event.Str:
			if b.active >= len(b.children) {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"struct %q: extra field %q", b.field.Name, ev.StrVal)
			}
			if want := b.field.Children[b.active].Name; ev.StrVal != want {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"struct %q: expected field %q, got %q",
					b.field.Name, want, ev.StrVal)
			}
			b.state = stateValue
			b.router = valueRouter{}
			return nil
		case event.EndStruct:
			if b.active != len(b.children) {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"struct %q: record ended after %d of %d fields",
					b.field.Name, b.active, len(b.children))
			}
			b.validity = append(b.validity, true)
			b.state = stateStart
			return nil
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"struct %q: expected field name or EndStruct, got %s",
			b.field.Name, ev)

	default: // stateValue
		done, err := b.router.route(b.children[b.active], ev)
		if err != nil {
			return err
		}
		if done {
			b.active++
			b.state = stateFields
		}
		return nil
	}
}

func (b *structBuilder) AcceptDefault() error {
	if err := b.defaultChildren(); err != nil {
		return err
	}
	b.validity = append(b.validity, true)
	return nil
}

func (b *structBuilder) defaultChildren() error {
	for _, child := range b.children {
		if err := child.AcceptDefault(); err != nil {
			return err
		}
	}
	return nil
}

func (b *structBuilder) Len() int { return len(b.validity) }

func (b *structBuilder) Finish() error {
	if b.state != stateStart {
		return errors.Newf(errors.ErrorTypeProtocol,
			"struct %q finished mid-record", b.field.Name)
	}
	for _, child := range b.children {
		if err := child.Finish(); err != nil {
			return err
		}
	}
	return nil
}

func (b *structBuilder) Build() (*columnar.Data, error) {
	children := make([]*columnar.Data, len(b.children))
	for i, child := range b.children {
		data, err := child.Build()
		if err != nil {
			return nil, err
		}
		children[i] = data
	}
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.validity),
		Validity: b.validity,
		Children: children,
	}
	b.validity = nil
	b.state = stateStart
	return d, nil
}

// tupleBuilder is a struct builder over positional children; values arrive
// without field names
type tupleBuilder struct {
	field    schema.Field
	children []Builder
	validity []bool
	state    int
	active   int
	router   valueRouter
}

func newTupleBuilder(f schema.Field) (*tupleBuilder, error) {
	children := make([]Builder, len(f.Children))
	for i, cf := range f.Children {
		child, err := newBuilder(cf)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return &tupleBuilder{field: f, children: children}, nil
}

func (b *tupleBuilder) Accept(ev event.Event) error {
	switch b.state {
	case stateStart:
		switch ev.Kind {
		case event.StartTuple:
			b.state = stateFields
			b.active = 0
			return nil
		case event.Null:
			if !b.field.Nullable {
				return notNullable(b.field)
			}
			for _, child := range b.children {
				if err := child.AcceptDefault(); err != nil {
					return err
				}
			}
			b.validity = append(b.validity, false)
			return nil
		case event.Default:
			return b.AcceptDefault()
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s at start of tuple %q", ev, b.field.Name)

	case stateFields:
		if ev.Kind == event.EndTuple {
			if b.active != len(b.children) {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"tuple %q: ended after %d of %d items",
					b.field.Name, b.active, len(b.children))
			}
			b.validity = append(b.validity, true)
			b.state = stateStart
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in tuple %q", ev, b.field.Name)
		}
		if b.active >= len(b.children) {
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"tuple %q: more than %d items", b.field.Name, len(b.children))
		}
		b.state = stateValue
		b.router = valueRouter{}
		return b.Accept(ev)

	default: // stateValue
		done, err := b.router.route(b.children[b.active], ev)
		if err != nil {
			return err
		}
		if done {
			b.active++
			b.state = stateFields
		}
		return nil
	}
}

func (b *tupleBuilder) AcceptDefault() error {
	for _, child := range b.children {
		if err := child.AcceptDefault(); err != nil {
			return err
		}
	}
	b.validity = append(b.validity, true)
	return nil
}

func (b *tupleBuilder) Len() int { return len(b.validity) }

func (b *tupleBuilder) Finish() error {
	if b.state != stateStart {
		return errors.Newf(errors.ErrorTypeProtocol,
			"tuple %q finished mid-value", b.field.Name)
	}
	for _, child := range b.children {
		if err := child.Finish(); err != nil {
			return err
		}
	}
	return nil
}

func (b *tupleBuilder) Build() (*columnar.Data, error) {
	children := make([]*columnar.Data, len(b.children))
	for i, child := range b.children {
		data, err := child.Build()
		if err != nil {
			return nil, err
		}
		children[i] = data
	}
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.validity),
		Validity: b.validity,
		Children: children,
	}
	b.validity = nil
	b.state = stateStart
	return d, nil
}

type listBuilder struct {
	field    schema.Field
	child    Builder
	offsets  []int32
	validity []bool
	state    int
	router   valueRouter
}

func newListBuilder(f schema.Field) (*listBuilder, error) {
	child, err := newBuilder(f.Children[0])
	if err != nil {
		return nil, err
	}
	return &listBuilder{field: f, child: child, offsets: []int32{0}}, nil
}

func (b *listBuilder) Accept(ev event.Event) error {
	switch b.state {
	case stateStart:
		switch ev.Kind {
		case event.StartList:
			b.state = stateFields
			return nil
		case event.Null:
			if !b.field.Nullable {
				return notNullable(b.field)
			}
			b.offsets = append(b.offsets, int32(b.child.Len()))
			b.validity = append(b.validity, false)
			return nil
		case event.Default:
			return b.AcceptDefault()
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s at start of list %q", ev, b.field.Name)

	case stateFields:
		if ev.Kind == event.EndList {
			b.offsets = append(b.offsets, int32(b.child.Len()))
			b.validity = append(b.validity, true)
			b.state = stateStart
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in list %q", ev, b.field.Name)
		}
		b.state = stateValue
		b.router = valueRouter{}
		return b.Accept(ev)

	default: // stateValue
		done, err := b.router.route(b.child, ev)
		if err != nil {
			return err
		}
		if done {
			b.state = stateFields
		}
		return nil
	}
}

func (b *listBuilder) AcceptDefault() error {
	// an empty list
	b.offsets = append(b.offsets, int32(b.child.Len()))
	b.validity = append(b.validity, true)
	return nil
}

func (b *listBuilder) Len() int { return len(b.validity) }

func (b *listBuilder) Finish() error {
	if b.state != stateStart {
		return errors.Newf(errors.ErrorTypeProtocol,
			"list %q finished mid-value", b.field.Name)
	}
	return b.child.Finish()
}

func (b *listBuilder) Build() (*columnar.Data, error) {
	child, err := b.child.Build()
	if err != nil {
		return nil, err
	}
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.validity),
		Validity: b.validity,
		Offsets:  b.offsets,
		Children: []*columnar.Data{child},
	}
	b.validity = nil
	b.offsets = []int32{0}
	b.state = stateStart
	return d, nil
}

// mapBuilder behaves like a list of key/value pairs: each entry consumes
// exactly one key value and one value value routed to the two children
type mapBuilder struct {
	field    schema.Field
	key      Builder
	value    Builder
	offsets  []int32
	validity []bool
	state    int
	keyNext  bool
	router   valueRouter
}

func newMapBuilder(f schema.Field) (*mapBuilder, error) {
	key, err := newBuilder(f.Children[0])
	if err != nil {
		return nil, err
	}
	value, err := newBuilder(f.Children[1])
	if err != nil {
		return nil, err
	}
	return &mapBuilder{field: f, key: key, value: value, offsets: []int32{0}}, nil
}

func (b *mapBuilder) Accept(ev event.Event) error {
	switch b.state {
	case stateStart:
		switch ev.Kind {
		case event.StartMap:
			b.state = stateFields
			b.keyNext = true
			return nil
		case event.Null:
			if !b.field.Nullable {
				return notNullable(b.field)
			}
			b.offsets = append(b.offsets, int32(b.key.Len()))
			b.validity = append(b.validity, false)
			return nil
		case event.Default:
			return b.AcceptDefault()
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s at start of map %q", ev, b.field.Name)

	case stateFields:
		if ev.Kind == event.EndMap {
			if !b.keyNext {
				return errors.Newf(errors.ErrorTypeProtocol,
					"map %q: entry has key without value", b.field.Name)
			}
			b.offsets = append(b.offsets, int32(b.key.Len()))
			b.validity = append(b.validity, true)
			b.state = stateStart
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in map %q", ev, b.field.Name)
		}
		b.state = stateValue
		b.router = valueRouter{}
		return b.Accept(ev)

	default: // stateValue
		target := b.value
		if b.keyNext {
			target = b.key
		}
		done, err := b.router.route(target, ev)
		if err != nil {
			return err
		}
		if done {
			b.keyNext = !b.keyNext
			b.state = stateFields
		}
		return nil
	}
}

func (b *mapBuilder) AcceptDefault() error {
	// an empty map
	b.offsets = append(b.offsets, int32(b.key.Len()))
	b.validity = append(b.validity, true)
	return nil
}

func (b *mapBuilder) Len() int { return len(b.validity) }

func (b *mapBuilder) Finish() error {
	if b.state != stateStart {
		return errors.Newf(errors.ErrorTypeProtocol,
			"map %q finished mid-value", b.field.Name)
	}
	if err := b.key.Finish(); err != nil {
		return err
	}
	return b.value.Finish()
}

func (b *mapBuilder) Build() (*columnar.Data, error) {
	key, err := b.key.Build()
	if err != nil {
		return nil, err
	}
	value, err := b.value.Build()
	if err != nil {
		return nil, err
	}
	d := &columnar.Data{
		Field:    b.field,
		Len:      len(b.validity),
		Validity: b.validity,
		Offsets:  b.offsets,
		Children: []*columnar.Data{key, value},
	}
	b.validity = nil
	b.offsets = []int32{0}
	b.state = stateStart
	return d, nil
}

// unionBuilder builds a dense union: a per-row variant id plus an offset
// into the selected variant's child column
type unionBuilder struct {
	field        schema.Field
	children     []Builder
	typeIDs      []int8
	childOffsets []int32
	state        int
	active       int
	router       valueRouter
}

func newUnionBuilder(f schema.Field) (*unionBuilder, error) {
	children := make([]Builder, len(f.Children))
	for i, cf := range f.Children {
		child, err := newBuilder(cf)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return &unionBuilder{field: f, children: children}, nil
}

func (b *unionBuilder) Accept(ev event.Event) error {
	switch b.state {
	case stateStart:
		switch ev.Kind {
		case event.Variant:
			if ev.Index < 0 || ev.Index >= len(b.children) {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"union %q has no variant %d", b.field.Name, ev.Index)
			}
			if want := b.field.Children[ev.Index].Name; ev.StrVal != "" && ev.StrVal != want {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"union %q variant %d is %q, got %q",
					b.field.Name, ev.Index, want, ev.StrVal)
			}
			b.childOffsets = append(b.childOffsets, int32(b.children[ev.Index].Len()))
			b.typeIDs = append(b.typeIDs, int8(ev.Index))
			b.active = ev.Index
			b.state = stateValue
			b.router = valueRouter{}
			return nil
		case event.Null:
			return errors.Newf(errors.ErrorTypeUnsupportedType,
				"union %q cannot store nulls", b.field.Name)
		case event.Default:
			return b.AcceptDefault()
		}
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s at start of union %q", ev, b.field.Name)

	default: // stateValue
		done, err := b.router.route(b.children[b.active], ev)
		if err != nil {
			return err
		}
		if done {
			b.state = stateStart
		}
		return nil
	}
}

func (b *unionBuilder) AcceptDefault() error {
	// default selects the first variant's default
	b.childOffsets = append(b.childOffsets, int32(b.children[0].Len()))
	b.typeIDs = append(b.typeIDs, 0)
	return b.children[0].AcceptDefault()
}

func (b *unionBuilder) Len() int { return len(b.typeIDs) }

func (b *unionBuilder) Finish() error {
	if b.state != stateStart {
		return errors.Newf(errors.ErrorTypeProtocol,
			"union %q finished mid-value", b.field.Name)
	}
	for _, child := range b.children {
		if err := child.Finish(); err != nil {
			return err
		}
	}
	return nil
}

func (b *unionBuilder) Build() (*columnar.Data, error) {
	children := make([]*columnar.Data, len(b.children))
	for i, child := range b.children {
		data, err := child.Build()
		if err != nil {
			return nil, err
		}
		children[i] = data
	}
	d := &columnar.Data{
		Field:        b.field,
		Len:          len(b.typeIDs),
		TypeIDs:      b.typeIDs,
		ChildOffsets: b.childOffsets,
		Children:     children,
	}
	b.typeIDs = nil
	b.childOffsets = nil
	b.state = stateStart
	return d, nil
}
