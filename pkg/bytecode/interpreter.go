package bytecode

import (
	"github.com/arrowcast/arrowcast/pkg/coerce"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
	stringpool "github.com/arrowcast/arrowcast/pkg/strings"
)

// slot holds the growing buffers for one schema node. Only the members
// matching the slot kind are used.
type slot struct {
	spec     slotSpec
	bools    []bool
	ints     []int64
	uints    []uint64
	floats   []float64
	strs     []string
	validity []bool
	offsets  []int32
	keys     []int32
	interned map[string]int32
	dict     []string
	nulls    int
}

func (s *slot) len() int {
	switch s.spec.kind {
	case slotNull:
		return s.nulls
	case slotBool:
		return len(s.bools)
	case slotInt, slotDate64:
		return len(s.ints)
	case slotUint:
		return len(s.uints)
	case slotFloat:
		return len(s.floats)
	case slotStr:
		return len(s.strs)
	case slotDict:
		return len(s.keys)
	case slotStruct:
		return len(s.validity)
	case slotList, slotMap:
		return len(s.offsets) - 1
	}
	return 0
}

// Interpreter executes a compiled program against an event stream,
// accumulating column buffers in the program's slots. It accepts the same
// streams a RecordBuilder does and produces identical columns.
type Interpreter struct {
	prog  *Program
	slots []*slot
	pc    int
	rows  int
}

// NewInterpreter prepares an interpreter with empty buffers
func NewInterpreter(prog *Program) *Interpreter {
	in := &Interpreter{prog: prog, slots: make([]*slot, len(prog.slots))}
	for i, spec := range prog.slots {
		s := &slot{spec: spec}
		switch spec.kind {
		case slotList, slotMap:
			s.offsets = []int32{0}
		case slotDict:
			s.interned = make(map[string]int32)
		}
		in.slots[i] = s
	}
	return in
}

// Accept consumes one event, advancing the program counter. Dispatch
// instructions examine the event and re-route without consuming it, so a
// single call may step through several instructions.
func (in *Interpreter) Accept(ev event.Event) error {
	for {
		i := &in.prog.instrs[in.pc]
		consumed, next, err := in.step(i, ev)
		if err != nil {
			return err
		}
		in.pc = next
		if consumed {
			return nil
		}
	}
}

func (in *Interpreter) step(i *instr, ev event.Event) (bool, int, error) {
	switch i.op {
	case opRecordStart:
		if ev.Kind != event.StartStruct {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"expected a record start, got %s", ev)
		}
		return true, i.next, nil

	case opRecordEnd:
		if ev.Kind != event.EndStruct {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"expected the record end, got %s", ev)
		}
		in.rows++
		return true, i.next, nil

	case opFieldName:
		if ev.Kind != event.Str {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"expected field name %q, got %s", i.name, ev)
		}
		if ev.StrVal != i.name {
			return false, 0, errors.Newf(errors.ErrorTypeTypeMismatch,
				"expected field %q, got field %q", i.name, ev.StrVal)
		}
		return true, i.next, nil

	case opPushScalar:
		switch ev.Kind {
		case event.Null:
			if err := in.apply(i.nullPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		case event.Default:
			if err := in.apply(i.defaultPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		}
		if ev.IsEnd() {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s", ev)
		}
		if err := in.pushScalar(in.slots[i.slot], ev); err != nil {
			return false, 0, err
		}
		return true, i.next, nil

	case opStructStart, opTupleStart:
		want := event.StartStruct
		if i.op == opTupleStart {
			want = event.StartTuple
		}
		switch ev.Kind {
		case want:
			return true, i.next, nil
		case event.Null:
			if err := in.apply(i.nullPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		case event.Default:
			if err := in.apply(i.defaultPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		}
		if ev.IsEnd() {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s", ev)
		}
		return false, 0, errors.Newf(errors.ErrorTypeTypeMismatch,
			"field %q: cannot store %s in a %s column",
			in.slots[i.slot].spec.field.Name, ev, in.slots[i.slot].spec.field.Type)

	case opStructEnd, opTupleEnd:
		want := event.EndStruct
		if i.op == opTupleEnd {
			want = event.EndTuple
		}
		if ev.Kind != want {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"field %q: expected %s, got %s",
				in.slots[i.slot].spec.field.Name, event.Event{Kind: want}, ev)
		}
		s := in.slots[i.slot]
		s.validity = append(s.validity, true)
		return true, i.next, nil

	case opListStart, opMapStart:
		want := event.StartList
		if i.op == opMapStart {
			want = event.StartMap
		}
		switch ev.Kind {
		case want:
			return true, i.next, nil
		case event.Null:
			if err := in.apply(i.nullPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		case event.Default:
			if err := in.apply(i.defaultPlan); err != nil {
				return false, 0, err
			}
			return true, i.skip, nil
		}
		if ev.IsEnd() {
			return false, 0, errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s", ev)
		}
		return false, 0, errors.Newf(errors.ErrorTypeTypeMismatch,
			"field %q: cannot store %s in a %s column",
			in.slots[i.slot].spec.field.Name, ev, in.slots[i.slot].spec.field.Type)

	case opListDispatch:
		if ev.Kind == event.EndList {
			in.closeOffsets(in.slots[i.slot], i)
			return true, i.next, nil
		}
		return false, i.head, nil

	case opMapDispatch:
		if ev.Kind == event.EndMap {
			in.closeOffsets(in.slots[i.slot], i)
			return true, i.next, nil
		}
		return false, i.head, nil
	}
	return false, 0, errors.Newf(errors.ErrorTypeInternal,
		"corrupt program: unknown opcode %d at pc %d", i.op, in.pc)
}

// closeOffsets seals one list or map entry: the new offset is the current
// length of the item (for maps, the key) slot
func (in *Interpreter) closeOffsets(s *slot, i *instr) {
	// the item program's first slot immediately follows the container slot
	item := in.slots[i.slot+1]
	s.offsets = append(s.offsets, int32(item.len()))
	s.validity = append(s.validity, true)
}

// apply executes a null or default padding plan over a subtree's slots
func (in *Interpreter) apply(plan []pad) error {
	for _, p := range plan {
		s := in.slots[p.slot]
		if p.null {
			if !s.spec.field.Nullable {
				return errors.Newf(errors.ErrorTypeTypeMismatch,
					"field %q is not nullable", s.spec.field.Name)
			}
			in.pushNull(s)
			continue
		}
		in.pushDefault(s)
	}
	return nil
}

func (in *Interpreter) pushNull(s *slot) {
	switch s.spec.kind {
	case slotNull:
		s.nulls++
		return
	case slotBool:
		s.bools = append(s.bools, false)
	case slotInt, slotDate64:
		s.ints = append(s.ints, 0)
	case slotUint:
		s.uints = append(s.uints, 0)
	case slotFloat:
		s.floats = append(s.floats, 0)
	case slotStr:
		s.strs = append(s.strs, "")
	case slotDict:
		s.keys = append(s.keys, 0)
	case slotList, slotMap:
		s.offsets = append(s.offsets, s.offsets[len(s.offsets)-1])
	}
	s.validity = append(s.validity, false)
}

func (in *Interpreter) pushDefault(s *slot) {
	switch s.spec.kind {
	case slotNull:
		s.nulls++
		return
	case slotBool:
		s.bools = append(s.bools, false)
	case slotInt, slotDate64:
		s.ints = append(s.ints, 0)
	case slotUint:
		s.uints = append(s.uints, 0)
	case slotFloat:
		s.floats = append(s.floats, 0)
	case slotStr:
		s.strs = append(s.strs, "")
	case slotDict:
		s.keys = append(s.keys, in.intern(s, ""))
	case slotList, slotMap:
		s.offsets = append(s.offsets, s.offsets[len(s.offsets)-1])
	}
	s.validity = append(s.validity, true)
}

func (in *Interpreter) pushScalar(s *slot, ev event.Event) error {
	f := s.spec.field
	switch s.spec.kind {
	case slotNull:
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"field %q: cannot store %s in a null column", f.Name, ev)
	case slotBool:
		if ev.Kind != event.Bool {
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"field %q: cannot store %s in a bool column", f.Name, ev)
		}
		s.bools = append(s.bools, ev.BoolVal)
	case slotInt:
		v, err := coerce.ToInt64(ev, f.Type)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "field "+f.Name)
		}
		s.ints = append(s.ints, v)
	case slotUint:
		v, err := coerce.ToUint64(ev, f.Type)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "field "+f.Name)
		}
		s.uints = append(s.uints, v)
	case slotFloat:
		v, err := coerce.ToFloat64(ev, f.Type)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "field "+f.Name)
		}
		s.floats = append(s.floats, v)
	case slotStr:
		switch ev.Kind {
		case event.Str:
			s.strs = append(s.strs, ev.StrVal)
		case event.Bytes:
			s.strs = append(s.strs, stringpool.Clone(stringpool.BytesToString(ev.BytesVal)))
		default:
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"field %q: cannot store %s in a string column", f.Name, ev)
		}
	case slotDate64:
		v, err := in.date64Value(s, ev)
		if err != nil {
			return err
		}
		s.ints = append(s.ints, v)
	case slotDict:
		switch ev.Kind {
		case event.Str:
			s.keys = append(s.keys, in.intern(s, ev.StrVal))
		case event.Bytes:
			s.keys = append(s.keys, in.intern(s, stringpool.Clone(stringpool.BytesToString(ev.BytesVal))))
		default:
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"field %q: cannot store %s in a dictionary column", f.Name, ev)
		}
	default:
		return errors.Newf(errors.ErrorTypeInternal,
			"corrupt program: scalar push into slot kind %d", s.spec.kind)
	}
	s.validity = append(s.validity, true)
	return nil
}

func (in *Interpreter) date64Value(s *slot, ev event.Event) (int64, error) {
	f := s.spec.field
	if ev.Kind == event.Str {
		switch s.spec.strategy {
		case schema.StrategyNaiveStrAsDate64:
			return coerce.ParseNaiveDatetime(ev.StrVal)
		case schema.StrategyUTCStrAsDate64:
			return coerce.ParseUTCDatetime(ev.StrVal)
		}
		return 0, errors.Newf(errors.ErrorTypeTypeMismatch,
			"field %q: a date64 column without a datetime strategy cannot store strings", f.Name)
	}
	v, err := coerce.ToInt64(ev, schema.TypeInt64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeTypeMismatch, "field "+f.Name)
	}
	return v, nil
}

func (in *Interpreter) intern(s *slot, v string) int32 {
	if key, ok := s.interned[v]; ok {
		return key
	}
	key := int32(len(s.dict))
	s.dict = append(s.dict, v)
	s.interned[v] = key
	return key
}

// Len reports the number of completed records
func (in *Interpreter) Len() int { return in.rows }

// Finish verifies that the stream stopped at a record boundary
func (in *Interpreter) Finish() error {
	if in.pc != 0 {
		return errors.New(errors.ErrorTypeProtocol,
			"event stream ended inside a record")
	}
	return nil
}

// Build assembles one column per top-level field and resets the
// interpreter for the next batch
func (in *Interpreter) Build() ([]*columnar.Data, error) {
	if err := in.Finish(); err != nil {
		return nil, err
	}
	out := make([]*columnar.Data, len(in.prog.roots))
	for i, root := range in.prog.roots {
		out[i] = in.buildNode(root)
	}
	in.reset()
	return out, nil
}

func (in *Interpreter) buildNode(n *slotNode) *columnar.Data {
	s := in.slots[n.slot]
	d := &columnar.Data{Field: s.spec.field, Len: s.len(), Validity: s.validity}
	switch s.spec.kind {
	case slotBool:
		d.Bools = s.bools
	case slotInt, slotDate64:
		d.Ints = s.ints
	case slotUint:
		d.Uints = s.uints
	case slotFloat:
		d.Floats = s.floats
	case slotStr:
		d.Strs = s.strs
	case slotDict:
		d.Keys = s.keys
		d.Dict = &columnar.Data{
			Field: s.spec.field.Children[1],
			Len:   len(s.dict),
			Strs:  s.dict,
		}
	case slotStruct:
		for _, child := range n.children {
			d.Children = append(d.Children, in.buildNode(child))
		}
	case slotList, slotMap:
		d.Offsets = s.offsets
		for _, child := range n.children {
			d.Children = append(d.Children, in.buildNode(child))
		}
	}
	return d
}

func (in *Interpreter) reset() {
	in.pc = 0
	in.rows = 0
	for _, s := range in.slots {
		*s = slot{spec: s.spec}
		switch s.spec.kind {
		case slotList, slotMap:
			s.offsets = []int32{0}
		case slotDict:
			s.interned = make(map[string]int32)
		}
	}
}
