// Package bytecode compiles a field schema into a flat instruction program
// and executes it against an event stream without per-event dynamic
// dispatch over a builder tree.
//
// Compilation is a pure function of the schema: it allocates one buffer
// slot per schema node and resolves every container entry, exit and item
// boundary to a fixed instruction offset, so the interpreter advances a
// single program counter instead of walking builder objects. The
// interpreter reproduces the builder tree's observable behavior exactly
// (same buffers, same error kinds); constructs the compiler does not
// special-case (unions) are reported as unsupported so callers can fall
// back to the builder tree.
package bytecode

import (
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

type opCode uint8

const (
	opRecordStart opCode = iota // expect StartStruct opening a record
	opRecordEnd                 // expect EndStruct closing a record
	opFieldName                 // expect the next declared field name
	opPushScalar                // expect one scalar, null or default
	opStructStart               // expect StartStruct, null or default
	opStructEnd                 // expect EndStruct
	opTupleStart                // expect StartTuple, null or default
	opTupleEnd                  // expect EndTuple
	opListStart                 // expect StartList, null or default
	opListDispatch              // expect EndList or re-dispatch to the item program
	opMapStart                  // expect StartMap, null or default
	opMapDispatch               // expect EndMap or re-dispatch to the key program
)

// pad is one slot action used to keep buffers aligned when a container
// level null or default covers a whole subtree
type pad struct {
	slot int
	null bool
}

// instr is one program instruction. Next is the program counter after the
// instruction consumes its event; Skip is the continuation when the value
// is covered by a null/default at this head; Head points dispatch
// instructions at their item (or key) program.
type instr struct {
	op   opCode
	slot int
	name string // opFieldName
	next int
	skip int
	head int
	nullPlan    []pad
	defaultPlan []pad
}

// Program is a compiled schema: a flat instruction sequence plus the slot
// layout needed to materialize the columns afterwards
type Program struct {
	instrs []instr
	slots  []slotSpec
	roots  []*slotNode
}

// slotSpec describes one buffer slot's type
type slotSpec struct {
	field    schema.Field
	kind     slotKind
	strategy string
}

// slotNode mirrors the schema tree with slot assignments for building the
// output columns
type slotNode struct {
	field    schema.Field
	slot     int
	children []*slotNode
}

type slotKind uint8

const (
	slotNull slotKind = iota
	slotBool
	slotInt
	slotUint
	slotFloat
	slotStr
	slotDate64
	slotDict
	slotStruct // validity only
	slotList   // offsets + validity
	slotMap    // offsets + validity
)

type compiler struct {
	instrs []instr
	slots  []slotSpec
}

// Compile lowers a record schema into a program. Fields containing union
// types are not special-cased by the compiler and return an unsupported
// type error; callers fall back to the builder tree for those.
func Compile(fields []schema.Field) (*Program, error) {
	root := schema.New("", schema.TypeStruct, false).WithChildren(fields...)
	if err := root.Validate(); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if hasUnion(f) {
			return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
				"field %q: union types are not compiled", f.Name)
		}
	}

	c := &compiler{}
	c.emit(instr{op: opRecordStart, next: 1})
	roots := make([]*slotNode, len(fields))
	for i, f := range fields {
		namePC := c.emit(instr{op: opFieldName, name: f.Name})
		c.instrs[namePC].next = namePC + 1
		node, holes, err := c.compileValue(f)
		if err != nil {
			return nil, err
		}
		roots[i] = node
		c.patch(holes, len(c.instrs))
	}
	c.emit(instr{op: opRecordEnd, next: 0})

	return &Program{instrs: c.instrs, slots: c.slots, roots: roots}, nil
}

func hasUnion(f schema.Field) bool {
	if f.Type == schema.TypeUnion {
		return true
	}
	for _, child := range f.Children {
		if hasUnion(child) {
			return true
		}
	}
	return false
}

func (c *compiler) emit(in instr) int {
	c.instrs = append(c.instrs, in)
	return len(c.instrs) - 1
}

func (c *compiler) addSlot(f schema.Field, kind slotKind) int {
	c.slots = append(c.slots, slotSpec{field: f, kind: kind, strategy: f.Strategy()})
	return len(c.slots) - 1
}

// patch fills continuation holes with the resolved program counter
func (c *compiler) patch(holes []int, pc int) {
	for _, h := range holes {
		if c.instrs[h].next == -1 {
			c.instrs[h].next = pc
		}
		if c.instrs[h].skip == -1 {
			c.instrs[h].skip = pc
		}
	}
}

// compileValue appends the program for one value of field f. Instructions
// that complete the value carry next/skip = -1; the returned holes are
// patched by the caller once the continuation pc is known.
func (c *compiler) compileValue(f schema.Field) (*slotNode, []int, error) {
	switch f.Type {
	case schema.TypeNull:
		return c.compileScalar(f, slotNull)
	case schema.TypeBool:
		return c.compileScalar(f, slotBool)
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		return c.compileScalar(f, slotInt)
	case schema.TypeUint8, schema.TypeUint16, schema.TypeUint32, schema.TypeUint64:
		return c.compileScalar(f, slotUint)
	case schema.TypeFloat16, schema.TypeFloat32, schema.TypeFloat64:
		return c.compileScalar(f, slotFloat)
	case schema.TypeUtf8, schema.TypeLargeUtf8:
		return c.compileScalar(f, slotStr)
	case schema.TypeDate64:
		return c.compileScalar(f, slotDate64)
	case schema.TypeDictionary:
		return c.compileScalar(f, slotDict)
	case schema.TypeStruct:
		return c.compileStruct(f)
	case schema.TypeList, schema.TypeLargeList:
		return c.compileList(f)
	case schema.TypeMap:
		return c.compileMap(f)
	}
	return nil, nil, errors.Newf(errors.ErrorTypeUnsupportedType,
		"no program support for data type %s", f.Type)
}

func (c *compiler) compileScalar(f schema.Field, kind slotKind) (*slotNode, []int, error) {
	slot := c.addSlot(f, kind)
	pc := c.emit(instr{
		op: opPushScalar, slot: slot, next: -1, skip: -1,
		nullPlan:    []pad{{slot: slot, null: true}},
		defaultPlan: []pad{{slot: slot}},
	})
	return &slotNode{field: f, slot: slot}, []int{pc}, nil
}

func (c *compiler) compileStruct(f schema.Field) (*slotNode, []int, error) {
	slot := c.addSlot(f, slotStruct)
	node := &slotNode{field: f, slot: slot}

	startOp, endOp := opStructStart, opStructEnd
	named := !f.IsTupleStruct()
	if !named {
		startOp, endOp = opTupleStart, opTupleEnd
	}

	headPC := c.emit(instr{op: startOp, slot: slot, skip: -1})
	var childHoles []int
	for _, cf := range f.Children {
		// close the previous child's value at this position
		c.patch(childHoles, len(c.instrs))
		if named {
			namePC := c.emit(instr{op: opFieldName, name: cf.Name})
			c.instrs[namePC].next = namePC + 1
		}
		child, holes, err := c.compileValue(cf)
		if err != nil {
			return nil, nil, err
		}
		node.children = append(node.children, child)
		childHoles = holes
	}
	c.patch(childHoles, len(c.instrs))
	endPC := c.emit(instr{op: endOp, slot: slot, next: -1})
	c.instrs[headPC].next = headPC + 1
	if len(f.Children) == 0 {
		c.instrs[headPC].next = endPC
	}

	c.instrs[headPC].nullPlan = append([]pad{{slot: slot, null: true}}, defaultPlanOf(node.children)...)
	c.instrs[headPC].defaultPlan = append([]pad{{slot: slot}}, defaultPlanOf(node.children)...)
	return node, []int{headPC, endPC}, nil
}

func (c *compiler) compileList(f schema.Field) (*slotNode, []int, error) {
	slot := c.addSlot(f, slotList)
	headPC := c.emit(instr{
		op: opListStart, slot: slot, skip: -1,
		nullPlan:    []pad{{slot: slot, null: true}},
		defaultPlan: []pad{{slot: slot}},
	})
	dispatchPC := c.emit(instr{op: opListDispatch, slot: slot, next: -1})
	c.instrs[headPC].next = dispatchPC

	child, holes, err := c.compileValue(f.Children[0])
	if err != nil {
		return nil, nil, err
	}
	c.instrs[dispatchPC].head = dispatchPC + 1
	c.patch(holes, dispatchPC)

	node := &slotNode{field: f, slot: slot, children: []*slotNode{child}}
	return node, []int{headPC, dispatchPC}, nil
}

func (c *compiler) compileMap(f schema.Field) (*slotNode, []int, error) {
	slot := c.addSlot(f, slotMap)
	headPC := c.emit(instr{
		op: opMapStart, slot: slot, skip: -1,
		nullPlan:    []pad{{slot: slot, null: true}},
		defaultPlan: []pad{{slot: slot}},
	})
	dispatchPC := c.emit(instr{op: opMapDispatch, slot: slot, next: -1})
	c.instrs[headPC].next = dispatchPC

	key, keyHoles, err := c.compileValue(f.Children[0])
	if err != nil {
		return nil, nil, err
	}
	c.instrs[dispatchPC].head = dispatchPC + 1
	// the key's completion continues at the value program
	c.patch(keyHoles, len(c.instrs))
	value, valueHoles, err := c.compileValue(f.Children[1])
	if err != nil {
		return nil, nil, err
	}
	// the value's completion returns to the entry dispatch
	c.patch(valueHoles, dispatchPC)

	node := &slotNode{field: f, slot: slot, children: []*slotNode{key, value}}
	return node, []int{headPC, dispatchPC}, nil
}

// defaultPlanOf flattens the default padding actions for a subtree:
// containers contribute their own slot (an empty or zero entry) and
// structs additionally pad every child
func defaultPlanOf(nodes []*slotNode) []pad {
	var plan []pad
	for _, n := range nodes {
		plan = append(plan, pad{slot: n.slot})
		if n.field.Type == schema.TypeStruct {
			plan = append(plan, defaultPlanOf(n.children)...)
		}
	}
	return plan
}
