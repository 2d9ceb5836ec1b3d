package schema

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/logger"
)

// TraceOptions configures schema inference
type TraceOptions struct {
	// AllowNullFields permits fields for which only nulls were observed;
	// they trace as nullable null-typed columns. Without it such fields
	// fail inference.
	AllowNullFields bool
	// MergeUnknownFields tolerates record fields appearing in some samples
	// but not others; late fields are added as nullable, missing fields
	// become nullable. Without it any field-set difference across samples
	// fails inference.
	MergeUnknownFields bool
	// CoerceNumbers permits merging integer and float observations into
	// float64 instead of failing
	CoerceNumbers bool
}

type nodeKind int

const (
	nkUnknown nodeKind = iota
	nkPrimitive
	nkStruct
	nkList
	nkMap
	nkUnion
)

// node is the per-path accumulator merged across samples
type node struct {
	kind     nodeKind
	dtype    DataType // nkPrimitive only
	nullable bool
	tuple    bool // nkStruct observed via tuple events
	observed int  // non-null values merged into this node

	names []string
	index map[string]int
	kids  []*node // struct fields or union variants

	item       *node // nkList
	key, value *node // nkMap
}

func newNode() *node {
	return &node{index: make(map[string]int)}
}

type frameKind int

const (
	fStruct frameKind = iota
	fTuple
	fList
	fMap
	fUnion
)

type frame struct {
	kind    frameKind
	n       *node
	active  int
	expectV bool   // fStruct: a field name was seen, value pending
	keyNext bool   // fMap
	seen    []bool // fStruct: children observed in the current record
}

// Tracer consumes an event stream produced from representative samples and
// accumulates the information needed to infer a field schema. It is an
// event.Sink; feed it one or more sample values and call ToField.
type Tracer struct {
	opts  TraceOptions
	root  *node
	stack []frame
	log   *zap.Logger
}

// NewTracer creates a tracer with the given options
func NewTracer(opts TraceOptions) *Tracer {
	return &Tracer{
		opts: opts,
		root: newNode(),
		log:  logger.Get(),
	}
}

// Accept implements event.Sink
func (t *Tracer) Accept(ev event.Event) error {
	if len(t.stack) == 0 {
		return t.acceptValue(t.root, ev)
	}

	top := &t.stack[len(t.stack)-1]
	switch top.kind {
	case fStruct:
		if top.expectV {
			top.expectV = false
			return t.acceptValue(top.n.kids[top.active], ev)
		}
		switch ev.Kind {
		case event.Str:
			idx, err := t.structField(top, ev.StrVal)
			if err != nil {
				return err
			}
			top.active = idx
			top.expectV = true
			return nil
		case event.EndStruct:
			return t.closeStruct(top)
		default:
			return errors.Newf(errors.ErrorTypeProtocol,
				"expected field name or EndStruct, got %s", ev)
		}

	case fTuple:
		if ev.Kind == event.EndTuple {
			n := top.n
			if n.observed > 0 && top.active != len(n.kids) {
				return errors.Newf(errors.ErrorTypeSchemaInference,
					"tuple arity mismatch: saw %d items, previous samples had %d",
					top.active, len(n.kids))
			}
			n.observed++
			t.pop()
			t.completeValue()
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in tuple", ev)
		}
		return t.acceptValue(t.tupleChild(top.n, top.active), ev)

	case fList:
		if ev.Kind == event.EndList {
			top.n.observed++
			t.pop()
			t.completeValue()
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in list", ev)
		}
		return t.acceptValue(top.n.item, ev)

	case fMap:
		if ev.Kind == event.EndMap {
			if !top.keyNext {
				return errors.Newf(errors.ErrorTypeProtocol,
					"EndMap after key without value")
			}
			top.n.observed++
			t.pop()
			t.completeValue()
			return nil
		}
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s in map", ev)
		}
		if top.keyNext {
			return t.acceptValue(top.n.key, ev)
		}
		return t.acceptValue(top.n.value, ev)

	case fUnion:
		if ev.IsEnd() {
			return errors.Newf(errors.ErrorTypeProtocol,
				"unbalanced %s after variant marker", ev)
		}
		return t.acceptValue(top.n, ev)
	}

	return errors.New(errors.ErrorTypeInternal, "corrupt tracer stack")
}

// acceptValue merges one value (scalar or container head) into n
func (t *Tracer) acceptValue(n *node, ev event.Event) error {
	switch ev.Kind {
	case event.Null:
		n.nullable = true
		t.completeValue()
		return nil
	case event.Default:
		t.completeValue()
		return nil
	case event.StartStruct:
		if err := t.toComposite(n, nkStruct, false); err != nil {
			return err
		}
		t.push(frame{kind: fStruct, n: n, seen: make([]bool, len(n.kids))})
		return nil
	case event.StartTuple:
		if err := t.toComposite(n, nkStruct, true); err != nil {
			return err
		}
		t.push(frame{kind: fTuple, n: n})
		return nil
	case event.StartList:
		if err := t.toComposite(n, nkList, false); err != nil {
			return err
		}
		t.push(frame{kind: fList, n: n})
		return nil
	case event.StartMap:
		if err := t.toComposite(n, nkMap, false); err != nil {
			return err
		}
		t.push(frame{kind: fMap, n: n, keyNext: true})
		return nil
	case event.Variant:
		if err := t.toComposite(n, nkUnion, false); err != nil {
			return err
		}
		child, err := t.variantChild(n, ev.StrVal, ev.Index)
		if err != nil {
			return err
		}
		n.observed++
		t.push(frame{kind: fUnion, n: child})
		return nil
	}

	if ev.IsEnd() {
		return errors.Newf(errors.ErrorTypeProtocol,
			"unexpected %s where a value was expected", ev)
	}
	return t.mergeScalar(n, ev)
}

// toComposite converts n into the given composite kind, merging with any
// previously observed shape
func (t *Tracer) toComposite(n *node, kind nodeKind, tuple bool) error {
	if n.kind == nkUnknown {
		n.kind = kind
		n.tuple = tuple
		switch kind {
		case nkList:
			n.item = newNode()
		case nkMap:
			n.key = newNode()
			n.value = newNode()
		}
		return nil
	}
	if n.kind != kind || (kind == nkStruct && n.tuple != tuple) {
		return errors.Newf(errors.ErrorTypeSchemaInference,
			"incompatible shapes observed at the same path")
	}
	return nil
}

func (t *Tracer) mergeScalar(n *node, ev event.Event) error {
	dt := scalarType(ev)
	if n.kind == nkUnknown {
		n.kind = nkPrimitive
		n.dtype = dt
	} else {
		if n.kind != nkPrimitive {
			return errors.Newf(errors.ErrorTypeSchemaInference,
				"scalar %s observed where a container was traced", ev)
		}
		merged, err := WidenTypes(n.dtype, dt, t.opts.CoerceNumbers)
		if err != nil {
			return err
		}
		n.dtype = merged
	}
	n.observed++
	t.completeValue()
	return nil
}

// structField resolves or creates the child index for a field name
func (t *Tracer) structField(top *frame, name string) (int, error) {
	n := top.n
	idx, ok := n.index[name]
	if !ok {
		if n.observed > 0 && !t.opts.MergeUnknownFields {
			return 0, errors.Newf(errors.ErrorTypeSchemaInference,
				"unknown field %q not present in previous samples", name)
		}
		idx = len(n.kids)
		n.index[name] = idx
		n.names = append(n.names, name)
		child := newNode()
		if n.observed > 0 {
			// absent from earlier records
			child.nullable = true
		}
		n.kids = append(n.kids, child)
	}
	for len(top.seen) < len(n.kids) {
		top.seen = append(top.seen, false)
	}
	top.seen[idx] = true
	return idx, nil
}

func (t *Tracer) closeStruct(top *frame) error {
	n := top.n
	for i := range n.kids {
		if i < len(top.seen) && top.seen[i] {
			continue
		}
		if !t.opts.MergeUnknownFields {
			return errors.Newf(errors.ErrorTypeSchemaInference,
				"field %q missing from sample", n.names[i])
		}
		n.kids[i].nullable = true
	}
	n.observed++
	t.pop()
	t.completeValue()
	return nil
}

func (t *Tracer) tupleChild(n *node, idx int) *node {
	for len(n.kids) <= idx {
		n.kids = append(n.kids, newNode())
	}
	return n.kids[idx]
}

func (t *Tracer) variantChild(n *node, name string, idx int) (*node, error) {
	for len(n.kids) <= idx {
		n.kids = append(n.kids, newNode())
		n.names = append(n.names, "")
	}
	if n.names[idx] == "" {
		n.names[idx] = name
	} else if n.names[idx] != name {
		return nil, errors.Newf(errors.ErrorTypeSchemaInference,
			"variant index %d seen as %q and %q", idx, n.names[idx], name)
	}
	return n.kids[idx], nil
}

func (t *Tracer) push(f frame) {
	t.stack = append(t.stack, f)
}

func (t *Tracer) pop() {
	t.stack = t.stack[:len(t.stack)-1]
}

// completeValue propagates value completion to the enclosing frame
func (t *Tracer) completeValue() {
	for len(t.stack) > 0 {
		top := &t.stack[len(t.stack)-1]
		switch top.kind {
		case fStruct:
			top.expectV = false
			return
		case fTuple:
			top.active++
			return
		case fList, fMap:
			if top.kind == fMap {
				top.keyNext = !top.keyNext
			}
			return
		case fUnion:
			// a union wraps exactly one value; completing it completes
			// the union as well
			t.pop()
			continue
		}
	}
}

// ToField finalizes the accumulator into a schema field
func (t *Tracer) ToField(name string) (Field, error) {
	if len(t.stack) != 0 {
		return Field{}, errors.New(errors.ErrorTypeProtocol,
			"tracing ended with unclosed containers")
	}
	f, err := t.finalize(t.root, name)
	if err != nil {
		return Field{}, err
	}
	t.log.Debug("traced schema",
		zap.String("field", name),
		zap.String("type", f.Type.String()),
		zap.Int("children", len(f.Children)))
	return f, nil
}

func (t *Tracer) finalize(n *node, name string) (Field, error) {
	switch n.kind {
	case nkUnknown:
		if n.observed == 0 && !n.nullable {
			return Field{}, errors.Newf(errors.ErrorTypeSchemaInference,
				"no samples found to determine type of %q", name)
		}
		if !t.opts.AllowNullFields {
			return Field{}, errors.Newf(errors.ErrorTypeSchemaInference,
				"field %q contains only nulls; enable AllowNullFields to trace it", name)
		}
		return New(name, TypeNull, true), nil

	case nkPrimitive:
		return New(name, n.dtype, n.nullable), nil

	case nkStruct:
		f := New(name, TypeStruct, n.nullable)
		if n.tuple {
			f = f.WithStrategy(StrategyTupleAsStruct)
			for i, kid := range n.kids {
				child, err := t.finalize(kid, tupleFieldName(i))
				if err != nil {
					return Field{}, err
				}
				f.Children = append(f.Children, child)
			}
			return f, nil
		}
		for i, kid := range n.kids {
			child, err := t.finalize(kid, n.names[i])
			if err != nil {
				return Field{}, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil

	case nkList:
		child, err := t.finalize(n.item, "element")
		if err != nil {
			return Field{}, err
		}
		return New(name, TypeList, n.nullable).WithChildren(child), nil

	case nkMap:
		key, err := t.finalize(n.key, "key")
		if err != nil {
			return Field{}, err
		}
		value, err := t.finalize(n.value, "value")
		if err != nil {
			return Field{}, err
		}
		return New(name, TypeMap, n.nullable).WithChildren(key, value), nil

	case nkUnion:
		if len(n.kids) == 0 {
			return Field{}, errors.Newf(errors.ErrorTypeSchemaInference,
				"union field %q has no observed variants", name)
		}
		f := New(name, TypeUnion, n.nullable)
		for i, kid := range n.kids {
			if n.names[i] == "" {
				return Field{}, errors.Newf(errors.ErrorTypeSchemaInference,
					"union field %q variant %d was never observed", name, i)
			}
			child, err := t.finalize(kid, n.names[i])
			if err != nil {
				return Field{}, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil
	}

	return Field{}, errors.New(errors.ErrorTypeInternal, "corrupt tracer node")
}

func tupleFieldName(i int) string {
	return strconv.Itoa(i)
}

func scalarType(ev event.Event) DataType {
	switch ev.Kind {
	case event.Bool:
		return TypeBool
	case event.I8:
		return TypeInt8
	case event.I16:
		return TypeInt16
	case event.I32:
		return TypeInt32
	case event.I64:
		return TypeInt64
	case event.U8:
		return TypeUint8
	case event.U16:
		return TypeUint16
	case event.U32:
		return TypeUint32
	case event.U64:
		return TypeUint64
	case event.F32:
		return TypeFloat32
	case event.F64:
		return TypeFloat64
	case event.Str, event.Bytes:
		return TypeUtf8
	}
	return TypeNull
}
