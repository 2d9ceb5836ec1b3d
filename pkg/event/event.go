// Package event defines the structural traversal protocol shared by all
// arrowcast conversion components.
//
// A traversal of a row-oriented value is expressed as a well-nested stream
// of events: scalar signals (null, bool, integers, floats, strings, bytes)
// and structural markers (start/end of structs, tuples, lists and maps,
// union variant selection). Producers walk application data and push events
// into a Sink; the reverse direction replays columnar buffers through a
// Source. Every Start marker must be matched by its End marker; violations
// are protocol errors.
package event

import (
	"github.com/arrowcast/arrowcast/pkg/errors"
	stringpool "github.com/arrowcast/arrowcast/pkg/strings"
)

// Kind identifies the event variant
type Kind uint8

const (
	Null Kind = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	Str
	Bytes
	StartStruct
	EndStruct
	StartTuple
	EndTuple
	StartList
	EndList
	StartMap
	EndMap
	Variant
	Default
)

var kindNames = [...]string{
	"Null", "Bool", "I8", "I16", "I32", "I64", "U8", "U16", "U32", "U64",
	"F32", "F64", "Str", "Bytes",
	"StartStruct", "EndStruct", "StartTuple", "EndTuple",
	"StartList", "EndList", "StartMap", "EndMap",
	"Variant", "Default",
}

// String returns the event kind name
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Event is one atomic signal in the traversal protocol. It is a closed
// tagged value: Kind selects the variant and exactly one payload field is
// meaningful for it.
type Event struct {
	Kind    Kind
	BoolVal bool    // Bool
	IntVal  int64   // I8..I64
	UintVal uint64  // U8..U64
	FloatVal float64 // F32, F64
	StrVal  string  // Str, Variant name
	BytesVal []byte // Bytes
	Index   int     // Variant index
}

// Scalar constructors

func NullEvent() Event              { return Event{Kind: Null} }
func DefaultEvent() Event           { return Event{Kind: Default} }
func BoolEvent(v bool) Event        { return Event{Kind: Bool, BoolVal: v} }
func I8Event(v int8) Event          { return Event{Kind: I8, IntVal: int64(v)} }
func I16Event(v int16) Event        { return Event{Kind: I16, IntVal: int64(v)} }
func I32Event(v int32) Event        { return Event{Kind: I32, IntVal: int64(v)} }
func I64Event(v int64) Event        { return Event{Kind: I64, IntVal: v} }
func U8Event(v uint8) Event         { return Event{Kind: U8, UintVal: uint64(v)} }
func U16Event(v uint16) Event       { return Event{Kind: U16, UintVal: uint64(v)} }
func U32Event(v uint32) Event       { return Event{Kind: U32, UintVal: uint64(v)} }
func U64Event(v uint64) Event       { return Event{Kind: U64, UintVal: v} }
func F32Event(v float32) Event      { return Event{Kind: F32, FloatVal: float64(v)} }
func F64Event(v float64) Event      { return Event{Kind: F64, FloatVal: v} }
func StrEvent(v string) Event       { return Event{Kind: Str, StrVal: v} }
func BytesEvent(v []byte) Event     { return Event{Kind: Bytes, BytesVal: v} }

// Structural constructors

func StartStructEvent() Event { return Event{Kind: StartStruct} }
func EndStructEvent() Event   { return Event{Kind: EndStruct} }
func StartTupleEvent() Event  { return Event{Kind: StartTuple} }
func EndTupleEvent() Event    { return Event{Kind: EndTuple} }
func StartListEvent() Event   { return Event{Kind: StartList} }
func EndListEvent() Event     { return Event{Kind: EndList} }
func StartMapEvent() Event    { return Event{Kind: StartMap} }
func EndMapEvent() Event      { return Event{Kind: EndMap} }

// VariantEvent selects a tagged-union variant for the value that follows
func VariantEvent(name string, index int) Event {
	return Event{Kind: Variant, StrVal: name, Index: index}
}

// IsStart reports whether the event opens a container
func (e Event) IsStart() bool {
	switch e.Kind {
	case StartStruct, StartTuple, StartList, StartMap:
		return true
	}
	return false
}

// IsEnd reports whether the event closes a container
func (e Event) IsEnd() bool {
	switch e.Kind {
	case EndStruct, EndTuple, EndList, EndMap:
		return true
	}
	return false
}

// IsMarker reports whether the event annotates the following value without
// consuming one itself
func (e Event) IsMarker() bool {
	return e.Kind == Variant
}

// IsValue reports whether the event carries one complete scalar value,
// including Null and Default
func (e Event) IsValue() bool {
	return !e.IsStart() && !e.IsEnd() && !e.IsMarker()
}

// MatchesEnd reports whether end closes the container opened by e
func (e Event) MatchesEnd(end Event) bool {
	switch e.Kind {
	case StartStruct:
		return end.Kind == EndStruct
	case StartTuple:
		return end.Kind == EndTuple
	case StartList:
		return end.Kind == EndList
	case StartMap:
		return end.Kind == EndMap
	}
	return false
}

// String renders the event for error messages
func (e Event) String() string {
	switch e.Kind {
	case Bool:
		return stringpool.Sprintf("Bool(%v)", e.BoolVal)
	case I8, I16, I32, I64:
		return stringpool.Sprintf("%s(%d)", e.Kind, e.IntVal)
	case U8, U16, U32, U64:
		return stringpool.Sprintf("%s(%d)", e.Kind, e.UintVal)
	case F32, F64:
		return stringpool.Sprintf("%s(%v)", e.Kind, e.FloatVal)
	case Str:
		return stringpool.Sprintf("Str(%q)", e.StrVal)
	case Bytes:
		return stringpool.Sprintf("Bytes(%d bytes)", len(e.BytesVal))
	case Variant:
		return stringpool.Sprintf("Variant(%q, %d)", e.StrVal, e.Index)
	default:
		return e.Kind.String()
	}
}

// Sink consumes a well-nested event stream one event at a time.
// Implemented by the schema tracer, the builder tree and the compiled
// interpreter.
type Sink interface {
	Accept(ev Event) error
}

// Source produces a well-nested event stream. Next returns ok=false once
// the stream is exhausted.
type Source interface {
	Next() (ev Event, ok bool, err error)
}

// Pipe drains src into sink, stopping on the first error
func Pipe(src Source, sink Sink) error {
	for {
		ev, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := sink.Accept(ev); err != nil {
			return err
		}
	}
}

// StripOuterSequence forwards everything inside the outermost list or
// tuple to the wrapped sink and swallows that outer pair. It adapts a
// traversal of a slice of records into a stream of record-level events.
type StripOuterSequence struct {
	inner Sink
	depth int
}

// NewStripOuterSequence wraps sink
func NewStripOuterSequence(inner Sink) *StripOuterSequence {
	return &StripOuterSequence{inner: inner}
}

// Accept implements Sink
func (s *StripOuterSequence) Accept(ev Event) error {
	if s.depth == 0 {
		if ev.Kind != StartList && ev.Kind != StartTuple {
			return errors.Newf(errors.ErrorTypeProtocol,
				"expected a sequence at the outer level, got %s", ev)
		}
		s.depth = 1
		return nil
	}

	switch {
	case ev.IsStart():
		s.depth++
	case ev.IsEnd():
		s.depth--
		if s.depth == 0 {
			// matching end of the stripped outer sequence
			return nil
		}
	}
	return s.inner.Accept(ev)
}
