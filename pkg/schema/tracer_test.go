package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
)

func feed(t *testing.T, tr *Tracer, events ...event.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, tr.Accept(ev))
	}
}

func record(pairs ...event.Event) []event.Event {
	out := []event.Event{event.StartStructEvent()}
	out = append(out, pairs...)
	return append(out, event.EndStructEvent())
}

func TestTraceSimpleRecord(t *testing.T) {
	tr := NewTracer(TraceOptions{})
	feed(t, tr, record(
		event.StrEvent("id"), event.I64Event(1),
		event.StrEvent("name"), event.StrEvent("ada"),
	)...)
	feed(t, tr, record(
		event.StrEvent("id"), event.I64Event(2),
		event.StrEvent("name"), event.StrEvent("grace"),
	)...)

	f, err := tr.ToField("")
	require.NoError(t, err)
	require.Equal(t, TypeStruct, f.Type)
	require.Len(t, f.Children, 2)
	assert.Equal(t, New("id", TypeInt64, false), f.Children[0])
	assert.Equal(t, New("name", TypeUtf8, false), f.Children[1])
}

func TestTraceWidening(t *testing.T) {
	t.Run("u8 then u16 widens to uint16", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.U8Event(1))...)
		feed(t, tr, record(event.StrEvent("v"), event.U16Event(1000))...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.Equal(t, TypeUint16, f.Children[0].Type)
	})

	t.Run("u8 then i8 widens to int16", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.U8Event(200))...)
		feed(t, tr, record(event.StrEvent("v"), event.I8Event(-1))...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.Equal(t, TypeInt16, f.Children[0].Type)
	})

	t.Run("int and float conflict without coercion", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.I32Event(1))...)
		err := tr.Accept(event.StartStructEvent())
		require.NoError(t, err)
		require.NoError(t, tr.Accept(event.StrEvent("v")))
		err = tr.Accept(event.F64Event(1.5))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))
	})

	t.Run("int and float merge to float64 with coercion", func(t *testing.T) {
		tr := NewTracer(TraceOptions{CoerceNumbers: true})
		feed(t, tr, record(event.StrEvent("v"), event.I32Event(1))...)
		feed(t, tr, record(event.StrEvent("v"), event.F64Event(1.5))...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.Equal(t, TypeFloat64, f.Children[0].Type)
	})

	t.Run("u64 and signed requires coercion", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.U64Event(1))...)
		require.NoError(t, tr.Accept(event.StartStructEvent()))
		require.NoError(t, tr.Accept(event.StrEvent("v")))
		require.Error(t, tr.Accept(event.I8Event(-1)))
	})
}

func TestTraceNullability(t *testing.T) {
	t.Run("null then value traces nullable", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.NullEvent())...)
		feed(t, tr, record(event.StrEvent("v"), event.BoolEvent(true))...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.Equal(t, TypeBool, f.Children[0].Type)
		assert.True(t, f.Children[0].Nullable)
	})

	t.Run("only nulls fails without AllowNullFields", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.NullEvent())...)
		_, err := tr.ToField("")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaInference))
	})

	t.Run("only nulls traces null type with AllowNullFields", func(t *testing.T) {
		tr := NewTracer(TraceOptions{AllowNullFields: true})
		feed(t, tr, record(event.StrEvent("v"), event.NullEvent())...)
		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.Equal(t, TypeNull, f.Children[0].Type)
		assert.True(t, f.Children[0].Nullable)
	})
}

func TestTraceFieldSetDifferences(t *testing.T) {
	t.Run("late field fails without merging", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("a"), event.I64Event(1))...)
		require.NoError(t, tr.Accept(event.StartStructEvent()))
		require.NoError(t, tr.Accept(event.StrEvent("a")))
		require.NoError(t, tr.Accept(event.I64Event(2)))
		err := tr.Accept(event.StrEvent("b"))
		require.Error(t, err)
	})

	t.Run("late field becomes nullable when merging", func(t *testing.T) {
		tr := NewTracer(TraceOptions{MergeUnknownFields: true})
		feed(t, tr, record(event.StrEvent("a"), event.I64Event(1))...)
		feed(t, tr, record(
			event.StrEvent("a"), event.I64Event(2),
			event.StrEvent("b"), event.StrEvent("x"),
		)...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		require.Len(t, f.Children, 2)
		assert.True(t, f.Children[1].Nullable)
		assert.Equal(t, TypeUtf8, f.Children[1].Type)
	})

	t.Run("missing field becomes nullable when merging", func(t *testing.T) {
		tr := NewTracer(TraceOptions{MergeUnknownFields: true})
		feed(t, tr, record(
			event.StrEvent("a"), event.I64Event(1),
			event.StrEvent("b"), event.StrEvent("x"),
		)...)
		feed(t, tr, record(event.StrEvent("a"), event.I64Event(2))...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		assert.False(t, f.Children[0].Nullable)
		assert.True(t, f.Children[1].Nullable)
	})
}

func TestTraceContainers(t *testing.T) {
	t.Run("list of ints", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(
			event.StrEvent("xs"),
			event.StartListEvent(), event.I64Event(1), event.I64Event(2), event.EndListEvent(),
		)...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		xs := f.Children[0]
		require.Equal(t, TypeList, xs.Type)
		require.Len(t, xs.Children, 1)
		assert.Equal(t, "element", xs.Children[0].Name)
		assert.Equal(t, TypeInt64, xs.Children[0].Type)
	})

	t.Run("tuple traces positional struct", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(
			event.StrEvent("pair"),
			event.StartTupleEvent(), event.I64Event(1), event.StrEvent("x"), event.EndTupleEvent(),
		)...)

		f, err := tr.ToField("")
		require.NoError(t, err)
		pair := f.Children[0]
		require.Equal(t, TypeStruct, pair.Type)
		assert.True(t, pair.IsTupleStruct())
		require.Len(t, pair.Children, 2)
		assert.Equal(t, "0", pair.Children[0].Name)
		assert.Equal(t, TypeInt64, pair.Children[0].Type)
		assert.Equal(t, "1", pair.Children[1].Name)
		assert.Equal(t, TypeUtf8, pair.Children[1].Type)
	})

	t.Run("tuple arity mismatch fails", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr,
			event.StartTupleEvent(), event.I64Event(1), event.I64Event(2), event.EndTupleEvent(),
			event.StartTupleEvent(), event.I64Event(1),
		)
		require.Error(t, tr.Accept(event.EndTupleEvent()))
	})

	t.Run("map of string to int", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr,
			event.StartMapEvent(),
			event.StrEvent("k1"), event.I64Event(1),
			event.StrEvent("k2"), event.I64Event(2),
			event.EndMapEvent(),
		)

		f, err := tr.ToField("m")
		require.NoError(t, err)
		require.Equal(t, TypeMap, f.Type)
		require.Len(t, f.Children, 2)
		assert.Equal(t, TypeUtf8, f.Children[0].Type)
		assert.Equal(t, TypeInt64, f.Children[1].Type)
	})

	t.Run("union via variant markers", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr,
			event.VariantEvent("i", 0), event.I64Event(1),
			event.VariantEvent("s", 1), event.StrEvent("x"),
		)

		f, err := tr.ToField("u")
		require.NoError(t, err)
		require.Equal(t, TypeUnion, f.Type)
		require.Len(t, f.Children, 2)
		assert.Equal(t, "i", f.Children[0].Name)
		assert.Equal(t, "s", f.Children[1].Name)
	})

	t.Run("unobserved variant index fails", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, event.VariantEvent("s", 1), event.StrEvent("x"))
		_, err := tr.ToField("u")
		require.Error(t, err)
	})
}

func TestTraceProtocolViolations(t *testing.T) {
	t.Run("end without start", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		err := tr.Accept(event.EndStructEvent())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	})

	t.Run("mismatched end inside list", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		require.NoError(t, tr.Accept(event.StartListEvent()))
		require.Error(t, tr.Accept(event.EndStructEvent()))
	})

	t.Run("unclosed container at finalize", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		require.NoError(t, tr.Accept(event.StartStructEvent()))
		_, err := tr.ToField("")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	})

	t.Run("struct and list at the same path fail", func(t *testing.T) {
		tr := NewTracer(TraceOptions{})
		feed(t, tr, record(event.StrEvent("v"), event.I64Event(1))...)
		require.NoError(t, tr.Accept(event.StartStructEvent()))
		require.NoError(t, tr.Accept(event.StrEvent("v")))
		require.Error(t, tr.Accept(event.StartListEvent()))
	})
}

func TestWidenTypes(t *testing.T) {
	cases := []struct {
		a, b    DataType
		coerce  bool
		want    DataType
		wantErr bool
	}{
		{TypeInt8, TypeInt8, false, TypeInt8, false},
		{TypeInt8, TypeInt32, false, TypeInt32, false},
		{TypeUint8, TypeUint16, false, TypeUint16, false},
		{TypeUint8, TypeInt8, false, TypeInt16, false},
		{TypeUint32, TypeInt8, false, TypeInt64, false},
		{TypeUint64, TypeInt8, false, 0, true},
		{TypeUint64, TypeInt8, true, TypeInt64, false},
		{TypeFloat32, TypeFloat64, false, TypeFloat64, false},
		{TypeInt64, TypeFloat32, false, 0, true},
		{TypeInt64, TypeFloat32, true, TypeFloat64, false},
		{TypeUtf8, TypeLargeUtf8, false, TypeLargeUtf8, false},
		{TypeBool, TypeInt8, false, 0, true},
		{TypeNull, TypeBool, false, TypeBool, false},
	}
	for _, tc := range cases {
		got, err := WidenTypes(tc.a, tc.b, tc.coerce)
		if tc.wantErr {
			assert.Error(t, err, "%s + %s", tc.a, tc.b)
			continue
		}
		require.NoError(t, err, "%s + %s", tc.a, tc.b)
		assert.Equal(t, tc.want, got, "%s + %s", tc.a, tc.b)
	}
}
