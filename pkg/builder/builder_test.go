package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

func accept(t *testing.T, b event.Sink, events ...event.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, b.Accept(ev))
	}
}

func TestBoolBuilder(t *testing.T) {
	t.Run("plain values", func(t *testing.T) {
		b, err := New(schema.New("v", schema.TypeBool, false))
		require.NoError(t, err)
		accept(t, b, event.BoolEvent(true), event.BoolEvent(false), event.BoolEvent(true))

		d, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, 3, d.Len)
		assert.Equal(t, []bool{true, false, true}, d.Bools)
		assert.Equal(t, []bool{true, true, true}, d.Validity)
		assert.Equal(t, 0, d.NullCount())
	})

	t.Run("nullable values", func(t *testing.T) {
		b, err := New(schema.New("v", schema.TypeBool, true))
		require.NoError(t, err)
		accept(t, b, event.BoolEvent(true), event.NullEvent(), event.BoolEvent(false))

		d, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, 3, d.Len)
		assert.Equal(t, []bool{true, false, true}, d.Validity)
		assert.Equal(t, 1, d.NullCount())
	})

	t.Run("null into non-nullable fails", func(t *testing.T) {
		b, err := New(schema.New("v", schema.TypeBool, false))
		require.NoError(t, err)
		err = b.Accept(event.NullEvent())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
	})

	t.Run("default counts as present", func(t *testing.T) {
		b, err := New(schema.New("v", schema.TypeBool, true))
		require.NoError(t, err)
		accept(t, b, event.DefaultEvent())

		d, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []bool{false}, d.Bools)
		assert.Equal(t, []bool{true}, d.Validity)
	})
}

func TestIntBuilderCoercion(t *testing.T) {
	b, err := New(schema.New("v", schema.TypeInt16, false))
	require.NoError(t, err)
	accept(t, b, event.I8Event(-3), event.U8Event(200), event.I64Event(1000))

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []int64{-3, 200, 1000}, d.Ints)

	require.Error(t, b.Accept(event.I64Event(1<<20)))
}

func TestStringBuilder(t *testing.T) {
	b, err := New(schema.New("v", schema.TypeUtf8, false))
	require.NoError(t, err)
	accept(t, b, event.StrEvent("a"), event.BytesEvent([]byte("bc")))

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bc"}, d.Strs)
}

func TestDictionaryBuilder(t *testing.T) {
	f := schema.New("v", schema.TypeDictionary, false).WithChildren(
		schema.New("key", schema.TypeInt32, false),
		schema.New("value", schema.TypeUtf8, false),
	)
	b, err := New(f)
	require.NoError(t, err)
	accept(t, b, event.StrEvent("a"), event.StrEvent("b"), event.StrEvent("a"))

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 0}, d.Keys)
	require.NotNil(t, d.Dict)
	assert.Equal(t, []string{"a", "b"}, d.Dict.Strs)
}

func TestDate64Builder(t *testing.T) {
	t.Run("naive strategy parses strings", func(t *testing.T) {
		f := schema.New("ts", schema.TypeDate64, false).
			WithStrategy(schema.StrategyNaiveStrAsDate64)
		b, err := New(f)
		require.NoError(t, err)
		accept(t, b, event.StrEvent("1970-01-01T00:00:01"))

		d, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []int64{1000}, d.Ints)
	})

	t.Run("without strategy strings fail", func(t *testing.T) {
		b, err := New(schema.New("ts", schema.TypeDate64, false))
		require.NoError(t, err)
		require.Error(t, b.Accept(event.StrEvent("1970-01-01T00:00:01")))
		require.NoError(t, b.Accept(event.I64Event(1000)))
	})
}

func recordField(children ...schema.Field) []schema.Field {
	return children
}

func TestRecordBuilder(t *testing.T) {
	fields := recordField(
		schema.New("id", schema.TypeInt64, false),
		schema.New("name", schema.TypeUtf8, false),
	)
	rb, err := NewRecord(fields)
	require.NoError(t, err)

	accept(t, rb,
		event.StartStructEvent(),
		event.StrEvent("id"), event.I64Event(1),
		event.StrEvent("name"), event.StrEvent("ada"),
		event.EndStructEvent(),
		event.StartStructEvent(),
		event.StrEvent("id"), event.I64Event(2),
		event.StrEvent("name"), event.StrEvent("grace"),
		event.EndStructEvent(),
	)
	require.NoError(t, rb.Finish())
	assert.Equal(t, 2, rb.Len())

	cols, err := rb.Build()
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, []int64{1, 2}, cols[0].Ints)
	assert.Equal(t, []string{"ada", "grace"}, cols[1].Strs)
}

func TestRecordBuilderFieldOrder(t *testing.T) {
	fields := recordField(
		schema.New("a", schema.TypeInt64, false),
		schema.New("b", schema.TypeInt64, false),
	)
	rb, err := NewRecord(fields)
	require.NoError(t, err)

	require.NoError(t, rb.Accept(event.StartStructEvent()))
	err = rb.Accept(event.StrEvent("b"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
}

func TestStructBuilderProtocolViolation(t *testing.T) {
	fields := recordField(schema.New("a", schema.TypeInt64, false))
	rb, err := NewRecord(fields)
	require.NoError(t, err)

	// EndStruct before any record was started
	err = rb.Accept(event.EndStructEvent())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
}

func TestStructNullAlignsChildren(t *testing.T) {
	inner := schema.New("s", schema.TypeStruct, true).WithChildren(
		schema.New("x", schema.TypeInt64, false),
	)
	rb, err := NewRecord(recordField(inner))
	require.NoError(t, err)

	accept(t, rb,
		event.StartStructEvent(),
		event.StrEvent("s"),
		event.StartStructEvent(), event.StrEvent("x"), event.I64Event(7), event.EndStructEvent(),
		event.EndStructEvent(),
		event.StartStructEvent(),
		event.StrEvent("s"), event.NullEvent(),
		event.EndStructEvent(),
	)

	cols, err := rb.Build()
	require.NoError(t, err)
	s := cols[0]
	assert.Equal(t, []bool{true, false}, s.Validity)
	// the null struct still padded its child so buffers stay aligned
	assert.Equal(t, []int64{7, 0}, s.Children[0].Ints)
	assert.Equal(t, []bool{true, true}, s.Children[0].Validity)
}

func TestTupleBuilder(t *testing.T) {
	pair := schema.New("pair", schema.TypeStruct, false).
		WithStrategy(schema.StrategyTupleAsStruct).
		WithChildren(
			schema.New("0", schema.TypeInt64, false),
			schema.New("1", schema.TypeInt64, false),
		)
	b, err := New(pair)
	require.NoError(t, err)

	accept(t, b,
		event.StartTupleEvent(), event.I64Event(1), event.I64Event(2), event.EndTupleEvent(),
		event.StartTupleEvent(), event.I64Event(3), event.I64Event(4), event.EndTupleEvent(),
	)

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len)
	assert.Equal(t, []int64{1, 3}, d.Children[0].Ints)
	assert.Equal(t, []int64{2, 4}, d.Children[1].Ints)

	t.Run("arity mismatch fails", func(t *testing.T) {
		b, err := New(pair)
		require.NoError(t, err)
		accept(t, b, event.StartTupleEvent(), event.I64Event(1))
		require.Error(t, b.Accept(event.EndTupleEvent()))
	})
}

func TestListBuilder(t *testing.T) {
	f := schema.New("xs", schema.TypeList, true).WithChildren(
		schema.New("element", schema.TypeInt64, false),
	)
	b, err := New(f)
	require.NoError(t, err)

	accept(t, b,
		event.StartListEvent(), event.I64Event(1), event.I64Event(2), event.EndListEvent(),
		event.NullEvent(),
		event.StartListEvent(), event.EndListEvent(),
		event.StartListEvent(), event.I64Event(3), event.EndListEvent(),
	)

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 4, d.Len)
	assert.Equal(t, []int32{0, 2, 2, 2, 3}, d.Offsets)
	assert.Equal(t, []bool{true, false, true, true}, d.Validity)
	assert.Equal(t, []int64{1, 2, 3}, d.Children[0].Ints)
	require.NoError(t, d.Validate())
}

func TestMapBuilder(t *testing.T) {
	f := schema.New("m", schema.TypeMap, false).WithChildren(
		schema.New("key", schema.TypeUtf8, false),
		schema.New("value", schema.TypeInt64, false),
	)
	b, err := New(f)
	require.NoError(t, err)

	accept(t, b,
		event.StartMapEvent(),
		event.StrEvent("a"), event.I64Event(1),
		event.StrEvent("b"), event.I64Event(2),
		event.EndMapEvent(),
		event.StartMapEvent(), event.EndMapEvent(),
	)

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 2}, d.Offsets)
	assert.Equal(t, []string{"a", "b"}, d.Children[0].Strs)
	assert.Equal(t, []int64{1, 2}, d.Children[1].Ints)

	t.Run("entry with key but no value fails", func(t *testing.T) {
		b, err := New(f)
		require.NoError(t, err)
		accept(t, b, event.StartMapEvent(), event.StrEvent("a"))
		err = b.Accept(event.EndMapEvent())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	})
}

func TestUnionBuilder(t *testing.T) {
	f := schema.New("u", schema.TypeUnion, false).WithChildren(
		schema.New("i", schema.TypeInt64, false),
		schema.New("s", schema.TypeUtf8, false),
	)
	b, err := New(f)
	require.NoError(t, err)

	accept(t, b,
		event.VariantEvent("i", 0), event.I64Event(1),
		event.VariantEvent("s", 1), event.StrEvent("x"),
		event.VariantEvent("i", 0), event.I64Event(2),
	)

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []int8{0, 1, 0}, d.TypeIDs)
	assert.Equal(t, []int32{0, 0, 1}, d.ChildOffsets)
	assert.Equal(t, []int64{1, 2}, d.Children[0].Ints)
	assert.Equal(t, []string{"x"}, d.Children[1].Strs)

	t.Run("nulls are rejected", func(t *testing.T) {
		b, err := New(f)
		require.NoError(t, err)
		err = b.Accept(event.NullEvent())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
	})

	t.Run("unknown variant index fails", func(t *testing.T) {
		b, err := New(f)
		require.NoError(t, err)
		require.Error(t, b.Accept(event.VariantEvent("x", 5)))
	})
}

func TestBuilderResetsAfterBuild(t *testing.T) {
	b, err := New(schema.New("v", schema.TypeInt64, false))
	require.NoError(t, err)
	accept(t, b, event.I64Event(1))

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len)

	accept(t, b, event.I64Event(2))
	d, err = b.Build()
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len)
	assert.Equal(t, []int64{2}, d.Ints)
}
