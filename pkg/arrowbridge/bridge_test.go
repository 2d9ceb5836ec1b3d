package arrowbridge

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowcast/arrowcast/pkg/builder"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

func buildColumn(t *testing.T, f schema.Field, events ...event.Event) *columnar.Data {
	t.Helper()
	b, err := builder.New(f)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, b.Accept(ev))
	}
	require.NoError(t, b.Finish())
	d, err := b.Build()
	require.NoError(t, err)
	return d
}

func roundTrip(t *testing.T, d *columnar.Data) *columnar.Data {
	t.Helper()
	arr, err := ToArrow(d, memory.NewGoAllocator())
	require.NoError(t, err)
	defer arr.Release()
	require.Equal(t, d.Len, arr.Len())

	again, err := FromArrow(arr, d.Field)
	require.NoError(t, err)
	return again
}

func TestPrimitiveRoundTrips(t *testing.T) {
	t.Run("int64 with nulls", func(t *testing.T) {
		d := buildColumn(t, schema.New("v", schema.TypeInt64, true),
			event.I64Event(1), event.NullEvent(), event.I64Event(3))
		got := roundTrip(t, d)
		assert.Equal(t, []int64{1, 0, 3}, got.Ints)
		assert.Equal(t, []bool{true, false, true}, got.Validity)
		assert.Equal(t, 1, got.NullCount())
	})

	t.Run("bool without nulls", func(t *testing.T) {
		d := buildColumn(t, schema.New("v", schema.TypeBool, false),
			event.BoolEvent(true), event.BoolEvent(false))
		got := roundTrip(t, d)
		assert.Equal(t, []bool{true, false}, got.Bools)
		assert.Equal(t, 0, got.NullCount())
	})

	t.Run("uint16", func(t *testing.T) {
		d := buildColumn(t, schema.New("v", schema.TypeUint16, false),
			event.U16Event(1), event.U16Event(65535))
		got := roundTrip(t, d)
		assert.Equal(t, []uint64{1, 65535}, got.Uints)
	})

	t.Run("float32 and strings", func(t *testing.T) {
		f := buildColumn(t, schema.New("f", schema.TypeFloat32, false),
			event.F32Event(1.5))
		assert.Equal(t, []float64{1.5}, roundTrip(t, f).Floats)

		s := buildColumn(t, schema.New("s", schema.TypeUtf8, true),
			event.StrEvent("a"), event.NullEvent())
		got := roundTrip(t, s)
		assert.Equal(t, []string{"a", ""}, got.Strs)
		assert.False(t, got.IsValid(1))
	})

	t.Run("date64", func(t *testing.T) {
		d := buildColumn(t, schema.New("v", schema.TypeDate64, false),
			event.I64Event(86400000))
		assert.Equal(t, []int64{86400000}, roundTrip(t, d).Ints)
	})
}

func TestStructRoundTrip(t *testing.T) {
	f := schema.New("s", schema.TypeStruct, true).WithChildren(
		schema.New("x", schema.TypeInt64, false),
		schema.New("y", schema.TypeUtf8, false),
	)
	d := buildColumn(t, f,
		event.StartStructEvent(),
		event.StrEvent("x"), event.I64Event(1),
		event.StrEvent("y"), event.StrEvent("a"),
		event.EndStructEvent(),
		event.NullEvent(),
	)
	got := roundTrip(t, d)
	assert.Equal(t, 2, got.Len)
	assert.False(t, got.IsValid(1))
	require.Len(t, got.Children, 2)
	assert.Equal(t, []int64{1, 0}, got.Children[0].Ints)
	assert.Equal(t, []string{"a", ""}, got.Children[1].Strs)
}

func TestListRoundTrip(t *testing.T) {
	f := schema.New("xs", schema.TypeList, true).WithChildren(
		schema.New("element", schema.TypeInt64, false),
	)
	d := buildColumn(t, f,
		event.StartListEvent(), event.I64Event(1), event.I64Event(2), event.EndListEvent(),
		event.NullEvent(),
		event.StartListEvent(), event.I64Event(3), event.EndListEvent(),
	)
	got := roundTrip(t, d)
	assert.Equal(t, []int32{0, 2, 2, 3}, got.Offsets)
	assert.False(t, got.IsValid(1))
	assert.Equal(t, []int64{1, 2, 3}, got.Children[0].Ints)
}

func TestMapRoundTrip(t *testing.T) {
	f := schema.New("m", schema.TypeMap, false).WithChildren(
		schema.New("key", schema.TypeUtf8, false),
		schema.New("value", schema.TypeInt64, false),
	)
	d := buildColumn(t, f,
		event.StartMapEvent(),
		event.StrEvent("a"), event.I64Event(1),
		event.StrEvent("b"), event.I64Event(2),
		event.EndMapEvent(),
		event.StartMapEvent(), event.EndMapEvent(),
	)
	got := roundTrip(t, d)
	assert.Equal(t, []int32{0, 2, 2}, got.Offsets)
	assert.Equal(t, []string{"a", "b"}, got.Children[0].Strs)
	assert.Equal(t, []int64{1, 2}, got.Children[1].Ints)
}

func TestDictionaryRoundTrip(t *testing.T) {
	f := schema.New("v", schema.TypeDictionary, false).WithChildren(
		schema.New("key", schema.TypeInt32, false),
		schema.New("value", schema.TypeUtf8, false),
	)
	d := buildColumn(t, f,
		event.StrEvent("a"), event.StrEvent("b"), event.StrEvent("a"))
	got := roundTrip(t, d)
	assert.Equal(t, []int32{0, 1, 0}, got.Keys)
	require.NotNil(t, got.Dict)
	assert.Equal(t, []string{"a", "b"}, got.Dict.Strs)
}

func TestUnionRoundTrip(t *testing.T) {
	f := schema.New("u", schema.TypeUnion, false).WithChildren(
		schema.New("i", schema.TypeInt64, false),
		schema.New("s", schema.TypeUtf8, false),
	)
	d := buildColumn(t, f,
		event.VariantEvent("i", 0), event.I64Event(1),
		event.VariantEvent("s", 1), event.StrEvent("x"),
		event.VariantEvent("i", 0), event.I64Event(2),
	)
	got := roundTrip(t, d)
	assert.Equal(t, []int8{0, 1, 0}, got.TypeIDs)
	assert.Equal(t, []int32{0, 0, 1}, got.ChildOffsets)
	assert.Equal(t, []int64{1, 2}, got.Children[0].Ints)
	assert.Equal(t, []string{"x"}, got.Children[1].Strs)
}

func TestNewRecordAndBack(t *testing.T) {
	id := buildColumn(t, schema.New("id", schema.TypeInt64, false),
		event.I64Event(1), event.I64Event(2))
	name := buildColumn(t, schema.New("name", schema.TypeUtf8, true),
		event.StrEvent("ada"), event.NullEvent())

	rec, err := NewRecord([]*columnar.Data{id, name}, nil)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(2), rec.NumCols())

	fields, cols, err := FromRecord(rec)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "id", fields[0].Name)
	assert.True(t, fields[1].Nullable)
	assert.Equal(t, []int64{1, 2}, cols[0].Ints)
	assert.Equal(t, []string{"ada", ""}, cols[1].Strs)
}

func TestNewRecordLengthMismatch(t *testing.T) {
	a := buildColumn(t, schema.New("a", schema.TypeInt64, false), event.I64Event(1))
	b := buildColumn(t, schema.New("b", schema.TypeInt64, false),
		event.I64Event(1), event.I64Event(2))
	_, err := NewRecord([]*columnar.Data{a, b}, nil)
	require.Error(t, err)
}

func TestSlicedListExtraction(t *testing.T) {
	f := schema.New("xs", schema.TypeList, false).WithChildren(
		schema.New("element", schema.TypeInt64, false),
	)
	d := buildColumn(t, f,
		event.StartListEvent(), event.I64Event(1), event.EndListEvent(),
		event.StartListEvent(), event.I64Event(2), event.I64Event(3), event.EndListEvent(),
		event.StartListEvent(), event.I64Event(4), event.EndListEvent(),
	)
	arr, err := ToArrow(d, nil)
	require.NoError(t, err)
	defer arr.Release()

	sliced := array.NewSlice(arr, 1, 3)
	defer sliced.Release()

	got, err := FromArrow(sliced, f)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len)
	assert.Equal(t, []int32{0, 2, 3}, got.Offsets)
	assert.Equal(t, []int64{2, 3, 4}, got.Children[0].Ints)
}

func TestFromArrowRejectsMismatchedField(t *testing.T) {
	d := buildColumn(t, schema.New("v", schema.TypeUtf8, false),
		event.StrEvent("a"), event.StrEvent("b"))
	arr, err := ToArrow(d, nil)
	require.NoError(t, err)
	defer arr.Release()

	_, err = FromArrow(arr, schema.New("v", schema.TypeInt64, false))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))

	t.Run("nested child mismatch", func(t *testing.T) {
		f := schema.New("xs", schema.TypeList, false).WithChildren(
			schema.New("element", schema.TypeInt64, false),
		)
		ld := buildColumn(t, f,
			event.StartListEvent(), event.I64Event(1), event.EndListEvent())
		larr, err := ToArrow(ld, nil)
		require.NoError(t, err)
		defer larr.Release()

		bad := schema.New("xs", schema.TypeList, false).WithChildren(
			schema.New("element", schema.TypeUtf8, false),
		)
		_, err = FromArrow(larr, bad)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
	})
}

func TestSchemaFieldRoundTrip(t *testing.T) {
	fields := []schema.Field{
		schema.New("id", schema.TypeInt64, false),
		schema.New("at", schema.TypeDate64, true).
			WithStrategy(schema.StrategyUTCStrAsDate64),
		schema.New("tags", schema.TypeList, false).WithChildren(
			schema.New("element", schema.TypeUtf8, false),
		),
		schema.New("attrs", schema.TypeMap, false).WithChildren(
			schema.New("key", schema.TypeUtf8, false),
			schema.New("value", schema.TypeInt64, true),
		),
		schema.New("tag", schema.TypeDictionary, false).WithChildren(
			schema.New("key", schema.TypeInt32, false),
			schema.New("value", schema.TypeUtf8, false),
		),
		schema.New("u", schema.TypeUnion, false).WithChildren(
			schema.New("i", schema.TypeInt64, false),
			schema.New("s", schema.TypeUtf8, false),
		),
	}
	as, err := ToArrowSchema(fields)
	require.NoError(t, err)

	got, err := FromArrowSchema(as)
	require.NoError(t, err)
	require.Len(t, got, len(fields))
	for i, f := range fields {
		assert.Equal(t, f.Name, got[i].Name)
		assert.Equal(t, f.Type, got[i].Type)
		assert.Equal(t, f.Nullable, got[i].Nullable)
		assert.Equal(t, f.Strategy(), got[i].Strategy())
		assert.Len(t, got[i].Children, len(f.Children))
	}
}

func TestMapItemNullability(t *testing.T) {
	f := schema.New("m", schema.TypeMap, false).WithChildren(
		schema.New("key", schema.TypeUtf8, false),
		schema.New("value", schema.TypeInt64, true),
	)
	dt, err := toArrowType(f)
	require.NoError(t, err)
	mt, ok := dt.(*arrow.MapType)
	require.True(t, ok)
	assert.True(t, mt.ItemField().Nullable)
	assert.False(t, mt.KeyField().Nullable)
}
