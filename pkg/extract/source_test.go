package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowcast/arrowcast/pkg/builder"
	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

func drain(t *testing.T, s *Source) []event.Event {
	t.Helper()
	var out []event.Event
	for {
		ev, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func buildColumns(t *testing.T, fields []schema.Field, events []event.Event) []*columnar.Data {
	t.Helper()
	rb, err := builder.NewRecord(fields)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, rb.Accept(ev))
	}
	require.NoError(t, rb.Finish())
	cols, err := rb.Build()
	require.NoError(t, err)
	return cols
}

// Building columns from a stream and replaying them must yield columns
// identical to the original batch.
func TestRoundTrip(t *testing.T) {
	fields := []schema.Field{
		schema.New("id", schema.TypeInt64, false),
		schema.New("name", schema.TypeUtf8, true),
		schema.New("tags", schema.TypeList, false).WithChildren(
			schema.New("element", schema.TypeDictionary, false).WithChildren(
				schema.New("key", schema.TypeInt32, false),
				schema.New("value", schema.TypeUtf8, false),
			),
		),
		schema.New("attrs", schema.TypeMap, false).WithChildren(
			schema.New("key", schema.TypeUtf8, false),
			schema.New("value", schema.TypeFloat64, false),
		),
		schema.New("at", schema.TypeDate64, false).
			WithStrategy(schema.StrategyUTCStrAsDate64),
	}
	events := []event.Event{
		event.StartStructEvent(),
		event.StrEvent("id"), event.I64Event(1),
		event.StrEvent("name"), event.StrEvent("ada"),
		event.StrEvent("tags"),
		event.StartListEvent(), event.StrEvent("x"), event.StrEvent("y"), event.EndListEvent(),
		event.StrEvent("attrs"),
		event.StartMapEvent(), event.StrEvent("w"), event.F64Event(1.5), event.EndMapEvent(),
		event.StrEvent("at"), event.StrEvent("2024-01-02T03:04:05Z"),
		event.EndStructEvent(),
		event.StartStructEvent(),
		event.StrEvent("id"), event.I64Event(2),
		event.StrEvent("name"), event.NullEvent(),
		event.StrEvent("tags"),
		event.StartListEvent(), event.StrEvent("x"), event.EndListEvent(),
		event.StrEvent("attrs"),
		event.StartMapEvent(), event.EndMapEvent(),
		event.StrEvent("at"), event.StrEvent("2024-01-02T03:04:06Z"),
		event.EndStructEvent(),
	}
	cols := buildColumns(t, fields, events)

	src, err := NewSource(cols)
	require.NoError(t, err)

	rb, err := builder.NewRecord(fields)
	require.NoError(t, err)
	strip := event.NewStripOuterSequence(rb)
	require.NoError(t, event.Pipe(src, strip))
	require.NoError(t, rb.Finish())

	again, err := rb.Build()
	require.NoError(t, err)
	assert.Equal(t, cols, again)
}

func TestSourceEventShape(t *testing.T) {
	fields := []schema.Field{schema.New("v", schema.TypeInt64, false)}
	cols := buildColumns(t, fields, []event.Event{
		event.StartStructEvent(), event.StrEvent("v"), event.I64Event(7), event.EndStructEvent(),
	})

	src, err := NewSource(cols)
	require.NoError(t, err)
	got := drain(t, src)
	want := []event.Event{
		event.StartListEvent(),
		event.StartStructEvent(), event.StrEvent("v"), event.I64Event(7), event.EndStructEvent(),
		event.EndListEvent(),
	}
	assert.Equal(t, want, got)
}

func TestSourceMinimumRowCount(t *testing.T) {
	long := &columnar.Data{
		Field: schema.New("a", schema.TypeInt64, false),
		Len:   3,
		Ints:  []int64{1, 2, 3},
	}
	short := &columnar.Data{
		Field: schema.New("b", schema.TypeInt64, false),
		Len:   2,
		Ints:  []int64{10, 20},
	}
	src, err := NewSource([]*columnar.Data{long, short})
	require.NoError(t, err)

	var records int
	for _, ev := range drain(t, src) {
		if ev.Kind == event.StartStruct {
			records++
		}
	}
	assert.Equal(t, 2, records)
}

func TestSourceRejectsMalformedColumns(t *testing.T) {
	bad := &columnar.Data{
		Field:   schema.New("xs", schema.TypeList, false).WithChildren(schema.New("element", schema.TypeInt64, false)),
		Len:     2,
		Offsets: []int32{0, 1}, // needs Len+1 entries
		Children: []*columnar.Data{
			{Field: schema.New("element", schema.TypeInt64, false), Len: 1, Ints: []int64{1}},
		},
	}
	_, err := NewSource([]*columnar.Data{bad})
	require.Error(t, err)
}

func TestColumnSource(t *testing.T) {
	col := &columnar.Data{
		Field:    schema.New("v", schema.TypeUtf8, true),
		Len:      3,
		Strs:     []string{"a", "", "c"},
		Validity: []bool{true, false, true},
	}
	src, err := NewColumnSource(col)
	require.NoError(t, err)
	got := drain(t, src)
	want := []event.Event{
		event.StartListEvent(),
		event.StrEvent("a"),
		event.NullEvent(),
		event.StrEvent("c"),
		event.EndListEvent(),
	}
	assert.Equal(t, want, got)
}

func TestUnionReplayRejectsBadVariantID(t *testing.T) {
	f := schema.New("u", schema.TypeUnion, false).WithChildren(
		schema.New("i", schema.TypeInt64, false),
	)
	for _, id := range []int8{-1, 1} {
		col := &columnar.Data{
			Field:        f,
			Len:          1,
			TypeIDs:      []int8{id},
			ChildOffsets: []int32{0},
			Children: []*columnar.Data{
				{Field: schema.New("i", schema.TypeInt64, false), Len: 1, Ints: []int64{7}},
			},
		}
		src, err := NewColumnSource(col)
		require.NoError(t, err)
		_, _, err = src.Next()
		require.NoError(t, err)
		_, _, err = src.Next()
		require.Error(t, err, "variant id %d", id)
	}
}

func TestUnionReplay(t *testing.T) {
	fields := []schema.Field{
		schema.New("u", schema.TypeUnion, false).WithChildren(
			schema.New("i", schema.TypeInt64, false),
			schema.New("s", schema.TypeUtf8, false),
		),
	}
	events := []event.Event{
		event.StartStructEvent(),
		event.StrEvent("u"), event.VariantEvent("i", 0), event.I64Event(1),
		event.EndStructEvent(),
		event.StartStructEvent(),
		event.StrEvent("u"), event.VariantEvent("s", 1), event.StrEvent("x"),
		event.EndStructEvent(),
	}
	cols := buildColumns(t, fields, events)

	src, err := NewSource(cols)
	require.NoError(t, err)
	got := drain(t, src)
	want := []event.Event{
		event.StartListEvent(),
		event.StartStructEvent(),
		event.StrEvent("u"), event.VariantEvent("i", 0), event.I64Event(1),
		event.EndStructEvent(),
		event.StartStructEvent(),
		event.StrEvent("u"), event.VariantEvent("s", 1), event.StrEvent("x"),
		event.EndStructEvent(),
		event.EndListEvent(),
	}
	assert.Equal(t, want, got)
}
