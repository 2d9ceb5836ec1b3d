// Package values bridges plain Go values and the event stream.
//
// Serialization walks a value with reflection and pushes the
// corresponding events; deserialization pulls events and rebuilds Go
// values. Struct fields honor json tags, fixed-size arrays become
// tuples, maps become map events (sorted by key for determinism) and the
// Union wrapper names which variant a value carries.
package values

import (
	"reflect"
	"sort"
	"time"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
)

// Union wraps one variant of a union value. Index is the variant's
// position in the schema, Name its field name.
type Union struct {
	Name  string
	Index int
	Value any
}

// Serialize pushes the events for one value into sink
func Serialize(v any, sink event.Sink) error {
	if v == nil {
		return sink.Accept(event.NullEvent())
	}
	if u, ok := v.(Union); ok {
		if err := sink.Accept(event.VariantEvent(u.Name, u.Index)); err != nil {
			return err
		}
		return Serialize(u.Value, sink)
	}
	if t, ok := v.(time.Time); ok {
		return sink.Accept(event.StrEvent(t.UTC().Format(time.RFC3339Nano)))
	}
	return serializeValue(reflect.ValueOf(v), sink)
}

// SerializeRows pushes a whole row sequence: rows must be a slice or
// array, and each element becomes one record
func SerializeRows(rows any, sink event.Sink) error {
	rv := reflect.ValueOf(rows)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.New(errors.ErrorTypeEncoding, "rows value is a nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return errors.Newf(errors.ErrorTypeEncoding,
			"rows must be a slice or array, got %s", rv.Kind())
	}
	if err := sink.Accept(event.StartListEvent()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := Serialize(rv.Index(i).Interface(), sink); err != nil {
			return err
		}
	}
	return sink.Accept(event.EndListEvent())
}

func serializeValue(rv reflect.Value, sink event.Sink) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return sink.Accept(event.NullEvent())
		}
		return Serialize(rv.Elem().Interface(), sink)
	case reflect.Bool:
		return sink.Accept(event.BoolEvent(rv.Bool()))
	case reflect.Int8:
		return sink.Accept(event.I8Event(int8(rv.Int())))
	case reflect.Int16:
		return sink.Accept(event.I16Event(int16(rv.Int())))
	case reflect.Int32:
		return sink.Accept(event.I32Event(int32(rv.Int())))
	case reflect.Int, reflect.Int64:
		return sink.Accept(event.I64Event(rv.Int()))
	case reflect.Uint8:
		return sink.Accept(event.U8Event(uint8(rv.Uint())))
	case reflect.Uint16:
		return sink.Accept(event.U16Event(uint16(rv.Uint())))
	case reflect.Uint32:
		return sink.Accept(event.U32Event(uint32(rv.Uint())))
	case reflect.Uint, reflect.Uint64:
		return sink.Accept(event.U64Event(rv.Uint()))
	case reflect.Float32:
		return sink.Accept(event.F32Event(float32(rv.Float())))
	case reflect.Float64:
		return sink.Accept(event.F64Event(rv.Float()))
	case reflect.String:
		return sink.Accept(event.StrEvent(rv.String()))
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return sink.Accept(event.BytesEvent(rv.Bytes()))
		}
		return serializeList(rv, sink)
	case reflect.Array:
		return serializeTuple(rv, sink)
	case reflect.Struct:
		return serializeStruct(rv, sink)
	case reflect.Map:
		return serializeMap(rv, sink)
	}
	return errors.Newf(errors.ErrorTypeUnsupportedType,
		"cannot serialize a %s value", rv.Kind())
}

func serializeList(rv reflect.Value, sink event.Sink) error {
	if err := sink.Accept(event.StartListEvent()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := Serialize(rv.Index(i).Interface(), sink); err != nil {
			return err
		}
	}
	return sink.Accept(event.EndListEvent())
}

func serializeTuple(rv reflect.Value, sink event.Sink) error {
	if err := sink.Accept(event.StartTupleEvent()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := Serialize(rv.Index(i).Interface(), sink); err != nil {
			return err
		}
	}
	return sink.Accept(event.EndTupleEvent())
}

func serializeStruct(rv reflect.Value, sink event.Sink) error {
	if err := sink.Accept(event.StartStructEvent()); err != nil {
		return err
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := fieldName(sf)
		if !ok {
			continue
		}
		if err := sink.Accept(event.StrEvent(name)); err != nil {
			return err
		}
		if err := Serialize(rv.Field(i).Interface(), sink); err != nil {
			return err
		}
	}
	return sink.Accept(event.EndStructEvent())
}

// serializeMap distinguishes the dynamic record idiom map[string]any,
// which becomes a struct with sorted field names, from typed maps, which
// become map events. Keys are sorted either way so the stream is
// deterministic.
func serializeMap(rv reflect.Value, sink event.Sink) error {
	t := rv.Type()
	record := t.Key().Kind() == reflect.String && t.Elem().Kind() == reflect.Interface

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return mapKeyLess(keys[i], keys[j]) })

	start, end := event.StartMapEvent(), event.EndMapEvent()
	if record {
		start, end = event.StartStructEvent(), event.EndStructEvent()
	}
	if err := sink.Accept(start); err != nil {
		return err
	}
	for _, k := range keys {
		if err := Serialize(k.Interface(), sink); err != nil {
			return err
		}
		if err := Serialize(rv.MapIndex(k).Interface(), sink); err != nil {
			return err
		}
	}
	return sink.Accept(end)
}

func mapKeyLess(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return a.Uint() < b.Uint()
	}
	return false
}

// fieldName resolves a struct field's wire name from its json tag,
// reporting false for unexported or omitted fields
func fieldName(sf reflect.StructField) (string, bool) {
	if sf.PkgPath != "" {
		return "", false
	}
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, true
	}
	name := tag
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			name = tag[:i]
			break
		}
	}
	if name == "-" {
		return "", false
	}
	if name == "" {
		return sf.Name, true
	}
	return name, true
}
