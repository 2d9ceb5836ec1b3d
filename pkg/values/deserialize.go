package values

import (
	"reflect"
	"time"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
)

// Deserialize pulls a row sequence from src and appends the records to
// out, which must be a pointer to a slice (of structs, maps or any)
func Deserialize(src event.Source, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return errors.New(errors.ErrorTypeEncoding,
			"deserialization target must be a non-nil pointer to a slice")
	}
	slice := rv.Elem()

	ev, ok, err := next(src)
	if err != nil {
		return err
	}
	if !ok || (ev.Kind != event.StartList && ev.Kind != event.StartTuple) {
		return errors.Newf(errors.ErrorTypeProtocol,
			"expected a row sequence start, got %s", ev)
	}
	endKind := event.EndList
	if ev.Kind == event.StartTuple {
		endKind = event.EndTuple
	}

	elem := slice.Type().Elem()
	for {
		ev, ok, err = next(src)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrorTypeProtocol,
				"event stream ended before the row sequence was closed")
		}
		if ev.Kind == endKind {
			break
		}
		v, err := decodeValue(src, ev)
		if err != nil {
			return err
		}
		dst := reflect.New(elem).Elem()
		if err := assign(dst, v); err != nil {
			return err
		}
		slice = reflect.Append(slice, dst)
	}
	rv.Elem().Set(slice)
	return nil
}

func next(src event.Source) (event.Event, bool, error) {
	return src.Next()
}

// decodeValue rebuilds one value from its events, given the value's
// first event. Structs become map[string]any, maps map[any]any, lists
// and tuples []any, variants Union.
func decodeValue(src event.Source, first event.Event) (any, error) {
	switch first.Kind {
	case event.Null, event.Default:
		return nil, nil
	case event.Bool:
		return first.BoolVal, nil
	case event.I8:
		return int8(first.IntVal), nil
	case event.I16:
		return int16(first.IntVal), nil
	case event.I32:
		return int32(first.IntVal), nil
	case event.I64:
		return first.IntVal, nil
	case event.U8:
		return uint8(first.UintVal), nil
	case event.U16:
		return uint16(first.UintVal), nil
	case event.U32:
		return uint32(first.UintVal), nil
	case event.U64:
		return first.UintVal, nil
	case event.F32:
		return float32(first.FloatVal), nil
	case event.F64:
		return first.FloatVal, nil
	case event.Str:
		return first.StrVal, nil
	case event.Bytes:
		return append([]byte(nil), first.BytesVal...), nil
	case event.StartStruct:
		return decodeStruct(src)
	case event.StartList, event.StartTuple:
		return decodeSequence(src, first.Kind)
	case event.StartMap:
		return decodeMap(src)
	case event.Variant:
		ev, ok, err := next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended after a variant marker")
		}
		v, err := decodeValue(src, ev)
		if err != nil {
			return nil, err
		}
		return Union{Name: first.StrVal, Index: first.Index, Value: v}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeProtocol,
		"unexpected %s at the start of a value", first)
}

func decodeStruct(src event.Source) (map[string]any, error) {
	out := map[string]any{}
	for {
		ev, ok, err := next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended inside a struct")
		}
		if ev.Kind == event.EndStruct {
			return out, nil
		}
		if ev.Kind != event.Str {
			return nil, errors.Newf(errors.ErrorTypeProtocol,
				"expected a field name, got %s", ev)
		}
		name := ev.StrVal
		ev, ok, err = next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended inside a struct")
		}
		v, err := decodeValue(src, ev)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
}

func decodeSequence(src event.Source, startKind event.Kind) ([]any, error) {
	endKind := event.EndList
	if startKind == event.StartTuple {
		endKind = event.EndTuple
	}
	var out []any
	for {
		ev, ok, err := next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended inside a sequence")
		}
		if ev.Kind == endKind {
			return out, nil
		}
		v, err := decodeValue(src, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func decodeMap(src event.Source) (map[any]any, error) {
	out := map[any]any{}
	for {
		ev, ok, err := next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended inside a map")
		}
		if ev.Kind == event.EndMap {
			return out, nil
		}
		key, err := decodeValue(src, ev)
		if err != nil {
			return nil, err
		}
		ev, ok, err = next(src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(errors.ErrorTypeProtocol,
				"event stream ended inside a map")
		}
		value, err := decodeValue(src, ev)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
}

var timeType = reflect.TypeOf(time.Time{})

// assign stores a decoded value into dst, converting numeric widths,
// parsing timestamps and mapping decoded containers onto Go structs,
// slices, arrays and maps
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	if dst.Type() == timeType {
		s, ok := v.(string)
		if !ok {
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"cannot assign %T to time.Time", v)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeEncoding, "invalid timestamp")
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch decoded := v.(type) {
	case map[string]any:
		return assignRecord(dst, decoded)
	case map[any]any:
		return assignMap(dst, decoded)
	case []any:
		return assignSequence(dst, decoded)
	case Union:
		if dst.Type() == reflect.TypeOf(Union{}) {
			dst.Set(reflect.ValueOf(decoded))
			return nil
		}
		return assign(dst, decoded.Value)
	}

	if s, ok := v.(string); ok && dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 {
		dst.SetBytes([]byte(s))
		return nil
	}
	if b, ok := v.([]byte); ok && dst.Kind() == reflect.String {
		dst.SetString(string(b))
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dst.Type()) && compatibleKinds(rv.Kind(), dst.Kind()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot assign %T to %s", v, dst.Type())
}

// compatibleKinds limits Convert to numeric widening and string/byte
// moves, keeping surprising conversions (int to string) out
func compatibleKinds(from, to reflect.Kind) bool {
	num := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64 && k != reflect.Uintptr
	}
	if num(from) && num(to) {
		return true
	}
	return from == reflect.String && to == reflect.String
}

func assignRecord(dst reflect.Value, decoded map[string]any) error {
	switch dst.Kind() {
	case reflect.Map:
		return assignMapValues(dst, func(yield func(k, v any) error) error {
			for k, v := range decoded {
				if err := yield(k, v); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Struct:
		t := dst.Type()
		for i := 0; i < t.NumField(); i++ {
			name, ok := fieldName(t.Field(i))
			if !ok {
				continue
			}
			v, present := decoded[name]
			if !present {
				continue
			}
			if err := assign(dst.Field(i), v); err != nil {
				return errors.Wrap(err, errors.ErrorTypeTypeMismatch, "field "+name)
			}
		}
		return nil
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot assign a record to %s", dst.Type())
}

func assignMap(dst reflect.Value, decoded map[any]any) error {
	if dst.Kind() != reflect.Map {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"cannot assign a map to %s", dst.Type())
	}
	return assignMapValues(dst, func(yield func(k, v any) error) error {
		for k, v := range decoded {
			if err := yield(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func assignMapValues(dst reflect.Value, each func(func(k, v any) error) error) error {
	t := dst.Type()
	out := reflect.MakeMap(t)
	err := each(func(k, v any) error {
		key := reflect.New(t.Key()).Elem()
		if err := assign(key, k); err != nil {
			return err
		}
		value := reflect.New(t.Elem()).Elem()
		if err := assign(value, v); err != nil {
			return err
		}
		out.SetMapIndex(key, value)
		return nil
	})
	if err != nil {
		return err
	}
	dst.Set(out)
	return nil
}

func assignSequence(dst reflect.Value, decoded []any) error {
	switch dst.Kind() {
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			return errors.New(errors.ErrorTypeTypeMismatch,
				"cannot assign a sequence to a byte slice")
		}
		out := reflect.MakeSlice(dst.Type(), len(decoded), len(decoded))
		for i, v := range decoded {
			if err := assign(out.Index(i), v); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		if dst.Len() != len(decoded) {
			return errors.Newf(errors.ErrorTypeTypeMismatch,
				"cannot assign %d elements to a %d element array", len(decoded), dst.Len())
		}
		for i, v := range decoded {
			if err := assign(dst.Index(i), v); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot assign a sequence to %s", dst.Type())
}
