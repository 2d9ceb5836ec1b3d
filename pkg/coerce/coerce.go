// Package coerce implements the numeric widening and narrowing rules and
// the date/time string encodings shared by both conversion directions.
package coerce

import (
	"math"
	"time"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/event"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

var intRanges = map[schema.DataType][2]int64{
	schema.TypeInt8:  {math.MinInt8, math.MaxInt8},
	schema.TypeInt16: {math.MinInt16, math.MaxInt16},
	schema.TypeInt32: {math.MinInt32, math.MaxInt32},
	schema.TypeInt64: {math.MinInt64, math.MaxInt64},
}

var uintMaxes = map[schema.DataType]uint64{
	schema.TypeUint8:  math.MaxUint8,
	schema.TypeUint16: math.MaxUint16,
	schema.TypeUint32: math.MaxUint32,
	schema.TypeUint64: math.MaxUint64,
}

// ToInt64 coerces a scalar event into a signed integer column of type
// target. Widening is always permitted; narrowing is range checked and
// fails with an encoding error on overflow.
func ToInt64(ev event.Event, target schema.DataType) (int64, error) {
	r := intRanges[target]
	switch ev.Kind {
	case event.I8, event.I16, event.I32, event.I64:
		if ev.IntVal < r[0] || ev.IntVal > r[1] {
			return 0, errors.Newf(errors.ErrorTypeEncoding,
				"value %d overflows %s", ev.IntVal, target)
		}
		return ev.IntVal, nil
	case event.U8, event.U16, event.U32, event.U64:
		if ev.UintVal > uint64(r[1]) {
			return 0, errors.Newf(errors.ErrorTypeEncoding,
				"value %d overflows %s", ev.UintVal, target)
		}
		return int64(ev.UintVal), nil
	}
	return 0, errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in %s column", ev, target)
}

// ToUint64 coerces a scalar event into an unsigned integer column of type
// target, range checking narrowing and sign
func ToUint64(ev event.Event, target schema.DataType) (uint64, error) {
	limit := uintMaxes[target]
	switch ev.Kind {
	case event.U8, event.U16, event.U32, event.U64:
		if ev.UintVal > limit {
			return 0, errors.Newf(errors.ErrorTypeEncoding,
				"value %d overflows %s", ev.UintVal, target)
		}
		return ev.UintVal, nil
	case event.I8, event.I16, event.I32, event.I64:
		if ev.IntVal < 0 || uint64(ev.IntVal) > limit {
			return 0, errors.Newf(errors.ErrorTypeEncoding,
				"value %d overflows %s", ev.IntVal, target)
		}
		return uint64(ev.IntVal), nil
	}
	return 0, errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in %s column", ev, target)
}

// ToFloat64 coerces a scalar event into a floating point column. Float
// narrowing truncates precision per IEEE rounding and is not an error;
// integers convert losslessly up to the float's mantissa.
func ToFloat64(ev event.Event, target schema.DataType) (float64, error) {
	switch ev.Kind {
	case event.F32, event.F64:
		v := ev.FloatVal
		if target == schema.TypeFloat32 || target == schema.TypeFloat16 {
			v = float64(float32(v))
		}
		return v, nil
	case event.I8, event.I16, event.I32, event.I64:
		return float64(ev.IntVal), nil
	case event.U8, event.U16, event.U32, event.U64:
		return float64(ev.UintVal), nil
	}
	return 0, errors.Newf(errors.ErrorTypeTypeMismatch,
		"cannot store %s in %s column", ev, target)
}

// Fixed textual profiles for string-encoded timestamps. Both are RFC 3339
// shapes, not locale dependent: the naive profile carries no UTC offset,
// the UTC profile requires one.
const (
	naiveLayout       = "2006-01-02T15:04:05.999999999"
	naiveMillisLayout = "2006-01-02T15:04:05.999"
	utcMillisLayout   = "2006-01-02T15:04:05.999Z07:00"
)

// ParseNaiveDatetime parses an RFC 3339 timestamp without offset into
// milliseconds since epoch
func ParseNaiveDatetime(s string) (int64, error) {
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEncoding,
			"invalid naive datetime string")
	}
	return t.UnixMilli(), nil
}

// FormatNaiveDatetime renders milliseconds since epoch as an RFC 3339
// timestamp without offset
func FormatNaiveDatetime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(naiveMillisLayout)
}

// ParseUTCDatetime parses an RFC 3339 timestamp with offset into
// milliseconds since epoch
func ParseUTCDatetime(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeEncoding,
			"invalid UTC datetime string")
	}
	return t.UnixMilli(), nil
}

// FormatUTCDatetime renders milliseconds since epoch as an RFC 3339 UTC
// timestamp
func FormatUTCDatetime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(utcMillisLayout)
}
