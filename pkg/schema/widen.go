package schema

import (
	"github.com/arrowcast/arrowcast/pkg/errors"
)

// intWidth returns the width rank of an integer type (0 = 8 bit .. 3 = 64 bit)
func intWidth(t DataType) int {
	switch t {
	case TypeInt8, TypeUint8:
		return 0
	case TypeInt16, TypeUint16:
		return 1
	case TypeInt32, TypeUint32:
		return 2
	default:
		return 3
	}
}

func signedOfWidth(w int) DataType {
	return TypeInt8 + DataType(w)
}

func unsignedOfWidth(w int) DataType {
	return TypeUint8 + DataType(w)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WidenTypes merges two observed scalar types into the narrowest type
// covering both, following the tracing lattice: same-category integers and
// floats widen to the larger width, an unsigned type merged with a signed
// type widens to the signed type covering its range, and strings widen to
// the larger string type. Mixing integers with floats requires
// coerceNumbers and unifies to float64. Incompatible categories fail.
func WidenTypes(a, b DataType, coerceNumbers bool) (DataType, error) {
	if a == b {
		return a, nil
	}

	switch {
	case a.IsSigned() && b.IsSigned():
		return signedOfWidth(maxInt(intWidth(a), intWidth(b))), nil

	case a.IsUnsigned() && b.IsUnsigned():
		return unsignedOfWidth(maxInt(intWidth(a), intWidth(b))), nil

	case a.IsSigned() && b.IsUnsigned(), a.IsUnsigned() && b.IsSigned():
		signed, unsigned := a, b
		if a.IsUnsigned() {
			signed, unsigned = b, a
		}
		if unsigned == TypeUint64 {
			if coerceNumbers {
				return TypeInt64, nil
			}
			return 0, errors.Newf(errors.ErrorTypeSchemaInference,
				"cannot merge %s with %s: no signed type covers uint64", a, b)
		}
		return signedOfWidth(maxInt(intWidth(signed), intWidth(unsigned)+1)), nil

	case a.IsFloat() && b.IsFloat():
		if a > b {
			return a, nil
		}
		return b, nil

	case (a.IsFloat() || b.IsFloat()) &&
		(a.IsSigned() || a.IsUnsigned() || b.IsSigned() || b.IsUnsigned()):
		if coerceNumbers {
			return TypeFloat64, nil
		}
		return 0, errors.Newf(errors.ErrorTypeSchemaInference,
			"cannot merge %s with %s without numeric coercion", a, b)

	case a.IsString() && b.IsString():
		return TypeLargeUtf8, nil

	case a == TypeNull:
		return b, nil
	case b == TypeNull:
		return a, nil
	}

	return 0, errors.Newf(errors.ErrorTypeSchemaInference,
		"incompatible types %s and %s", a, b)
}
