// Package schema defines the logical field model describing columnar data
// and the tracer that infers it from representative samples.
package schema

import (
	"github.com/arrowcast/arrowcast/pkg/errors"
	gojson "github.com/goccy/go-json"
)

// DataType enumerates the logical column types supported by the engine
type DataType int

const (
	TypeNull DataType = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat16
	TypeFloat32
	TypeFloat64
	TypeUtf8
	TypeLargeUtf8
	TypeDate64
	TypeStruct
	TypeList
	TypeLargeList
	TypeUnion
	TypeMap
	TypeDictionary
)

var typeNames = map[DataType]string{
	TypeNull:       "null",
	TypeBool:       "bool",
	TypeInt8:       "int8",
	TypeInt16:      "int16",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeUint8:      "uint8",
	TypeUint16:     "uint16",
	TypeUint32:     "uint32",
	TypeUint64:     "uint64",
	TypeFloat16:    "float16",
	TypeFloat32:    "float32",
	TypeFloat64:    "float64",
	TypeUtf8:       "utf8",
	TypeLargeUtf8:  "large_utf8",
	TypeDate64:     "date64",
	TypeStruct:     "struct",
	TypeList:       "list",
	TypeLargeList:  "large_list",
	TypeUnion:      "union",
	TypeMap:        "map",
	TypeDictionary: "dictionary",
}

var typesByName = func() map[string]DataType {
	m := make(map[string]DataType, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// String returns the canonical type name
func (t DataType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// MarshalJSON encodes the type as its canonical name
func (t DataType) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(t.String())
}

// UnmarshalJSON decodes a canonical type name
func (t *DataType) UnmarshalJSON(data []byte) error {
	var name string
	if err := gojson.Unmarshal(data, &name); err != nil {
		return err
	}
	dt, ok := typesByName[name]
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown data type %q", name)
	}
	*t = dt
	return nil
}

// IsSigned reports whether t is a signed integer type
func (t DataType) IsSigned() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

// IsUnsigned reports whether t is an unsigned integer type
func (t DataType) IsUnsigned() bool {
	return t >= TypeUint8 && t <= TypeUint64
}

// IsFloat reports whether t is a floating point type
func (t DataType) IsFloat() bool {
	return t >= TypeFloat16 && t <= TypeFloat64
}

// IsString reports whether t is a string type
func (t DataType) IsString() bool {
	return t == TypeUtf8 || t == TypeLargeUtf8
}

// IsPrimitive reports whether t is a leaf type without children
func (t DataType) IsPrimitive() bool {
	return t < TypeStruct
}

// Metadata keys carrying encoding strategy hints. They survive the round
// trip through the array library's per-field metadata mapping.
const (
	// MetadataKeyStrategy marks a field whose physical type differs from
	// the source representation
	MetadataKeyStrategy = "arrowcast.strategy"

	// StrategyTupleAsStruct marks a struct field that represents a tuple;
	// its children are positional and unnamed in the source
	StrategyTupleAsStruct = "tuple_as_struct"
	// StrategyNaiveStrAsDate64 marks a date64 field stored in the source
	// as an RFC 3339 timestamp string without offset
	StrategyNaiveStrAsDate64 = "naive_str_as_date64"
	// StrategyUTCStrAsDate64 marks a date64 field stored in the source as
	// an RFC 3339 UTC timestamp string
	StrategyUTCStrAsDate64 = "utc_str_as_date64"
)

// Field is one schema node: a column's logical type, nullability, ordered
// children (for containers) and encoding metadata.
//
// Children arity is fixed per type: lists carry exactly one child, maps
// exactly two (key, value), dictionaries exactly two (key type, value
// type), unions one child per variant in declaration order.
type Field struct {
	Name     string            `json:"name"`
	Type     DataType          `json:"type"`
	Nullable bool              `json:"nullable,omitempty"`
	Children []Field           `json:"children,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New creates a field without children
func New(name string, t DataType, nullable bool) Field {
	return Field{Name: name, Type: t, Nullable: nullable}
}

// WithChildren returns a copy of f with the given children
func (f Field) WithChildren(children ...Field) Field {
	f.Children = children
	return f
}

// WithMetadata returns a copy of f with the metadata entry set
func (f Field) WithMetadata(key, value string) Field {
	md := make(map[string]string, len(f.Metadata)+1)
	for k, v := range f.Metadata {
		md[k] = v
	}
	md[key] = value
	f.Metadata = md
	return f
}

// WithStrategy returns a copy of f with the strategy hint set
func (f Field) WithStrategy(strategy string) Field {
	return f.WithMetadata(MetadataKeyStrategy, strategy)
}

// Strategy returns the strategy hint, or "" if none is set
func (f Field) Strategy() string {
	return f.Metadata[MetadataKeyStrategy]
}

// IsTupleStruct reports whether f is a struct representing a tuple
func (f Field) IsTupleStruct() bool {
	return f.Type == TypeStruct && f.Strategy() == StrategyTupleAsStruct
}

// Validate checks the children arity invariants of f and all descendants
func (f Field) Validate() error {
	switch f.Type {
	case TypeList, TypeLargeList:
		if len(f.Children) != 1 {
			return errors.Newf(errors.ErrorTypeConfig,
				"list field %q must have exactly one child, has %d", f.Name, len(f.Children))
		}
	case TypeMap:
		if len(f.Children) != 2 {
			return errors.Newf(errors.ErrorTypeConfig,
				"map field %q must have exactly two children (key, value), has %d", f.Name, len(f.Children))
		}
	case TypeDictionary:
		if len(f.Children) != 2 {
			return errors.Newf(errors.ErrorTypeConfig,
				"dictionary field %q must have exactly two children (key type, value type), has %d", f.Name, len(f.Children))
		}
		if !f.Children[0].Type.IsSigned() && !f.Children[0].Type.IsUnsigned() {
			return errors.Newf(errors.ErrorTypeConfig,
				"dictionary field %q key type must be an integer, is %s", f.Name, f.Children[0].Type)
		}
		if !f.Children[1].Type.IsString() {
			return errors.Newf(errors.ErrorTypeConfig,
				"dictionary field %q value type must be a string, is %s", f.Name, f.Children[1].Type)
		}
	case TypeUnion:
		if len(f.Children) == 0 {
			return errors.Newf(errors.ErrorTypeConfig,
				"union field %q must have at least one variant", f.Name)
		}
	case TypeStruct:
		if len(f.Children) == 0 {
			return errors.Newf(errors.ErrorTypeConfig,
				"struct field %q must have at least one child", f.Name)
		}
	default:
		if len(f.Children) != 0 {
			return errors.Newf(errors.ErrorTypeConfig,
				"%s field %q must not have children", f.Type, f.Name)
		}
	}
	for _, child := range f.Children {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}
