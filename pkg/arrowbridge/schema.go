// Package arrowbridge converts between the library's logical columns and
// apache/arrow-go arrays, fields and records. It is the only package that
// depends on the array library; everything upstream works on
// columnar.Data so the conversion core stays independent of the array
// implementation.
package arrowbridge

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// ToArrowField maps a logical field to an arrow.Field, carrying strategy
// metadata through so FromArrowField can reverse the mapping
func ToArrowField(f schema.Field) (arrow.Field, error) {
	dt, err := toArrowType(f)
	if err != nil {
		return arrow.Field{}, err
	}
	out := arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	if len(f.Metadata) > 0 {
		out.Metadata = arrow.MetadataFrom(f.Metadata)
	}
	return out, nil
}

func toArrowType(f schema.Field) (arrow.DataType, error) {
	switch f.Type {
	case schema.TypeNull:
		return arrow.Null, nil
	case schema.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.TypeInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case schema.TypeInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case schema.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case schema.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.TypeUint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case schema.TypeUint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case schema.TypeUint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case schema.TypeUint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case schema.TypeFloat16:
		return arrow.FixedWidthTypes.Float16, nil
	case schema.TypeFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case schema.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.TypeUtf8:
		return arrow.BinaryTypes.String, nil
	case schema.TypeLargeUtf8:
		return arrow.BinaryTypes.LargeString, nil
	case schema.TypeDate64:
		return arrow.FixedWidthTypes.Date64, nil
	case schema.TypeStruct:
		children := make([]arrow.Field, len(f.Children))
		for i, c := range f.Children {
			af, err := ToArrowField(c)
			if err != nil {
				return nil, err
			}
			children[i] = af
		}
		return arrow.StructOf(children...), nil
	case schema.TypeList, schema.TypeLargeList:
		child, err := ToArrowField(f.Children[0])
		if err != nil {
			return nil, err
		}
		if f.Type == schema.TypeLargeList {
			return arrow.LargeListOfField(child), nil
		}
		return arrow.ListOfField(child), nil
	case schema.TypeMap:
		key, err := toArrowType(f.Children[0])
		if err != nil {
			return nil, err
		}
		item, err := toArrowType(f.Children[1])
		if err != nil {
			return nil, err
		}
		mt := arrow.MapOf(key, item)
		mt.SetItemNullable(f.Children[1].Nullable)
		return mt, nil
	case schema.TypeUnion:
		variants := make([]arrow.Field, len(f.Children))
		codes := make([]arrow.UnionTypeCode, len(f.Children))
		for i, c := range f.Children {
			af, err := ToArrowField(c)
			if err != nil {
				return nil, err
			}
			variants[i] = af
			codes[i] = arrow.UnionTypeCode(i)
		}
		return arrow.DenseUnionOf(variants, codes), nil
	case schema.TypeDictionary:
		key, err := toArrowType(f.Children[0])
		if err != nil {
			return nil, err
		}
		value, err := toArrowType(f.Children[1])
		if err != nil {
			return nil, err
		}
		return &arrow.DictionaryType{IndexType: key, ValueType: value}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
		"field %q: no arrow mapping for data type %s", f.Name, f.Type)
}

// FromArrowField maps an arrow.Field back to a logical field
func FromArrowField(af arrow.Field) (schema.Field, error) {
	f := schema.Field{Name: af.Name, Nullable: af.Nullable}
	if af.Metadata.Len() > 0 {
		f.Metadata = make(map[string]string, af.Metadata.Len())
		for i, k := range af.Metadata.Keys() {
			f.Metadata[k] = af.Metadata.Values()[i]
		}
	}
	return fromArrowType(f, af.Type)
}

func fromArrowType(f schema.Field, dt arrow.DataType) (schema.Field, error) {
	switch t := dt.(type) {
	case *arrow.NullType:
		f.Type = schema.TypeNull
	case *arrow.BooleanType:
		f.Type = schema.TypeBool
	case *arrow.Int8Type:
		f.Type = schema.TypeInt8
	case *arrow.Int16Type:
		f.Type = schema.TypeInt16
	case *arrow.Int32Type:
		f.Type = schema.TypeInt32
	case *arrow.Int64Type:
		f.Type = schema.TypeInt64
	case *arrow.Uint8Type:
		f.Type = schema.TypeUint8
	case *arrow.Uint16Type:
		f.Type = schema.TypeUint16
	case *arrow.Uint32Type:
		f.Type = schema.TypeUint32
	case *arrow.Uint64Type:
		f.Type = schema.TypeUint64
	case *arrow.Float16Type:
		f.Type = schema.TypeFloat16
	case *arrow.Float32Type:
		f.Type = schema.TypeFloat32
	case *arrow.Float64Type:
		f.Type = schema.TypeFloat64
	case *arrow.StringType:
		f.Type = schema.TypeUtf8
	case *arrow.LargeStringType:
		f.Type = schema.TypeLargeUtf8
	case *arrow.Date64Type:
		f.Type = schema.TypeDate64
	case *arrow.StructType:
		f.Type = schema.TypeStruct
		for _, childField := range t.Fields() {
			child, err := FromArrowField(childField)
			if err != nil {
				return schema.Field{}, err
			}
			f.Children = append(f.Children, child)
		}
	case *arrow.ListType:
		f.Type = schema.TypeList
		child, err := FromArrowField(t.ElemField())
		if err != nil {
			return schema.Field{}, err
		}
		f.Children = []schema.Field{child}
	case *arrow.LargeListType:
		f.Type = schema.TypeLargeList
		child, err := FromArrowField(t.ElemField())
		if err != nil {
			return schema.Field{}, err
		}
		f.Children = []schema.Field{child}
	case *arrow.MapType:
		f.Type = schema.TypeMap
		key, err := FromArrowField(t.KeyField())
		if err != nil {
			return schema.Field{}, err
		}
		item, err := FromArrowField(t.ItemField())
		if err != nil {
			return schema.Field{}, err
		}
		key.Name, item.Name = "key", "value"
		f.Children = []schema.Field{key, item}
	case *arrow.DenseUnionType:
		f.Type = schema.TypeUnion
		for _, variantField := range t.Fields() {
			child, err := FromArrowField(variantField)
			if err != nil {
				return schema.Field{}, err
			}
			f.Children = append(f.Children, child)
		}
	case *arrow.DictionaryType:
		f.Type = schema.TypeDictionary
		key, err := fromArrowType(schema.Field{Name: "key"}, t.IndexType)
		if err != nil {
			return schema.Field{}, err
		}
		value, err := fromArrowType(schema.Field{Name: "value"}, t.ValueType)
		if err != nil {
			return schema.Field{}, err
		}
		f.Children = []schema.Field{key, value}
	default:
		return schema.Field{}, errors.Newf(errors.ErrorTypeUnsupportedType,
			"field %q: no logical mapping for arrow type %s", f.Name, dt)
	}
	return f, nil
}

// ToArrowSchema maps a record's fields to an *arrow.Schema
func ToArrowSchema(fields []schema.Field) (*arrow.Schema, error) {
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		af, err := ToArrowField(f)
		if err != nil {
			return nil, err
		}
		out[i] = af
	}
	return arrow.NewSchema(out, nil), nil
}

// FromArrowSchema maps an *arrow.Schema back to logical fields
func FromArrowSchema(as *arrow.Schema) ([]schema.Field, error) {
	out := make([]schema.Field, len(as.Fields()))
	for i, af := range as.Fields() {
		f, err := FromArrowField(af)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
