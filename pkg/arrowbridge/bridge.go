package arrowbridge

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arrowcast/arrowcast/pkg/columnar"
	"github.com/arrowcast/arrowcast/pkg/errors"
	"github.com/arrowcast/arrowcast/pkg/schema"
)

// ToArrow materializes one column as an arrow array. The caller owns the
// returned array and must Release it.
func ToArrow(d *columnar.Data, mem memory.Allocator) (arrow.Array, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	dt, err := toArrowType(d.Field)
	if err != nil {
		return nil, err
	}
	bldr := array.NewBuilder(mem, dt)
	defer bldr.Release()
	for i := 0; i < d.Len; i++ {
		if err := appendValue(bldr, d, i); err != nil {
			return nil, err
		}
	}
	return bldr.NewArray(), nil
}

// NewRecord materializes a batch of columns as an arrow record sharing
// one schema. All columns must have the same length.
func NewRecord(cols []*columnar.Data, mem memory.Allocator) (arrow.Record, error) {
	fields := make([]schema.Field, len(cols))
	arrs := make([]arrow.Array, len(cols))
	rows := int64(0)
	for i, d := range cols {
		if i == 0 {
			rows = int64(d.Len)
		} else if int64(d.Len) != rows {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column %q has %d rows, expected %d", d.Field.Name, d.Len, rows)
		}
		fields[i] = d.Field
		arr, err := ToArrow(d, mem)
		if err != nil {
			for _, a := range arrs[:i] {
				a.Release()
			}
			return nil, err
		}
		arrs[i] = arr
	}
	as, err := ToArrowSchema(fields)
	if err != nil {
		return nil, err
	}
	rec := array.NewRecord(as, arrs, rows)
	for _, a := range arrs {
		a.Release()
	}
	return rec, nil
}

// appendValue appends element i of d to the matching builder. Struct
// validity is set with Append(bool) and children are always appended
// explicitly, so parent and child lengths stay aligned without relying on
// the builder's null recursion.
func appendValue(b array.Builder, d *columnar.Data, i int) error {
	valid := d.IsValid(i)
	switch bldr := b.(type) {
	case *array.NullBuilder:
		bldr.AppendNull()
	case *array.BooleanBuilder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Bools[i])
	case *array.Int8Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(int8(d.Ints[i]))
	case *array.Int16Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(int16(d.Ints[i]))
	case *array.Int32Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(int32(d.Ints[i]))
	case *array.Int64Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Ints[i])
	case *array.Uint8Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(uint8(d.Uints[i]))
	case *array.Uint16Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(uint16(d.Uints[i]))
	case *array.Uint32Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(uint32(d.Uints[i]))
	case *array.Uint64Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Uints[i])
	case *array.Float16Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(float16.New(float32(d.Floats[i])))
	case *array.Float32Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(float32(d.Floats[i]))
	case *array.Float64Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Floats[i])
	case *array.StringBuilder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Strs[i])
	case *array.LargeStringBuilder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(d.Strs[i])
	case *array.Date64Builder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		bldr.Append(arrow.Date64(d.Ints[i]))
	case *array.StructBuilder:
		bldr.Append(valid)
		for j, child := range d.Children {
			if err := appendValue(bldr.FieldBuilder(j), child, i); err != nil {
				return err
			}
		}
	case *array.ListBuilder:
		return appendRange(bldr, bldr.ValueBuilder(), d, i, valid)
	case *array.LargeListBuilder:
		return appendRange(bldr, bldr.ValueBuilder(), d, i, valid)
	case *array.MapBuilder:
		bldr.Append(valid)
		if !valid {
			return nil
		}
		key, value := d.Children[0], d.Children[1]
		for j := d.Offsets[i]; j < d.Offsets[i+1]; j++ {
			if err := appendValue(bldr.KeyBuilder(), key, int(j)); err != nil {
				return err
			}
			if err := appendValue(bldr.ItemBuilder(), value, int(j)); err != nil {
				return err
			}
		}
	case *array.DenseUnionBuilder:
		id := d.TypeIDs[i]
		bldr.Append(arrow.UnionTypeCode(id))
		return appendValue(bldr.Child(int(id)), d.Children[id], int(d.ChildOffsets[i]))
	case array.DictionaryBuilder:
		if !valid {
			bldr.AppendNull()
			return nil
		}
		sb, ok := bldr.(*array.BinaryDictionaryBuilder)
		if !ok {
			return errors.Newf(errors.ErrorTypeUnsupportedType,
				"column %q: only string dictionaries are supported", d.Field.Name)
		}
		return sb.AppendString(d.Dict.Strs[d.Keys[i]])
	default:
		return errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %q: no append support for builder %T", d.Field.Name, b)
	}
	return nil
}

type rangeBuilder interface {
	Append(bool)
}

func appendRange(b rangeBuilder, values array.Builder, d *columnar.Data, i int, valid bool) error {
	b.Append(valid)
	if !valid {
		return nil
	}
	child := d.Children[0]
	for j := d.Offsets[i]; j < d.Offsets[i+1]; j++ {
		if err := appendValue(values, child, int(j)); err != nil {
			return err
		}
	}
	return nil
}

// FromArrow reads an arrow array back into a logical column described by
// f. The array is only read, never retained.
func FromArrow(arr arrow.Array, f schema.Field) (*columnar.Data, error) {
	want, err := toArrowType(f)
	if err != nil {
		return nil, err
	}
	if want.ID() != arr.DataType().ID() {
		return nil, errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q: field declares %s but array is %s", f.Name, want, arr.DataType())
	}
	d := &columnar.Data{Field: f, Len: arr.Len()}
	if arr.NullN() > 0 || f.Type == schema.TypeNull {
		d.Validity = make([]bool, arr.Len())
		for i := range d.Validity {
			d.Validity[i] = arr.IsValid(i)
		}
	}
	switch a := arr.(type) {
	case *array.Null:
	case *array.Boolean:
		d.Bools = make([]bool, a.Len())
		for i := range d.Bools {
			d.Bools[i] = a.Value(i)
		}
	case *array.Int8:
		d.Ints = ints64(a.Len(), func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int16:
		d.Ints = ints64(a.Len(), func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int32:
		d.Ints = ints64(a.Len(), func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int64:
		d.Ints = ints64(a.Len(), func(i int) int64 { return a.Value(i) })
	case *array.Uint8:
		d.Uints = uints64(a.Len(), func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint16:
		d.Uints = uints64(a.Len(), func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint32:
		d.Uints = uints64(a.Len(), func(i int) uint64 { return uint64(a.Value(i)) })
	case *array.Uint64:
		d.Uints = uints64(a.Len(), func(i int) uint64 { return a.Value(i) })
	case *array.Float16:
		d.Floats = make([]float64, a.Len())
		for i := range d.Floats {
			d.Floats[i] = float64(a.Value(i).Float32())
		}
	case *array.Float32:
		d.Floats = make([]float64, a.Len())
		for i := range d.Floats {
			d.Floats[i] = float64(a.Value(i))
		}
	case *array.Float64:
		d.Floats = make([]float64, a.Len())
		for i := range d.Floats {
			d.Floats[i] = a.Value(i)
		}
	case *array.String:
		d.Strs = make([]string, a.Len())
		for i := range d.Strs {
			d.Strs[i] = a.Value(i)
		}
	case *array.LargeString:
		d.Strs = make([]string, a.Len())
		for i := range d.Strs {
			d.Strs[i] = a.Value(i)
		}
	case *array.Date64:
		d.Ints = ints64(a.Len(), func(i int) int64 { return int64(a.Value(i)) })
	case *array.Struct:
		for j, cf := range f.Children {
			child, err := FromArrow(a.Field(j), cf)
			if err != nil {
				return nil, err
			}
			d.Children = append(d.Children, child)
		}
	case *array.List:
		return fromListLike(d, a, a.ListValues(), f.Children[:1])
	case *array.LargeList:
		return fromListLike(d, a, a.ListValues(), f.Children[:1])
	case *array.Map:
		return fromMap(d, a, f)
	case *array.DenseUnion:
		d.TypeIDs = make([]int8, a.Len())
		d.ChildOffsets = make([]int32, a.Len())
		for i := 0; i < a.Len(); i++ {
			d.TypeIDs[i] = int8(a.ChildID(i))
			d.ChildOffsets[i] = a.ValueOffset(i)
		}
		for j, cf := range f.Children {
			child, err := FromArrow(a.Field(j), cf)
			if err != nil {
				return nil, err
			}
			d.Children = append(d.Children, child)
		}
	case *array.Dictionary:
		values, ok := a.Dictionary().(*array.String)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
				"column %q: only string dictionaries are supported", f.Name)
		}
		d.Keys = make([]int32, a.Len())
		for i := range d.Keys {
			if a.IsValid(i) {
				d.Keys[i] = int32(a.GetValueIndex(i))
			}
		}
		strs := make([]string, values.Len())
		for i := range strs {
			strs[i] = values.Value(i)
		}
		d.Dict = &columnar.Data{Field: f.Children[1], Len: len(strs), Strs: strs}
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %q: no extraction support for array %T", f.Name, arr)
	}
	return d, nil
}

// FromRecord reads all columns of a record using the logical fields
// recovered from its schema
func FromRecord(rec arrow.Record) ([]schema.Field, []*columnar.Data, error) {
	fields, err := FromArrowSchema(rec.Schema())
	if err != nil {
		return nil, nil, err
	}
	cols := make([]*columnar.Data, len(fields))
	for i, f := range fields {
		d, err := FromArrow(rec.Column(i), f)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = d
	}
	return fields, cols, nil
}

func ints64(n int, at func(int) int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = at(i)
	}
	return out
}

func uints64(n int, at func(int) uint64) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = at(i)
	}
	return out
}

type listLike interface {
	Len() int
	ValueOffsets(i int) (int64, int64)
}

// fromListLike rebases the array's offsets to zero and extracts only the
// covered slice of the child, so sliced arrays convert correctly
func fromListLike(d *columnar.Data, a listLike, values arrow.Array, children []schema.Field) (*columnar.Data, error) {
	base := int64(0)
	if a.Len() > 0 {
		base, _ = a.ValueOffsets(0)
	}
	d.Offsets = make([]int32, a.Len()+1)
	end := base
	for i := 0; i < a.Len(); i++ {
		_, end = a.ValueOffsets(i)
		d.Offsets[i+1] = int32(end - base)
	}
	sliced := array.NewSlice(values, base, end)
	defer sliced.Release()
	for _, cf := range children {
		child, err := FromArrow(sliced, cf)
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, child)
	}
	return d, nil
}

func fromMap(d *columnar.Data, a *array.Map, f schema.Field) (*columnar.Data, error) {
	base := int64(0)
	if a.Len() > 0 {
		base, _ = a.ValueOffsets(0)
	}
	d.Offsets = make([]int32, a.Len()+1)
	end := base
	for i := 0; i < a.Len(); i++ {
		_, end = a.ValueOffsets(i)
		d.Offsets[i+1] = int32(end - base)
	}
	keys := array.NewSlice(a.Keys(), base, end)
	defer keys.Release()
	items := array.NewSlice(a.Items(), base, end)
	defer items.Release()
	key, err := FromArrow(keys, f.Children[0])
	if err != nil {
		return nil, err
	}
	value, err := FromArrow(items, f.Children[1])
	if err != nil {
		return nil, err
	}
	d.Children = []*columnar.Data{key, value}
	return d, nil
}
