package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowcast/arrowcast/pkg/schema"
)

func TestValidity(t *testing.T) {
	d := &Data{
		Field:    schema.New("v", schema.TypeInt64, true),
		Len:      3,
		Ints:     []int64{1, 0, 3},
		Validity: []bool{true, false, true},
	}
	assert.True(t, d.IsValid(0))
	assert.False(t, d.IsValid(1))
	assert.Equal(t, 1, d.NullCount())

	// nil validity means every element is valid
	d.Validity = nil
	assert.True(t, d.IsValid(1))
	assert.Equal(t, 0, d.NullCount())
}

func TestValidate(t *testing.T) {
	list := func() *Data {
		return &Data{
			Field: schema.New("xs", schema.TypeList, false).WithChildren(
				schema.New("element", schema.TypeInt64, false)),
			Len:     2,
			Offsets: []int32{0, 2, 3},
			Children: []*Data{{
				Field: schema.New("element", schema.TypeInt64, false),
				Len:   3,
				Ints:  []int64{1, 2, 3},
			}},
		}
	}

	require.NoError(t, list().Validate())

	t.Run("short offsets", func(t *testing.T) {
		d := list()
		d.Offsets = []int32{0, 2}
		require.Error(t, d.Validate())
	})

	t.Run("decreasing offsets", func(t *testing.T) {
		d := list()
		d.Offsets = []int32{0, 2, 1}
		require.Error(t, d.Validate())
	})

	t.Run("validity length mismatch", func(t *testing.T) {
		d := list()
		d.Validity = []bool{true}
		require.Error(t, d.Validate())
	})

	t.Run("broken child", func(t *testing.T) {
		d := list()
		d.Children[0].Validity = []bool{true}
		require.Error(t, d.Validate())
	})
}
