package transition

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatrix(t *testing.T) {
	m := Default()
	require.NoError(t, m.Validate())
	assert.Equal(t, 7, m.Size())

	for i := 1; i <= m.Size(); i++ {
		c, ok := m.Lookup(i, i)
		require.True(t, ok)
		assert.Equal(t, int8(0), c, "no change on the diagonal for type %d", i)
	}
	c, _ := m.Lookup(1, 5) // forest to artificial
	assert.Equal(t, int8(-1), c)
	c, _ = m.Lookup(3, 1) // cropland to forest
	assert.Equal(t, int8(1), c)
}

func TestLookupOutOfRange(t *testing.T) {
	m := Default()
	_, ok := m.Lookup(0, 1)
	assert.False(t, ok)
	_, ok = m.Lookup(1, 8)
	assert.False(t, ok)
}

func TestValidateRejectsBadShapeAndValues(t *testing.T) {
	m := Matrix{Cells: [][]int8{{0, 1}, {0}}}
	assert.ErrorIs(t, m.Validate(), ErrShape)

	m = Matrix{Cells: [][]int8{{0, 2}, {0, 0}}}
	assert.ErrorIs(t, m.Validate(), ErrCellValue)
}

func TestCSVRoundTrip(t *testing.T) {
	m := Default()
	require.NoError(t, m.Set(2, 3, -1))

	var buf bytes.Buffer
	require.NoError(t, m.WriteCSV(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "baseline,target,class"))

	got, err := ReadCSV(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, m.Cells, got.Cells)
}

func TestReadCSVPartialOverridesDefault(t *testing.T) {
	in := "baseline,target,class\nForest,Cropland,1\n"
	got, err := ReadCSV(strings.NewReader(in), nil)
	require.NoError(t, err)
	c, _ := got.Lookup(1, 3)
	assert.Equal(t, int8(1), c)
	c, _ = got.Lookup(1, 2)
	assert.Equal(t, int8(-1), c)
}

func TestReadCSVUnknownType(t *testing.T) {
	in := "baseline,target,class\nDesert,Forest,1\n"
	_, err := ReadCSV(strings.NewReader(in), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}
