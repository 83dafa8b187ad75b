package indicator

import (
	"testing"

	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Discard()
}

var grid = [6]float64{0, 30, 0, 0, 0, -30}

// unsignedTable is the historical decision table in the 1/2/3 encoding:
// productivity, land cover, soc, indicator.
var unsignedTable = [][4]int{
	{3, 3, 3, 3}, {3, 3, 2, 3}, {3, 3, 1, 1},
	{3, 2, 3, 3}, {3, 2, 2, 3}, {3, 2, 1, 1},
	{3, 1, 3, 1}, {3, 1, 2, 1}, {3, 1, 1, 1},
	{2, 3, 3, 3}, {2, 3, 2, 3}, {2, 3, 1, 1},
	{2, 2, 3, 3}, {2, 2, 2, 2}, {2, 2, 1, 1},
	{2, 1, 3, 1}, {2, 1, 2, 1}, {2, 1, 1, 1},
	{1, 3, 3, 1}, {1, 3, 2, 1}, {1, 3, 1, 1},
	{1, 2, 3, 1}, {1, 2, 2, 1}, {1, 2, 1, 1},
	{1, 1, 3, 1}, {1, 1, 2, 1}, {1, 1, 1, 1},
}

func classRaster(vals ...float64) *raster.Raster {
	r := raster.New(len(vals), 1, grid, "EPSG:32633", raster.Int16, NoData, true)
	copy(r.Data, vals)
	return r
}

func TestDecisionTableMatchesHistoricalTable(t *testing.T) {
	require.Len(t, decisionTable, 27)
	for _, row := range unsignedTable {
		tr := Triple{Class(row[0] - 2), Class(row[1] - 2), Class(row[2] - 2)}
		got, err := Decide(tr)
		require.NoError(t, err)
		assert.Equal(t, Class(row[3]-2), got, "triple %v", tr)
	}
}

func dominant(t Triple) Class {
	has := func(c Class) bool { return t[0] == c || t[1] == c || t[2] == c }
	switch {
	case has(Degraded):
		return Degraded
	case has(Improved):
		return Improved
	}
	return Stable
}

func TestCombineExhaustive(t *testing.T) {
	values := []float64{-1, 0, 1, NoData}
	var p, l, s []float64
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				p, l, s = append(p, a), append(l, b), append(s, c)
			}
		}
	}
	for _, enc := range []Encoding{Signed, Unsigned} {
		out, err := NewCombiner(enc).Combine(classRaster(p...), classRaster(l...), classRaster(s...))
		require.NoError(t, err)
		assert.Equal(t, enc.DataType(), out.DataType)
		for i := range out.Data {
			got, ok, err := enc.Decode(out.Data[i])
			require.NoError(t, err)
			if p[i] == NoData || l[i] == NoData || s[i] == NoData {
				assert.False(t, ok, "pixel %d should be nodata", i)
				continue
			}
			require.True(t, ok)
			tr := Triple{Class(p[i]), Class(l[i]), Class(s[i])}
			assert.Equal(t, dominant(tr), got, "%s triple %v", enc.Name(), tr)
		}
	}
}

func TestCombineConcreteCases(t *testing.T) {
	p := classRaster(-1, 0, 1, 1)
	l := classRaster(1, 0, 1, -1)
	s := classRaster(1, 0, 1, 1)

	out, err := NewCombiner(Signed).Combine(p, l, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1, -1}, out.Data)
	assert.Equal(t, raster.Int16, out.DataType)
	assert.Equal(t, float64(NoData), out.NoData)

	out, err = NewCombiner(Unsigned).Combine(p, l, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 1}, out.Data)
	assert.Equal(t, raster.Uint8, out.DataType)
	assert.Equal(t, 0.0, out.NoData)
}

func TestCombineSingleSignalFallback(t *testing.T) {
	p := classRaster(1, NoData, NoData, 0)
	l := classRaster(NoData, -1, NoData, NoData)
	s := classRaster(NoData, NoData, 0, 1)

	out, err := NewCombiner(Unsigned, WithSingleSignalFallback()).Combine(p, l, s)
	require.NoError(t, err)
	// two of three available stays unclassified
	assert.Equal(t, []float64{3, 1, 2, 0}, out.Data)

	out, err = NewCombiner(Unsigned).Combine(p, l, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, out.Data)
}

func TestCombineRejectsInvalidClassValue(t *testing.T) {
	_, err := NewCombiner(Signed).Combine(classRaster(2), classRaster(0), classRaster(0))
	assert.ErrorIs(t, err, ErrInvalidClassValue)

	_, err = NewCombiner(Signed).Combine(classRaster(0), classRaster(0.5), classRaster(0))
	assert.ErrorIs(t, err, ErrInvalidClassValue)
}

func TestCombineRejectsMisalignedInputs(t *testing.T) {
	_, err := NewCombiner(Signed).Combine(classRaster(0, 0), classRaster(0), classRaster(0))
	assert.ErrorIs(t, err, raster.ErrAlignment)
}

func TestCombineDoesNotMutateInputs(t *testing.T) {
	p := classRaster(1, -1)
	l := classRaster(0, 0)
	s := classRaster(0, 1)
	_, err := NewCombiner(Unsigned).Combine(p, l, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1}, p.Data)
}

func TestSignedToUnsignedRoundTrip(t *testing.T) {
	p := classRaster(-1, 0, 1, NoData, 1, 0)
	l := classRaster(0, 0, 1, 0, -1, 1)
	s := classRaster(1, 0, 0, 1, 1, NoData)

	signedOut, err := NewCombiner(Signed).Combine(p, l, s)
	require.NoError(t, err)
	unsignedOut, err := NewCombiner(Unsigned).Combine(p, l, s)
	require.NoError(t, err)

	recoded, err := Recode(signedOut, Signed, Unsigned)
	require.NoError(t, err)
	assert.Equal(t, unsignedOut.Data, recoded.Data)
	assert.Equal(t, unsignedOut.DataType, recoded.DataType)

	back, err := Recode(recoded, Unsigned, Signed)
	require.NoError(t, err)
	assert.Equal(t, signedOut.Data, back.Data)
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("Unsigned")
	require.NoError(t, err)
	assert.Equal(t, "unsigned", enc.Name())
	_, err = ParseEncoding("ternary")
	assert.Error(t, err)
}
