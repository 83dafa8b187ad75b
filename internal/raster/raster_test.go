package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gt = [6]float64{10, 1, 0, 20, 0, -1}

func TestNewFillsNoData(t *testing.T) {
	r := New(3, 2, gt, "EPSG:4326", Int16, -32768, true)
	require.Len(t, r.Data, 6)
	for _, v := range r.Data {
		assert.Equal(t, -32768.0, v)
	}
	assert.True(t, r.IsNoData(r.At(2, 1)))
}

func TestBoundsAndPixelCenter(t *testing.T) {
	r := New(4, 2, gt, "EPSG:4326", Float32, 0, false)
	b := r.Bounds()
	assert.Equal(t, orb.Point{10, 18}, b.Min)
	assert.Equal(t, orb.Point{14, 20}, b.Max)
	assert.Equal(t, orb.Point{10.5, 19.5}, r.PixelCenter(0, 0))
	assert.Equal(t, orb.Point{13.5, 18.5}, r.PixelCenter(3, 1))
}

func TestCheckAligned(t *testing.T) {
	a := New(2, 2, gt, "", Int16, -1, true)
	b := New(2, 2, gt, "", Int16, -1, true)
	require.NoError(t, CheckAligned(a, b))

	shifted := gt
	shifted[0] = 11
	c := New(2, 2, shifted, "", Int16, -1, true)
	assert.ErrorIs(t, CheckAligned(a, c), ErrAlignment)

	d := New(3, 2, gt, "", Int16, -1, true)
	assert.ErrorIs(t, CheckAligned(a, d), ErrAlignment)
}

func TestCheckAlignedRejectsMalformed(t *testing.T) {
	a := New(2, 2, gt, "", Int16, -1, true)
	bad := &Raster{Width: 2, Height: 2, GeoTransform: gt, Data: []float64{1}}
	assert.ErrorIs(t, CheckAligned(a, bad), ErrMalformed)
	assert.ErrorIs(t, CheckAligned(a, nil), ErrNilRaster)
}

func TestClipMasksOutsidePixels(t *testing.T) {
	r := New(4, 2, gt, "EPSG:4326", Float32, -9999, true)
	for i := range r.Data {
		r.Data[i] = float64(i)
	}
	// covers the two left columns only
	poly := orb.Polygon{orb.Ring{{10, 18}, {12, 18}, {12, 20}, {10, 20}, {10, 18}}}
	out, err := r.Clip(poly)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, -9999, -9999, 4, 5, -9999, -9999}, out.Data)
	// input untouched
	assert.Equal(t, 2.0, r.Data[2])
}

func TestIsGeographic(t *testing.T) {
	assert.True(t, (&Raster{CRS: "EPSG:4326"}).IsGeographic())
	assert.True(t, (&Raster{CRS: `GEOGCS["WGS 84"]`}).IsGeographic())
	assert.False(t, (&Raster{CRS: `PROJCS["WGS 84 / UTM zone 33N"]`}).IsGeographic())
}
