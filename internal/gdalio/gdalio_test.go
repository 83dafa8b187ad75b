package gdalio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoTIFFRoundTrip(t *testing.T) {
	r := raster.New(3, 2, [6]float64{500000, 30, 0, 4600000, 0, -30}, "EPSG:32633", raster.Int16, -32768, true)
	copy(r.Data, []float64{-1, 0, 1, -32768, 1, -1})
	path := filepath.Join(t.TempDir(), "area_indicator_15_3_1_merge.tif")

	require.NoError(t, GeoTIFF{}.Write(path, r))
	got, err := GeoTIFF{}.Read(path)
	require.NoError(t, err)
	assert.Equal(t, r.Width, got.Width)
	assert.Equal(t, r.Height, got.Height)
	assert.Equal(t, r.GeoTransform, got.GeoTransform)
	assert.Equal(t, raster.Int16, got.DataType)
	assert.True(t, got.HasNoData)
	assert.Equal(t, -32768.0, got.NoData)
	assert.Equal(t, r.Data, got.Data)
	assert.Contains(t, got.CRS, "32633")
}

func TestMergeFirstTileWinsAtOverlap(t *testing.T) {
	dir := t.TempDir()
	a := raster.New(2, 2, [6]float64{0, 10, 0, 20, 0, -10}, "EPSG:32633", raster.Int16, -32768, true)
	copy(a.Data, []float64{1, 1, -32768, 1})
	b := raster.New(2, 2, [6]float64{10, 10, 0, 20, 0, -10}, "EPSG:32633", raster.Int16, -32768, true)
	copy(b.Data, []float64{2, 2, 2, 2})
	pa := filepath.Join(dir, "area_soc-0000000000-0000000000.tif")
	pb := filepath.Join(dir, "area_soc-0000000000-0000000001.tif")
	require.NoError(t, GeoTIFF{}.Write(pa, a))
	require.NoError(t, GeoTIFF{}.Write(pb, b))
	out := filepath.Join(dir, "area_soc_merge.tif")

	require.NoError(t, GeoTIFF{}.Merge([]string{pa, pb}, out))
	got, err := GeoTIFF{}.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Width)
	assert.Equal(t, 2, got.Height)
	assert.Equal(t, [6]float64{0, 10, 0, 20, 0, -10}, got.GeoTransform)
	assert.Equal(t, raster.Int16, got.DataType)
	assert.Equal(t, -32768.0, got.NoData)
	// column 1 is covered by both tiles and keeps the values of a
	assert.Equal(t, []float64{1, 1, 2, -32768, 1, 2}, got.Data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestMergeFillsEmptyPixelsFromLaterTiles(t *testing.T) {
	dir := t.TempDir()
	a := raster.New(2, 1, [6]float64{0, 10, 0, 10, 0, -10}, "EPSG:32633", raster.Int16, -32768, true)
	copy(a.Data, []float64{1, -32768})
	b := raster.New(2, 1, [6]float64{0, 10, 0, 10, 0, -10}, "EPSG:32633", raster.Int16, -32768, true)
	copy(b.Data, []float64{-1, -1})
	pa := filepath.Join(dir, "a.tif")
	pb := filepath.Join(dir, "b.tif")
	require.NoError(t, GeoTIFF{}.Write(pa, a))
	require.NoError(t, GeoTIFF{}.Write(pb, b))
	out := filepath.Join(dir, "merge.tif")

	require.NoError(t, GeoTIFF{}.Merge([]string{pa, pb}, out))
	got, err := GeoTIFF{}.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1}, got.Data)
}

func TestMergeWithoutTiles(t *testing.T) {
	assert.Error(t, GeoTIFF{}.Merge(nil, filepath.Join(t.TempDir(), "merge.tif")))
}

func TestGeoJSONToShapefile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "zones.geojson")
	require.NoError(t, os.WriteFile(src, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"north","Degrade":1.5},
		 "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`), 0o644))
	dst := filepath.Join(dir, "zones.shp")

	require.NoError(t, GeoJSONToShapefile(src, dst))
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_, err := os.Stat(filepath.Join(dir, "zones"+ext))
		assert.NoError(t, err, ext)
	}
}
