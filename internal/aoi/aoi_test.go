package aoi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminLayer = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"ADM1_NAME":"North"},
   "geometry":{"type":"Polygon","coordinates":[[[0,1],[2,1],[2,2],[0,2],[0,1]]]}},
  {"type":"Feature","properties":{"ADM1_NAME":"South"},
   "geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[1,0],[2,0],[2,1],[1,1],[1,0]]]]}},
  {"type":"Feature","properties":{"ADM1_NAME":"Road"},
   "geometry":{"type":"LineString","coordinates":[[0,0],[2,2]]}}
]}`

func TestParseFeatureCollection(t *testing.T) {
	a, err := Parse([]byte(adminLayer), "Kenya Narok", "ADM1_NAME")
	require.NoError(t, err)
	assert.Equal(t, "Kenya_Narok", a.Name())
	assert.True(t, a.FeatureCollection)
	require.Len(t, a.Zones, 2)
	assert.Equal(t, "North", a.Zones[0].Name)
	assert.Equal(t, "South", a.Zones[1].Name)
	assert.IsType(t, orb.Polygon{}, a.Zones[0].Geometry)
	assert.IsType(t, orb.MultiPolygon{}, a.Zones[1].Geometry)
	assert.Len(t, a.Geometry, 3)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, a.Bound())
	assert.Equal(t, a.Geometry, a.BoundingGeometry())
}

func TestParseSingleGeometryKeepsBoundingBox(t *testing.T) {
	a, err := Parse([]byte(`{"type":"Polygon","coordinates":[[[0,0],[3,0],[0,3],[0,0]]]}`), "custom", "")
	require.NoError(t, err)
	assert.False(t, a.FeatureCollection)
	require.Len(t, a.Zones, 1)
	assert.Equal(t, "custom_0", a.Zones[0].Name)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}.ToPolygon(), a.BoundingGeometry())
}

func TestLoadDefaultsNameToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narok.geojson")
	require.NoError(t, os.WriteFile(path, []byte(adminLayer), 0o644))
	a, err := Load(path, "", "")
	require.NoError(t, err)
	assert.Equal(t, "narok", a.Name())
	assert.Equal(t, "narok_1", a.Zones[1].Name)
}

func TestParseWithoutPolygon(t *testing.T) {
	_, err := Parse([]byte(`{"type":"Point","coordinates":[1,1]}`), "p", "")
	assert.ErrorIs(t, err, ErrNoPolygon)
}
