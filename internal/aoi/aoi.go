// Package aoi loads the area of interest and its zones from GeoJSON.
package aoi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNoPolygon = errors.New("area of interest has no polygon")

// Zone is one polygon of the area used for zonal statistics.
type Zone struct {
	Name       string
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// Area is the area of interest. FeatureCollection is set for administrative layers: results are then
// clipped to the geometry instead of kept on the bounding box.
type Area struct {
	name              string
	Geometry          orb.MultiPolygon
	Zones             []Zone
	FeatureCollection bool
}

func (a *Area) Name() string {
	return a.name
}

// BoundingGeometry is the exact geometry for feature collections and the bounding box otherwise.
func (a *Area) BoundingGeometry() orb.Geometry {
	if a.FeatureCollection {
		return a.Geometry
	}
	return a.Geometry.Bound().ToPolygon()
}

func (a *Area) Bound() orb.Bound {
	return a.Geometry.Bound()
}

// Load reads a GeoJSON file. name defaults to the file name without extension; zoneField names the
// property holding the zone names.
func Load(path, name, zoneField string) (*Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read area of interest: %w", err)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Parse(data, name, zoneField)
}

// Parse accepts a FeatureCollection, a Feature or a bare geometry. Line and point features are dropped.
func Parse(data []byte, name, zoneField string) (*Area, error) {
	a := &Area{name: SafeName(name)}
	if a.name == "" {
		return nil, fmt.Errorf("area of interest needs a name")
	}

	var features []*geojson.Feature
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && fc.Type == "FeatureCollection" {
		features = fc.Features
		a.FeatureCollection = true
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Type == "Feature" {
		features = []*geojson.Feature{f}
	} else {
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse area of interest: %w", err)
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}

	for i, f := range features {
		polys := polygons(f.Geometry)
		if len(polys) == 0 {
			continue
		}
		a.Geometry = append(a.Geometry, polys...)
		zoneName := ""
		if zoneField != "" {
			zoneName = fmt.Sprint(f.Properties[zoneField])
			if f.Properties[zoneField] == nil {
				zoneName = ""
			}
		}
		if zoneName == "" {
			zoneName = fmt.Sprintf("%s_%d", a.name, i)
		}
		var geom orb.Geometry = polys
		if len(polys) == 1 {
			geom = polys[0]
		}
		a.Zones = append(a.Zones, Zone{Name: zoneName, Geometry: geom, Properties: f.Properties})
	}
	if len(a.Geometry) == 0 {
		return nil, ErrNoPolygon
	}
	return a, nil
}

func polygons(g orb.Geometry) orb.MultiPolygon {
	switch geom := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{geom}
	case orb.MultiPolygon:
		return geom
	case orb.Bound:
		return orb.MultiPolygon{geom.ToPolygon()}
	case orb.Collection:
		var out orb.MultiPolygon
		for _, sub := range geom {
			out = append(out, polygons(sub)...)
		}
		return out
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName makes name usable as a file and export description prefix.
func SafeName(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
}
