// Package raster holds the georeferenced grid shared by the classifiers, the combiner, the mosaic and the
// zonal statistics. A Raster is a value: operations return a new Raster and never mutate their inputs.
package raster

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type DataType int

const (
	Float32 DataType = iota
	Float64
	Int16
	Uint8
)

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Int16:
		return "Int16"
	case Uint8:
		return "Byte"
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// Raster is a single band grid. GeoTransform follows the GDAL convention:
// x = gt[0] + col*gt[1] + row*gt[2], y = gt[3] + col*gt[4] + row*gt[5].
type Raster struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	CRS          string // WKT or "EPSG:<code>"
	DataType     DataType
	NoData       float64
	HasNoData    bool
	Data         []float64 // row major, len == Width*Height
}

// New allocates a raster filled with the nodata value (or zero when hasNoData is false).
func New(width, height int, gt [6]float64, crs string, dt DataType, nodata float64, hasNoData bool) *Raster {
	r := &Raster{
		Width:        width,
		Height:       height,
		GeoTransform: gt,
		CRS:          crs,
		DataType:     dt,
		NoData:       nodata,
		HasNoData:    hasNoData,
		Data:         make([]float64, width*height),
	}
	if hasNoData && nodata != 0 {
		for i := range r.Data {
			r.Data[i] = nodata
		}
	}
	return r
}

// Like returns an empty raster on the same grid as r with another type and nodata value.
func (r *Raster) Like(dt DataType, nodata float64, hasNoData bool) *Raster {
	return New(r.Width, r.Height, r.GeoTransform, r.CRS, dt, nodata, hasNoData)
}

func (r *Raster) Clone() *Raster {
	c := *r
	c.Data = make([]float64, len(r.Data))
	copy(c.Data, r.Data)
	return &c
}

func (r *Raster) Validate() error {
	if r == nil {
		return ErrNilRaster
	}
	if r.Width <= 0 || r.Height <= 0 || len(r.Data) != r.Width*r.Height {
		return fmt.Errorf("%w: %dx%d with %d values", ErrMalformed, r.Width, r.Height, len(r.Data))
	}
	if r.GeoTransform[1] == 0 || r.GeoTransform[5] == 0 {
		return fmt.Errorf("%w: zero pixel size", ErrMalformed)
	}
	return nil
}

func (r *Raster) At(col, row int) float64 {
	return r.Data[row*r.Width+col]
}

// IsNoData reports whether v is the raster's nodata value. NaN is always treated as missing.
func (r *Raster) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return r.HasNoData && v == r.NoData
}

// PixelSize returns the absolute pixel width and height in CRS units.
func (r *Raster) PixelSize() (float64, float64) {
	return math.Abs(r.GeoTransform[1]), math.Abs(r.GeoTransform[5])
}

// Bounds is the extent of a north-up raster.
func (r *Raster) Bounds() orb.Bound {
	gt := r.GeoTransform
	x0 := gt[0]
	x1 := gt[0] + float64(r.Width)*gt[1]
	y0 := gt[3]
	y1 := gt[3] + float64(r.Height)*gt[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// PixelCenter returns the CRS coordinates of the center of pixel (col, row).
func (r *Raster) PixelCenter(col, row int) orb.Point {
	gt := r.GeoTransform
	fc, fr := float64(col)+0.5, float64(row)+0.5
	return orb.Point{gt[0] + fc*gt[1] + fr*gt[2], gt[3] + fc*gt[4] + fr*gt[5]}
}

// IsGeographic reports whether the CRS is expressed in degrees.
func (r *Raster) IsGeographic() bool {
	crs := strings.ToUpper(strings.TrimSpace(r.CRS))
	if crs == "" || crs == "EPSG:4326" || crs == "EPSG:4490" {
		return true
	}
	return strings.HasPrefix(crs, "GEOGCS") || strings.HasPrefix(crs, "GEOGCRS")
}

// CheckAligned fails with ErrAlignment unless every raster shares the grid of the first one.
func CheckAligned(rs ...*Raster) error {
	if len(rs) == 0 {
		return nil
	}
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	ref := rs[0]
	for i, r := range rs[1:] {
		if r.Width != ref.Width || r.Height != ref.Height {
			return fmt.Errorf("%w: raster %d is %dx%d, expected %dx%d", ErrAlignment, i+1, r.Width, r.Height, ref.Width, ref.Height)
		}
		for k := 0; k < 6; k++ {
			if !almostEqual(r.GeoTransform[k], ref.GeoTransform[k]) {
				return fmt.Errorf("%w: raster %d geotransform %v differs from %v", ErrAlignment, i+1, r.GeoTransform, ref.GeoTransform)
			}
		}
	}
	return nil
}

// Clip returns a copy of r where pixels whose center falls outside geom are set to nodata.
// The raster must carry a nodata value.
func (r *Raster) Clip(geom orb.Geometry) (*Raster, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !r.HasNoData {
		return nil, fmt.Errorf("%w: clipping needs a nodata value", ErrMalformed)
	}
	out := r.Clone()
	bound := geom.Bound()
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			p := r.PixelCenter(col, row)
			if !bound.Contains(p) || !Contains(geom, p) {
				out.Data[row*r.Width+col] = r.NoData
			}
		}
	}
	return out, nil
}

// Contains reports whether p lies inside a polygonal geometry.
func Contains(geom orb.Geometry, p orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	case orb.Collection:
		for _, sub := range g {
			if Contains(sub, p) {
				return true
			}
		}
	}
	return false
}

// Map applies fn to every pixel of r and returns a raster of type dt. fn receives ok=false for nodata pixels.
func (r *Raster) Map(dt DataType, nodata float64, fn func(v float64, ok bool) float64) *Raster {
	out := r.Like(dt, nodata, true)
	for i, v := range r.Data {
		out.Data[i] = fn(v, !r.IsNoData(v))
	}
	return out
}

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := math.Abs(a - b)
	return d <= eps || d <= eps*math.Max(math.Abs(a), math.Abs(b))
}
