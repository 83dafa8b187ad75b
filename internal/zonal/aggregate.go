// Package zonal summarizes the indicator raster per zone and packages the summary as an archive.
package zonal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/forest-guardian/degradation-indicator/internal/aoi"
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

type Statistic string

const (
	// Sum reports the area of every class divided by the denominator.
	Sum Statistic = "SUM"
	// Percentage reports the share of the zone area of every class.
	Percentage Statistic = "PERCENTAGE"
)

const (
	DefaultDenominator = 1e6
	DefaultDecimals    = 2
	metersPerDegree    = 111320.0
)

var ErrNoZones = errors.New("no zone to aggregate")

func ParseStatistic(s string) (Statistic, error) {
	switch Statistic(strings.ToUpper(strings.TrimSpace(s))) {
	case Sum, "":
		return Sum, nil
	case Percentage:
		return Percentage, nil
	}
	return "", fmt.Errorf("unknown statistic %q", s)
}

// Row is the per class summary of one zone.
type Row struct {
	Zone    string  `csv:"zone"`
	NoData  float64 `csv:"NoData"`
	Improve float64 `csv:"Improve"`
	Stable  float64 `csv:"Stable"`
	Degrade float64 `csv:"Degrade"`
}

type Table struct {
	Statistic Statistic
	Unit      string
	Rows      []*Row
}

type Option func(*Aggregator)

func WithDenominator(d float64) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.denominator = d
		}
	}
}

func WithDecimals(n int) Option {
	return func(a *Aggregator) {
		if n >= 0 {
			a.decimals = n
		}
	}
}

// Aggregator computes per zone class areas of indicator rasters stored with one encoding.
type Aggregator struct {
	encoding    indicator.Encoding
	denominator float64
	decimals    int
	logTag      string
}

func NewAggregator(enc indicator.Encoding, opts ...Option) *Aggregator {
	if enc == nil {
		enc = indicator.Signed
	}
	a := &Aggregator{encoding: enc, denominator: DefaultDenominator, decimals: DefaultDecimals, logTag: "ZonalAggregator:"}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate sums, for every zone, the area of each class at the scale resolution in meters. The raster is
// sampled on blocks of scale/pixel size pixels: the class at the block center stands for the whole block,
// which counts for a zone when its center lies inside it. Classes absent from a zone are reported as 0.
func (a *Aggregator) Aggregate(final *raster.Raster, zones []aoi.Zone, stat Statistic, scale float64) (*Table, error) {
	if err := final.Validate(); err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	if stat == "" {
		stat = Sum
	}
	if stat != Sum && stat != Percentage {
		return nil, fmt.Errorf("unknown statistic %q", stat)
	}
	stride := a.stride(final, scale)

	table := &Table{Statistic: stat, Unit: a.unit(stat)}
	for _, z := range zones {
		var areas [4]float64 // nodata, degraded, stable, improved
		bound := z.Geometry.Bound()
		for row0 := 0; row0 < final.Height; row0 += stride {
			for col0 := 0; col0 < final.Width; col0 += stride {
				rows := min(stride, final.Height-row0)
				cols := min(stride, final.Width-col0)
				cc, cr := col0+cols/2, row0+rows/2
				center := blockCenter(final, col0, row0, cols, rows)
				if !bound.Contains(center) || !raster.Contains(z.Geometry, center) {
					continue
				}
				cl, ok, err := a.encoding.Decode(final.At(cc, cr))
				if err != nil {
					return nil, fmt.Errorf("zone %s: %w", z.Name, err)
				}
				area := blockArea(final, col0, row0, cols, rows)
				if !ok {
					areas[0] += area
					continue
				}
				areas[int(cl)+2] += area
			}
		}
		table.Rows = append(table.Rows, a.row(z.Name, areas, stat))
	}
	return table, nil
}

func (a *Aggregator) row(zone string, areas [4]float64, stat Statistic) *Row {
	value := func(v float64) float64 { return round(v/a.denominator, a.decimals) }
	if stat == Percentage {
		total := areas[0] + areas[1] + areas[2] + areas[3]
		value = func(v float64) float64 {
			if total == 0 {
				return 0
			}
			return round(v/total*100, a.decimals)
		}
	}
	return &Row{
		Zone:    zone,
		NoData:  value(areas[0]),
		Degrade: value(areas[1]),
		Stable:  value(areas[2]),
		Improve: value(areas[3]),
	}
}

func (a *Aggregator) unit(stat Statistic) string {
	switch {
	case stat == Percentage:
		return "%"
	case a.denominator == 1e6:
		return "km2"
	case a.denominator == 1e4:
		return "ha"
	case a.denominator == 1:
		return "m2"
	}
	return fmt.Sprintf("m2/%g", a.denominator)
}

// stride is the number of pixels per block side for the requested scale, at least 1.
func (a *Aggregator) stride(r *raster.Raster, scale float64) int {
	if scale <= 0 {
		return 1
	}
	px, _ := r.PixelSize()
	if r.IsGeographic() {
		px *= metersPerDegree
	}
	s := int(math.Round(scale / px))
	if s < 1 {
		return 1
	}
	return s
}

func blockCenter(r *raster.Raster, col0, row0, cols, rows int) orb.Point {
	gt := r.GeoTransform
	c := float64(col0) + float64(cols)/2
	w := float64(row0) + float64(rows)/2
	return orb.Point{gt[0] + c*gt[1] + w*gt[2], gt[3] + c*gt[4] + w*gt[5]}
}

// blockArea is the area in square meters of a block of pixels, spherical for geographic rasters.
func blockArea(r *raster.Raster, col0, row0, cols, rows int) float64 {
	gt := r.GeoTransform
	if !r.IsGeographic() {
		return math.Abs(gt[1]*gt[5]) * float64(cols*rows)
	}
	x0 := gt[0] + float64(col0)*gt[1]
	x1 := x0 + float64(cols)*gt[1]
	y0 := gt[3] + float64(row0)*gt[5]
	y1 := y0 + float64(rows)*gt[5]
	b := orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
	return math.Abs(geo.Area(b.ToPolygon()))
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
