package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/montanaflynn/stats"
)

// Series is a stack of pixel-aligned annual rasters; Rasters[i] holds year Years[i].
type Series struct {
	Years   []int
	Rasters []*raster.Raster
}

// NewSeries sorts the layers by year.
func NewSeries(layers map[int]*raster.Raster) Series {
	s := Series{}
	for y := range layers {
		s.Years = append(s.Years, y)
	}
	sort.Ints(s.Years)
	for _, y := range s.Years {
		s.Rasters = append(s.Rasters, layers[y])
	}
	return s
}

func (s Series) Len() int {
	return len(s.Years)
}

func (s Series) Validate() error {
	if len(s.Rasters) == 0 {
		return ErrEmptySeries
	}
	if len(s.Years) != len(s.Rasters) {
		return fmt.Errorf("%w: %d years for %d rasters", ErrClassification, len(s.Years), len(s.Rasters))
	}
	return raster.CheckAligned(s.Rasters...)
}

// Between keeps the years in [from, to].
func (s Series) Between(from, to int) Series {
	out := Series{}
	for i, y := range s.Years {
		if y >= from && y <= to {
			out.Years = append(out.Years, y)
			out.Rasters = append(out.Rasters, s.Rasters[i])
		}
	}
	return out
}

// Pixel returns the values of pixel i across years, NaN where a year is nodata.
func (s Series) Pixel(i int) []float64 {
	vals := make([]float64, len(s.Rasters))
	for k, r := range s.Rasters {
		v := r.Data[i]
		if r.IsNoData(v) {
			v = math.NaN()
		}
		vals[k] = v
	}
	return vals
}

func (s Series) grid() *raster.Raster {
	return s.Rasters[0]
}

func valid(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// mean of the valid values; ok is false when every value is NaN.
func mean(vals []float64) (float64, bool) {
	m, err := stats.Mean(valid(vals))
	if err != nil {
		return 0, false
	}
	return m, true
}
