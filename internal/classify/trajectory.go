package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/kendall"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

type TrajectoryMethod string

const (
	// NDVITrend tests the annual NDVI series itself.
	NDVITrend TrajectoryMethod = "ndvi_trend"
	// RUE tests the rain use efficiency, NDVI divided by annual precipitation.
	RUE TrajectoryMethod = "rue"
	// RESTREND tests the residuals of the per pixel regression of NDVI on precipitation.
	RESTREND TrajectoryMethod = "restrend"
)

var TrajectoryMethods = []TrajectoryMethod{NDVITrend, RUE, RESTREND}

func ParseTrajectoryMethod(name string) (TrajectoryMethod, error) {
	m := TrajectoryMethod(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range TrajectoryMethods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown trajectory method %q", ErrClassification, name)
}

func (m TrajectoryMethod) needsClimate() bool {
	return m == RUE || m == RESTREND
}

// Trajectory classifies the significance of the productivity trend of every pixel with the Mann-Kendall test
// at confidenceLevel. climate is only read by RUE and RESTREND and must share the years of ndvi.
// The series must hold between kendall.MinSampleSize and kendall.MaxSampleSize years; pixels with fewer
// than kendall.MinSampleSize valid years stay unclassified.
func Trajectory(method TrajectoryMethod, ndvi, climate Series, confidenceLevel int) (*raster.Raster, error) {
	if err := ndvi.Validate(); err != nil {
		return nil, err
	}
	if _, err := kendall.CriticalValue(ndvi.Len(), confidenceLevel); err != nil {
		return nil, fmt.Errorf("%d year series: %w", ndvi.Len(), err)
	}
	if method.needsClimate() {
		if err := climate.Validate(); err != nil {
			return nil, fmt.Errorf("climate series: %w", err)
		}
		if err := raster.CheckAligned(ndvi.grid(), climate.grid()); err != nil {
			return nil, err
		}
		if !sameYears(ndvi.Years, climate.Years) {
			return nil, fmt.Errorf("%w: ndvi years %v differ from climate years %v", ErrClassification, ndvi.Years, climate.Years)
		}
	}

	out := indicator.NewClassRaster(ndvi.grid())
	var sparse int
	for i := range out.Data {
		var series []float64
		switch method {
		case NDVITrend:
			series = ndvi.Pixel(i)
		case RUE:
			series = rainUseEfficiency(ndvi.Pixel(i), climate.Pixel(i))
		case RESTREND:
			series = residuals(ndvi.Pixel(i), climate.Pixel(i))
		default:
			return nil, fmt.Errorf("%w: unknown trajectory method %q", ErrClassification, method)
		}
		if len(valid(series)) < kendall.MinSampleSize {
			sparse++
			continue
		}
		trend, err := kendall.Test(series, confidenceLevel)
		if err != nil {
			return nil, err
		}
		out.Data[i] = float64(trend)
	}
	log.Debug("SubIndicatorClassifier: trajectory", zap.String("method", string(method)),
		zap.Int("confidence", confidenceLevel), zap.Int("sparsePixels", sparse))
	return out, nil
}

func rainUseEfficiency(ndvi, precipitation []float64) []float64 {
	out := make([]float64, len(ndvi))
	for k := range ndvi {
		if math.IsNaN(ndvi[k]) || math.IsNaN(precipitation[k]) || precipitation[k] <= 0 {
			out[k] = math.NaN()
			continue
		}
		out[k] = ndvi[k] / precipitation[k]
	}
	return out
}

// residuals of the least squares fit ndvi = alpha + beta*precipitation, NaN where either is missing.
func residuals(ndvi, precipitation []float64) []float64 {
	out := make([]float64, len(ndvi))
	var xs, ys []float64
	for k := range ndvi {
		if math.IsNaN(ndvi[k]) || math.IsNaN(precipitation[k]) {
			continue
		}
		xs = append(xs, precipitation[k])
		ys = append(ys, ndvi[k])
	}
	if len(xs) < 2 {
		for k := range out {
			out[k] = math.NaN()
		}
		return out
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	for k := range ndvi {
		if math.IsNaN(ndvi[k]) || math.IsNaN(precipitation[k]) {
			out[k] = math.NaN()
			continue
		}
		out[k] = ndvi[k] - (alpha + beta*precipitation[k])
	}
	return out
}

func sameYears(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
