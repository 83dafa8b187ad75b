package classify

import (
	"fmt"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	// PerformancePercentile is the reference productivity of an ecological unit.
	PerformancePercentile = 90
	// PerformanceRatio below which a pixel is degraded.
	PerformanceRatio = 0.5
)

// Performance compares the mean target period NDVI of every pixel with the 90th percentile of that mean
// over the pixels of the same ecological unit. units may be nil, the whole area is then one unit.
// Performance never reports improvement: a pixel is degraded or stable.
func Performance(ndvi Series, targetStart, targetEnd int, units *raster.Raster) (*raster.Raster, error) {
	if err := ndvi.Validate(); err != nil {
		return nil, err
	}
	target := ndvi.Between(targetStart, targetEnd)
	if target.Len() == 0 {
		return nil, fmt.Errorf("%w: no ndvi layer in %d-%d", ErrEmptySeries, targetStart, targetEnd)
	}
	if units != nil {
		if err := raster.CheckAligned(ndvi.grid(), units); err != nil {
			return nil, err
		}
	}

	means := make([]float64, len(ndvi.grid().Data))
	has := make([]bool, len(means))
	groups := map[float64][]float64{}
	for i := range means {
		m, ok := mean(target.Pixel(i))
		if !ok {
			continue
		}
		u, ok := unitOf(units, i)
		if !ok {
			continue
		}
		means[i], has[i] = m, true
		groups[u] = append(groups[u], m)
	}

	reference := make(map[float64]float64, len(groups))
	for u, vals := range groups {
		p, err := stats.PercentileNearestRank(vals, PerformancePercentile)
		if err != nil {
			return nil, fmt.Errorf("ecological unit %v: %w", u, err)
		}
		reference[u] = p
	}

	out := indicator.NewClassRaster(ndvi.grid())
	for i := range out.Data {
		if !has[i] {
			continue
		}
		u, _ := unitOf(units, i)
		ref := reference[u]
		if ref <= 0 {
			continue
		}
		if means[i]/ref < PerformanceRatio {
			out.Data[i] = float64(indicator.Degraded)
		} else {
			out.Data[i] = float64(indicator.Stable)
		}
	}
	log.Debug("SubIndicatorClassifier: performance", zap.Int("units", len(groups)),
		zap.Int("targetYears", target.Len()))
	return out, nil
}

func unitOf(units *raster.Raster, i int) (float64, bool) {
	if units == nil {
		return 0, true
	}
	v := units.Data[i]
	if units.IsNoData(v) {
		return 0, false
	}
	return v, true
}
