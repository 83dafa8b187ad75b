package classify

import (
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/raster"
)

// Relative soil organic carbon change bounds of the stable class.
const (
	SOCDegradedThreshold = -0.10
	SOCImprovedThreshold = 0.10
)

// SOC classifies the relative change (target-baseline)/baseline of soil organic carbon stocks.
// Pixels with a missing or non-positive baseline stay unclassified.
func SOC(baseline, target *raster.Raster) (*raster.Raster, error) {
	if err := raster.CheckAligned(baseline, target); err != nil {
		return nil, err
	}
	out := indicator.NewClassRaster(baseline)
	for i := range out.Data {
		b, t := baseline.Data[i], target.Data[i]
		if baseline.IsNoData(b) || target.IsNoData(t) || b <= 0 {
			continue
		}
		out.Data[i] = float64(SOCClass((t - b) / b))
	}
	return out, nil
}

// SOCClass maps a relative change ratio to a class.
func SOCClass(ratio float64) indicator.Class {
	switch {
	case ratio < SOCDegradedThreshold:
		return indicator.Degraded
	case ratio > SOCImprovedThreshold:
		return indicator.Improved
	}
	return indicator.Stable
}
