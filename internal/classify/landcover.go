// Package classify reduces input rasters to signed class rasters, one per sub-indicator.
package classify

import (
	"fmt"
	"math"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/raster"
	"github.com/forest-guardian/degradation-indicator/internal/transition"
)

// LandCover classifies every pixel with the transition matrix cell of its (baseline, target) type pair.
// Type codes are 1-based; 0 and nodata pixels stay unclassified. Codes outside the matrix fail with
// ErrClassification.
func LandCover(baseline, target *raster.Raster, m transition.Matrix) (*raster.Raster, error) {
	if err := raster.CheckAligned(baseline, target); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}
	out := indicator.NewClassRaster(baseline)
	for i := range out.Data {
		b, okB, err := typeCode(baseline, i)
		if err != nil {
			return nil, err
		}
		t, okT, err := typeCode(target, i)
		if err != nil {
			return nil, err
		}
		if !okB || !okT {
			continue
		}
		cl, ok := m.Lookup(b, t)
		if !ok {
			return nil, fmt.Errorf("%w: land cover pair (%d, %d) at pixel %d outside %dx%d matrix",
				ErrClassification, b, t, i, m.Size(), m.Size())
		}
		out.Data[i] = float64(cl)
	}
	return out, nil
}

func typeCode(r *raster.Raster, i int) (int, bool, error) {
	v := r.Data[i]
	if r.IsNoData(v) || v == 0 {
		return 0, false, nil
	}
	if v != math.Trunc(v) || v < 0 {
		return 0, false, fmt.Errorf("%w: land cover code %v at pixel %d", ErrClassification, v, i)
	}
	return int(v), true, nil
}
