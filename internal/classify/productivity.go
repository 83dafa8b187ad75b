package classify

import (
	"fmt"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"go.uber.org/zap"
)

// Productivity merges the trajectory, performance and state diagnostics with the indicator's
// precedence: the most degraded signal wins, then improved, then stable. A pixel missing any
// diagnostic stays unclassified.
func Productivity(trajectory, performance, state *raster.Raster) (*raster.Raster, error) {
	if err := raster.CheckAligned(trajectory, performance, state); err != nil {
		return nil, err
	}
	out := indicator.NewClassRaster(trajectory)
	inputs := [3]*raster.Raster{trajectory, performance, state}
	var classified int
	for i := range out.Data {
		var (
			t        indicator.Triple
			complete = true
		)
		for k, r := range inputs {
			cl, ok, err := indicator.ClassAt(r, i)
			if err != nil {
				return nil, fmt.Errorf("%w: %s diagnostic: %w", ErrClassification, diagnosticName(k), err)
			}
			if !ok {
				complete = false
				break
			}
			t[k] = cl
		}
		if !complete {
			continue
		}
		cl, err := indicator.Decide(t)
		if err != nil {
			return nil, err
		}
		out.Data[i] = float64(cl)
		classified++
	}
	log.Debug("SubIndicatorClassifier: productivity", zap.Int("classified", classified), zap.Int("pixels", len(out.Data)))
	return out, nil
}

func diagnosticName(k int) string {
	return [...]string{"trajectory", "performance", "state"}[k]
}
