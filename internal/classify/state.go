package classify

import (
	"fmt"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/montanaflynn/stats"
)

// RecentYears is the length of the window at the end of the target period compared with the baseline.
const RecentYears = 3

// State compares recent productivity with the baseline distribution of every pixel. The baseline
// annual values define deciles; the baseline mean and the mean of the last RecentYears of the target
// period are placed in decile classes 0..9. A drop of two classes or more is degraded, a gain of two or
// more is improved.
func State(ndvi Series, baselineStart, baselineEnd, targetStart, targetEnd int) (*raster.Raster, error) {
	if err := ndvi.Validate(); err != nil {
		return nil, err
	}
	baseline := ndvi.Between(baselineStart, baselineEnd)
	recentStart := targetEnd - RecentYears + 1
	if recentStart < targetStart {
		recentStart = targetStart
	}
	recent := ndvi.Between(recentStart, targetEnd)
	if baseline.Len() == 0 || recent.Len() == 0 {
		return nil, fmt.Errorf("%w: baseline %d-%d has %d layers, recent %d-%d has %d",
			ErrEmptySeries, baselineStart, baselineEnd, baseline.Len(), recentStart, targetEnd, recent.Len())
	}

	out := indicator.NewClassRaster(ndvi.grid())
	for i := range out.Data {
		history := valid(baseline.Pixel(i))
		if len(history) == 0 {
			continue
		}
		now, ok := mean(recent.Pixel(i))
		if !ok {
			continue
		}
		then, _ := mean(history)
		deciles, err := decileBreaks(history)
		if err != nil {
			return nil, err
		}
		out.Data[i] = float64(StateClass(decileClass(deciles, then), decileClass(deciles, now)))
	}
	return out, nil
}

// StateClass maps the decile classes of the baseline and recent means to a class.
func StateClass(baselineDecile, recentDecile int) indicator.Class {
	switch d := recentDecile - baselineDecile; {
	case d <= -2:
		return indicator.Degraded
	case d >= 2:
		return indicator.Improved
	}
	return indicator.Stable
}

func decileBreaks(vals []float64) ([]float64, error) {
	breaks := make([]float64, 0, 9)
	for p := 10; p <= 90; p += 10 {
		b, err := stats.PercentileNearestRank(vals, float64(p))
		if err != nil {
			return nil, err
		}
		breaks = append(breaks, b)
	}
	return breaks, nil
}

// decileClass counts the breaks strictly below v.
func decileClass(breaks []float64, v float64) int {
	c := 0
	for _, b := range breaks {
		if v > b {
			c++
		}
	}
	return c
}
