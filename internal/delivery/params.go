package delivery

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/classify"
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/kendall"
	"github.com/forest-guardian/degradation-indicator/internal/raster"
	"github.com/forest-guardian/degradation-indicator/internal/transition"
	"github.com/forest-guardian/degradation-indicator/internal/zonal"
)

var (
	ErrOrdering  = errors.New("years must satisfy start < baseline end <= target start < end")
	ErrNoSensors = errors.New("at least one sensor is required")
)

// Parameters of one indicator computation.
type Parameters struct {
	Start       int
	BaselineEnd int
	TargetStart int
	End         int

	Sensors    []backend.Sensor
	Trajectory classify.TrajectoryMethod
	Confidence int
	Matrix     transition.Matrix
	Encoding   indicator.Encoding
	// SingleSignal classifies pixels with one available sub-indicator with that sub-indicator's class.
	SingleSignal bool
	// EcologicalUnits groups pixels for the performance diagnostic, nil for one unit.
	EcologicalUnits *raster.Raster
	Statistic       zonal.Statistic
}

// DefaultParameters returns the usual settings for the given years.
func DefaultParameters(start, baselineEnd, targetStart, end int) Parameters {
	return Parameters{
		Start:       start,
		BaselineEnd: baselineEnd,
		TargetStart: targetStart,
		End:         end,
		Sensors:     []backend.Sensor{backend.Landsat7, backend.Landsat8},
		Trajectory:  classify.NDVITrend,
		Confidence:  95,
		Matrix:      transition.Default(),
		Encoding:    indicator.Signed,
		Statistic:   zonal.Sum,
	}
}

// Validate checks the year order first so no remote call happens with an invalid range.
func (p Parameters) Validate() error {
	if !(p.Start < p.BaselineEnd && p.BaselineEnd <= p.TargetStart && p.TargetStart < p.End) {
		return fmt.Errorf("%w: got %d, %d, %d, %d", ErrOrdering, p.Start, p.BaselineEnd, p.TargetStart, p.End)
	}
	if len(p.Sensors) == 0 {
		return ErrNoSensors
	}
	if _, err := kendall.CriticalValue(len(p.Years()), p.Confidence); err != nil {
		return fmt.Errorf("trend over %d-%d: %w", p.Start, p.End, err)
	}
	if _, err := classify.ParseTrajectoryMethod(string(p.Trajectory)); err != nil {
		return err
	}
	if err := p.Matrix.Validate(); err != nil {
		return err
	}
	return nil
}

// Years lists every year of the run, start and end included.
func (p Parameters) Years() []int {
	years := make([]int, 0, p.End-p.Start+1)
	for y := p.Start; y <= p.End; y++ {
		years = append(years, y)
	}
	return years
}

func (p Parameters) encoding() indicator.Encoding {
	if p.Encoding == nil {
		return indicator.Signed
	}
	return p.Encoding
}
