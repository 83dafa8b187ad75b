// Package indicator combines the productivity, land cover and soil organic carbon sub-indicators into the
// land degradation indicator and encodes it for output.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/forest-guardian/degradation-indicator/internal/raster"
)

// Class is a degradation class in the signed domain.
type Class int8

const (
	Degraded Class = -1
	Stable   Class = 0
	Improved Class = 1
)

// NoData marks unclassified pixels of signed class rasters: the minimum int16.
const NoData = math.MinInt16

var Classes = []Class{Degraded, Stable, Improved}

var (
	ErrInvalidClassValue = errors.New("invalid class value")
)

func (c Class) String() string {
	switch c {
	case Degraded:
		return "degraded"
	case Stable:
		return "stable"
	case Improved:
		return "improved"
	}
	return fmt.Sprintf("Class(%d)", int8(c))
}

func (c Class) Valid() bool {
	return c >= Degraded && c <= Improved
}

// NewClassRaster returns an all-nodata signed class raster on the grid of like.
func NewClassRaster(like *raster.Raster) *raster.Raster {
	return like.Like(raster.Int16, NoData, true)
}

// ClassAt decodes pixel i of a signed class raster. ok is false for nodata. Any other value
// outside {-1, 0, 1} fails with ErrInvalidClassValue.
func ClassAt(r *raster.Raster, i int) (Class, bool, error) {
	v := r.Data[i]
	if r.IsNoData(v) || v == NoData {
		return 0, false, nil
	}
	c := Class(int8(v))
	if float64(c) != v || !c.Valid() {
		return 0, false, fmt.Errorf("%w: %v at pixel %d", ErrInvalidClassValue, v, i)
	}
	return c, true, nil
}

// CheckClassRaster verifies every pixel of r holds a class or nodata.
func CheckClassRaster(r *raster.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for i := range r.Data {
		if _, _, err := ClassAt(r, i); err != nil {
			return err
		}
	}
	return nil
}
