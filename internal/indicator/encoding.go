package indicator

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/degradation-indicator/internal/raster"
)

// Encoding converts signed classes to the stored pixel values of the final raster.
type Encoding interface {
	Name() string
	DataType() raster.DataType
	NoData() float64
	Encode(c Class) float64
	// Decode returns ok=false for the nodata value and an error for values that are not a class.
	Decode(v float64) (c Class, ok bool, err error)
}

// Signed stores -1/0/1 as int16 with math.MinInt16 as nodata.
var Signed Encoding = signed{}

// Unsigned stores 1/2/3 (degraded/stable/improved) as uint8 with 0 as the masked value.
var Unsigned Encoding = unsigned{}

type signed struct{}

func (signed) Name() string              { return "signed" }
func (signed) DataType() raster.DataType { return raster.Int16 }
func (signed) NoData() float64           { return NoData }
func (signed) Encode(c Class) float64    { return float64(c) }

func (signed) Decode(v float64) (Class, bool, error) {
	if v == NoData {
		return 0, false, nil
	}
	c := Class(int8(v))
	if float64(c) != v || !c.Valid() {
		return 0, false, fmt.Errorf("%w: %v in signed encoding", ErrInvalidClassValue, v)
	}
	return c, true, nil
}

type unsigned struct{}

func (unsigned) Name() string              { return "unsigned" }
func (unsigned) DataType() raster.DataType { return raster.Uint8 }
func (unsigned) NoData() float64           { return 0 }
func (unsigned) Encode(c Class) float64    { return float64(c) + 2 }

func (unsigned) Decode(v float64) (Class, bool, error) {
	switch v {
	case 0:
		return 0, false, nil
	case 1, 2, 3:
		return Class(int8(v) - 2), true, nil
	}
	return 0, false, fmt.Errorf("%w: %v in unsigned encoding", ErrInvalidClassValue, v)
}

// ParseEncoding accepts "signed" or "unsigned".
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "signed", "":
		return Signed, nil
	case "unsigned":
		return Unsigned, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}

// Recode converts a raster stored with from into the to encoding, pixel by pixel.
func Recode(r *raster.Raster, from, to Encoding) (*raster.Raster, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := r.Like(to.DataType(), to.NoData(), true)
	for i, v := range r.Data {
		c, ok, err := from.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("pixel %d: %w", i, err)
		}
		if ok {
			out.Data[i] = to.Encode(c)
		}
	}
	return out, nil
}
