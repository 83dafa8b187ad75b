package indicator

import (
	"fmt"

	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"go.uber.org/zap"
)

// Triple is an ordered (productivity, land cover, soil organic carbon) class triple.
type Triple [3]Class

// decisionTable maps every fully classified triple to the indicator class.
// Degraded dominates improved, improved dominates stable.
var decisionTable = map[Triple]Class{
	{Improved, Improved, Improved}: Improved,
	{Improved, Improved, Stable}:   Improved,
	{Improved, Improved, Degraded}: Degraded,
	{Improved, Stable, Improved}:   Improved,
	{Improved, Stable, Stable}:     Improved,
	{Improved, Stable, Degraded}:   Degraded,
	{Improved, Degraded, Improved}: Degraded,
	{Improved, Degraded, Stable}:   Degraded,
	{Improved, Degraded, Degraded}: Degraded,

	{Stable, Improved, Improved}: Improved,
	{Stable, Improved, Stable}:   Improved,
	{Stable, Improved, Degraded}: Degraded,
	{Stable, Stable, Improved}:   Improved,
	{Stable, Stable, Stable}:     Stable,
	{Stable, Stable, Degraded}:   Degraded,
	{Stable, Degraded, Improved}: Degraded,
	{Stable, Degraded, Stable}:   Degraded,
	{Stable, Degraded, Degraded}: Degraded,

	{Degraded, Improved, Improved}: Degraded,
	{Degraded, Improved, Stable}:   Degraded,
	{Degraded, Improved, Degraded}: Degraded,
	{Degraded, Stable, Improved}:   Degraded,
	{Degraded, Stable, Stable}:     Degraded,
	{Degraded, Stable, Degraded}:   Degraded,
	{Degraded, Degraded, Improved}: Degraded,
	{Degraded, Degraded, Stable}:   Degraded,
	{Degraded, Degraded, Degraded}: Degraded,
}

// Decide returns the indicator class of a fully classified triple.
func Decide(t Triple) (Class, error) {
	c, ok := decisionTable[t]
	if !ok {
		return 0, fmt.Errorf("%w: triple %v", ErrInvalidClassValue, t)
	}
	return c, nil
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithSingleSignalFallback classifies a pixel where exactly one sub-indicator is available with that
// sub-indicator's class, instead of leaving it unclassified.
func WithSingleSignalFallback() Option {
	return func(c *Combiner) { c.singleSignal = true }
}

type Combiner struct {
	encoding     Encoding
	singleSignal bool
	logTag       string
}

func NewCombiner(enc Encoding, opts ...Option) *Combiner {
	if enc == nil {
		enc = Signed
	}
	c := &Combiner{encoding: enc, logTag: "IndicatorCombiner:"}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Combiner) Encoding() Encoding {
	return c.encoding
}

// Combine merges three pixel-aligned signed class rasters into the indicator raster in the combiner's
// encoding. A pixel with any missing sub-indicator is left as nodata.
func (c *Combiner) Combine(productivity, landCover, soc *raster.Raster) (*raster.Raster, error) {
	if err := raster.CheckAligned(productivity, landCover, soc); err != nil {
		return nil, err
	}
	out := productivity.Like(c.encoding.DataType(), c.encoding.NoData(), true)
	inputs := [3]*raster.Raster{productivity, landCover, soc}
	var classified, fallback, missing int
	for i := range out.Data {
		var (
			t     Triple
			avail int
			last  Class
		)
		for k, r := range inputs {
			cl, ok, err := ClassAt(r, i)
			if err != nil {
				return nil, fmt.Errorf("%s input: %w", inputName(k), err)
			}
			if ok {
				t[k] = cl
				last = cl
				avail++
			}
		}
		switch {
		case avail == 3:
			cl, err := Decide(t)
			if err != nil {
				return nil, err
			}
			out.Data[i] = c.encoding.Encode(cl)
			classified++
		case avail == 1 && c.singleSignal:
			out.Data[i] = c.encoding.Encode(last)
			fallback++
		default:
			missing++
		}
	}
	log.Debug(c.logTag+"combined sub-indicators", zap.String("encoding", c.encoding.Name()),
		zap.Int("classified", classified), zap.Int("singleSignal", fallback), zap.Int("noData", missing))
	return out, nil
}

func inputName(k int) string {
	return [...]string{"productivity", "land cover", "soil organic carbon"}[k]
}
