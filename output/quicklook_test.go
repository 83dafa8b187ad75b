package output

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Discard()
}

func TestRenderQuicklook(t *testing.T) {
	r := raster.New(2, 2, [6]float64{0, 30, 0, 60, 0, -30}, "EPSG:32633", raster.Uint8, 0, true)
	copy(r.Data, []float64{1, 2, 3, 0})
	path := QuicklookPath(filepath.Join(t.TempDir(), "nested"), "kenya")

	require.NoError(t, RenderQuicklook(path, r, indicator.Unsigned, 100))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200+legendHeight, img.Bounds().Dy())

	rgba := func(x, y int) [4]uint32 {
		r, g, b, a := img.At(x, y).RGBA()
		return [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8}
	}
	degraded := ClassColor(indicator.Degraded)
	assert.Equal(t, [4]uint32{uint32(degraded.R), uint32(degraded.G), uint32(degraded.B), 255}, rgba(50, 50))
	improved := ClassColor(indicator.Improved)
	assert.Equal(t, [4]uint32{uint32(improved.R), uint32(improved.G), uint32(improved.B), 255}, rgba(50, 150))
	assert.Equal(t, uint32(0), rgba(150, 150)[3], "nodata is transparent")
}

func TestRenderQuicklookRejectsInvalidValues(t *testing.T) {
	r := raster.New(1, 1, [6]float64{0, 30, 0, 60, 0, -30}, "EPSG:32633", raster.Uint8, 0, true)
	r.Data[0] = 7
	err := RenderQuicklook(filepath.Join(t.TempDir(), "q.png"), r, indicator.Unsigned, 1)
	assert.ErrorIs(t, err, indicator.ErrInvalidClassValue)
}
