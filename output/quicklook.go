package output

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/properties"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"go.uber.org/zap"
)

const (
	legendHeight  = 70
	legendSpacing = 20
	minWidth      = 120
)

// QuicklookPath is the preview image next to the merged indicator raster.
func QuicklookPath(dir, areaName string) string {
	return filepath.Join(dir, areaName+"_indicator_15_3_1.png")
}

// ClassColor returns the palette color of a class.
func ClassColor(c indicator.Class) color.RGBA {
	p := properties.ColorMap[c.String()]
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 255}
}

// RenderQuicklook draws the indicator raster stored with enc as a PNG, one pixel per cell scaled by
// zoom, with a legend below. Nodata cells are transparent.
func RenderQuicklook(path string, final *raster.Raster, enc indicator.Encoding, zoom int) error {
	if err := final.Validate(); err != nil {
		return err
	}
	if zoom < 1 {
		zoom = 1
	}

	width := max(final.Width*zoom, minWidth)
	height := final.Height * zoom
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	counts := map[indicator.Class]int{}
	for y := 0; y < final.Height; y++ {
		for x := 0; x < final.Width; x++ {
			c, ok, err := enc.Decode(final.At(x, y))
			if err != nil {
				return fmt.Errorf("pixel (%d,%d): %w", x, y, err)
			}
			if !ok {
				continue
			}
			draw.Draw(img, image.Rect(x*zoom, y*zoom, (x+1)*zoom, (y+1)*zoom), image.NewUniform(ClassColor(c)),
				image.Point{}, draw.Src)
			counts[c]++
		}
	}

	dc := gg.NewContext(width, height+legendHeight)
	dc.DrawImage(img, 0, 0)

	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, float64(height), float64(width), legendHeight)
	dc.Fill()
	for i, c := range []indicator.Class{indicator.Degraded, indicator.Stable, indicator.Improved} {
		y := float64(height + 5 + i*legendSpacing)
		col := ClassColor(c)
		dc.SetRGB255(int(col.R), int(col.G), int(col.B))
		dc.DrawRectangle(10, y, 15, 15)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(10, y, 15, 15)
		dc.SetLineWidth(1)
		dc.Stroke()
		dc.DrawStringAnchored(c.String(), 30, y+7, 0, 0.5)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save quicklook: %w", err)
	}
	log.Info("Quicklook: saved", zap.String("path", path), zap.Int("width", width), zap.Int("height", height+legendHeight),
		zap.Int("degraded", counts[indicator.Degraded]), zap.Int("stable", counts[indicator.Stable]),
		zap.Int("improved", counts[indicator.Improved]))
	return nil
}
