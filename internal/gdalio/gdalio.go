// Package gdalio reads and writes rasters and vector layers through GDAL.
package gdalio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// Register loads the GDAL drivers once per process.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// ignoreWarnings keeps GDAL warnings from failing an operation.
func ignoreWarnings() godal.ErrorHandler {
	return func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}
}

// GeoTIFF reads single band GeoTIFF tiles and writes LZW compressed GeoTIFF files.
type GeoTIFF struct{}

func (GeoTIFF) Read(path string) (*raster.Raster, error) {
	Register()
	ds, err := godal.Open(path, godal.RasterOnly(), godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%s has no band", path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to read geotransform of %s: %w", path, err)
	}
	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	band := bands[0]
	nodata, hasNoData := band.NoData()

	r := raster.New(width, height, gt, ds.Projection(), fromGDAL(band.Structure().DataType), nodata, hasNoData)
	if err := band.Read(0, 0, r.Data, width, height); err != nil {
		return nil, fmt.Errorf("failed to read raster data of %s: %w", path, err)
	}
	return r, nil
}

func (GeoTIFF) Write(path string, r *raster.Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	Register()
	ds, err := godal.Create(godal.GTiff, path, 1, toGDAL(r.DataType), r.Width, r.Height,
		godal.CreationOption("COMPRESS=LZW", "TILED=YES"), godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeDataset(ds, r); err != nil {
		ds.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// Merge mosaics tiles into one LZW compressed GeoTIFF at out. GDAL lets later VRT sources overwrite
// earlier ones, so the tiles are listed in reverse and the first tile holding data at a pixel wins.
// Pixels equal to the nodata value of the first tile are treated as empty in every tile.
func (GeoTIFF) Merge(tiles []string, out string) error {
	if len(tiles) == 0 {
		return errors.New("no tile to merge")
	}
	Register()
	nodata, hasNoData, err := bandNoData(tiles[0])
	if err != nil {
		return err
	}

	switches := []string{"-resolution", "highest", "-overwrite"}
	if hasNoData {
		v := strconv.FormatFloat(nodata, 'g', -1, 64)
		switches = append(switches, "-srcnodata", v, "-vrtnodata", v)
	}
	sources := slices.Clone(tiles)
	slices.Reverse(sources)

	tmpVrt := filepath.Join(filepath.Dir(out), uuid.NewString()+".vrt")
	defer os.Remove(tmpVrt)
	vrt, err := godal.BuildVRT(tmpVrt, sources, switches, godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return fmt.Errorf("failed to build vrt of %d tiles: %w", len(tiles), err)
	}
	defer vrt.Close()

	ds, err := vrt.Translate(out, []string{"-of", "GTiff", "-co", "COMPRESS=LZW", "-co", "TILED=YES"},
		godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", out, err)
	}
	return nil
}

func bandNoData(path string) (float64, bool, error) {
	ds, err := godal.Open(path, godal.RasterOnly(), godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return 0, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()
	bands := ds.Bands()
	if len(bands) == 0 {
		return 0, false, fmt.Errorf("%s has no band", path)
	}
	nodata, ok := bands[0].NoData()
	return nodata, ok, nil
}

func writeDataset(ds *godal.Dataset, r *raster.Raster) error {
	if err := ds.SetGeoTransform(r.GeoTransform); err != nil {
		return err
	}
	if err := setCRS(ds, r.CRS); err != nil {
		return err
	}
	band := ds.Bands()[0]
	if r.HasNoData {
		if err := band.SetNoData(r.NoData); err != nil {
			return err
		}
	}
	return band.Write(0, 0, r.Data, r.Width, r.Height)
}

func setCRS(ds *godal.Dataset, crs string) error {
	crs = strings.TrimSpace(crs)
	if crs == "" {
		return nil
	}
	if code, ok := strings.CutPrefix(strings.ToUpper(crs), "EPSG:"); ok {
		epsg, err := strconv.Atoi(code)
		if err != nil {
			return fmt.Errorf("invalid crs %q: %w", crs, err)
		}
		sr, err := godal.NewSpatialRefFromEPSG(epsg)
		if err != nil {
			return err
		}
		defer sr.Close()
		return ds.SetSpatialRef(sr)
	}
	return ds.SetProjection(crs)
}

func toGDAL(dt raster.DataType) godal.DataType {
	switch dt {
	case raster.Uint8:
		return godal.Byte
	case raster.Int16:
		return godal.Int16
	case raster.Float64:
		return godal.Float64
	}
	return godal.Float32
}

func fromGDAL(dt godal.DataType) raster.DataType {
	switch dt {
	case godal.Byte:
		return raster.Uint8
	case godal.Int16:
		return raster.Int16
	case godal.Float64:
		return raster.Float64
	}
	return raster.Float32
}

// GeoJSONToShapefile converts a GeoJSON layer into an ESRI shapefile set next to dst (.shp .shx .dbf .prj .cpg).
func GeoJSONToShapefile(src, dst string) error {
	Register()
	in, err := godal.Open(src, godal.VectorOnly(), godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := in.VectorTranslate(dst, []string{"-f", "ESRI Shapefile", "-lco", "ENCODING=UTF-8"})
	if err != nil {
		return fmt.Errorf("failed to convert %s to shapefile: %w", src, err)
	}
	return out.Close()
}
