package zonal

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forest-guardian/degradation-indicator/internal/aoi"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ShapefileWriter converts a GeoJSON layer into a shapefile set sharing the base name of dst.
type ShapefileWriter func(src, dst string) error

var shapefileSuffixes = []string{".dbf", ".prj", ".shp", ".cpg", ".shx"}

// ArchivePath is the zonal archive of an area in dir.
func ArchivePath(dir, areaName string) string {
	return filepath.Join(dir, areaName+"_indicator_15_3_1.zip")
}

// Archiver writes zonal archives into a result directory.
type Archiver struct {
	aggregator *Aggregator
	dir        string
	shapefile  ShapefileWriter
	logTag     string
}

// NewArchiver stores the vector layer as a shapefile when shp is set, as GeoJSON otherwise.
func NewArchiver(aggregator *Aggregator, dir string, shp ShapefileWriter) *Archiver {
	return &Archiver{aggregator: aggregator, dir: dir, shapefile: shp, logTag: "ZonalAggregator:"}
}

// Run aggregates final over the zones of area and zips the zone layer with its statistics, a CSV and an
// XLSX copy of the table. An existing archive for the area name is returned untouched.
func (a *Archiver) Run(ctx context.Context, area *aoi.Area, final *raster.Raster, stat Statistic, scale float64) (string, error) {
	path := ArchivePath(a.dir, area.Name())
	if _, err := os.Stat(path); err == nil {
		log.Warn(a.logTag+"archive already exists", zap.String("path", path))
		return path, nil
	}
	table, err := a.aggregator.Aggregate(final, area.Zones, stat, scale)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", a.dir, err)
	}
	staging := filepath.Join(a.dir, uuid.NewString())
	if err := os.Mkdir(staging, os.ModePerm); err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	base := filepath.Join(staging, area.Name()+"_indicator_15_3_1")
	files, err := a.writeLayer(base, area, table)
	if err != nil {
		return "", err
	}
	if err := writeCSV(base+".csv", table); err != nil {
		return "", err
	}
	if err := writeXLSX(base+".xlsx", table); err != nil {
		return "", err
	}
	files = append(files, base+".csv", base+".xlsx")

	tmp := filepath.Join(staging, "archive.zip")
	if err := zipFiles(tmp, files); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to move archive to %s: %w", path, err)
	}
	log.Info(a.logTag+"zonal statistics complete", zap.String("path", path), zap.Int("zones", len(table.Rows)),
		zap.String("statistic", string(table.Statistic)))
	return path, nil
}

// writeLayer writes the zones with their statistics and returns the files to archive.
func (a *Archiver) writeLayer(base string, area *aoi.Area, table *Table) ([]string, error) {
	fc := geojson.NewFeatureCollection()
	for i, z := range area.Zones {
		f := geojson.NewFeature(z.Geometry)
		r := table.Rows[i]
		f.Properties = geojson.Properties{
			"name":    z.Name,
			"NoData":  r.NoData,
			"Improve": r.Improve,
			"Stable":  r.Stable,
			"Degrade": r.Degrade,
		}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode zones: %w", err)
	}
	layer := base + ".geojson"
	if err := os.WriteFile(layer, data, 0o644); err != nil {
		return nil, err
	}
	if a.shapefile == nil {
		return []string{layer}, nil
	}
	if err := a.shapefile(layer, base+".shp"); err != nil {
		return nil, err
	}
	var files []string
	for _, suffix := range shapefileSuffixes {
		if _, err := os.Stat(base + suffix); err == nil {
			files = append(files, base+suffix)
		}
	}
	return files, nil
}

func writeCSV(path string, table *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&table.Rows, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeXLSX(path string, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"
	header := []interface{}{"zone", "NoData", "Improve", "Stable", "Degrade"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range table.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{r.Zone, r.NoData, r.Improve, r.Stable, r.Degrade}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	cell, _ := excelize.CoordinatesToCellName(7, 1)
	if err := f.SetCellValue(sheet, cell, "unit: "+table.Unit); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func zipFiles(path string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addFile(zw, file); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addFile(zw *zip.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()
	w, err := zw.Create(filepath.Base(file))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
