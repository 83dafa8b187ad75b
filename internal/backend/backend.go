// Package backend is the client of the remote processing backend: it serves annual composites and
// materializes result rasters as tiled files in remote storage through export jobs.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/paulmach/orb/geojson"
)

type LayerKind string

const (
	NDVI              LayerKind = "ndvi"
	Precipitation     LayerKind = "precipitation"
	LandCover         LayerKind = "land_cover"
	SoilOrganicCarbon LayerKind = "soc"
)

type Sensor string

const (
	Landsat4  Sensor = "Landsat 4"
	Landsat5  Sensor = "Landsat 5"
	Landsat7  Sensor = "Landsat 7"
	Landsat8  Sensor = "Landsat 8"
	Sentinel2 Sensor = "Sentinel 2"
)

var Sensors = []Sensor{Landsat4, Landsat5, Landsat7, Landsat8, Sentinel2}

func ParseSensor(name string) (Sensor, error) {
	n := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), " "))
	for _, s := range Sensors {
		if strings.ToLower(string(s)) == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sensor %q", name)
}

// ExportScale is the export resolution in meters: 10 with Sentinel 2 in the selection, 30 otherwise.
func ExportScale(sensors []Sensor) float64 {
	for _, s := range sensors {
		if s == Sentinel2 {
			return 10
		}
	}
	return 30
}

// ZonalScale is the resolution in meters of the zonal statistics for the sensor selection.
func ZonalScale(sensors []Sensor) float64 {
	return ExportScale(sensors) * 10
}

type JobState string

const (
	Submitted JobState = "SUBMITTED"
	Running   JobState = "RUNNING"
	Completed JobState = "COMPLETED"
	Failed    JobState = "FAILED"
)

func (s JobState) Terminal() bool {
	return s == Completed || s == Failed
}

// JobHandle identifies an export job; Description is also the prefix of its files in storage.
type JobHandle struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type JobStatus struct {
	JobHandle
	State JobState `json:"state"`
	Error string   `json:"error,omitempty"`
}

// CompositeRequest asks for one layer of one year over region, resampled to scale meters in crs.
type CompositeRequest struct {
	Layer   LayerKind         `json:"layer"`
	Year    int               `json:"year"`
	Sensors []Sensor          `json:"sensors,omitempty"`
	Region  *geojson.Geometry `json:"region"`
	Scale   float64           `json:"scale"`
	CRS     string            `json:"crs"`
}

type ExportRequest struct {
	Description string            `json:"description"`
	Region      *geojson.Geometry `json:"region"`
	Scale       float64           `json:"scale"`
	Raster      *raster.Raster    `json:"raster"`
}

// Backend is what the pipeline consumes from the remote processing backend.
type Backend interface {
	AnnualComposite(ctx context.Context, req CompositeRequest) (*raster.Raster, error)
	Export(ctx context.Context, req ExportRequest) (JobHandle, error)
	JobStatus(ctx context.Context, handle JobHandle) (JobStatus, error)
}

type Client struct {
	requester *Requester
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	r, err := NewRequester(ctx, cfg, "Backend:")
	if err != nil {
		return nil, err
	}
	return &Client{requester: r}, nil
}

// AnnualComposite returns the composite of one layer for one year: mean NDVI x 10000 of the cloud masked
// scenes of the sensors, annual precipitation sum, or the land cover and soil carbon maps of that year.
func (c *Client) AnnualComposite(ctx context.Context, req CompositeRequest) (*raster.Raster, error) {
	var out raster.Raster
	if err := c.requester.JSON(ctx, "POST", "/v1/composites", req, &out); err != nil {
		return nil, fmt.Errorf("failed to compute %s composite for %d: %w", req.Layer, req.Year, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s composite for %d: %w", req.Layer, req.Year, err)
	}
	return &out, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (JobHandle, error) {
	var status JobStatus
	if err := c.requester.JSON(ctx, "POST", "/v1/exports", req, &status, Once()); err != nil {
		return JobHandle{}, fmt.Errorf("failed to submit export %s: %w", req.Description, err)
	}
	if status.ID == "" {
		return JobHandle{}, fmt.Errorf("export %s: backend returned no job id", req.Description)
	}
	if status.Description == "" {
		status.Description = req.Description
	}
	return status.JobHandle, nil
}

func (c *Client) JobStatus(ctx context.Context, handle JobHandle) (JobStatus, error) {
	var status JobStatus
	if err := c.requester.JSON(ctx, "GET", "/v1/exports/"+url.PathEscape(handle.ID), nil, &status); err != nil {
		return JobStatus{}, fmt.Errorf("failed to get status of export %s: %w", handle.Description, err)
	}
	status.JobHandle = handle
	return status, nil
}
