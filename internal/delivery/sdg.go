// Package delivery holds the use cases of an indicator run: compute the maps, download them and summarize
// the indicator per zone.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/aoi"
	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/classify"
	"github.com/forest-guardian/degradation-indicator/internal/export"
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/mosaic"
	"github.com/forest-guardian/degradation-indicator/internal/raster"
	"github.com/forest-guardian/degradation-indicator/internal/zonal"

	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// compositeCRS is the reference system of the composites requested from the backend.
const compositeCRS = "EPSG:4326"

type Layer string

const (
	LandCoverLayer    Layer = "land_cover"
	SOCLayer          Layer = "soc"
	ProductivityLayer Layer = "productivity"
	IndicatorLayer    Layer = "indicator_15_3_1"
)

// Layers in export order.
var Layers = []Layer{LandCoverLayer, SOCLayer, ProductivityLayer, IndicatorLayer}

// Description is the export description and remote file prefix of a layer of an area.
func Description(areaName string, layer Layer) string {
	return areaName + "_" + string(layer)
}

// Maps are the result rasters of a run.
type Maps struct {
	LandCover    *raster.Raster
	SOC          *raster.Raster
	Productivity *raster.Raster
	Indicator    *raster.Raster
	Scale        float64
}

func (m *Maps) get(l Layer) *raster.Raster {
	switch l {
	case LandCoverLayer:
		return m.LandCover
	case SOCLayer:
		return m.SOC
	case ProductivityLayer:
		return m.Productivity
	}
	return m.Indicator
}

type Config struct {
	Backend      backend.Backend
	Orchestrator *export.Orchestrator
	Merger       *mosaic.Merger
	Shapefile    zonal.ShapefileWriter
	ResultDir    string
	WorkDir      string
	// CacheDir keeps fetched composites between runs, empty disables the cache.
	CacheDir     string
	PollInterval time.Duration
	Workers      int
}

type Service struct {
	cfg    Config
	logTag string
}

func NewService(cfg Config) *Service {
	if cfg.CacheDir != "" && cfg.Backend != nil {
		cfg.Backend = newCachedBackend(cfg.Backend, cfg.CacheDir)
	}
	if cfg.Orchestrator == nil {
		cfg.Orchestrator = export.NewOrchestrator(cfg.Backend)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{cfg: cfg, logTag: "SDG:"}
}

// ComputeIndicatorMaps fetches the annual composites of the area and derives the three sub-indicators and
// the indicator. Parameters are validated before any remote call.
func (s *Service) ComputeIndicatorMaps(ctx context.Context, area *aoi.Area, p Parameters) (*Maps, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	scale := backend.ExportScale(p.Sensors)
	fetch := func(layer backend.LayerKind, year int) (*raster.Raster, error) {
		return s.cfg.Backend.AnnualComposite(ctx, backend.CompositeRequest{
			Layer:   layer,
			Year:    year,
			Sensors: p.Sensors,
			Region:  geojson.NewGeometry(area.BoundingGeometry()),
			Scale:   scale,
			CRS:     compositeCRS,
		})
	}

	ndviLayers := map[int]*raster.Raster{}
	climateLayers := map[int]*raster.Raster{}
	for _, year := range p.Years() {
		r, err := fetch(backend.NDVI, year)
		if err != nil {
			return nil, err
		}
		ndviLayers[year] = r
		if p.Trajectory == classify.RUE || p.Trajectory == classify.RESTREND {
			c, err := fetch(backend.Precipitation, year)
			if err != nil {
				return nil, err
			}
			climateLayers[year] = c
		}
	}
	ndvi := classify.NewSeries(ndviLayers)
	climate := classify.NewSeries(climateLayers)
	log.Info(s.logTag+"annual composites ready", zap.String("area", area.Name()), zap.Int("years", ndvi.Len()),
		zap.Float64("scale", scale))

	trajectory, err := classify.Trajectory(p.Trajectory, ndvi, climate, p.Confidence)
	if err != nil {
		return nil, fmt.Errorf("trajectory: %w", err)
	}
	performance, err := classify.Performance(ndvi, p.TargetStart, p.End, p.EcologicalUnits)
	if err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	state, err := classify.State(ndvi, p.Start, p.BaselineEnd, p.TargetStart, p.End)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	productivity, err := classify.Productivity(trajectory, performance, state)
	if err != nil {
		return nil, err
	}

	lcBaseline, err := fetch(backend.LandCover, p.Start)
	if err != nil {
		return nil, err
	}
	lcTarget, err := fetch(backend.LandCover, p.End)
	if err != nil {
		return nil, err
	}
	landCover, err := classify.LandCover(lcBaseline, lcTarget, p.Matrix)
	if err != nil {
		return nil, err
	}

	socBaseline, err := fetch(backend.SoilOrganicCarbon, p.Start)
	if err != nil {
		return nil, err
	}
	socTarget, err := fetch(backend.SoilOrganicCarbon, p.End)
	if err != nil {
		return nil, err
	}
	soc, err := classify.SOC(socBaseline, socTarget)
	if err != nil {
		return nil, err
	}

	var opts []indicator.Option
	if p.SingleSignal {
		opts = append(opts, indicator.WithSingleSignalFallback())
	}
	final, err := indicator.NewCombiner(p.encoding(), opts...).Combine(productivity, landCover, soc)
	if err != nil {
		return nil, err
	}
	log.Info(s.logTag+"indicator maps computed", zap.String("area", area.Name()), zap.String("encoding", p.encoding().Name()))
	return &Maps{LandCover: landCover, SOC: soc, Productivity: productivity, Indicator: final, Scale: scale}, nil
}

// DownloadMaps exports the four maps as one batch, waits for every job, merges the tiles of each layer into
// <area>_<layer>_merge.tif in the result directory and finally removes the remote tiles. The merged paths
// are returned in Layers order. Maps of administrative areas are clipped to the area first.
func (s *Service) DownloadMaps(ctx context.Context, area *aoi.Area, maps *Maps) ([]string, error) {
	handles := make([]backend.JobHandle, 0, len(Layers))
	for _, layer := range Layers {
		r := maps.get(layer)
		if area.FeatureCollection {
			clipped, err := r.Clip(area.Geometry)
			if err != nil {
				return nil, fmt.Errorf("failed to clip %s: %w", layer, err)
			}
			r = clipped
		}
		h, err := s.cfg.Orchestrator.Submit(ctx, Description(area.Name(), layer), r, area.BoundingGeometry(), maps.Scale)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	if _, err := s.cfg.Orchestrator.AwaitAll(ctx, handles, s.cfg.PollInterval); err != nil {
		return nil, err
	}

	paths := make([]string, len(Layers))
	var (
		mu       sync.Mutex
		firstErr error
	)
	wp := workerpool.New(s.cfg.Workers)
	for i, layer := range Layers {
		wp.Submit(func() {
			desc := Description(area.Name(), layer)
			path, err := s.cfg.Merger.Digest(ctx, desc, s.cfg.WorkDir, mosaic.MergePath(s.cfg.ResultDir, desc))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			paths[i] = path
		})
	}
	wp.StopWait()
	if firstErr != nil {
		return nil, firstErr
	}

	for _, layer := range Layers {
		if _, err := s.cfg.Merger.Cleanup(ctx, Description(area.Name(), layer)); err != nil {
			return nil, err
		}
	}
	log.Info(s.logTag+"maps downloaded", zap.String("area", area.Name()), zap.Strings("paths", paths))
	return paths, nil
}

// ComputeZonalAnalysis writes (or returns the existing) zonal archive of the indicator for the area.
func (s *Service) ComputeZonalAnalysis(ctx context.Context, area *aoi.Area, final *raster.Raster, p Parameters) (string, error) {
	archiver := zonal.NewArchiver(zonal.NewAggregator(p.encoding()), s.cfg.ResultDir, s.cfg.Shapefile)
	return archiver.Run(ctx, area, final, p.Statistic, backend.ZonalScale(p.Sensors))
}

// Report lists the artifacts of a complete run.
type Report struct {
	Maps    *Maps
	Merged  []string
	Archive string
}

// Run computes, downloads and summarizes the indicator. Either every artifact is produced or an error
// is returned.
func (s *Service) Run(ctx context.Context, area *aoi.Area, p Parameters) (*Report, error) {
	maps, err := s.ComputeIndicatorMaps(ctx, area, p)
	if err != nil {
		return nil, err
	}
	merged, err := s.DownloadMaps(ctx, area, maps)
	if err != nil {
		return nil, err
	}
	archive, err := s.ComputeZonalAnalysis(ctx, area, maps.Indicator, p)
	if err != nil {
		return nil, err
	}
	return &Report{Maps: maps, Merged: merged, Archive: archive}, nil
}
