package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/degradation-indicator/internal/aoi"
	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/classify"
	"github.com/forest-guardian/degradation-indicator/internal/delivery"
	"github.com/forest-guardian/degradation-indicator/internal/export"
	"github.com/forest-guardian/degradation-indicator/internal/gdalio"
	"github.com/forest-guardian/degradation-indicator/internal/indicator"
	"github.com/forest-guardian/degradation-indicator/internal/kendall"
	"github.com/forest-guardian/degradation-indicator/internal/ledger"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/mosaic"
	"github.com/forest-guardian/degradation-indicator/internal/notification"
	"github.com/forest-guardian/degradation-indicator/internal/properties"
	"github.com/forest-guardian/degradation-indicator/internal/storage"
	"github.com/forest-guardian/degradation-indicator/internal/transition"
	"github.com/forest-guardian/degradation-indicator/internal/zonal"
	"github.com/forest-guardian/degradation-indicator/output"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// areaFlags locate the area of interest.
type areaFlags struct {
	path      string
	name      string
	zoneField string
}

func (f *areaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "aoi", "", "GeoJSON file of the area of interest")
	cmd.Flags().StringVar(&f.name, "name", "", "Area name used in output file names (default: file name)")
	cmd.Flags().StringVar(&f.zoneField, "zone-field", "", "Feature property holding the zone names")
	_ = cmd.MarkFlagRequired("aoi")
}

func (f *areaFlags) load() (*aoi.Area, error) {
	return aoi.Load(f.path, f.name, f.zoneField)
}

// paramFlags are the indicator settings shared by run and zonal.
type paramFlags struct {
	start, baselineEnd, targetStart, end int
	sensors                              []string
	trajectory                           string
	confidence                           int
	matrix                               string
	encoding                             string
	singleSignal                         bool
	units                                string
	statistic                            string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.start, "start", 2001, "First year of the baseline period")
	cmd.Flags().IntVar(&f.baselineEnd, "baseline-end", 2015, "Last year of the baseline period")
	cmd.Flags().IntVar(&f.targetStart, "target-start", 2016, "First year of the target period")
	cmd.Flags().IntVar(&f.end, "end", 2019, "Last year of the target period")
	cmd.Flags().StringSliceVar(&f.sensors, "sensors", []string{string(backend.Landsat7), string(backend.Landsat8)},
		"Sensors of the NDVI composites")
	cmd.Flags().StringVar(&f.trajectory, "trajectory", string(classify.NDVITrend), "Trajectory method: ndvi_trend|rue|restrend")
	cmd.Flags().IntVar(&f.confidence, "confidence", 95, "Mann-Kendall confidence level: 90|95|99")
	cmd.Flags().StringVar(&f.matrix, "matrix", "", "CSV file overriding cells of the default transition matrix")
	cmd.Flags().StringVar(&f.encoding, "encoding", "signed", "Indicator encoding: signed|unsigned")
	cmd.Flags().BoolVar(&f.singleSignal, "single-signal", false, "Classify pixels with only one available sub-indicator")
	cmd.Flags().StringVar(&f.units, "ecological-units", "", "GeoTIFF of ecological units for the performance diagnostic")
	cmd.Flags().StringVar(&f.statistic, "statistic", string(zonal.Sum), "Zonal statistic: sum|percentage")
}

func (f *paramFlags) parameters() (delivery.Parameters, error) {
	p := delivery.DefaultParameters(f.start, f.baselineEnd, f.targetStart, f.end)
	p.Sensors = p.Sensors[:0]
	for _, s := range f.sensors {
		sensor, err := backend.ParseSensor(s)
		if err != nil {
			return p, err
		}
		p.Sensors = append(p.Sensors, sensor)
	}
	method, err := classify.ParseTrajectoryMethod(f.trajectory)
	if err != nil {
		return p, err
	}
	p.Trajectory = method
	p.Confidence = f.confidence
	if f.matrix != "" {
		file, err := os.Open(f.matrix)
		if err != nil {
			return p, err
		}
		defer file.Close()
		if p.Matrix, err = transition.ReadCSV(file, nil); err != nil {
			return p, err
		}
	}
	if p.Encoding, err = indicator.ParseEncoding(f.encoding); err != nil {
		return p, err
	}
	p.SingleSignal = f.singleSignal
	if f.units != "" {
		if p.EcologicalUnits, err = (gdalio.GeoTIFF{}).Read(f.units); err != nil {
			return p, err
		}
	}
	if p.Statistic, err = zonal.ParseStatistic(f.statistic); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func backendConfig(baseURL string) backend.Config {
	return backend.Config{
		BaseURL:      baseURL,
		ClientID:     properties.ClientID(),
		ClientSecret: properties.ClientSecret(),
		TokenURL:     properties.TokenURL(),
	}
}

// newService wires the remote clients. The returned closer releases the job ledger when one is configured.
func newService(ctx context.Context, runID string) (*delivery.Service, func(), error) {
	gdalio.Register()
	b, err := backend.NewClient(ctx, backendConfig(properties.BackendURL()))
	if err != nil {
		return nil, nil, err
	}
	st, err := storage.NewClient(ctx, backendConfig(properties.StorageURL()))
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	opts := []export.Option{export.WithRunID(runID)}
	if url := properties.DatabaseURL(); url != "" {
		l, err := ledger.Open(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, export.WithRecorder(l))
		closer = func() { _ = l.Close() }
	}

	svc := delivery.NewService(delivery.Config{
		Backend:      b,
		Orchestrator: export.NewOrchestrator(b, opts...),
		Merger:       mosaic.NewMerger(st, gdalio.GeoTIFF{}, mosaic.WithWorkers(properties.DownloadWorkers())),
		Shapefile:    gdalio.GeoJSONToShapefile,
		ResultDir:    properties.ResultDir(),
		WorkDir:      properties.WorkDir(),
		CacheDir:     properties.CacheDir(),
		PollInterval: properties.PollInterval(),
		Workers:      properties.DownloadWorkers(),
	})
	return svc, closer, nil
}

// notify reports the outcome to Discord and passes err through.
func notify(ctx context.Context, err error, success string) error {
	d := notification.FromProperties()
	if err != nil {
		if nerr := d.Error(ctx, err.Error()); nerr != nil {
			log.Warn("SDG:failed to send notification", zap.Error(nerr))
		}
		return err
	}
	if nerr := d.Success(ctx, success); nerr != nil {
		log.Warn("SDG:failed to send notification", zap.Error(nerr))
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var (
		area      areaFlags
		params    paramFlags
		quicklook bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute, download and summarize the indicator for an area",
		Long: `Compute the land cover, soil organic carbon and productivity sub-indicators, combine them into the
SDG 15.3.1 indicator, download the four maps as merged GeoTIFFs and archive the statistics per zone.

Example: sdg run --aoi data/kenya.geojson --zone-field county --start 2001 --baseline-end 2015 --target-start 2016 --end 2019`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := area.load()
			if err != nil {
				return err
			}
			p, err := params.parameters()
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			svc, closeService, err := newService(ctx, runID)
			if err != nil {
				return err
			}
			defer closeService()

			log.Info("SDG:run started", zap.String("run", runID), zap.String("area", a.Name()))
			report, err := svc.Run(ctx, a, p)
			if err != nil {
				return notify(ctx, fmt.Errorf("area %s: %w", a.Name(), err), "")
			}
			if quicklook {
				path := output.QuicklookPath(properties.ResultDir(), a.Name())
				if err := output.RenderQuicklook(path, report.Maps.Indicator, p.Encoding, 4); err != nil {
					log.Warn("SDG:quicklook failed", zap.Error(err))
				}
			}

			for _, path := range report.Merged {
				bannercolor.Green("✔ %s", path)
			}
			bannercolor.Green("✔ %s", report.Archive)
			return notify(ctx, nil, fmt.Sprintf("Area %s (run %s)\n%s\n%s", a.Name(), runID,
				strings.Join(report.Merged, "\n"), report.Archive))
		},
	}
	area.register(cmd)
	params.register(cmd)
	cmd.Flags().BoolVar(&quicklook, "quicklook", true, "Render a PNG preview of the indicator")
	return cmd
}

func newZonalCmd() *cobra.Command {
	var (
		area   areaFlags
		params paramFlags
		input  string
	)
	cmd := &cobra.Command{
		Use:   "zonal",
		Short: "Archive the per zone statistics of a merged indicator raster",
		Long: `Summarize an indicator GeoTIFF produced by run over the zones of the area. An existing archive for the
area is kept as is.

Example: sdg zonal --aoi data/kenya.geojson --zone-field county --raster data/result/kenya_indicator_15_3_1_merge.tif`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := area.load()
			if err != nil {
				return err
			}
			p, err := params.parameters()
			if err != nil {
				return err
			}
			if input == "" {
				input = mosaic.MergePath(properties.ResultDir(), delivery.Description(a.Name(), delivery.IndicatorLayer))
			}
			gdalio.Register()
			final, err := (gdalio.GeoTIFF{}).Read(input)
			if err != nil {
				return err
			}
			svc := delivery.NewService(delivery.Config{
				Shapefile: gdalio.GeoJSONToShapefile,
				ResultDir: properties.ResultDir(),
			})
			path, err := svc.ComputeZonalAnalysis(ctx, a, final, p)
			if err != nil {
				return err
			}
			bannercolor.Green("✔ %s", path)
			return nil
		},
	}
	area.register(cmd)
	params.register(cmd)
	cmd.Flags().StringVar(&input, "raster", "", "Merged indicator GeoTIFF (default: the run output of the area)")
	return cmd
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List the export jobs recorded as not finished, or show one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := properties.DatabaseURL()
			if url == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			l, err := ledger.Open(cmd.Context(), url)
			if err != nil {
				return err
			}
			defer l.Close()
			if len(args) == 1 {
				r, err := l.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJob(r)
				if r.Error != "" {
					bannercolor.Red("%s", r.Error)
				}
				return nil
			}
			records, err := l.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				bannercolor.Green("No pending export jobs")
				return nil
			}
			for _, r := range records {
				printJob(r)
			}
			return nil
		},
	}
}

func printJob(r ledger.Record) {
	bannercolor.Yellow("%s  %-40s %-10s %s", r.JobID, r.Description, r.State, r.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func newMatrixCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the land cover transition matrix as CSV",
		Long: `Print the default transition matrix, or the default matrix with the cells of --matrix applied, in the
baseline,target,class CSV format accepted by run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := transition.Default()
			if in != "" {
				file, err := os.Open(in)
				if err != nil {
					return err
				}
				defer file.Close()
				if m, err = transition.ReadCSV(file, nil); err != nil {
					return err
				}
			}
			return m.WriteCSV(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&in, "matrix", "", "CSV file overriding cells of the default matrix")
	return cmd
}

func newKendallCmd() *cobra.Command {
	var confidence int
	cmd := &cobra.Command{
		Use:   "kendall [sample-size]",
		Short: "Print the Mann-Kendall critical value for a series length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if _, err := fmt.Sscan(args[0], &n); err != nil {
				return fmt.Errorf("invalid sample size %q: %w", args[0], err)
			}
			v, err := kendall.CriticalValue(n, confidence)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", v)
			return nil
		},
	}
	cmd.Flags().IntVar(&confidence, "confidence", 95, "Confidence level: 90|95|99")
	return cmd
}
