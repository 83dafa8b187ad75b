// Package export submits result rasters to the remote backend and waits for the export jobs to finish.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Recorder keeps track of submitted jobs outside the process.
type Recorder interface {
	Submitted(ctx context.Context, runID string, handle backend.JobHandle) error
	StateChanged(ctx context.Context, status backend.JobStatus) error
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRunID tags recorded jobs with the id of the run that submitted them.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

type Orchestrator struct {
	backend  backend.Backend
	recorder Recorder
	runID    string
	logTag   string
}

func NewOrchestrator(b backend.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{backend: b, logTag: "ExportOrchestrator:"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result holds the terminal status of every job of a batch, in the order of the handles.
type Result struct {
	Statuses []backend.JobStatus
	Polls    int
}

// Submit asks the backend to materialize r inside region as tiles tagged with description.
func (o *Orchestrator) Submit(ctx context.Context, description string, r *raster.Raster, region orb.Geometry, scale float64) (backend.JobHandle, error) {
	if err := r.Validate(); err != nil {
		return backend.JobHandle{}, fmt.Errorf("export %s: %w", description, err)
	}
	if region == nil {
		region = r.Bounds().ToPolygon()
	}
	handle, err := o.backend.Export(ctx, backend.ExportRequest{
		Description: description,
		Region:      geojson.NewGeometry(region),
		Scale:       scale,
		Raster:      r,
	})
	if err != nil {
		return backend.JobHandle{}, err
	}
	log.Info(o.logTag+"submitted", zap.String("description", description), zap.String("job", handle.ID),
		zap.Float64("scale", scale))
	if o.recorder != nil {
		if err := o.recorder.Submitted(ctx, o.runID, handle); err != nil {
			log.Warn(o.logTag+"failed to record job", zap.String("description", description), zap.Error(err))
		}
	}
	return handle, nil
}

// AwaitAll checks every handle once, then every interval until all of them are terminal. It succeeds only
// when every job completed; otherwise it returns a *JobFailure naming the failed jobs. There is no
// timeout besides ctx.
func (o *Orchestrator) AwaitAll(ctx context.Context, handles []backend.JobHandle, interval time.Duration) (Result, error) {
	if interval <= 0 {
		return Result{}, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	statuses := make([]backend.JobStatus, len(handles))
	for i, h := range handles {
		statuses[i] = backend.JobStatus{JobHandle: h, State: backend.Submitted}
	}
	result := Result{Statuses: statuses}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pending, err := o.poll(ctx, statuses)
		result.Polls++
		if err != nil {
			return result, err
		}
		if pending == 0 {
			break
		}
		log.Info(o.logTag+"waiting for export jobs", zap.Int("pending", pending), zap.Int("total", len(handles)),
			zap.Duration("interval", interval))
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}

	var failed []backend.JobStatus
	for _, s := range statuses {
		if s.State == backend.Failed {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		err := &JobFailure{Failed: failed}
		log.Error(o.logTag+"batch failed", zap.Strings("failed", err.Descriptions()))
		return result, err
	}
	log.Info(o.logTag+"all export jobs completed", zap.Int("jobs", len(handles)), zap.Int("polls", result.Polls))
	return result, nil
}

// poll refreshes the non terminal statuses in place and returns how many are still pending.
func (o *Orchestrator) poll(ctx context.Context, statuses []backend.JobStatus) (int, error) {
	pending := 0
	for i, prev := range statuses {
		if prev.State.Terminal() {
			continue
		}
		st, err := o.backend.JobStatus(ctx, prev.JobHandle)
		if err != nil {
			return 0, err
		}
		st.JobHandle = prev.JobHandle
		if st.State != prev.State {
			log.Debug(o.logTag+"job state changed", zap.String("description", st.Description),
				zap.String("from", string(prev.State)), zap.String("to", string(st.State)))
			if o.recorder != nil {
				if err := o.recorder.StateChanged(ctx, st); err != nil {
					log.Warn(o.logTag+"failed to record job state", zap.String("description", st.Description), zap.Error(err))
				}
			}
		}
		statuses[i] = st
		if !st.State.Terminal() {
			pending++
		}
	}
	return pending, nil
}
