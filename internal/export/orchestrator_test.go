package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Discard()
}

// scriptedBackend walks every job through its scripted states, one per status call, and stays on the last.
type scriptedBackend struct {
	mu       sync.Mutex
	scripts  map[string][]backend.JobState
	calls    map[string]int
	exported []backend.ExportRequest
	statusAt []time.Time
}

func newScriptedBackend(scripts map[string][]backend.JobState) *scriptedBackend {
	return &scriptedBackend{scripts: scripts, calls: map[string]int{}}
}

func (b *scriptedBackend) AnnualComposite(context.Context, backend.CompositeRequest) (*raster.Raster, error) {
	return nil, errors.New("not implemented")
}

func (b *scriptedBackend) Export(_ context.Context, req backend.ExportRequest) (backend.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exported = append(b.exported, req)
	return backend.JobHandle{ID: "job-" + req.Description, Description: req.Description}, nil
}

func (b *scriptedBackend) JobStatus(_ context.Context, h backend.JobHandle) (backend.JobStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusAt = append(b.statusAt, time.Now())
	script := b.scripts[h.Description]
	n := b.calls[h.Description]
	b.calls[h.Description]++
	if n >= len(script) {
		n = len(script) - 1
	}
	st := backend.JobStatus{JobHandle: h, State: script[n]}
	if st.State == backend.Failed {
		st.Error = "out of memory"
	}
	return st, nil
}

type memoryRecorder struct {
	submitted []string
	changes   []backend.JobStatus
}

func (r *memoryRecorder) Submitted(_ context.Context, runID string, h backend.JobHandle) error {
	r.submitted = append(r.submitted, runID+"/"+h.Description)
	return nil
}

func (r *memoryRecorder) StateChanged(_ context.Context, s backend.JobStatus) error {
	r.changes = append(r.changes, s)
	return nil
}

func testRaster() *raster.Raster {
	return raster.New(2, 2, [6]float64{0, 30, 0, 60, 0, -30}, "EPSG:32633", raster.Int16, -32768, true)
}

func submitAll(t *testing.T, o *Orchestrator, descriptions ...string) []backend.JobHandle {
	var handles []backend.JobHandle
	for _, d := range descriptions {
		h, err := o.Submit(context.Background(), d, testRaster(), nil, 30)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	return handles
}

func TestAwaitAllWaitsForEveryJob(t *testing.T) {
	b := newScriptedBackend(map[string][]backend.JobState{
		"area_soc":        {backend.Running, backend.Completed},
		"area_land_cover": {backend.Running, backend.Running, backend.Running, backend.Completed},
	})
	rec := &memoryRecorder{}
	o := NewOrchestrator(b, WithRecorder(rec), WithRunID("run-1"))
	handles := submitAll(t, o, "area_soc", "area_land_cover")

	interval := 5 * time.Millisecond
	res, err := o.AwaitAll(context.Background(), handles, interval)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Polls)
	for _, s := range res.Statuses {
		assert.Equal(t, backend.Completed, s.State)
	}
	// a completed job is not checked again
	assert.Equal(t, 2, b.calls["area_soc"])
	assert.Equal(t, 4, b.calls["area_land_cover"])
	assert.Equal(t, []string{"run-1/area_soc", "run-1/area_land_cover"}, rec.submitted)
	assert.Len(t, rec.changes, 4)

	// first poll is immediate, the next ones wait at least one interval
	first := b.statusAt[0]
	last := b.statusAt[len(b.statusAt)-1]
	assert.GreaterOrEqual(t, last.Sub(first), 3*interval-time.Millisecond)
}

func TestAwaitAllReportsFailedJobs(t *testing.T) {
	b := newScriptedBackend(map[string][]backend.JobState{
		"area_soc":          {backend.Running, backend.Failed},
		"area_productivity": {backend.Running, backend.Running, backend.Completed},
		"area_land_cover":   {backend.Completed},
	})
	o := NewOrchestrator(b)
	handles := submitAll(t, o, "area_soc", "area_productivity", "area_land_cover")

	res, err := o.AwaitAll(context.Background(), handles, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobFailed)
	var failure *JobFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"area_soc"}, failure.Descriptions())
	assert.Contains(t, err.Error(), "out of memory")
	// the failure is reported only once every job is terminal
	for _, s := range res.Statuses {
		assert.True(t, s.State.Terminal(), s.Description)
	}
}

func TestAwaitAllHonoursContext(t *testing.T) {
	b := newScriptedBackend(map[string][]backend.JobState{"area_soc": {backend.Running}})
	o := NewOrchestrator(b)
	handles := submitAll(t, o, "area_soc")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.AwaitAll(ctx, handles, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitAllRejectsBadInterval(t *testing.T) {
	o := NewOrchestrator(newScriptedBackend(nil))
	_, err := o.AwaitAll(context.Background(), nil, 0)
	assert.Error(t, err)
}

func TestAwaitAllEmptyBatch(t *testing.T) {
	o := NewOrchestrator(newScriptedBackend(nil))
	res, err := o.AwaitAll(context.Background(), nil, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Polls)
}

func TestSubmitDefaultsRegionToRasterBounds(t *testing.T) {
	b := newScriptedBackend(nil)
	o := NewOrchestrator(b)
	_, err := o.Submit(context.Background(), "area_indicator_15_3_1", testRaster(), nil, 10)
	require.NoError(t, err)
	require.Len(t, b.exported, 1)
	req := b.exported[0]
	assert.Equal(t, 10.0, req.Scale)
	assert.Equal(t, testRaster().Bounds(), req.Region.Geometry().Bound())

	_, err = o.Submit(context.Background(), "bad", &raster.Raster{}, nil, 10)
	assert.ErrorIs(t, err, raster.ErrMalformed)
}
