// Package cache keeps fetched annual composites on local disk between runs. Every entry carries the
// request it answers and a checksum of its pixels so a stale or corrupted file reads as a miss.
package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"github.com/google/uuid"
)

var ErrNoComposite = errors.New("no composite to store")

// Store answers composite requests already fetched once.
type Store interface {
	Get(req backend.CompositeRequest) (*raster.Raster, bool)
	Put(req backend.CompositeRequest, r *raster.Raster) error
}

type compositeEntry struct {
	Layer     backend.LayerKind `json:"layer"`
	Year      int               `json:"year"`
	Sensors   []backend.Sensor  `json:"sensors"`
	Scale     float64           `json:"scale"`
	CRS       string            `json:"crs"`
	Region    string            `json:"region"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	FetchedAt time.Time         `json:"fetched_at"`
	Checksum  string            `json:"checksum"`
	Raster    *raster.Raster    `json:"raster"`
}

// Composites stores one JSON file per composite request under dir.
type Composites struct {
	dir string
}

func NewComposites(dir string) *Composites {
	return &Composites{dir: dir}
}

func (c *Composites) Get(req backend.CompositeRequest) (*raster.Raster, bool) {
	region, err := encodeRegion(req)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(c.path(req, region))
	if err != nil {
		return nil, false
	}
	var entry compositeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Layer != req.Layer || entry.Year != req.Year || entry.Scale != req.Scale || entry.CRS != req.CRS ||
		entry.Region != region || !slices.Equal(entry.Sensors, req.Sensors) {
		return nil, false
	}
	if entry.Raster.Validate() != nil || entry.Raster.Width != entry.Width || entry.Raster.Height != entry.Height {
		return nil, false
	}
	if entry.Checksum != checksum(entry.Raster) {
		return nil, false
	}
	return entry.Raster, true
}

// Put replaces the entry of req atomically.
func (c *Composites) Put(req backend.CompositeRequest, r *raster.Raster) error {
	if r == nil {
		return fmt.Errorf("%w: %s %d", ErrNoComposite, req.Layer, req.Year)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid %s composite for %d: %w", req.Layer, req.Year, err)
	}
	region, err := encodeRegion(req)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create composite cache directory: %w", err)
	}
	entry := compositeEntry{
		Layer:     req.Layer,
		Year:      req.Year,
		Sensors:   req.Sensors,
		Scale:     req.Scale,
		CRS:       req.CRS,
		Region:    region,
		Width:     r.Width,
		Height:    r.Height,
		FetchedAt: time.Now(),
		Checksum:  checksum(r),
		Raster:    r,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s composite for %d: %w", req.Layer, req.Year, err)
	}

	path := c.path(req, region)
	tmp := filepath.Join(c.dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s composite for %d: %w", req.Layer, req.Year, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store %s composite for %d: %w", req.Layer, req.Year, err)
	}
	return nil
}

// path names the file after layer and year, followed by a hash of the whole request.
func (c *Composites) path(req backend.CompositeRequest, region string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s_%d_%v_%g_%s_%s", req.Layer, req.Year, req.Sensors, req.Scale, req.CRS, region)
	return filepath.Join(c.dir, fmt.Sprintf("%s_%d_%s.json", req.Layer, req.Year, hex.EncodeToString(h.Sum(nil))[:16]))
}

func encodeRegion(req backend.CompositeRequest) (string, error) {
	if req.Region == nil {
		return "", nil
	}
	data, err := req.Region.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode region of %s composite: %w", req.Layer, err)
	}
	return string(data), nil
}

func checksum(r *raster.Raster) string {
	data, _ := json.Marshal(r)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
