// Package mosaic turns the remote tiles of an export job into one local raster file.
package mosaic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/storage"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoFiles = errors.New("no files found")

// Codec merges downloaded tiles into one raster file. Where tiles overlap, the first tile of the list
// holding valid data wins and later tiles only fill pixels still empty.
type Codec interface {
	Merge(tiles []string, out string) error
}

type Option func(*Merger)

// WithWorkers bounds the concurrent downloads of one digest.
func WithWorkers(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithoutProgress hides the download progress bar.
func WithoutProgress() Option {
	return func(m *Merger) { m.progress = false }
}

type Merger struct {
	storage  storage.Storage
	codec    Codec
	workers  int
	progress bool
	logTag   string
}

func NewMerger(s storage.Storage, codec Codec, opts ...Option) *Merger {
	m := &Merger{storage: s, codec: codec, workers: 4, progress: true, logTag: "TileMerger:"}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MergePath is the local file of the merged raster of description.
func MergePath(dir, description string) string {
	return filepath.Join(dir, description+"_merge.tif")
}

// Digest downloads every remote tile of description into workDir, merges them into out and deletes the
// downloaded tiles. Tiles are merged in the order of their remote names. Without remote tiles it fails
// with ErrNoFiles before touching the disk. When a later step fails the downloaded tiles are kept. Remote files are left untouched, see Cleanup.
func (m *Merger) Digest(ctx context.Context, description, workDir, out string) (string, error) {
	refs, err := m.list(ctx, description)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: %s*", ErrNoFiles, description)
	}
	log.Info(m.logTag+"downloading tiles", zap.String("description", description), zap.Int("tiles", len(refs)))

	paths, err := m.download(ctx, description, refs, workDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(out), err)
	}
	if err := m.codec.Merge(paths, out); err != nil {
		return "", fmt.Errorf("failed to merge %s: %w", description, err)
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn(m.logTag+"failed to remove tile", zap.String("path", p), zap.Error(err))
		}
	}
	log.Info(m.logTag+"merged", zap.String("description", description), zap.String("path", out),
		zap.Int("tiles", len(paths)))
	return out, nil
}

// Cleanup deletes every remote file of description and returns how many were removed.
func (m *Merger) Cleanup(ctx context.Context, description string) (int, error) {
	refs, err := m.list(ctx, description)
	if err != nil {
		return 0, err
	}
	for i, ref := range refs {
		if err := m.storage.Delete(ctx, ref); err != nil {
			return i, err
		}
	}
	log.Info(m.logTag+"removed remote files", zap.String("description", description), zap.Int("files", len(refs)))
	return len(refs), nil
}

// list keeps only the files whose name starts with description.
func (m *Merger) list(ctx context.Context, description string) ([]storage.FileRef, error) {
	refs, err := m.storage.List(ctx, description)
	if err != nil {
		return nil, err
	}
	out := refs[:0]
	for _, ref := range refs {
		if strings.HasPrefix(filepath.Base(ref.Name), description) {
			out = append(out, ref)
		}
	}
	slices.SortFunc(out, func(a, b storage.FileRef) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *Merger) download(ctx context.Context, description string, refs []storage.FileRef, dir string) ([]string, error) {
	var bar *progressbar.ProgressBar
	if m.progress {
		bar = progressbar.Default(int64(len(refs)), "Downloading "+description)
	} else {
		bar = progressbar.DefaultSilent(int64(len(refs)), description)
	}

	var mu sync.Mutex
	paths := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, ref := range refs {
		g.Go(func() error {
			p, err := m.storage.Download(gctx, ref, dir)
			if err != nil {
				return err
			}
			mu.Lock()
			paths[i] = p
			_ = bar.Add(1)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to download tiles of %s: %w", description, err)
	}
	return paths, nil
}
