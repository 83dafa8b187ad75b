package delivery

import (
	"context"

	"github.com/forest-guardian/degradation-indicator/internal/backend"
	"github.com/forest-guardian/degradation-indicator/internal/cache"
	"github.com/forest-guardian/degradation-indicator/internal/log"
	"github.com/forest-guardian/degradation-indicator/internal/raster"

	"go.uber.org/zap"
)

// cachedBackend answers repeated composite requests from a local composite store. Exports are never cached.
type cachedBackend struct {
	backend.Backend
	store cache.Store
}

func newCachedBackend(b backend.Backend, dir string) *cachedBackend {
	return &cachedBackend{Backend: b, store: cache.NewComposites(dir)}
}

func (c *cachedBackend) AnnualComposite(ctx context.Context, req backend.CompositeRequest) (*raster.Raster, error) {
	if r, ok := c.store.Get(req); ok {
		log.Debug("SDG:composite cache hit", zap.String("layer", string(req.Layer)), zap.Int("year", req.Year))
		return r, nil
	}
	r, err := c.Backend.AnnualComposite(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(req, r); err != nil {
		log.Warn("SDG:failed to cache composite", zap.String("layer", string(req.Layer)), zap.Int("year", req.Year),
			zap.Error(err))
	}
	return r, nil
}
