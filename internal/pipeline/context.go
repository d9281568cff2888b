// Package pipeline sequences the prediction and training flows: context
// fetch, feature build, model attempt, fallback selection, and best-effort
// result logging.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campuseats/preptime/internal/config"
	"github.com/campuseats/preptime/internal/model"
	"github.com/campuseats/preptime/internal/store"
)

// ContextProvider fetches live vendor state for a prediction. With no store
// (degraded deployment) or on store failure it substitutes fixed defaults
// rather than failing the prediction.
type ContextProvider struct {
	store store.Store // may be nil
	cfg   config.ContextConfig
	now   func() time.Time
}

// NewContextProvider creates a ContextProvider. st may be nil.
func NewContextProvider(st store.Store, cfg config.ContextConfig) *ContextProvider {
	return &ContextProvider{store: st, cfg: cfg, now: time.Now}
}

// Fetch returns the vendor's queue depth and recent order velocity. Queue
// depth and velocity are independent queries issued concurrently; each falls
// back to its default on failure. Fulfillment-rate metrics are not stored
// per vendor, so the fixed defaults always apply there.
func (p *ContextProvider) Fetch(ctx context.Context, vendorID string) model.VendorContext {
	vc := model.VendorContext{
		QueueDepth:     p.cfg.DefaultQueueDepth,
		RecentVelocity: p.cfg.DefaultVelocity,
	}
	if p.store == nil {
		return vc
	}

	window := time.Duration(p.cfg.VelocityWindowMinutes) * time.Minute
	since := p.now().Add(-window)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		depth, err := p.store.CountOrders(gctx, vendorID, model.QueueStatuses)
		if err != nil {
			zap.L().Warn("context: queue depth fetch failed, using default",
				zap.String("vendor_id", vendorID),
				zap.Int("default", p.cfg.DefaultQueueDepth),
				zap.Error(err),
			)
			return nil
		}
		vc.QueueDepth = depth
		return nil
	})
	g.Go(func() error {
		velocity, err := p.store.CountOrdersSince(gctx, vendorID, since)
		if err != nil {
			zap.L().Warn("context: velocity fetch failed, using default",
				zap.String("vendor_id", vendorID),
				zap.Int("default", p.cfg.DefaultVelocity),
				zap.Error(err),
			)
			return nil
		}
		vc.RecentVelocity = velocity
		return nil
	})
	_ = g.Wait()

	return vc
}
