package uploads

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"mediahub/media"
	"mediahub/metrics"
	"mediahub/providers"
)

// Sweeper reclaims provider artifacts that were uploaded but never made it
// into the metadata store. It runs until its context is canceled.
type Sweeper struct {
	store    Store
	adapters map[media.Provider]providers.Adapter
	interval time.Duration
	log      *logrus.Entry
}

func NewSweeper(store Store, adapters map[media.Provider]providers.Adapter, interval time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		adapters: adapters,
		interval: interval,
		log:      logger.WithField("component", "sweeper"),
	}
}

// Run sweeps once immediately, then on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.SweepOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce tries to delete every recorded orphan. Records whose provider
// delete succeeds are removed; failures stay for the next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	orphans, err := s.store.ListOrphans(ctx)
	if err != nil {
		s.log.Errorf("list orphans: %v", err)
		return
	}
	if len(orphans) == 0 {
		return
	}
	s.log.Infof("sweeping %d orphaned artifacts", len(orphans))

	for _, orphan := range orphans {
		adapter, ok := s.adapters[orphan.Provider]
		if !ok {
			s.log.Errorf("orphan %d: no adapter for provider %s", orphan.ID, orphan.Provider)
			metrics.OrphansSwept.WithLabelValues("skipped").Inc()
			continue
		}
		if err := adapter.Delete(ctx, orphan.ProviderID, providers.ResourceKind(orphan.Kind)); err != nil {
			s.log.Errorf("orphan %d: delete %s: %v", orphan.ID, orphan.ProviderID, err)
			metrics.OrphansSwept.WithLabelValues("error").Inc()
			continue
		}
		if err := s.store.DeleteOrphan(ctx, orphan.ID); err != nil {
			s.log.Errorf("orphan %d: clear record: %v", orphan.ID, err)
			continue
		}
		metrics.OrphansSwept.WithLabelValues("ok").Inc()
	}
}
