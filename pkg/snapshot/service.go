package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/internal/utils"
	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Save(ctx context.Context, built schedule.Built) (Snapshot, error)
	Latest(ctx context.Context) (Snapshot, error)
	LatestForWindowStart(ctx context.Context, date schedule.Date) (Snapshot, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)
	// Prune deletes snapshots older than the retention period.
	Prune(ctx context.Context) (int, error)
}

type ServiceImpl struct {
	repo      Repository
	clock     utils.Clock
	retention time.Duration
}

func NewService(repo Repository, clock utils.Clock, retention time.Duration) *ServiceImpl {
	return &ServiceImpl{repo: repo, clock: clock, retention: retention}
}

// Subscribe stores every window published on bus.
func (s *ServiceImpl) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, schedule.BuiltEventType, func(e event_bus.EventT[schedule.Built]) error {
		_, err := s.Save(e.Context(), e.Data)
		return err
	})
}

func (s *ServiceImpl) Save(ctx context.Context, built schedule.Built) (Snapshot, error) {
	stored, err := s.repo.Store(ctx, Snapshot{
		GeneratedAt:   built.GeneratedAt,
		SkippedEvents: built.Skipped,
		Window:        built.Window,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to store snapshot: %w", err)
	}
	log.Debugf("Stored snapshot %s of window %s - %s", stored.ID, stored.WindowStart(), stored.WindowEnd())
	return stored, nil
}

func (s *ServiceImpl) Latest(ctx context.Context) (Snapshot, error) {
	return s.repo.GetLatest(ctx)
}

func (s *ServiceImpl) LatestForWindowStart(ctx context.Context, date schedule.Date) (Snapshot, error) {
	return s.repo.GetLatestForWindowStart(ctx, date)
}

func (s *ServiceImpl) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return s.repo.List(ctx, limit)
}

func (s *ServiceImpl) Prune(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteGeneratedBefore(ctx, s.clock.Now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	if deleted > 0 {
		log.Infof("Pruned %d snapshot(s) older than %s", deleted, s.retention)
	}
	return deleted, nil
}
