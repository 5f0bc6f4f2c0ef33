package snapshot

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/calwindow/pkg/schedule"
)

type RepositoryStub struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{}
}

func (r *RepositoryStub) Store(_ context.Context, snapshot Snapshot) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	r.snapshots = append(r.snapshots, snapshot)
	return snapshot, nil
}

func (r *RepositoryStub) GetLatest(_ context.Context) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sorted := r.newestFirst()
	if len(sorted) == 0 {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return sorted[0], nil
}

func (r *RepositoryStub) GetLatestForWindowStart(_ context.Context, date schedule.Date) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.newestFirst() {
		if s.WindowStart() == date {
			return s, nil
		}
	}
	return Snapshot{}, ErrSnapshotNotFound
}

func (r *RepositoryStub) List(_ context.Context, limit int) ([]Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sorted := r.newestFirst()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *RepositoryStub) DeleteGeneratedBefore(_ context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.snapshots)
	r.snapshots = slices.DeleteFunc(r.snapshots, func(s Snapshot) bool {
		return s.GeneratedAt.Before(t)
	})
	return before - len(r.snapshots), nil
}

func (r *RepositoryStub) newestFirst() []Snapshot {
	sorted := slices.Clone(r.snapshots)
	slices.SortStableFunc(sorted, func(a, b Snapshot) int {
		return b.GeneratedAt.Compare(a.GeneratedAt)
	})
	return sorted
}
