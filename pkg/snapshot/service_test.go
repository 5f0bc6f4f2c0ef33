package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/internal/utils"
	"github.com/klokku/calwindow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServiceTest(retention time.Duration) (*ServiceImpl, *RepositoryStub, *utils.MockClock) {
	repo := NewRepositoryStub()
	clock := &utils.MockClock{FixedNow: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	return NewService(repo, clock, retention), repo, clock
}

func TestServiceImpl_Subscribe(t *testing.T) {
	// given
	service, _, clock := setupServiceTest(0)
	bus := event_bus.NewEventBus()
	service.Subscribe(bus)
	window := testWindow(t, monday, "Standup")

	// when
	err := bus.Publish(event_bus.NewEvent(context.Background(), schedule.BuiltEventType, schedule.Built{
		Window:      window,
		GeneratedAt: clock.Now(),
		Skipped:     1,
	}))

	// then
	require.NoError(t, err)
	latest, err := service.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, window, latest.Window)
	assert.Equal(t, 1, latest.SkippedEvents)
	assert.Equal(t, clock.Now(), latest.GeneratedAt)

	byStart, err := service.LatestForWindowStart(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, byStart.ID)
}

func TestServiceImpl_Prune(t *testing.T) {
	t.Run("should delete snapshots outside of retention", func(t *testing.T) {
		service, repo, clock := setupServiceTest(48 * time.Hour)
		ctx := context.Background()
		for _, age := range []time.Duration{time.Hour, 47 * time.Hour, 49 * time.Hour, 100 * time.Hour} {
			_, err := repo.Store(ctx, Snapshot{GeneratedAt: clock.Now().Add(-age), Window: testWindow(t, monday)})
			require.NoError(t, err)
		}

		deleted, err := service.Prune(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		remaining, err := service.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, remaining, 2)
	})

	t.Run("should keep everything without retention", func(t *testing.T) {
		service, repo, clock := setupServiceTest(0)
		_, err := repo.Store(context.Background(), Snapshot{GeneratedAt: clock.Now().AddDate(-1, 0, 0), Window: testWindow(t, monday)})
		require.NoError(t, err)

		deleted, err := service.Prune(context.Background())

		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestServiceImpl_List_RejectsInvalidLimit(t *testing.T) {
	service, _, _ := setupServiceTest(0)

	_, err := service.List(context.Background(), 0)

	assert.Error(t, err)
}
