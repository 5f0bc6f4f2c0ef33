package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test setup helper
func setupServiceTest(t *testing.T, events ...CalendarEvent) (*Service, *ProviderStub, *event_bus.EventBus) {
	t.Helper()
	provider := NewProviderStub(events...)
	clock := &utils.MockClock{FixedNow: time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC)}
	bus := event_bus.NewEventBus()
	service := NewService(provider, NewSplitter(plusTwo), clock, bus, 7)
	return service, provider, bus
}

func TestService_Today(t *testing.T) {
	service, _, _ := setupServiceTest(t)
	service.clock = &utils.MockClock{FixedNow: time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)}

	// 23:00 UTC is already the next day at UTC+2
	assert.Equal(t, date(2024, 1, 2), service.Today())
}

func TestService_Generate(t *testing.T) {
	t.Run("should request the inclusive window from the provider", func(t *testing.T) {
		// given
		service, provider, _ := setupServiceTest(t,
			CalendarEvent{Calendar: CalendarRef{ID: "a", Name: "A"}, Event: timed("Standup", "2024-01-03T09:00:00+02:00", "2024-01-03T09:15:00+02:00")},
		)

		// when
		result, err := service.Generate(context.Background(), date(2024, 1, 1), 5)

		// then
		require.NoError(t, err)
		assert.Equal(t, []DateRange{{From: date(2024, 1, 1), To: date(2024, 1, 5)}}, provider.Calls())
		assert.Equal(t, 1, result.Events)
		assert.Equal(t, 1, result.Fragments)
		assert.Equal(t, 0, result.Skipped)
		require.Len(t, result.Window.Days, 5)
		assert.Equal(t, []string{"Standup"}, titles(result.Window.Days[2].Events))
	})

	t.Run("should count malformed events", func(t *testing.T) {
		service, _, _ := setupServiceTest(t,
			CalendarEvent{Event: RawEvent{Summary: "no end", Start: EventTime{DateTime: "2024-01-01T09:00:00Z"}}},
			CalendarEvent{Event: allDay("Holiday", "2024-01-01", "2024-01-03")},
		)

		result, err := service.Generate(context.Background(), date(2024, 1, 1), 7)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Events)
		assert.Equal(t, 2, result.Fragments)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("should reject an invalid window without calling the provider", func(t *testing.T) {
		service, provider, _ := setupServiceTest(t)

		_, err := service.Generate(context.Background(), date(2024, 1, 1), 0)

		assert.ErrorIs(t, err, ErrInvalidWindow)
		assert.Empty(t, provider.Calls())
	})

	t.Run("should fail when the provider fails", func(t *testing.T) {
		service, provider, _ := setupServiceTest(t)
		providerErr := errors.New("boom")
		provider.SetError(providerErr)

		_, err := service.Generate(context.Background(), date(2024, 1, 1), 7)

		assert.ErrorIs(t, err, providerErr)
	})
}

func TestService_Refresh(t *testing.T) {
	t.Run("should publish and remember the window starting today", func(t *testing.T) {
		// given
		service, _, bus := setupServiceTest(t,
			CalendarEvent{Event: allDay("Holiday", "2024-01-02", "2024-01-03")},
		)
		var published []Built
		event_bus.SubscribeTyped(bus, BuiltEventType, func(e event_bus.EventT[Built]) error {
			published = append(published, e.Data)
			return nil
		})
		_, ok := service.Latest()
		require.False(t, ok)

		// when
		result, err := service.Refresh(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, date(2024, 1, 1), result.Window.WindowStart)
		assert.Equal(t, date(2024, 1, 7), result.Window.WindowEnd)
		require.Len(t, published, 1)
		assert.Equal(t, result.Window, published[0].Window)
		assert.Equal(t, time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC), published[0].GeneratedAt)

		latest, ok := service.Latest()
		require.True(t, ok)
		assert.Equal(t, result.Window, latest.Window)
	})

	t.Run("should report subscriber failures", func(t *testing.T) {
		service, _, bus := setupServiceTest(t)
		bus.Subscribe(BuiltEventType, func(event_bus.Event) error {
			return errors.New("disk full")
		})

		result, err := service.Refresh(context.Background())

		assert.Error(t, err)
		assert.Len(t, result.Window.Days, 7)
	})
}
