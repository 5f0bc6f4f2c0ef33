package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExporter_Export(t *testing.T) {
	t.Run("should write the rendered window", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "out", "calendar_events.json")
		exporter := NewFileExporter(path, NewJsonRenderer())
		window := testWindow(t)

		// when
		err := exporter.Export(window)

		// then
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		expected, err := NewJsonRenderer().Render(window)
		require.NoError(t, err)
		assert.Equal(t, expected, data)
	})

	t.Run("should replace an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calendar_events.csv")
		require.NoError(t, os.WriteFile(path, []byte("old content that is longer than the new one"), 0o644))
		exporter := NewFileExporter(path, NewCsvRenderer())
		window, err := schedule.Build(nil, windowStart, 1)
		require.NoError(t, err)

		require.NoError(t, exporter.Export(window))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "date,weekday,title,start_time,end_time,duration_minutes,duration,location,is_all_day\n2024-01-01,Monday,,,,,,,\n", string(data))
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestFileExporter_Subscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_events.json")
	exporter := NewFileExporter(path, NewJsonRenderer())
	bus := event_bus.NewEventBus()
	unsubscribe := exporter.Subscribe(bus)
	window := testWindow(t)

	err := bus.Publish(event_bus.NewEvent(context.Background(), schedule.BuiltEventType, schedule.Built{
		Window:      window,
		GeneratedAt: time.Now(),
	}))

	require.NoError(t, err)
	assert.FileExists(t, path)

	unsubscribe()
	require.NoError(t, os.Remove(path))
	require.NoError(t, bus.Publish(event_bus.NewEvent(context.Background(), schedule.BuiltEventType, schedule.Built{Window: window})))
	assert.NoFileExists(t, path)
}
