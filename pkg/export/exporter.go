package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

// FileExporter writes rendered windows to a single file.
type FileExporter struct {
	path     string
	renderer schedule.Renderer
}

func NewFileExporter(path string, renderer schedule.Renderer) *FileExporter {
	return &FileExporter{path: path, renderer: renderer}
}

func (e *FileExporter) Path() string {
	return e.path
}

// Subscribe makes the exporter write every window published on bus.
func (e *FileExporter) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, schedule.BuiltEventType, func(ev event_bus.EventT[schedule.Built]) error {
		return e.Export(ev.Data.Window)
	})
}

// Export renders window and replaces the target file atomically.
func (e *FileExporter) Export(window schedule.ScheduleWindow) error {
	data, err := e.renderer.Render(window)
	if err != nil {
		return err
	}

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calwindow-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, e.path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	log.Infof("Schedule saved to %s", e.path)
	return nil
}
