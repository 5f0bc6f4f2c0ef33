package snapshot

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/calwindow/pkg/schedule"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a stored copy of a built window.
type Snapshot struct {
	ID            uuid.UUID
	GeneratedAt   time.Time
	SkippedEvents int
	Window        schedule.ScheduleWindow
}

func (s Snapshot) WindowStart() schedule.Date {
	return s.Window.WindowStart
}

func (s Snapshot) WindowEnd() schedule.Date {
	return s.Window.WindowEnd
}
