package schedule

const (
	dayStartTime = "00:00"
	dayEndTime   = "23:59"
	// FullDayMinutes is the duration reported for a fully covered day.
	FullDayMinutes = 1440
)

// DayFragment is the part of one event that falls on a single local calendar date.
type DayFragment struct {
	Date            Date
	Title           string
	StartTime       string
	EndTime         string
	DurationMinutes int
	// Location is nil when the event has no location.
	Location *string
	IsAllDay bool
}

func fullDayFragment(date Date, title string, location *string, allDay bool) DayFragment {
	return DayFragment{
		Date:            date,
		Title:           title,
		StartTime:       dayStartTime,
		EndTime:         dayEndTime,
		DurationMinutes: FullDayMinutes,
		Location:        location,
		IsAllDay:        allDay,
	}
}

func normalizeLocation(location string) *string {
	if location == "" {
		return nil
	}
	return &location
}
