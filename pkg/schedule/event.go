package schedule

// EventTime is one boundary of a raw event as delivered by the provider.
// All-day boundaries carry Date ("YYYY-MM-DD"), timed boundaries carry DateTime
// (RFC 3339, or a floating "YYYY-MM-DDTHH:MM:SS" without offset).
type EventTime struct {
	Date     string
	DateTime string
}

func (t EventTime) isDate() bool {
	return t.Date != ""
}

// RawEvent is a single, already recurrence-expanded event instance.
// The end boundary of an all-day event is exclusive.
type RawEvent struct {
	Summary  string
	Location string
	Start    EventTime
	End      EventTime
}

// IsAllDay reports whether both boundaries are calendar dates.
func (e RawEvent) IsAllDay() bool {
	return e.Start.isDate() && e.End.isDate()
}

type CalendarRef struct {
	ID   string
	Name string
}

// CalendarEvent pairs a raw event with the calendar it was read from.
type CalendarEvent struct {
	Calendar CalendarRef
	Event    RawEvent
}
