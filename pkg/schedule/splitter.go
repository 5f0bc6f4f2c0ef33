package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent is returned by Split for events that cannot be placed on any date.
// Callers are expected to count and skip such events.
var ErrMalformedEvent = errors.New("malformed event")

const clockLayout = "15:04"

// floatingLayouts are accepted for instants that carry no UTC offset.
var floatingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// DayPosition describes where a date lies inside the inclusive date span of an event.
type DayPosition int

const (
	Sole DayPosition = iota
	First
	Last
	Interior
)

func (p DayPosition) String() string {
	switch p {
	case Sole:
		return "sole"
	case First:
		return "first"
	case Last:
		return "last"
	case Interior:
		return "interior"
	default:
		return fmt.Sprintf("DayPosition(%d)", int(p))
	}
}

// dateSpan is an inclusive range of calendar dates.
type dateSpan struct {
	first Date
	last  Date
}

func (s dateSpan) days() int {
	return s.first.DaysUntil(s.last) + 1
}

// classify returns the position of date within span. date must lie inside span.
func classify(date Date, span dateSpan) DayPosition {
	isFirst := date == span.first
	isLast := date == span.last
	switch {
	case isFirst && isLast:
		return Sole
	case isFirst:
		return First
	case isLast:
		return Last
	default:
		return Interior
	}
}

// Splitter turns raw events into per-day fragments in a fixed local timezone.
// It holds no mutable state and is safe for concurrent use.
type Splitter struct {
	location *time.Location
}

// NewSplitter returns a Splitter that resolves every instant in location.
// A nil location means UTC.
func NewSplitter(location *time.Location) *Splitter {
	if location == nil {
		location = time.UTC
	}
	return &Splitter{location: location}
}

func (s *Splitter) Location() *time.Location {
	return s.location
}

// Split emits one fragment per local calendar date touched by event, in ascending date order.
// Events that cannot be interpreted yield no fragments and an error wrapping ErrMalformedEvent.
func (s *Splitter) Split(event RawEvent) ([]DayFragment, error) {
	if event.IsAllDay() {
		return s.splitAllDay(event)
	}
	return s.splitTimed(event)
}

func (s *Splitter) splitAllDay(event RawEvent) ([]DayFragment, error) {
	first, err := ParseDate(event.Start.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrMalformedEvent, err)
	}
	end, err := ParseDate(event.End.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrMalformedEvent, err)
	}
	// the provider's end date is exclusive
	span := dateSpan{first: first, last: end.AddDays(-1)}
	if span.last.Before(span.first) {
		return nil, nil
	}

	location := normalizeLocation(event.Location)
	fragments := make([]DayFragment, 0, span.days())
	for date := span.first; !date.After(span.last); date = date.AddDays(1) {
		fragments = append(fragments, fullDayFragment(date, event.Summary, location, true))
	}
	return fragments, nil
}

func (s *Splitter) splitTimed(event RawEvent) ([]DayFragment, error) {
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return nil, fmt.Errorf("%w: missing start or end instant", ErrMalformedEvent)
	}
	start, err := s.parseInstant(event.Start.DateTime)
	if err != nil {
		return nil, err
	}
	end, err := s.parseInstant(event.End.DateTime)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrMalformedEvent, event.End.DateTime, event.Start.DateTime)
	}

	location := normalizeLocation(event.Location)
	span := dateSpan{first: DateOf(start), last: DateOf(end)}
	fragments := make([]DayFragment, 0, span.days())
	for date := span.first; !date.After(span.last); date = date.AddDays(1) {
		fragment := DayFragment{
			Date:     date,
			Title:    event.Summary,
			Location: location,
		}
		switch classify(date, span) {
		case Sole:
			fragment.StartTime = start.Format(clockLayout)
			fragment.EndTime = end.Format(clockLayout)
			fragment.DurationMinutes = minutesBetween(start, end)
		case First:
			endOfDay := time.Date(date.Year, date.Month, date.Day, 23, 59, 0, 0, fixedZoneOf(start))
			fragment.StartTime = start.Format(clockLayout)
			fragment.EndTime = dayEndTime
			fragment.DurationMinutes = minutesBetween(start, endOfDay)
		case Last:
			fragment.StartTime = dayStartTime
			fragment.EndTime = end.Format(clockLayout)
			fragment.DurationMinutes = minutesBetween(date.StartOfDay(fixedZoneOf(end)), end)
		case Interior:
			fragment = fullDayFragment(date, event.Summary, location, false)
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

// fixedZoneOf returns the offset t is expressed in, without the zone's transition rules,
// so synthetic day boundaries share the offset of the instant they are measured against.
func fixedZoneOf(t time.Time) *time.Location {
	name, offset := t.Zone()
	return time.FixedZone(name, offset)
}

// parseInstant resolves value in the splitter location. Values with an explicit offset are
// converted, values without one are read as wall-clock time in the location.
func (s *Splitter) parseInstant(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(s.location), nil
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, value, s.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable instant %q", ErrMalformedEvent, value)
}

// minutesBetween truncates toward zero.
func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
