package schedule

import (
	"errors"
	"fmt"
)

var ErrInvalidWindow = errors.New("invalid schedule window")

// Build buckets fragments into numDays consecutive day slots starting at windowStart.
// Fragments outside the window are ignored and the relative order of fragments on a day is
// the order in which they were supplied. Every day of the window is present, even if empty.
//
// Fragments are expected to come from a Splitter; one with an invalid date causes a panic.
func Build(fragments []DayFragment, windowStart Date, numDays int) (ScheduleWindow, error) {
	if numDays < 1 {
		return ScheduleWindow{}, fmt.Errorf("%w: number of days must be at least 1, got %d", ErrInvalidWindow, numDays)
	}
	if !windowStart.IsValid() {
		return ScheduleWindow{}, fmt.Errorf("%w: start date %s", ErrInvalidWindow, windowStart)
	}

	byDate := make(map[Date][]DayFragment, len(fragments))
	for _, fragment := range fragments {
		if !fragment.Date.IsValid() {
			panic(fmt.Sprintf("schedule: fragment %q has invalid date %s", fragment.Title, fragment.Date))
		}
		byDate[fragment.Date] = append(byDate[fragment.Date], fragment)
	}

	days := make([]DaySlot, 0, numDays)
	for offset := 0; offset < numDays; offset++ {
		date := windowStart.AddDays(offset)
		events := byDate[date]
		if events == nil {
			events = []DayFragment{}
		}
		days = append(days, DaySlot{
			Date:    date,
			Weekday: date.Weekday().String(),
			Events:  events,
		})
	}

	return ScheduleWindow{
		WindowStart: windowStart,
		WindowEnd:   windowStart.AddDays(numDays - 1),
		Days:        days,
	}, nil
}
