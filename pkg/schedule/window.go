package schedule

import (
	"encoding/json"
	"fmt"
)

// ScheduleWindow is the fixed-length, day-indexed schedule handed to consumers.
type ScheduleWindow struct {
	WindowStart Date
	WindowEnd   Date
	Days        []DaySlot
}

type DaySlot struct {
	Date    Date
	Weekday string
	Events  []DayFragment
}

// NumDays returns the number of day slots in the window.
func (w ScheduleWindow) NumDays() int {
	return len(w.Days)
}

// EventCount returns the total number of fragments over all days.
func (w ScheduleWindow) EventCount() int {
	count := 0
	for _, day := range w.Days {
		count += len(day.Events)
	}
	return count
}

type windowDTO struct {
	WindowStart string   `json:"window_start"`
	WindowEnd   string   `json:"window_end"`
	Days        []dayDTO `json:"days"`
}

type dayDTO struct {
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Events  []eventDTO `json:"events"`
}

type eventDTO struct {
	Title           string  `json:"title"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationMinutes int     `json:"duration_minutes"`
	Location        *string `json:"location"`
	IsAllDay        bool    `json:"is_all_day"`
}

func (w ScheduleWindow) MarshalJSON() ([]byte, error) {
	dto := windowDTO{
		WindowStart: w.WindowStart.String(),
		WindowEnd:   w.WindowEnd.String(),
		Days:        make([]dayDTO, 0, len(w.Days)),
	}
	for _, day := range w.Days {
		events := make([]eventDTO, 0, len(day.Events))
		for _, e := range day.Events {
			events = append(events, eventDTO{
				Title:           e.Title,
				StartTime:       e.StartTime,
				EndTime:         e.EndTime,
				DurationMinutes: e.DurationMinutes,
				Location:        e.Location,
				IsAllDay:        e.IsAllDay,
			})
		}
		dto.Days = append(dto.Days, dayDTO{
			Date:    day.Date.String(),
			Weekday: day.Weekday,
			Events:  events,
		})
	}
	return json.Marshal(dto)
}

func (w *ScheduleWindow) UnmarshalJSON(data []byte) error {
	var dto windowDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	start, err := ParseDate(dto.WindowStart)
	if err != nil {
		return fmt.Errorf("window_start: %w", err)
	}
	end, err := ParseDate(dto.WindowEnd)
	if err != nil {
		return fmt.Errorf("window_end: %w", err)
	}

	days := make([]DaySlot, 0, len(dto.Days))
	for _, d := range dto.Days {
		date, err := ParseDate(d.Date)
		if err != nil {
			return fmt.Errorf("day: %w", err)
		}
		events := make([]DayFragment, 0, len(d.Events))
		for _, e := range d.Events {
			events = append(events, DayFragment{
				Date:            date,
				Title:           e.Title,
				StartTime:       e.StartTime,
				EndTime:         e.EndTime,
				DurationMinutes: e.DurationMinutes,
				Location:        e.Location,
				IsAllDay:        e.IsAllDay,
			})
		}
		days = append(days, DaySlot{Date: date, Weekday: d.Weekday, Events: events})
	}

	*w = ScheduleWindow{WindowStart: start, WindowEnd: end, Days: days}
	return nil
}
