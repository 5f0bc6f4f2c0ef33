package export

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

var csvHeader = []string{"date", "weekday", "title", "start_time", "end_time", "duration_minutes", "duration", "location", "is_all_day"}

type CsvRendererImpl struct{}

func NewCsvRenderer() *CsvRendererImpl {
	return &CsvRendererImpl{}
}

// Render writes one row per day fragment. Days without events get a row with only the
// date and weekday, so every day of the window is present.
func (r *CsvRendererImpl) Render(window schedule.ScheduleWindow) ([]byte, error) {
	data := make([][]string, 0, 1+window.EventCount()+window.NumDays())
	data = append(data, csvHeader)
	for _, day := range window.Days {
		data = append(data, rowsForDay(day)...)
	}

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return nil, err
	}
	return b.Bytes(), nil
}

func (r *CsvRendererImpl) ContentType() string {
	return "text/csv"
}

func rowsForDay(day schedule.DaySlot) [][]string {
	date := day.Date.String()
	if len(day.Events) == 0 {
		return [][]string{{date, day.Weekday, "", "", "", "", "", "", ""}}
	}
	rows := make([][]string, 0, len(day.Events))
	for _, e := range day.Events {
		location := ""
		if e.Location != nil {
			location = *e.Location
		}
		rows = append(rows, []string{
			date,
			day.Weekday,
			e.Title,
			e.StartTime,
			e.EndTime,
			strconv.Itoa(e.DurationMinutes),
			minutesToString(e.DurationMinutes),
			location,
			strconv.FormatBool(e.IsAllDay),
		})
	}
	return rows
}

// minutesToString formats minutes as HH:MM.
func minutesToString(minutes int) string {
	hours := strconv.Itoa(minutes / 60)
	if len(hours) == 1 {
		hours = "0" + hours
	}
	rest := strconv.Itoa(minutes % 60)
	if len(rest) == 1 {
		rest = "0" + rest
	}
	return hours + ":" + rest
}
