package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type CalendarItemDto struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
}

type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]schedule.CalendarRef, error)
}

type Handler struct {
	calendars CalendarLister
}

func NewHandler(calendars CalendarLister) *Handler {
	return &Handler{calendars}
}

// ListCalendars godoc
// @Summary List Google calendars
// @Description List the calendars events are read from, honoring the configured allow-list
// @Tags Google
// @Produce json
// @Success 200 {array} CalendarItemDto
// @Failure 403 "Google account not connected"
// @Router /api/integrations/google/calendars [get]
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	calendars, err := h.calendars.ListCalendars(r.Context())
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		log.Errorf("failed to list calendars: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	calendarItems := make([]CalendarItemDto, 0, len(calendars))
	for _, c := range calendars {
		calendarItems = append(calendarItems, toCalendarItemDto(c))
	}

	if err := json.NewEncoder(w).Encode(calendarItems); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func toCalendarItemDto(c schedule.CalendarRef) CalendarItemDto {
	return CalendarItemDto{
		Id:      c.ID,
		Summary: c.Name,
	}
}
