package schedule

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/klokku/calwindow/internal/rest"
	log "github.com/sirupsen/logrus"
)

// Renderer serializes a window for an HTTP response or a file.
type Renderer interface {
	Render(window ScheduleWindow) ([]byte, error)
	ContentType() string
}

// MaxWindowDays bounds the window length a request may ask for.
const MaxWindowDays = 366

type Handler struct {
	service *Service
	json    Renderer
	csv     Renderer
}

func NewHandler(service *Service, json Renderer, csv Renderer) *Handler {
	return &Handler{service: service, json: json, csv: csv}
}

// GetSchedule godoc
// @Summary Get schedule window
// @Description Return the latest window, or a window generated on demand when "start" or "days" is given
// @Tags Schedule
// @Produce json
// @Param start query string false "First day of the window in YYYY-MM-DD format, defaults to today"
// @Param days query int false "Number of days (1-366), defaults to the configured window length"
// @Success 200 {object} ScheduleWindow
// @Failure 400 {object} rest.ErrorResponse "Invalid start or days"
// @Router /api/schedule [get]
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.json)
}

// GetScheduleCsv godoc
// @Summary Get schedule window as CSV
// @Description Same as /api/schedule, one row per day fragment
// @Tags Schedule
// @Produce text/csv
// @Param start query string false "First day of the window in YYYY-MM-DD format, defaults to today"
// @Param days query int false "Number of days (1-366), defaults to the configured window length"
// @Success 200 {string} string "CSV"
// @Failure 400 {object} rest.ErrorResponse "Invalid start or days"
// @Router /api/schedule.csv [get]
func (h *Handler) GetScheduleCsv(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.csv)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, renderer Renderer) {
	window, ok := h.resolveWindow(w, r)
	if !ok {
		return
	}

	body, err := renderer.Render(window)
	if err != nil {
		log.Errorf("failed to render schedule: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Errorf("failed to write schedule response: %v", err)
	}
}

func (h *Handler) resolveWindow(w http.ResponseWriter, r *http.Request) (ScheduleWindow, bool) {
	query := r.URL.Query()
	startString := query.Get("start")
	daysString := query.Get("days")

	if startString == "" && daysString == "" {
		if built, ok := h.service.Latest(); ok {
			return built.Window, true
		}
		result, err := h.service.Refresh(r.Context())
		if err != nil {
			log.Errorf("failed to refresh schedule: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return ScheduleWindow{}, false
		}
		return result.Window, true
	}

	start := h.service.Today()
	if startString != "" {
		parsed, err := ParseDate(startString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid start date format", "'start' must be in YYYY-MM-DD format")
			return ScheduleWindow{}, false
		}
		start = parsed
	}
	days := h.service.NumDays()
	if daysString != "" {
		parsed, err := strconv.Atoi(daysString)
		if err != nil || parsed < 1 {
			rest.WriteError(w, http.StatusBadRequest, "Invalid number of days", "'days' must be a positive integer")
			return ScheduleWindow{}, false
		}
		if parsed > MaxWindowDays {
			rest.WriteError(w, http.StatusBadRequest, "Invalid number of days",
				fmt.Sprintf("'days' must not exceed %d", MaxWindowDays))
			return ScheduleWindow{}, false
		}
		days = parsed
	}

	result, err := h.service.Generate(r.Context(), start, days)
	if err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid schedule window", err.Error())
			return ScheduleWindow{}, false
		}
		log.Errorf("failed to generate schedule: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return ScheduleWindow{}, false
	}
	return result.Window, true
}
