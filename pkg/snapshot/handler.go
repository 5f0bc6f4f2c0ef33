package snapshot

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/calwindow/internal/rest"
	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

type SnapshotDTO struct {
	ID            string                   `json:"id"`
	GeneratedAt   time.Time                `json:"generatedAt"`
	SkippedEvents int                      `json:"skippedEvents"`
	Window        *schedule.ScheduleWindow `json:"window,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{s}
}

// GetLatest godoc
// @Summary Get latest snapshot
// @Tags Snapshot
// @Produce json
// @Success 200 {object} SnapshotDTO
// @Failure 404 {object} rest.ErrorResponse "No snapshot stored yet"
// @Router /api/snapshots/latest [get]
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Latest(r.Context())
	h.writeSnapshot(w, snapshot, err)
}

// GetByWindowStart godoc
// @Summary Get snapshot of a window
// @Description Return the most recent snapshot of the window starting at the given date
// @Tags Snapshot
// @Produce json
// @Param windowStart path string true "Window start in YYYY-MM-DD format"
// @Success 200 {object} SnapshotDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid date format"
// @Failure 404 {object} rest.ErrorResponse "Snapshot not found"
// @Router /api/snapshots/{windowStart} [get]
func (h *Handler) GetByWindowStart(w http.ResponseWriter, r *http.Request) {
	date, err := schedule.ParseDate(mux.Vars(r)["windowStart"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid window start", "window start must be in YYYY-MM-DD format")
		return
	}
	snapshot, err := h.service.LatestForWindowStart(r.Context(), date)
	h.writeSnapshot(w, snapshot, err)
}

// List godoc
// @Summary List snapshots
// @Description Return snapshot metadata without the windows, newest first
// @Tags Snapshot
// @Produce json
// @Param limit query int false "Maximum number of snapshots, defaults to 10"
// @Success 200 {array} SnapshotDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid limit"
// @Router /api/snapshots [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitString := r.URL.Query().Get("limit"); limitString != "" {
		parsed, err := strconv.Atoi(limitString)
		if err != nil || parsed < 1 {
			rest.WriteError(w, http.StatusBadRequest, "Invalid limit", "'limit' must be a positive integer")
			return
		}
		limit = parsed
	}

	snapshots, err := h.service.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]SnapshotDTO, 0, len(snapshots))
	for _, s := range snapshots {
		dtos = append(dtos, SnapshotDTO{
			ID:            s.ID.String(),
			GeneratedAt:   s.GeneratedAt,
			SkippedEvents: s.SkippedEvents,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, snapshot Snapshot, err error) {
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			rest.WriteError(w, http.StatusNotFound, "Snapshot not found", "")
			return
		}
		log.Errorf("failed to read snapshot: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(SnapshotDTO{
		ID:            snapshot.ID.String(),
		GeneratedAt:   snapshot.GeneratedAt,
		SkippedEvents: snapshot.SkippedEvents,
		Window:        &snapshot.Window,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
