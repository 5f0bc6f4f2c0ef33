package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type healthDto struct {
	Status      string     `json:"status"`
	LastBuiltAt *time.Time `json:"lastBuiltAt"`
	WindowStart string     `json:"windowStart,omitempty"`
}

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	r.HandleFunc("/health", healthHandler(deps)).Methods("GET")

	// Schedule
	r.HandleFunc("/api/schedule", deps.ScheduleHandler.GetSchedule).Methods("GET")
	r.HandleFunc("/api/schedule.csv", deps.ScheduleHandler.GetScheduleCsv).Methods("GET")

	// Snapshots
	if deps.SnapshotHandler != nil {
		r.HandleFunc("/api/snapshots", deps.SnapshotHandler.List).Methods("GET")
		r.HandleFunc("/api/snapshots/latest", deps.SnapshotHandler.GetLatest).Methods("GET")
		r.HandleFunc("/api/snapshots/{windowStart}", deps.SnapshotHandler.GetByWindowStart).Methods("GET")
	}

	// Google Calendar integration
	r.HandleFunc("/api/integrations/google/calendars", deps.GoogleHandler.ListCalendars).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth/login", deps.GoogleAuth.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth/callback", deps.GoogleAuth.OAuthCallback).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth", deps.GoogleAuth.OAuthLogout).Methods("DELETE")
}

func healthHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := healthDto{Status: "ok"}
		if built, ok := deps.ScheduleService.Latest(); ok {
			health.LastBuiltAt = &built.GeneratedAt
			health.WindowStart = built.Window.WindowStart.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(health); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
