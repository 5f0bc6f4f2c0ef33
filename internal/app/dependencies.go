package app

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/calwindow/internal/config"
	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/internal/utils"
	"github.com/klokku/calwindow/pkg/export"
	"github.com/klokku/calwindow/pkg/google"
	"github.com/klokku/calwindow/pkg/schedule"
	"github.com/klokku/calwindow/pkg/snapshot"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Location *time.Location

	TokenStore     google.TokenStore
	GoogleAuth     *google.Auth
	GoogleProvider *google.Provider
	GoogleHandler  *google.Handler

	Splitter        *schedule.Splitter
	ScheduleService *schedule.Service
	ScheduleHandler *schedule.Handler
	JsonRenderer    *export.JsonRendererImpl
	CsvRenderer     *export.CsvRendererImpl
	Exporter        *export.FileExporter

	// Snapshot dependencies are nil when the database is disabled.
	SnapshotService *snapshot.ServiceImpl
	SnapshotHandler *snapshot.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
// db may be nil, in which case the token is kept in a file and snapshots are disabled.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) (*Dependencies, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{
		Clock:    &utils.SystemClock{},
		EventBus: event_bus.NewEventBus(),
		Location: location,
	}

	if db != nil {
		deps.TokenStore = google.NewTokenRepo(db)
	} else {
		deps.TokenStore = google.NewFileTokenStore(cfg.Google.TokenFile)
	}
	deps.GoogleAuth = google.NewAuth(deps.TokenStore, cfg)
	deps.GoogleProvider = google.NewProvider(deps.GoogleAuth, location, cfg.Google)
	deps.GoogleHandler = google.NewHandler(deps.GoogleProvider)

	if err := deps.buildSchedule(deps.GoogleProvider, cfg); err != nil {
		return nil, err
	}

	if db != nil {
		deps.buildSnapshots(snapshot.NewRepo(db), cfg)
	}
	return deps, nil
}

func (deps *Dependencies) buildSchedule(provider schedule.EventProvider, cfg config.Application) error {
	deps.Splitter = schedule.NewSplitter(deps.Location)
	deps.ScheduleService = schedule.NewService(provider, deps.Splitter, deps.Clock, deps.EventBus, cfg.Days)

	deps.JsonRenderer = export.NewJsonRenderer()
	deps.CsvRenderer = export.NewCsvRenderer()
	deps.ScheduleHandler = schedule.NewHandler(deps.ScheduleService, deps.JsonRenderer, deps.CsvRenderer)

	outputRenderer, err := export.NewRenderer(cfg.Output.Format)
	if err != nil {
		return err
	}
	deps.Exporter = export.NewFileExporter(cfg.Output.File, outputRenderer)
	deps.Exporter.Subscribe(deps.EventBus)
	return nil
}

func (deps *Dependencies) buildSnapshots(repo snapshot.Repository, cfg config.Application) {
	retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
	deps.SnapshotService = snapshot.NewService(repo, deps.Clock, retention)
	deps.SnapshotService.Subscribe(deps.EventBus)
	deps.SnapshotHandler = snapshot.NewHandler(deps.SnapshotService)
}
