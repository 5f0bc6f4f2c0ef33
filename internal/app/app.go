package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/calwindow/internal/config"
	"github.com/klokku/calwindow/internal/database"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, database, router, scheduler and the run mode.
type Application struct {
	cfg    config.Application
	deps   *Dependencies
	db     *pgxpool.Pool
	router *mux.Router
	srv    *http.Server

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewApplication loads the configuration and builds the application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var db *pgxpool.Pool
	if cfg.Database.Enabled {
		if err := database.Migrate(cfg.Database); err != nil {
			return nil, err
		}
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
	}

	deps, err := BuildDependencies(db, cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return newApplication(cfg, deps, db), nil
}

func newApplication(cfg config.Application, deps *Dependencies, db *pgxpool.Pool) *Application {
	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{
		cfg:    cfg,
		deps:   deps,
		db:     db,
		router: r,
		srv:    srv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run builds the window once and exits, or serves the HTTP API until interrupted when the
// server is enabled.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	if a.cfg.Server.Enabled {
		return a.serve(ctx)
	}
	return a.runOnce(ctx)
}

func (a *Application) runOnce(ctx context.Context) error {
	if err := a.ensureAuthorized(ctx); err != nil {
		return err
	}

	result, err := a.deps.ScheduleService.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}
	log.Infof("Saved %d day fragments to %s", result.Fragments, a.deps.Exporter.Path())

	body, err := a.deps.JsonRenderer.Render(result.Window)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(body)
	return err
}

func (a *Application) ensureAuthorized(ctx context.Context) error {
	authenticated, err := a.deps.GoogleAuth.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if authenticated {
		return nil
	}
	log.Info("No Google token found, starting authorization")
	return a.deps.GoogleAuth.AuthorizeInteractive(ctx, a.stdin, a.stderr)
}

func (a *Application) serve(ctx context.Context) error {
	scheduler, err := NewScheduler(a.deps, a.cfg)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()
	go scheduler.RefreshNow(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		serverErr <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	}
}

func (a *Application) close() {
	if a.db != nil {
		a.db.Close()
	}
}
