package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klokku/calwindow/internal/config"
	"github.com/klokku/calwindow/pkg/google"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	refreshTimeout = 2 * time.Minute
	pruneSchedule  = "@daily"
)

// Scheduler rebuilds the window on the configured cron schedule and prunes old snapshots.
type Scheduler struct {
	cron *cron.Cron
	deps *Dependencies
}

func NewScheduler(deps *Dependencies, cfg config.Application) (*Scheduler, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(deps.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{cron: c, deps: deps}

	if _, err := c.AddFunc(cfg.Server.Refresh, func() { s.RefreshNow(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Server.Refresh, err)
	}
	if deps.SnapshotService != nil {
		if _, err := c.AddFunc(pruneSchedule, func() { s.prune(context.Background()) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	log.Infof("Starting scheduler with %d job(s)", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops scheduling; the returned context is done once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RefreshNow rebuilds the window and logs the outcome.
func (s *Scheduler) RefreshNow(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if _, err := s.deps.ScheduleService.Refresh(ctx); err != nil {
		if errors.Is(err, google.ErrUnauthenticated) {
			log.Warn("Google account is not connected, open /api/integrations/google/auth/login to authorize")
			return
		}
		log.Errorf("Scheduled refresh failed: %v", err)
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	if _, err := s.deps.SnapshotService.Prune(ctx); err != nil {
		log.Errorf("Scheduled snapshot prune failed: %v", err)
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
