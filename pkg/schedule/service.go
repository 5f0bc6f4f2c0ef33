package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/calwindow/internal/event_bus"
	"github.com/klokku/calwindow/internal/utils"
	log "github.com/sirupsen/logrus"
)

// BuiltEventType is published on the event bus after every refresh, with a Built payload.
const BuiltEventType event_bus.EventType = "schedule.built"

// EventProvider yields the raw events of every source calendar for the inclusive local date
// range [from, to], already expanded for recurrence.
type EventProvider interface {
	ListEvents(ctx context.Context, from, to Date) ([]CalendarEvent, error)
}

// Built is the payload of BuiltEventType.
type Built struct {
	Window      ScheduleWindow
	GeneratedAt time.Time
	Skipped     int
}

type Result struct {
	Window    ScheduleWindow
	Events    int
	Fragments int
	Skipped   int
}

type Service struct {
	provider EventProvider
	splitter *Splitter
	clock    utils.Clock
	bus      *event_bus.EventBus
	numDays  int

	mu     sync.RWMutex
	latest *Built
}

func NewService(provider EventProvider, splitter *Splitter, clock utils.Clock, bus *event_bus.EventBus, numDays int) *Service {
	return &Service{
		provider: provider,
		splitter: splitter,
		clock:    clock,
		bus:      bus,
		numDays:  numDays,
	}
}

// Today is the current date in the splitter's timezone.
func (s *Service) Today() Date {
	return DateOf(utils.NowIn(s.clock, s.splitter.Location()))
}

func (s *Service) NumDays() int {
	return s.numDays
}

// Generate fetches, splits and buckets the events of [windowStart, windowStart+numDays-1].
func (s *Service) Generate(ctx context.Context, windowStart Date, numDays int) (Result, error) {
	if numDays < 1 || !windowStart.IsValid() {
		return Result{}, fmt.Errorf("%w: start %s, days %d", ErrInvalidWindow, windowStart, numDays)
	}
	windowEnd := windowStart.AddDays(numDays - 1)

	events, err := s.provider.ListEvents(ctx, windowStart, windowEnd)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list events: %w", err)
	}
	log.Debugf("Fetched %d events for %s - %s", len(events), windowStart, windowEnd)

	fragments, skipped := SplitAll(s.splitter, events)
	window, err := Build(fragments, windowStart, numDays)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Window:    window,
		Events:    len(events),
		Fragments: len(fragments),
		Skipped:   skipped,
	}, nil
}

// Refresh generates the configured window starting today, remembers it as the latest one
// and publishes it.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	result, err := s.Generate(ctx, s.Today(), s.numDays)
	if err != nil {
		return Result{}, err
	}
	log.Infof("Built window %s - %s: %d events, %d day fragments, %d skipped",
		result.Window.WindowStart, result.Window.WindowEnd, result.Events, result.Fragments, result.Skipped)

	built := Built{
		Window:      result.Window,
		GeneratedAt: s.clock.Now(),
		Skipped:     result.Skipped,
	}
	s.mu.Lock()
	s.latest = &built
	s.mu.Unlock()

	if s.bus != nil {
		if err := s.bus.Publish(event_bus.NewEvent(ctx, BuiltEventType, built)); err != nil {
			return result, fmt.Errorf("failed to publish built window: %w", err)
		}
	}
	return result, nil
}

// Latest returns the window produced by the last successful Refresh.
func (s *Service) Latest() (Built, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Built{}, false
	}
	return *s.latest, true
}

// SplitAll splits every event in order and flattens the fragments. Malformed events are
// logged and counted, never fatal.
func SplitAll(splitter *Splitter, events []CalendarEvent) ([]DayFragment, int) {
	fragments := make([]DayFragment, 0, len(events))
	skipped := 0
	for _, ce := range events {
		eventFragments, err := splitter.Split(ce.Event)
		if err != nil {
			if !errors.Is(err, ErrMalformedEvent) {
				log.Errorf("unexpected error splitting event %q: %v", ce.Event.Summary, err)
			}
			log.Warnf("Skipping event %q from calendar %q: %v", ce.Event.Summary, ce.Calendar.Name, err)
			skipped++
			continue
		}
		fragments = append(fragments, eventFragments...)
	}
	return fragments, skipped
}
