package google

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/klokku/calwindow/internal/config"
	"github.com/klokku/calwindow/pkg/schedule"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const maxResultsPerPage = 2500

type serviceFactory func(ctx context.Context) (*gcal.Service, error)

// Provider reads events from every calendar visible to the authorized Google account.
type Provider struct {
	newService  serviceFactory
	location    *time.Location
	allowList   []string
	concurrency int
}

func NewProvider(auth *Auth, location *time.Location, cfg config.Google) *Provider {
	factory := func(ctx context.Context) (*gcal.Service, error) {
		client, err := auth.Client(ctx)
		if err != nil {
			return nil, err
		}
		return gcal.NewService(ctx, option.WithHTTPClient(client))
	}
	return newProvider(factory, location, cfg.Calendars, cfg.Concurrency)
}

func newProvider(factory serviceFactory, location *time.Location, allowList []string, concurrency int) *Provider {
	if location == nil {
		location = time.UTC
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Provider{
		newService:  factory,
		location:    location,
		allowList:   allowList,
		concurrency: concurrency,
	}
}

// ListCalendars returns the calendars events are read from, in calendar-list order.
func (p *Provider) ListCalendars(ctx context.Context) ([]schedule.CalendarRef, error) {
	service, err := p.newService(ctx)
	if err != nil {
		return nil, err
	}
	return p.listCalendars(ctx, service)
}

// ListEvents fetches the events of [from, to] from all calendars concurrently. A calendar that
// fails to load is logged and skipped; an authentication failure aborts the whole fetch.
func (p *Provider) ListEvents(ctx context.Context, from, to schedule.Date) ([]schedule.CalendarEvent, error) {
	service, err := p.newService(ctx)
	if err != nil {
		return nil, err
	}
	calendars, err := p.listCalendars(ctx, service)
	if err != nil {
		return nil, err
	}

	timeMin := from.StartOfDay(p.location).Format(time.RFC3339)
	timeMax := to.AddDays(1).StartOfDay(p.location).Format(time.RFC3339)
	log.Debugf("Fetching events of %d calendars between %s and %s", len(calendars), timeMin, timeMax)

	results := make([][]schedule.CalendarEvent, len(calendars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, cal := range calendars {
		g.Go(func() error {
			events, err := p.fetchCalendar(gctx, service, cal, timeMin, timeMax)
			if err != nil {
				if isAuthError(err) || ctx.Err() != nil {
					return err
				}
				log.Warnf("Error fetching events from calendar %s: %v", cal.Name, err)
				return nil
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, err
	}

	var events []schedule.CalendarEvent
	for _, r := range results {
		events = append(events, r...)
	}
	return events, nil
}

func (p *Provider) listCalendars(ctx context.Context, service *gcal.Service) ([]schedule.CalendarRef, error) {
	var calendars []schedule.CalendarRef
	err := service.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			if len(p.allowList) > 0 && !slices.Contains(p.allowList, item.Id) {
				continue
			}
			calendars = append(calendars, toCalendarRef(item))
		}
		return nil
	})
	if err != nil {
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	return calendars, nil
}

func (p *Provider) fetchCalendar(ctx context.Context, service *gcal.Service, cal schedule.CalendarRef, timeMin, timeMax string) ([]schedule.CalendarEvent, error) {
	var events []schedule.CalendarEvent
	err := service.Events.List(cal.ID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerPage).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				events = append(events, schedule.CalendarEvent{Calendar: cal, Event: toRawEvent(item)})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	log.Debugf("Fetched %d events from calendar %s", len(events), cal.Name)
	return events, nil
}

func toCalendarRef(item *gcal.CalendarListEntry) schedule.CalendarRef {
	name := item.Summary
	if item.SummaryOverride != "" {
		name = item.SummaryOverride
	}
	return schedule.CalendarRef{ID: item.Id, Name: name}
}

func toRawEvent(item *gcal.Event) schedule.RawEvent {
	return schedule.RawEvent{
		Summary:  item.Summary,
		Location: item.Location,
		Start:    toEventTime(item.Start),
		End:      toEventTime(item.End),
	}
}

func toEventTime(t *gcal.EventDateTime) schedule.EventTime {
	if t == nil {
		return schedule.EventTime{}
	}
	return schedule.EventTime{Date: t.Date, DateTime: t.DateTime}
}

func isAuthError(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401
	}
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}
