package schedule

import (
	"context"
	"sync"
)

// ProviderStub is an in-memory EventProvider for tests.
type ProviderStub struct {
	mu     sync.Mutex
	events []CalendarEvent
	err    error
	calls  []DateRange
}

type DateRange struct {
	From Date
	To   Date
}

func NewProviderStub(events ...CalendarEvent) *ProviderStub {
	return &ProviderStub{events: events}
}

func (p *ProviderStub) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *ProviderStub) ListEvents(_ context.Context, from, to Date) ([]CalendarEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, DateRange{From: from, To: to})
	if p.err != nil {
		return nil, p.err
	}
	events := make([]CalendarEvent, len(p.events))
	copy(events, p.events)
	return events, nil
}

// Calls returns the date ranges ListEvents was called with.
func (p *ProviderStub) Calls() []DateRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]DateRange, len(p.calls))
	copy(calls, p.calls)
	return calls
}
