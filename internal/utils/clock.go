package utils

import "time"

// Clock is the source of "now" for everything that derives the current day.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock always returns FixedNow.
type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}

// NowIn returns the clock's current time in loc.
func NowIn(c Clock, loc *time.Location) time.Time {
	return c.Now().In(loc)
}
