// Package marketclock categorizes instants against KRX trading hours.
//
// All phase decisions are made in Asia/Seoul regardless of the host zone.
package marketclock

import (
	"time"
)

// Phase is the market phase of an instant in the exchange time zone.
type Phase int

const (
	// PreMarket covers midnight up to the 09:00 open on trading days.
	PreMarket Phase = iota
	// MarketHours covers 09:00 to 15:30 on trading days.
	MarketHours
	// AfterMarket covers 15:30 to midnight on trading days.
	AfterMarket
	// Weekend covers Saturday and Sunday in full.
	Weekend
)

func (p Phase) String() string {
	switch p {
	case PreMarket:
		return "pre-market"
	case MarketHours:
		return "market-hours"
	case AfterMarket:
		return "after-market"
	case Weekend:
		return "weekend"
	default:
		return "unknown"
	}
}

// KST is the exchange time zone. time.LoadLocation can only fail when the
// tzdata is absent, in which case a fixed offset is a correct fallback for
// Korea (no DST).
var KST = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

const (
	openMinute  = 9 * 60     // 09:00
	closeMinute = 15*60 + 30 // 15:30
)

// PhaseAt returns the market phase of t.
func PhaseAt(t time.Time) Phase {
	k := t.In(KST)
	switch k.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	m := k.Hour()*60 + k.Minute()
	switch {
	case m < openMinute:
		return PreMarket
	case m < closeMinute:
		return MarketHours
	default:
		return AfterMarket
	}
}

// Window is a daily wall-clock interval [start, end) in KST minutes.
type Window struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

// Contains reports whether t falls inside the window. Start is inclusive,
// end exclusive.
func (w Window) Contains(t time.Time) bool {
	k := t.In(KST)
	m := k.Hour()*60 + k.Minute()
	return m >= w.StartHour*60+w.StartMin && m < w.EndHour*60+w.EndMin
}

// InAnyWindow reports whether t falls inside any of the windows.
func InAnyWindow(t time.Time, windows []Window) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// Clock abstracts time.Now so schedulers can be tested against fixed
// instants.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

// Now returns the current instant.
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns T; it is shared test plumbing.
type FixedClock struct{ T time.Time }

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }
