// Package schedule implements the per-service execution gate.
//
// Each worker owns a Policy; the coordinator only pings, the policy decides.
// Reasons are the Korean operator-facing strings surfaced by /check-schedule.
package schedule

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/marketclock"
)

// Anchor is a wall-clock window that must hold in addition to interval
// gating: the hour [Hour:00, Hour+1:00) on Weekday (or any day when
// Weekday is nil).
type Anchor struct {
	Weekday *time.Weekday
	Hour    int
}

// Contains reports whether t (in KST) falls inside the anchor window.
func (a Anchor) Contains(t time.Time) bool {
	k := t.In(marketclock.KST)
	if a.Weekday != nil && k.Weekday() != *a.Weekday {
		return false
	}
	return k.Hour() == a.Hour
}

// Decision is the outcome of one schedule check.
type Decision struct {
	Run    bool
	Reason string
}

// Policy is one worker's interval table plus optional peak windows and
// per-phase wall-clock anchors. A zero interval for a phase means the
// worker does not run in that phase.
type Policy struct {
	Kind         domain.ServiceKind
	Intervals    map[marketclock.Phase]time.Duration
	PeakWindows  []marketclock.Window
	PeakInterval time.Duration
	Anchors      map[marketclock.Phase]Anchor
}

// ShouldExecute decides whether a pipeline run is due at now given the last
// successful run. A zero last means the worker has never run.
func (p Policy) ShouldExecute(now, last time.Time) Decision {
	phase := marketclock.PhaseAt(now)
	interval := p.intervalAt(now, phase)
	if interval <= 0 {
		return Decision{Run: false, Reason: "휴식 중"}
	}
	if anchor, ok := p.Anchors[phase]; ok && !anchor.Contains(now) {
		return Decision{Run: false, Reason: "대기 중"}
	}
	if last.IsZero() {
		return Decision{Run: true, Reason: "첫 실행"}
	}
	elapsed := now.Sub(last)
	if elapsed < interval {
		remaining := interval - elapsed
		return Decision{Run: false, Reason: fmt.Sprintf("%s 간격 대기 중, %s 남음", koreanDuration(interval), koreanDuration(remaining))}
	}
	return Decision{Run: true, Reason: fmt.Sprintf("%s 경과, 실행", koreanDuration(elapsed))}
}

// intervalAt resolves the effective interval for now. Peak windows take
// precedence over the phase table so that peak scheduling works across the
// pre-market boundary (the 07:30-09:30 window straddles the open).
func (p Policy) intervalAt(now time.Time, phase marketclock.Phase) time.Duration {
	if p.PeakInterval > 0 && marketclock.InAnyWindow(now, p.PeakWindows) {
		return p.PeakInterval
	}
	return p.Intervals[phase]
}

// koreanDuration renders a duration for operator messages, rounding up to
// whole minutes.
func koreanDuration(d time.Duration) string {
	if d <= 0 {
		return "0분"
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	mins := minutes % 60
	switch {
	case days > 0 && hours == 0 && mins == 0:
		return fmt.Sprintf("%d일", days)
	case days > 0:
		return fmt.Sprintf("%d일 %d시간", days, hours)
	case hours > 0 && mins == 0:
		return fmt.Sprintf("%d시간", hours)
	case hours > 0:
		return fmt.Sprintf("%d시간 %d분", hours, mins)
	default:
		return fmt.Sprintf("%d분", mins)
	}
}

var sunday = time.Sunday

// PolicyFor returns the authoritative interval table for a service kind.
// newsPeaks parameterizes the news peak windows (see the config package for
// the defaults).
func PolicyFor(kind domain.ServiceKind, newsPeaks []marketclock.Window) Policy {
	switch kind {
	case domain.ServiceNews:
		return Policy{
			Kind:         kind,
			Intervals:    map[marketclock.Phase]time.Duration{marketclock.MarketHours: 60 * time.Minute},
			PeakWindows:  newsPeaks,
			PeakInterval: 10 * time.Minute,
		}
	case domain.ServiceDisclosure:
		return Policy{
			Kind: kind,
			Intervals: map[marketclock.Phase]time.Duration{
				marketclock.PreMarket:   60 * time.Minute,
				marketclock.MarketHours: 60 * time.Minute,
				marketclock.AfterMarket: 60 * time.Minute,
				marketclock.Weekend:     60 * time.Minute,
			},
		}
	case domain.ServiceChart:
		// After the close chart runs once in the 16:00 hour, then idles
		// until the next pre-market pass.
		return Policy{
			Kind: kind,
			Intervals: map[marketclock.Phase]time.Duration{
				marketclock.PreMarket:   60 * time.Minute,
				marketclock.MarketHours: 5 * time.Minute,
				marketclock.AfterMarket: 60 * time.Minute,
				marketclock.Weekend:     24 * time.Hour,
			},
			Anchors: map[marketclock.Phase]Anchor{
				marketclock.AfterMarket: {Hour: 16},
			},
		}
	case domain.ServiceFlow:
		// End-of-day summary once per day at 18:00; live streaming is a
		// separate lifecycle, not schedule-driven.
		return Policy{
			Kind: kind,
			Intervals: map[marketclock.Phase]time.Duration{
				marketclock.AfterMarket: 20 * time.Hour,
				marketclock.Weekend:     20 * time.Hour,
			},
			Anchors: map[marketclock.Phase]Anchor{
				marketclock.AfterMarket: {Hour: 18},
				marketclock.Weekend:     {Hour: 18},
			},
		}
	case domain.ServiceReport:
		// Weekly on Sunday 20:00 with at least a six-day gap between runs.
		return Policy{
			Kind: kind,
			Intervals: map[marketclock.Phase]time.Duration{
				marketclock.Weekend: 6 * 24 * time.Hour,
			},
			Anchors: map[marketclock.Phase]Anchor{
				marketclock.Weekend: {Weekday: &sunday, Hour: 20},
			},
		}
	default:
		return Policy{Kind: kind}
	}
}
