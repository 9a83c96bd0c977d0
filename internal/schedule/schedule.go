// Package schedule derives the current Period and the next scheduling
// deadline from solar or manual transition windows, per spec §4.C.
package schedule

import (
	"sort"
	"time"

	"github.com/sunsetr/sunsetr/internal/solar"
)

// Kind is the tag of the Period sum type from spec §3.
type Kind int

const (
	Day Kind = iota
	Night
	Sunset
	Sunrise
	Static
)

func (k Kind) String() string {
	switch k {
	case Day:
		return "day"
	case Night:
		return "night"
	case Sunset:
		return "sunset"
	case Sunrise:
		return "sunrise"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// Period is spec §3's tagged variant: Progress is meaningful only when
// Kind is Sunset or Sunrise.
type Period struct {
	Kind     Kind
	Progress float64
}

// Mode names the five transition_mode values spec §6 allows.
type Mode string

const (
	ModeGeo      Mode = "geo"
	ModeFinishBy Mode = "finish_by"
	ModeStartAt  Mode = "start_at"
	ModeCenter   Mode = "center"
	ModeStatic   Mode = "static"
)

// Params is the subset of EffectiveConfig the schedule model needs.
type Params struct {
	Mode Mode

	// Lat/Lon are used only when Mode == ModeGeo.
	Lat, Lon  float64
	HasCoords bool

	// SunsetClock/SunriseClock are time-of-day offsets from local
	// midnight (the "HH:MM:SS" TOML fields), interpreted in Loc.
	SunsetClock, SunriseClock time.Duration

	TransitionDuration time.Duration

	// Loc is the timezone manual clock-times are interpreted in. For
	// geo mode this is ignored; the window itself is already in UTC.
	Loc *time.Location
}

// window is one sunrise or sunset transition on a specific civil day.
type window struct {
	start, end time.Time
	kind       Kind
}

// Evaluate classifies now against the schedule built from params and
// returns the current Period plus the deadline and entered Kind of the
// next state change, per spec §4.C's two artifacts.
func Evaluate(now time.Time, params Params) (current Period, nextDeadline time.Time, nextKind Kind) {
	if params.Mode == ModeStatic {
		return Period{Kind: Static}, startOfNextDay(now, params.Loc), Static
	}

	windows := windowsAround(now, params)
	sort.Slice(windows, func(i, j int) bool { return windows[i].start.Before(windows[j].start) })

	for _, w := range windows {
		if !now.Before(w.start) && now.Before(w.end) {
			progress := float64(now.Sub(w.start)) / float64(w.end.Sub(w.start))
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}
			return Period{Kind: w.kind, Progress: progress}, w.end, stableAfter(w.kind)
		}
	}

	var prevEnd time.Time
	var prevKind Kind
	haveLatestEnd := false
	var nextStart time.Time
	var upcomingKind Kind
	haveNextStart := false

	for _, w := range windows {
		if !w.end.After(now) {
			if !haveLatestEnd || w.end.After(prevEnd) {
				prevEnd = w.end
				prevKind = w.kind
				haveLatestEnd = true
			}
		}
		if w.start.After(now) {
			if !haveNextStart || w.start.Before(nextStart) {
				nextStart = w.start
				upcomingKind = w.kind
				haveNextStart = true
			}
		}
	}

	stable := Night
	if haveLatestEnd {
		stable = stableAfter(prevKind)
	} else if haveNextStart {
		// No prior transition in the lookback window: infer from what
		// comes next (we're in the stable period preceding it).
		stable = stableBefore(upcomingKind)
	}

	if !haveNextStart {
		// Should not happen given a three-day lookaround, but fall
		// back to a day-rollover recompute rather than panicking.
		return Period{Kind: stable}, startOfNextDay(now, params.Loc), stable
	}

	return Period{Kind: stable}, nextStart, upcomingKind
}

func stableAfter(transition Kind) Kind {
	if transition == Sunrise {
		return Day
	}
	return Night
}

func stableBefore(transition Kind) Kind {
	if transition == Sunrise {
		return Night
	}
	return Day
}

// windowsAround builds the sunrise/sunset windows for the day before,
// the day of, and the day after now, so Evaluate always has enough
// lookback/lookahead to classify a boundary case near midnight.
func windowsAround(now time.Time, params Params) []window {
	loc := params.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	var out []window
	for offset := -1; offset <= 1; offset++ {
		date := local.AddDate(0, 0, offset)
		sunriseStart, sunriseEnd, sunsetStart, sunsetEnd, ok := dayWindows(date, params)
		if !ok {
			continue
		}
		out = append(out,
			window{start: sunriseStart, end: sunriseEnd, kind: Sunrise},
			window{start: sunsetStart, end: sunsetEnd, kind: Sunset},
		)
	}
	return out
}

// dayWindows computes the sunrise and sunset transition windows for
// date's civil day under the configured transition mode. ok is false
// for a degenerate (polar) geo day, for geo mode without coordinates,
// and for a mode with no windows; callers simply skip it and
// rely on a neighboring day's windows plus the stable-period fallback.
func dayWindows(date time.Time, params Params) (sunriseStart, sunriseEnd, sunsetStart, sunsetEnd time.Time, ok bool) {
	switch params.Mode {
	case ModeGeo:
		if !params.HasCoords {
			return time.Time{}, time.Time{}, time.Time{}, time.Time{}, false
		}
		day := solar.Calculate(params.Lat, params.Lon, date)
		if day.Regime != solar.Normal {
			return time.Time{}, time.Time{}, time.Time{}, time.Time{}, false
		}
		return day.SunriseStart, day.SunriseEnd, day.SunsetStart, day.SunsetEnd, true

	case ModeFinishBy:
		sunriseEnd = clockTimeOn(date, params.SunriseClock)
		sunriseStart = sunriseEnd.Add(-params.TransitionDuration)
		sunsetEnd = clockTimeOn(date, params.SunsetClock)
		sunsetStart = sunsetEnd.Add(-params.TransitionDuration)
		return sunriseStart, sunriseEnd, sunsetStart, sunsetEnd, true

	case ModeStartAt:
		sunriseStart = clockTimeOn(date, params.SunriseClock)
		sunriseEnd = sunriseStart.Add(params.TransitionDuration)
		sunsetStart = clockTimeOn(date, params.SunsetClock)
		sunsetEnd = sunsetStart.Add(params.TransitionDuration)
		return sunriseStart, sunriseEnd, sunsetStart, sunsetEnd, true

	case ModeCenter:
		half := params.TransitionDuration / 2
		riseCenter := clockTimeOn(date, params.SunriseClock)
		sunriseStart, sunriseEnd = riseCenter.Add(-half), riseCenter.Add(half)
		setCenter := clockTimeOn(date, params.SunsetClock)
		sunsetStart, sunsetEnd = setCenter.Add(-half), setCenter.Add(half)
		return sunriseStart, sunriseEnd, sunsetStart, sunsetEnd, true

	default:
		return time.Time{}, time.Time{}, time.Time{}, time.Time{}, false
	}
}

// clockTimeOn returns the instant on date's civil day, in date's own
// location, offset clockTime duration past local midnight.
func clockTimeOn(date time.Time, clockTime time.Duration) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(clockTime)
}

func startOfNextDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, 1)
}

// ParseClockTime parses an "HH:MM:SS" string (spec §6's sunset/sunrise
// fields) into a time-of-day offset from midnight.
func ParseClockTime(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
