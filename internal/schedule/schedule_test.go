package schedule

import (
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	d, err := ParseClockTime("19:30:15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 19*time.Hour + 30*time.Minute + 15*time.Second
	if d != want {
		t.Errorf("ParseClockTime = %v, want %v", d, want)
	}
}

func TestParseClockTimeInvalid(t *testing.T) {
	if _, err := ParseClockTime("not-a-time"); err == nil {
		t.Errorf("expected error for malformed clock time")
	}
}

func finishByParams() Params {
	sunset, _ := ParseClockTime("19:00:00")
	sunrise, _ := ParseClockTime("06:00:00")
	return Params{
		Mode:               ModeFinishBy,
		SunsetClock:        sunset,
		SunriseClock:       sunrise,
		TransitionDuration: 45 * time.Minute,
		Loc:                time.UTC,
	}
}

func TestEvaluateStableDay(t *testing.T) {
	params := finishByParams()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	period, deadline, nextKind := Evaluate(now, params)
	if period.Kind != Day {
		t.Fatalf("expected Day, got %v", period.Kind)
	}
	wantDeadline := time.Date(2026, 7, 31, 18, 15, 0, 0, time.UTC)
	if !deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", deadline, wantDeadline)
	}
	if nextKind != Sunset {
		t.Errorf("nextKind = %v, want Sunset", nextKind)
	}
}

func TestEvaluateWithinSunsetWindow(t *testing.T) {
	params := finishByParams()
	now := time.Date(2026, 7, 31, 18, 37, 30, 0, time.UTC) // midpoint of 18:15-19:00
	period, deadline, nextKind := Evaluate(now, params)
	if period.Kind != Sunset {
		t.Fatalf("expected Sunset, got %v", period.Kind)
	}
	if period.Progress < 0.45 || period.Progress > 0.55 {
		t.Errorf("progress = %v, want ~0.5", period.Progress)
	}
	wantDeadline := time.Date(2026, 7, 31, 19, 0, 0, 0, time.UTC)
	if !deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", deadline, wantDeadline)
	}
	if nextKind != Night {
		t.Errorf("nextKind = %v, want Night", nextKind)
	}
}

func TestEvaluateStableNight(t *testing.T) {
	params := finishByParams()
	now := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	period, _, nextKind := Evaluate(now, params)
	if period.Kind != Night {
		t.Fatalf("expected Night, got %v", period.Kind)
	}
	if nextKind != Sunrise {
		t.Errorf("nextKind = %v, want Sunrise", nextKind)
	}
}

func TestEvaluateTieBreakAtWindowStart(t *testing.T) {
	params := finishByParams()
	now := time.Date(2026, 7, 31, 18, 15, 0, 0, time.UTC) // exactly window start
	period, _, _ := Evaluate(now, params)
	if period.Kind != Sunset {
		t.Errorf("at window start, instant belongs to the transitioning period, got %v", period.Kind)
	}
	if period.Progress != 0 {
		t.Errorf("progress at window start = %v, want 0", period.Progress)
	}
}

func TestEvaluateTieBreakAtWindowEnd(t *testing.T) {
	params := finishByParams()
	now := time.Date(2026, 7, 31, 19, 0, 0, 0, time.UTC) // exactly window end
	period, _, _ := Evaluate(now, params)
	if period.Kind != Night {
		t.Errorf("at window end, instant belongs to the later (stable) period, got %v", period.Kind)
	}
}

func TestEvaluateStaticAlwaysStatic(t *testing.T) {
	params := Params{Mode: ModeStatic, Loc: time.UTC}
	now := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	period, _, nextKind := Evaluate(now, params)
	if period.Kind != Static {
		t.Errorf("expected Static, got %v", period.Kind)
	}
	if nextKind != Static {
		t.Errorf("nextKind for static mode = %v, want Static", nextKind)
	}
}

func TestEvaluateGeoMode(t *testing.T) {
	params := Params{
		Mode:      ModeGeo,
		Lat:       40.0,
		Lon:       -105.0,
		HasCoords: true,
		Loc:       time.UTC,
	}
	now := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	period, deadline, _ := Evaluate(now, params)
	if period.Kind != Day && period.Kind != Sunset {
		t.Errorf("expected Day or Sunset at 18:00 UTC (late morning local solar time at lon -105), got %v", period.Kind)
	}
	if !deadline.After(now) {
		t.Errorf("deadline %v should be after now %v", deadline, now)
	}
}

func TestEvaluateStartAtModeBeginsAtClockTime(t *testing.T) {
	sunset, _ := ParseClockTime("19:00:00")
	sunrise, _ := ParseClockTime("06:00:00")
	params := Params{
		Mode:               ModeStartAt,
		SunsetClock:        sunset,
		SunriseClock:       sunrise,
		TransitionDuration: 45 * time.Minute,
		Loc:                time.UTC,
	}
	now := time.Date(2026, 7, 31, 19, 0, 0, 0, time.UTC)
	period, _, _ := Evaluate(now, params)
	if period.Kind != Sunset {
		t.Fatalf("start_at: expected window to begin exactly at configured clock time, got %v", period.Kind)
	}
	if period.Progress != 0 {
		t.Errorf("progress at start_at window open = %v, want 0", period.Progress)
	}
}

func TestEvaluateCenterModeSymmetric(t *testing.T) {
	sunset, _ := ParseClockTime("19:00:00")
	sunrise, _ := ParseClockTime("06:00:00")
	params := Params{
		Mode:               ModeCenter,
		SunsetClock:        sunset,
		SunriseClock:       sunrise,
		TransitionDuration: 40 * time.Minute,
		Loc:                time.UTC,
	}
	now := time.Date(2026, 7, 31, 19, 0, 0, 0, time.UTC)
	period, _, _ := Evaluate(now, params)
	if period.Kind != Sunset {
		t.Fatalf("center: expected to be mid-transition at the configured clock time, got %v", period.Kind)
	}
	if period.Progress < 0.45 || period.Progress > 0.55 {
		t.Errorf("center: progress at configured clock time = %v, want ~0.5", period.Progress)
	}
}
