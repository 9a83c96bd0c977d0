package solar

import (
	"testing"
	"time"
)

func TestCalculateOrdering(t *testing.T) {
	// Mid-latitude, equinox-ish date: every boundary should exist and
	// be strictly ordered sunrise-side before solar noon before
	// sunset-side.
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	day := Calculate(40.0, -105.0, date)

	if day.Regime != Normal {
		t.Fatalf("expected Normal regime, got %v", day.Regime)
	}

	order := []time.Time{
		day.CivilDawn, day.SunriseStart, day.Sunrise0, day.SunriseGold, day.SunriseEnd,
		day.SunsetStart, day.SunsetGold, day.Sunset0, day.SunsetEnd, day.CivilDusk,
	}
	for i := 1; i < len(order); i++ {
		if !order[i].After(order[i-1]) {
			t.Errorf("boundary %d (%v) not after boundary %d (%v)", i, order[i], i-1, order[i-1])
		}
	}
}

func TestCalculatePolarSummerIsPerpetualDay(t *testing.T) {
	date := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	day := Calculate(78.0, 15.0, date)
	if day.Regime != PerpetualDay {
		t.Fatalf("expected PerpetualDay at high latitude midsummer, got %v", day.Regime)
	}
}

func TestCalculatePolarWinterIsPerpetualNight(t *testing.T) {
	date := time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)
	day := Calculate(78.0, 15.0, date)
	if day.Regime != PerpetualNight {
		t.Fatalf("expected PerpetualNight at high latitude midwinter, got %v", day.Regime)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	a := Calculate(51.5, -0.12, date)
	b := Calculate(51.5, -0.12, date)
	if !a.Sunrise0.Equal(b.Sunrise0) || !a.Sunset0.Equal(b.Sunset0) {
		t.Errorf("Calculate is not deterministic for identical inputs")
	}
}

func TestCalculateIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)
	a := Calculate(51.5, -0.12, morning)
	b := Calculate(51.5, -0.12, evening)
	if !a.Sunrise0.Equal(b.Sunrise0) {
		t.Errorf("Calculate should depend only on the civil date, not time-of-day")
	}
}
