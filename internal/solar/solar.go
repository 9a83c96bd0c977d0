// Package solar computes sun-elevation-anchored timestamps for a
// (latitude, longitude, date) per spec §4.B.
//
// The decomposition below — Julian day, mean anomaly, equation of
// center, ecliptic longitude, solar transit, declination, hour angle —
// mirrors the internal pipeline of mstephenholl/go-solar
// (meanSolarNoonInternal/meanAnomaly/equationOfCenter/
// eclipticLongitude/transit/declination/hourAngle), generalized from a
// single fixed horizon angle to an arbitrary target elevation so the
// same hourAngleForElevation function produces every boundary in
// SolarDay.
package solar

import (
	"math"
	"time"
)

const (
	julianEpoch = 2451545.0009 // J2000.0 epoch, NOAA sunrise-equation convention
	obliquity   = 23.4397      // Earth's axial tilt, degrees
)

// Elevation targets, degrees, per spec §3 (SolarDay).
const (
	ElevCivilDawn     = -6.0
	ElevSunriseStart  = -2.0
	ElevSunrise0      = 0.0
	ElevSunriseGolden = 6.0
	ElevSunriseEnd    = 10.0
)

// Regime classifies a degenerate SolarDay (spec §4.B polar fallback).
type Regime int

const (
	// Normal means every boundary has a real solution.
	Normal Regime = iota
	// PerpetualDay means the sun never drops to the lowest elevation
	// target requested (civil dawn) — chosen when solar-noon elevation
	// exceeds every target.
	PerpetualDay
	// PerpetualNight means the sun never rises to the highest elevation
	// target requested (sunrise_end) — chosen when solar-noon elevation
	// is below that highest target.
	PerpetualNight
)

// Day holds the ten elevation-anchored instants spec §3 calls SolarDay,
// all in UTC with nanosecond precision, plus the polar regime if the
// day is degenerate.
type Day struct {
	CivilDawn    time.Time
	SunriseStart time.Time
	Sunrise0     time.Time
	SunriseGold  time.Time
	SunriseEnd   time.Time

	SunsetStart time.Time
	SunsetGold  time.Time
	Sunset0     time.Time
	SunsetEnd   time.Time
	CivilDusk   time.Time

	Regime Regime
}

// Calculate computes Day for the given date (any instant on that UTC
// calendar day) and coordinates. date's own time-of-day is ignored;
// only its UTC year/month/day are used as the civil date being solved.
func Calculate(lat, lon float64, date time.Time) Day {
	date = date.UTC()
	jd := julianDayNoon(date)

	n := math.Round(jd - julianEpoch + lon/360)
	jStar := julianEpoch - lon/360 + n

	m := meanAnomaly(jStar)
	c := equationOfCenter(m)
	lambda := eclipticLongitude(m, c)
	transit := solarTransit(jStar, m, lambda)
	decl := declination(lambda)

	noonElevation := elevationAtTransit(lat, decl)

	day := Day{}
	targets := []struct {
		elev float64
		rise *time.Time
		set  *time.Time
	}{
		{ElevCivilDawn, &day.CivilDawn, &day.CivilDusk},
		{ElevSunriseStart, &day.SunriseStart, &day.SunsetEnd},
		{ElevSunrise0, &day.Sunrise0, &day.Sunset0},
		{ElevSunriseGolden, &day.SunriseGold, &day.SunsetGold},
		{ElevSunriseEnd, &day.SunriseEnd, &day.SunsetStart},
	}

	degenerate := false
	for _, target := range targets {
		h, ok := hourAngleForElevation(lat, decl, target.elev)
		if !ok {
			degenerate = true
			continue
		}
		frac := h / 360.0
		*target.rise = julianDayToTime(transit - frac)
		*target.set = julianDayToTime(transit + frac)
	}

	if degenerate {
		noon := julianDayToTime(transit)
		if noonElevation >= ElevSunriseEnd {
			day.Regime = PerpetualDay
		} else {
			day.Regime = PerpetualNight
		}
		day.CivilDawn, day.SunriseStart, day.Sunrise0 = noon, noon, noon
		day.SunriseGold, day.SunriseEnd = noon, noon
		day.SunsetStart, day.SunsetGold, day.Sunset0 = noon, noon, noon
		day.SunsetEnd, day.CivilDusk = noon, noon
	}

	return day
}

// julianDayNoon returns the Julian day number for 12:00 UTC on date's
// civil day.
func julianDayNoon(date time.Time) float64 {
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
	return timeToJulianDay(noon)
}

func timeToJulianDay(t time.Time) float64 {
	const unixEpochJD = 2440587.5
	return float64(t.Unix())/86400.0 + unixEpochJD
}

func julianDayToTime(jd float64) time.Time {
	const unixEpochJD = 2440587.5
	secs := (jd - unixEpochJD) * 86400.0
	whole := math.Floor(secs)
	frac := secs - whole
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func meanAnomaly(jStar float64) float64 {
	return normalizeDegrees(357.5291 + 0.98560028*(jStar-julianEpoch))
}

func equationOfCenter(m float64) float64 {
	mr := deg2rad(m)
	return 1.9148*math.Sin(mr) + 0.0200*math.Sin(2*mr) + 0.0003*math.Sin(3*mr)
}

func eclipticLongitude(m, c float64) float64 {
	return normalizeDegrees(m + 102.9372 + c + 180)
}

func solarTransit(jStar, m, lambda float64) float64 {
	mr := deg2rad(m)
	lr := deg2rad(lambda)
	return jStar + 0.0053*math.Sin(mr) - 0.0069*math.Sin(2*lr)
}

func declination(lambda float64) float64 {
	return rad2deg(math.Asin(math.Sin(deg2rad(lambda)) * math.Sin(deg2rad(obliquity))))
}

// elevationAtTransit returns the sun's elevation at local solar noon,
// used only to classify the polar regime (spec §4.B: "chosen by the
// sun's elevation at local solar noon").
func elevationAtTransit(lat, decl float64) float64 {
	return 90 - math.Abs(lat-decl)
}

// hourAngleForElevation returns the hour angle (degrees) at which the
// sun reaches elevation targetElev, given latitude and declination, or
// ok=false if no real solution exists (polar day/night for this
// target).
func hourAngleForElevation(lat, decl, targetElev float64) (h float64, ok bool) {
	latR, declR, elevR := deg2rad(lat), deg2rad(decl), deg2rad(targetElev)
	cosH := (math.Sin(elevR) - math.Sin(latR)*math.Sin(declR)) / (math.Cos(latR) * math.Cos(declR))
	if cosH < -1 || cosH > 1 {
		return 0, false
	}
	return rad2deg(math.Acos(cosH)), true
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
