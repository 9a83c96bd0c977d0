// Package config implements sunsetr's layered TOML configuration
// store (spec §4.G): load/validate/merge of base + preset + geo
// overrides, active-preset persistence, and a debounced hot-reload
// watcher.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/colormath"
	"github.com/sunsetr/sunsetr/internal/schedule"
)

// Raw mirrors sunsetr.toml's recognized keys (spec §6) with pointer
// fields so a pointer's nilness distinguishes "not present in this
// file" from "explicitly set to the zero value" during layered merge.
type Raw struct {
	Backend            *string  `toml:"backend"`
	TransitionMode     *string  `toml:"transition_mode"`
	Smoothing          *bool    `toml:"smoothing"`
	StartupDuration    *float64 `toml:"startup_duration"`
	ShutdownDuration   *float64 `toml:"shutdown_duration"`
	AdaptiveInterval   *int     `toml:"adaptive_interval"`
	NightTemp          *int     `toml:"night_temp"`
	DayTemp            *int     `toml:"day_temp"`
	NightGamma         *float64 `toml:"night_gamma"`
	DayGamma           *float64 `toml:"day_gamma"`
	UpdateInterval     *int     `toml:"update_interval"`
	StaticTemp         *int     `toml:"static_temp"`
	StaticGamma        *float64 `toml:"static_gamma"`
	Sunset             *string  `toml:"sunset"`
	Sunrise            *string  `toml:"sunrise"`
	TransitionDuration *int     `toml:"transition_duration"`
	Latitude           *float64 `toml:"latitude"`
	Longitude          *float64 `toml:"longitude"`
}

// GeoRaw mirrors geo.toml's two recognized keys.
type GeoRaw struct {
	Latitude  *float64 `toml:"latitude"`
	Longitude *float64 `toml:"longitude"`
}

// Defaults returns the documented default value for every sunsetr.toml
// key (spec §6's Default column), as the base layer beneath whatever
// the user's files set.
func Defaults() Raw {
	str := func(s string) *string { return &s }
	i := func(v int) *int { return &v }
	f := func(v float64) *float64 { return &v }
	b := func(v bool) *bool { return &v }
	return Raw{
		Backend:            str("auto"),
		TransitionMode:     str("geo"),
		Smoothing:          b(true),
		StartupDuration:    f(0.5),
		ShutdownDuration:   f(0.5),
		AdaptiveInterval:   i(1),
		NightTemp:          i(3300),
		DayTemp:            i(6500),
		NightGamma:         f(90),
		DayGamma:           f(100),
		UpdateInterval:     i(60),
		StaticTemp:         i(6500),
		StaticGamma:        f(100),
		Sunset:             str("19:00:00"),
		Sunrise:            str("06:00:00"),
		TransitionDuration: i(45),
	}
}

// DecodeFile parses path as a Raw sunsetr.toml, rejecting any key not
// in Raw's schema (spec §6: "unknown keys ⇒ validation error with
// field name"). A missing file decodes to an empty Raw (all nil) with
// no error, since a base/preset/geo file is optional at every layer.
func DecodeFile(path string) (Raw, error) {
	var raw Raw
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return raw, nil
	}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Raw{}, apperr.Wrap(apperr.Config, "decode "+path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Raw{}, apperr.Wrap(apperr.Config, "decode "+path,
			fmt.Errorf("unrecognized key %q", undecoded[0].String()))
	}
	return raw, nil
}

// DecodeGeoFile parses path as a GeoRaw geo.toml, with the same
// missing-file and unknown-key behavior as DecodeFile.
func DecodeGeoFile(path string) (GeoRaw, error) {
	var raw GeoRaw
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return raw, nil
	}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return GeoRaw{}, apperr.Wrap(apperr.Config, "decode "+path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return GeoRaw{}, apperr.Wrap(apperr.Config, "decode "+path,
			fmt.Errorf("unrecognized key %q", undecoded[0].String()))
	}
	return raw, nil
}

// Merge layers overlay on top of base: any field overlay sets (non-nil)
// wins, anything it leaves nil falls through to base. Spec §4.G's
// precedence order (base sunsetr.toml → base geo.toml → preset
// sunsetr.toml → preset geo.toml) is expressed by calling Merge
// repeatedly in that order.
func Merge(base, overlay Raw) Raw {
	out := base
	if overlay.Backend != nil {
		out.Backend = overlay.Backend
	}
	if overlay.TransitionMode != nil {
		out.TransitionMode = overlay.TransitionMode
	}
	if overlay.Smoothing != nil {
		out.Smoothing = overlay.Smoothing
	}
	if overlay.StartupDuration != nil {
		out.StartupDuration = overlay.StartupDuration
	}
	if overlay.ShutdownDuration != nil {
		out.ShutdownDuration = overlay.ShutdownDuration
	}
	if overlay.AdaptiveInterval != nil {
		out.AdaptiveInterval = overlay.AdaptiveInterval
	}
	if overlay.NightTemp != nil {
		out.NightTemp = overlay.NightTemp
	}
	if overlay.DayTemp != nil {
		out.DayTemp = overlay.DayTemp
	}
	if overlay.NightGamma != nil {
		out.NightGamma = overlay.NightGamma
	}
	if overlay.DayGamma != nil {
		out.DayGamma = overlay.DayGamma
	}
	if overlay.UpdateInterval != nil {
		out.UpdateInterval = overlay.UpdateInterval
	}
	if overlay.StaticTemp != nil {
		out.StaticTemp = overlay.StaticTemp
	}
	if overlay.StaticGamma != nil {
		out.StaticGamma = overlay.StaticGamma
	}
	if overlay.Sunset != nil {
		out.Sunset = overlay.Sunset
	}
	if overlay.Sunrise != nil {
		out.Sunrise = overlay.Sunrise
	}
	if overlay.TransitionDuration != nil {
		out.TransitionDuration = overlay.TransitionDuration
	}
	if overlay.Latitude != nil {
		out.Latitude = overlay.Latitude
	}
	if overlay.Longitude != nil {
		out.Longitude = overlay.Longitude
	}
	return out
}

// MergeGeo layers a GeoRaw onto a Raw's coordinate fields, per spec
// §4.G: "if present, overrides the base file's coordinates".
func MergeGeo(base Raw, geo GeoRaw) Raw {
	out := base
	if geo.Latitude != nil {
		out.Latitude = geo.Latitude
	}
	if geo.Longitude != nil {
		out.Longitude = geo.Longitude
	}
	return out
}

// EffectiveConfig is spec §3's EffectiveConfig: the fully resolved,
// immutable configuration the controller schedules against.
type EffectiveConfig struct {
	Backend backend.Name
	Mode    schedule.Mode

	Smoothing        bool
	StartupDuration  time.Duration
	ShutdownDuration time.Duration
	AdaptiveInterval time.Duration

	Day    colormath.State
	Night  colormath.State
	Static colormath.State

	UpdateInterval time.Duration

	SunsetClock, SunriseClock time.Duration
	TransitionDuration        time.Duration

	HasCoords bool
	Lat, Lon  float64
}

// Build validates raw and converts it into an EffectiveConfig, per
// spec §6's range table. Validation failures are returned as a single
// apperr.Config error naming the first offending field; at startup
// this is fatal (exit 2), on hot reload it is a warning that retains
// the previous config (spec §7).
func Build(raw Raw) (EffectiveConfig, error) {
	raw = Merge(Defaults(), raw)

	var cfg EffectiveConfig

	backendName := backend.Name(*raw.Backend)
	switch backendName {
	case backend.NameAuto, backend.NameHyprland, backend.NameHyprsunset, backend.NameWayland:
		cfg.Backend = backendName
	default:
		return cfg, fieldErr("backend", *raw.Backend)
	}

	mode := schedule.Mode(*raw.TransitionMode)
	switch mode {
	case schedule.ModeGeo, schedule.ModeFinishBy, schedule.ModeStartAt, schedule.ModeCenter, schedule.ModeStatic:
		cfg.Mode = mode
	default:
		return cfg, fieldErr("transition_mode", *raw.TransitionMode)
	}

	cfg.Smoothing = *raw.Smoothing

	if err := inRange("startup_duration", *raw.StartupDuration, 0, 60); err != nil {
		return cfg, err
	}
	cfg.StartupDuration = time.Duration(*raw.StartupDuration * float64(time.Second))

	if err := inRange("shutdown_duration", *raw.ShutdownDuration, 0, 60); err != nil {
		return cfg, err
	}
	cfg.ShutdownDuration = time.Duration(*raw.ShutdownDuration * float64(time.Second))

	if err := inRangeInt("adaptive_interval", *raw.AdaptiveInterval, 1, 1000); err != nil {
		return cfg, err
	}
	cfg.AdaptiveInterval = time.Duration(*raw.AdaptiveInterval) * time.Millisecond

	if err := inRangeInt("night_temp", *raw.NightTemp, 1000, 20000); err != nil {
		return cfg, err
	}
	if err := inRangeInt("day_temp", *raw.DayTemp, 1000, 20000); err != nil {
		return cfg, err
	}
	if err := inRange("night_gamma", *raw.NightGamma, 10, 200); err != nil {
		return cfg, err
	}
	if err := inRange("day_gamma", *raw.DayGamma, 10, 200); err != nil {
		return cfg, err
	}
	cfg.Night = colormath.State{TempK: *raw.NightTemp, GammaPct: *raw.NightGamma}
	cfg.Day = colormath.State{TempK: *raw.DayTemp, GammaPct: *raw.DayGamma}

	if err := inRangeInt("update_interval", *raw.UpdateInterval, 10, 300); err != nil {
		return cfg, err
	}
	cfg.UpdateInterval = time.Duration(*raw.UpdateInterval) * time.Second

	if err := inRangeInt("static_temp", *raw.StaticTemp, 1000, 20000); err != nil {
		return cfg, err
	}
	if err := inRange("static_gamma", *raw.StaticGamma, 10, 200); err != nil {
		return cfg, err
	}
	cfg.Static = colormath.State{TempK: *raw.StaticTemp, GammaPct: *raw.StaticGamma}

	sunsetClock, err := schedule.ParseClockTime(*raw.Sunset)
	if err != nil {
		return cfg, fieldErr("sunset", *raw.Sunset)
	}
	cfg.SunsetClock = sunsetClock

	sunriseClock, err := schedule.ParseClockTime(*raw.Sunrise)
	if err != nil {
		return cfg, fieldErr("sunrise", *raw.Sunrise)
	}
	cfg.SunriseClock = sunriseClock

	if err := inRangeInt("transition_duration", *raw.TransitionDuration, 5, 120); err != nil {
		return cfg, err
	}
	cfg.TransitionDuration = time.Duration(*raw.TransitionDuration) * time.Minute

	if raw.Latitude != nil && raw.Longitude != nil {
		if err := inRange("latitude", *raw.Latitude, -90, 90); err != nil {
			return cfg, err
		}
		if *raw.Longitude <= -180 || *raw.Longitude > 180 {
			return cfg, fieldErr("longitude", fmt.Sprintf("%v", *raw.Longitude))
		}
		cfg.HasCoords = true
		cfg.Lat = *raw.Latitude
		cfg.Lon = *raw.Longitude
	} else if cfg.Mode == schedule.ModeGeo {
		return cfg, fieldErr("latitude/longitude", "required when transition_mode=geo")
	}

	return cfg, nil
}

func fieldErr(field, value string) error {
	return apperr.Wrap(apperr.Config, "validate", fmt.Errorf("field %q: invalid value %q", field, value))
}

func inRange(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return apperr.Wrap(apperr.Config, "validate",
			fmt.Errorf("field %q: %v out of range [%v, %v]", field, v, lo, hi))
	}
	return nil
}

func inRangeInt(field string, v, lo, hi int) error {
	return inRange(field, float64(v), float64(lo), float64(hi))
}

// ScheduleParams projects EffectiveConfig into the subset
// internal/schedule needs to evaluate the current period, resolving
// the scheduling timezone via loc (the timezone of the coordinates
// when geo mode is active, per spec §4.B).
func (c EffectiveConfig) ScheduleParams(loc *time.Location) schedule.Params {
	return schedule.Params{
		Mode:               c.Mode,
		Lat:                c.Lat,
		Lon:                c.Lon,
		HasCoords:          c.HasCoords,
		SunsetClock:        c.SunsetClock,
		SunriseClock:       c.SunriseClock,
		TransitionDuration: c.TransitionDuration,
		Loc:                loc,
	}
}
