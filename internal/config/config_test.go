package config

import (
	"testing"

	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/schedule"
)

func ptr[T any](v T) *T { return &v }

func TestBuildAppliesDefaults(t *testing.T) {
	// Geo mode (the default) needs coordinates; everything else is left unset.
	cfg, err := Build(Raw{Latitude: ptr(41.85), Longitude: ptr(-87.65)})
	if err != nil {
		t.Fatalf("Build(coordinates only): %v", err)
	}
	if cfg.Backend != backend.NameAuto {
		t.Errorf("Backend = %v, want auto", cfg.Backend)
	}
	if cfg.Mode != schedule.ModeGeo {
		t.Errorf("Mode = %v, want geo", cfg.Mode)
	}
	if !cfg.Smoothing {
		t.Error("Smoothing default should be true")
	}
	if cfg.Day.TempK != 6500 || cfg.Night.TempK != 3300 {
		t.Errorf("Day/Night = %+v/%+v, want 6500/3300", cfg.Day, cfg.Night)
	}
}

func TestBuildRejectsOutOfRange(t *testing.T) {
	raw := Raw{NightTemp: ptr(500)}
	if _, err := Build(raw); err == nil {
		t.Fatal("expected a validation error for night_temp below range")
	}
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	raw := Raw{Backend: ptr("not-a-backend")}
	if _, err := Build(raw); err == nil {
		t.Fatal("expected a validation error for an unrecognized backend")
	}
}

func TestBuildGeoModeRequiresCoordinates(t *testing.T) {
	raw := Raw{TransitionMode: ptr("geo")}
	if _, err := Build(raw); err == nil {
		t.Fatal("geo mode without coordinates should fail validation")
	}
	raw.Latitude = ptr(41.85)
	raw.Longitude = ptr(-87.65)
	cfg, err := Build(raw)
	if err != nil {
		t.Fatalf("Build with coordinates: %v", err)
	}
	if !cfg.HasCoords {
		t.Error("HasCoords should be true once lat/lon are set")
	}
}

func TestMergeOverlayWins(t *testing.T) {
	base := Raw{NightTemp: ptr(3300), DayTemp: ptr(6500)}
	overlay := Raw{NightTemp: ptr(2700)}
	merged := Merge(base, overlay)
	if *merged.NightTemp != 2700 {
		t.Errorf("NightTemp = %d, want overlay's 2700", *merged.NightTemp)
	}
	if *merged.DayTemp != 6500 {
		t.Errorf("DayTemp = %d, want base's 6500 (untouched by overlay)", *merged.DayTemp)
	}
}

func TestMergeGeoOverridesCoordsOnly(t *testing.T) {
	base := Raw{NightTemp: ptr(3300), Latitude: ptr(1.0), Longitude: ptr(2.0)}
	geo := GeoRaw{Latitude: ptr(10.0), Longitude: ptr(20.0)}
	merged := MergeGeo(base, geo)
	if *merged.Latitude != 10.0 || *merged.Longitude != 20.0 {
		t.Errorf("coords = (%v,%v), want (10,20)", *merged.Latitude, *merged.Longitude)
	}
	if *merged.NightTemp != 3300 {
		t.Error("MergeGeo should not touch non-coordinate fields")
	}
}
