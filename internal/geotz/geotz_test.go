package geotz

import "testing"

func TestLookupKnownCity(t *testing.T) {
	// Chicago.
	tz := Lookup(41.8500, -87.6501)
	if tz != "America/Chicago" {
		t.Errorf("Lookup(Chicago) = %q, want America/Chicago", tz)
	}
}

func TestLookupOpenOceanFallsBackToUTC(t *testing.T) {
	tz := Lookup(0, -140) // mid Pacific, no land boundary.
	if tz != "UTC" {
		t.Errorf("Lookup(open ocean) = %q, want UTC", tz)
	}
}

func TestLocationUsesLookupResult(t *testing.T) {
	loc := Location(41.8500, -87.6501)
	if loc.String() != "America/Chicago" {
		t.Errorf("Location(Chicago).String() = %q, want America/Chicago", loc.String())
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	loc := Location(0, -140)
	if loc != nil && loc.String() != "UTC" {
		t.Errorf("Location(open ocean).String() = %q, want UTC", loc.String())
	}
}
