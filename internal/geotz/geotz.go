// Package geotz maps configured coordinates to an IANA timezone, so
// geo transition mode can schedule against the timezone of the
// coordinates rather than the host's local timezone (spec §4.B, §6).
package geotz

import (
	"time"

	"github.com/ringsaturn/tzf"
)

// finder is initialized once; tzf embeds its timezone boundary data so
// lookups need no network access or external files.
var finder tzf.F

func init() {
	var err error
	finder, err = tzf.NewDefaultFinder()
	if err != nil {
		panic("geotz: failed to initialize timezone finder: " + err.Error())
	}
}

// Lookup returns the IANA timezone identifier containing (lat, lon),
// or "UTC" if no timezone boundary contains the point (open ocean,
// Antarctica, disputed territory).
func Lookup(lat, lon float64) string {
	// tzf takes (lon, lat) order, the reverse of this package's API.
	tz := finder.GetTimezoneName(lon, lat)
	if tz == "" {
		return "UTC"
	}
	return tz
}

// Location returns the *time.Location for (lat, lon), falling back to
// UTC if the timezone cannot be determined or is not present in the
// running system's (or Go's embedded) tzdata.
func Location(lat, lon float64) *time.Location {
	name := Lookup(lat, lon)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
