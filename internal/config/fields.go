package config

import (
	"fmt"
	"strconv"

	"github.com/sunsetr/sunsetr/internal/apperr"
)

// fieldNames lists every sunsetr.toml key get/set may name, in the
// order spec §6's table presents them.
var fieldNames = []string{
	"backend", "transition_mode", "smoothing",
	"startup_duration", "shutdown_duration", "adaptive_interval",
	"night_temp", "day_temp", "night_gamma", "day_gamma",
	"update_interval", "static_temp", "static_gamma",
	"sunset", "sunrise", "transition_duration",
	"latitude", "longitude",
}

// FieldNames returns the full set of keys get/set recognize.
func FieldNames() []string { return append([]string(nil), fieldNames...) }

// RawFields projects raw into a name->value map for `sunsetr get`,
// omitting any key that is unset at this layer (nil pointer).
func RawFields(raw Raw, names []string) map[string]any {
	if len(names) == 1 && names[0] == "all" {
		names = fieldNames
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := rawFieldValue(raw, name); ok {
			out[name] = v
		}
	}
	return out
}

func rawFieldValue(raw Raw, name string) (any, bool) {
	switch name {
	case "backend":
		return derefStr(raw.Backend)
	case "transition_mode":
		return derefStr(raw.TransitionMode)
	case "smoothing":
		return derefBool(raw.Smoothing)
	case "startup_duration":
		return derefFloat(raw.StartupDuration)
	case "shutdown_duration":
		return derefFloat(raw.ShutdownDuration)
	case "adaptive_interval":
		return derefInt(raw.AdaptiveInterval)
	case "night_temp":
		return derefInt(raw.NightTemp)
	case "day_temp":
		return derefInt(raw.DayTemp)
	case "night_gamma":
		return derefFloat(raw.NightGamma)
	case "day_gamma":
		return derefFloat(raw.DayGamma)
	case "update_interval":
		return derefInt(raw.UpdateInterval)
	case "static_temp":
		return derefInt(raw.StaticTemp)
	case "static_gamma":
		return derefFloat(raw.StaticGamma)
	case "sunset":
		return derefStr(raw.Sunset)
	case "sunrise":
		return derefStr(raw.Sunrise)
	case "transition_duration":
		return derefInt(raw.TransitionDuration)
	case "latitude":
		return derefFloat(raw.Latitude)
	case "longitude":
		return derefFloat(raw.Longitude)
	default:
		return nil, false
	}
}

// SetRawField parses value according to field's declared type and
// assigns it into raw, returning apperr.Config on an unknown field
// name or an unparsable value. Range validation happens later, in
// Build, which both `set` and the next reload run through.
func SetRawField(raw *Raw, field, value string) error {
	switch field {
	case "backend":
		raw.Backend = &value
	case "transition_mode":
		raw.TransitionMode = &value
	case "smoothing":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fieldParseErr(field, value)
		}
		raw.Smoothing = &b
	case "startup_duration":
		return setFloat(&raw.StartupDuration, field, value)
	case "shutdown_duration":
		return setFloat(&raw.ShutdownDuration, field, value)
	case "adaptive_interval":
		return setInt(&raw.AdaptiveInterval, field, value)
	case "night_temp":
		return setInt(&raw.NightTemp, field, value)
	case "day_temp":
		return setInt(&raw.DayTemp, field, value)
	case "night_gamma":
		return setFloat(&raw.NightGamma, field, value)
	case "day_gamma":
		return setFloat(&raw.DayGamma, field, value)
	case "update_interval":
		return setInt(&raw.UpdateInterval, field, value)
	case "static_temp":
		return setInt(&raw.StaticTemp, field, value)
	case "static_gamma":
		return setFloat(&raw.StaticGamma, field, value)
	case "sunset":
		raw.Sunset = &value
	case "sunrise":
		raw.Sunrise = &value
	case "transition_duration":
		return setInt(&raw.TransitionDuration, field, value)
	case "latitude":
		return setFloat(&raw.Latitude, field, value)
	case "longitude":
		return setFloat(&raw.Longitude, field, value)
	default:
		return apperr.Wrap(apperr.Config, "set", fmt.Errorf("unrecognized field %q", field))
	}
	return nil
}

func setFloat(dst **float64, field, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fieldParseErr(field, value)
	}
	*dst = &v
	return nil
}

func setInt(dst **int, field, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fieldParseErr(field, value)
	}
	*dst = &v
	return nil
}

func fieldParseErr(field, value string) error {
	return apperr.Wrap(apperr.Config, "set", fmt.Errorf("field %q: cannot parse %q", field, value))
}

func derefStr(p *string) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func derefBool(p *bool) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func derefInt(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func derefFloat(p *float64) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}
