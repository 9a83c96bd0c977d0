package config

import "testing"

func TestRawFieldsOmitsUnsetKeys(t *testing.T) {
	raw := Raw{NightTemp: ptr(3300)}
	fields := RawFields(raw, []string{"night_temp", "day_temp"})
	if fields["night_temp"] != 3300 {
		t.Errorf("night_temp = %v, want 3300", fields["night_temp"])
	}
	if _, ok := fields["day_temp"]; ok {
		t.Error("day_temp should be absent when unset in raw")
	}
}

func TestRawFieldsAll(t *testing.T) {
	raw := Raw{NightTemp: ptr(3300), DayTemp: ptr(6500)}
	fields := RawFields(raw, []string{"all"})
	if len(fields) != 2 {
		t.Errorf("len(fields) = %d, want 2 (only the set keys)", len(fields))
	}
}

func TestSetRawFieldParsesByType(t *testing.T) {
	var raw Raw
	if err := SetRawField(&raw, "night_temp", "3000"); err != nil {
		t.Fatalf("SetRawField(night_temp): %v", err)
	}
	if *raw.NightTemp != 3000 {
		t.Errorf("NightTemp = %d, want 3000", *raw.NightTemp)
	}

	if err := SetRawField(&raw, "smoothing", "false"); err != nil {
		t.Fatalf("SetRawField(smoothing): %v", err)
	}
	if *raw.Smoothing {
		t.Error("Smoothing should be false")
	}

	if err := SetRawField(&raw, "day_gamma", "95.5"); err != nil {
		t.Fatalf("SetRawField(day_gamma): %v", err)
	}
	if *raw.DayGamma != 95.5 {
		t.Errorf("DayGamma = %v, want 95.5", *raw.DayGamma)
	}
}

func TestSetRawFieldRejectsUnknownField(t *testing.T) {
	var raw Raw
	if err := SetRawField(&raw, "not_a_field", "1"); err == nil {
		t.Fatal("expected an error for an unrecognized field")
	}
}

func TestSetRawFieldRejectsUnparsableValue(t *testing.T) {
	var raw Raw
	if err := SetRawField(&raw, "night_temp", "not-a-number"); err == nil {
		t.Fatal("expected a parse error for a non-numeric value")
	}
}
