package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	return NewStore(root)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalizePresetNameTrimsAndNFCs(t *testing.T) {
	if got := NormalizePresetName("  reading  "); got != "reading" {
		t.Errorf("NormalizePresetName = %q, want %q", got, "reading")
	}
}

func TestStoreLoadPresetLayering(t *testing.T) {
	s := tempStore(t)
	writeFile(t, filepath.Join(s.Root, "sunsetr.toml"), "night_temp = 3300\nday_temp = 6500\ntransition_mode = \"static\"\n")
	writeFile(t, filepath.Join(s.Root, "presets", "reading", "sunsetr.toml"), "night_temp = 2700\n")

	base, err := s.LoadPreset("")
	if err != nil {
		t.Fatalf("LoadPreset(base): %v", err)
	}
	if base.Night.TempK != 3300 {
		t.Errorf("base Night.TempK = %d, want 3300", base.Night.TempK)
	}

	overlay, err := s.LoadPreset("reading")
	if err != nil {
		t.Fatalf("LoadPreset(reading): %v", err)
	}
	if overlay.Night.TempK != 2700 {
		t.Errorf("overlay Night.TempK = %d, want 2700 (preset should win over base)", overlay.Night.TempK)
	}
	if overlay.Day.TempK != 6500 {
		t.Errorf("overlay Day.TempK = %d, want 6500 (untouched base field retained)", overlay.Day.TempK)
	}
}

func TestStoreLoadPresetUnknownFails(t *testing.T) {
	s := tempStore(t)
	writeFile(t, filepath.Join(s.Root, "sunsetr.toml"), "transition_mode = \"static\"\n")
	if _, err := s.LoadPreset("does-not-exist"); err == nil {
		t.Fatal("expected an error loading an unknown preset")
	}
}

func TestActivePresetPersistence(t *testing.T) {
	s := tempStore(t)
	writeFile(t, filepath.Join(s.Root, "sunsetr.toml"), "transition_mode = \"static\"\n")
	writeFile(t, filepath.Join(s.Root, "presets", "reading", "sunsetr.toml"), "night_temp = 2700\n")

	if err := s.SetActivePreset("reading"); err != nil {
		t.Fatalf("SetActivePreset: %v", err)
	}
	active, err := s.ActivePreset()
	if err != nil {
		t.Fatalf("ActivePreset: %v", err)
	}
	if active != "reading" {
		t.Errorf("ActivePreset = %q, want reading", active)
	}
}

func TestSetActivePresetRejectsUnknown(t *testing.T) {
	s := tempStore(t)
	if err := s.SetActivePreset("ghost"); err == nil {
		t.Fatal("expected an error setting an unknown preset active")
	}
}

func TestSetActivePresetDefaultMeansNoOverlay(t *testing.T) {
	s := tempStore(t)
	if err := s.SetActivePreset("default"); err != nil {
		t.Fatalf("SetActivePreset(default): %v", err)
	}
	active, err := s.ActivePreset()
	if err != nil {
		t.Fatalf("ActivePreset: %v", err)
	}
	if active != "" {
		t.Errorf("ActivePreset() = %q, want empty string for default", active)
	}
}

func TestWriteFieldsPreservesOtherKeys(t *testing.T) {
	s := tempStore(t)
	path := filepath.Join(s.Root, "sunsetr.toml")
	writeFile(t, path, "night_temp = 3300\nday_temp = 6500\n")

	if err := WriteFields(path, map[string]string{"night_temp": "2700"}); err != nil {
		t.Fatalf("WriteFields: %v", err)
	}

	raw, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile after write: %v", err)
	}
	if *raw.NightTemp != 2700 {
		t.Errorf("NightTemp = %d, want 2700", *raw.NightTemp)
	}
	if *raw.DayTemp != 6500 {
		t.Errorf("DayTemp = %d, want 6500 (preserved across the targeted write)", *raw.DayTemp)
	}
}

func TestTargetConfigPathCreatesPresetDir(t *testing.T) {
	s := tempStore(t)
	path, err := s.TargetConfigPath("reading")
	if err != nil {
		t.Fatalf("TargetConfigPath: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("preset directory not created: %v", err)
	}
}
