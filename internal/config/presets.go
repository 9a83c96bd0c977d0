package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/geotz"
	"github.com/sunsetr/sunsetr/internal/xdg"
	"golang.org/x/text/unicode/norm"
)

// Store owns one config root: its base files, its presets/ directory,
// and the persisted active-preset marker (spec §4.G).
type Store struct {
	Root string
}

// NewStore constructs a Store rooted at root (spec §4.G's `--config
// <dir>`; all three files and presets/ resolve relative to it).
func NewStore(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) basePath() string       { return filepath.Join(s.Root, "sunsetr.toml") }
func (s *Store) baseGeoPath() string    { return filepath.Join(s.Root, "geo.toml") }
func (s *Store) presetsDir() string     { return filepath.Join(s.Root, "presets") }
func (s *Store) presetDir(name string) string {
	return filepath.Join(s.presetsDir(), NormalizePresetName(name))
}

// NormalizePresetName NFC-normalizes a preset name before it is used
// as a filesystem path component, so visually identical names typed
// with different Unicode compositions (e.g. on different input
// methods) resolve to the same directory. Adapted from
// internal/geo's NFD-based locality normalization, inverted to NFC
// since preset directories should round-trip a user's literal typed
// name rather than decompose it.
func NormalizePresetName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ListPresets returns the names of every preset directory under
// presets/, sorted. "default" is never returned even if a directory
// by that name exists, since spec §4.G reserves it to mean "no
// overlay".
func (s *Store) ListPresets() ([]string, error) {
	entries, err := os.ReadDir(s.presetsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, "list presets", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == "default" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// PresetExists reports whether name has a preset directory.
func (s *Store) PresetExists(name string) (bool, error) {
	if name == "" || name == "default" {
		return false, nil
	}
	names, err := s.ListPresets()
	if err != nil {
		return false, err
	}
	target := NormalizePresetName(name)
	for _, n := range names {
		if n == target {
			return true, nil
		}
	}
	return false, nil
}

// ActivePreset reads the persisted active preset name from
// $XDG_STATE_HOME/sunsetr/active_preset (spec §6), returning "" if the
// marker file is absent or empty ("default").
func (s *Store) ActivePreset() (string, error) {
	data, err := os.ReadFile(xdg.ActivePresetPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Config, "read active preset", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetActivePreset persists name as the active preset, validating it
// exists first (empty string means "default", always valid). Spec
// §4.G: "default is not a stored preset name; it means no overlay".
func (s *Store) SetActivePreset(name string) error {
	name = NormalizePresetName(name)
	if name != "" && name != "default" {
		exists, err := s.PresetExists(name)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.Wrap(apperr.Config, "set active preset", fmt.Errorf("unknown preset %q", name))
		}
	}
	if name == "default" {
		name = ""
	}
	if err := xdg.EnsureDir(xdg.StateDir()); err != nil {
		return apperr.Wrap(apperr.Config, "set active preset", err)
	}
	// Write via rename-into-place (spec §5: "set command writes via
	// rename-into-place") so a concurrent reader never observes a
	// half-written marker file.
	tmp := xdg.ActivePresetPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(name), 0o600); err != nil {
		return apperr.Wrap(apperr.Config, "set active preset", err)
	}
	if err := os.Rename(tmp, xdg.ActivePresetPath()); err != nil {
		return apperr.Wrap(apperr.Config, "set active preset", err)
	}
	return nil
}

// Load resolves the full layering order for the currently persisted
// active preset and returns the built EffectiveConfig, per spec
// §4.G's precedence: base sunsetr.toml → base geo.toml → active
// preset sunsetr.toml → active preset geo.toml.
func (s *Store) Load() (EffectiveConfig, error) {
	active, err := s.ActivePreset()
	if err != nil {
		return EffectiveConfig{}, err
	}
	return s.LoadPreset(active)
}

// LoadPreset resolves the layering order for an explicit preset name
// (empty string for "no overlay"), independent of what is currently
// persisted as active — used by `preset <name>` to validate a
// candidate before committing it.
func (s *Store) LoadPreset(preset string) (EffectiveConfig, error) {
	merged, err := s.MergedRaw(preset)
	if err != nil {
		return EffectiveConfig{}, err
	}
	return Build(merged)
}

// MergedRaw resolves the same layering order as LoadPreset (base
// sunsetr.toml → base geo.toml → preset sunsetr.toml → preset
// geo.toml) but stops short of Build, for callers like `sunsetr get`
// that want to see unset fields as absent rather than defaulted.
func (s *Store) MergedRaw(preset string) (Raw, error) {
	base, err := DecodeFile(s.basePath())
	if err != nil {
		return Raw{}, err
	}
	baseGeo, err := DecodeGeoFile(s.baseGeoPath())
	if err != nil {
		return Raw{}, err
	}
	merged := MergeGeo(base, baseGeo)

	if preset != "" && preset != "default" {
		exists, err := s.PresetExists(preset)
		if err != nil {
			return Raw{}, err
		}
		if !exists {
			return Raw{}, apperr.Wrap(apperr.Config, "load preset", fmt.Errorf("unknown preset %q", preset))
		}
		dir := s.presetDir(preset)
		presetRaw, err := DecodeFile(filepath.Join(dir, "sunsetr.toml"))
		if err != nil {
			return Raw{}, err
		}
		presetGeo, err := DecodeGeoFile(filepath.Join(dir, "geo.toml"))
		if err != nil {
			return Raw{}, err
		}
		merged = Merge(merged, presetRaw)
		merged = MergeGeo(merged, presetGeo)
	}

	return merged, nil
}

// TargetConfigPath resolves the sunsetr.toml path that `set --target`
// should write: the base file for "" or "default", otherwise the
// named preset's file, creating its directory if this is the first
// write to a brand new preset.
func (s *Store) TargetConfigPath(target string) (string, error) {
	if target == "" || target == "default" {
		return s.basePath(), nil
	}
	dir := s.presetDir(target)
	if err := xdg.EnsureDir(dir); err != nil {
		return "", apperr.Wrap(apperr.Config, "create preset dir", err)
	}
	return filepath.Join(dir, "sunsetr.toml"), nil
}

// TargetGeoPath resolves the geo.toml path matching TargetConfigPath's
// target, creating the preset directory if needed.
func (s *Store) TargetGeoPath(target string) (string, error) {
	if target == "" || target == "default" {
		return s.baseGeoPath(), nil
	}
	dir := s.presetDir(target)
	if err := xdg.EnsureDir(dir); err != nil {
		return "", apperr.Wrap(apperr.Config, "create preset dir", err)
	}
	return filepath.Join(dir, "geo.toml"), nil
}

// WriteGeoCoords overwrites path's latitude/longitude, for `sunsetr
// geo <lat> <lon>`.
func WriteGeoCoords(path string, lat, lon float64) error {
	raw := GeoRaw{Latitude: &lat, Longitude: &lon}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return apperr.Wrap(apperr.Config, "encode "+path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return apperr.Wrap(apperr.Config, "write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.Config, "write "+path, err)
	}
	return nil
}

// WriteFields applies field=value assignments (already validated by
// config.SetRawField) to the sunsetr.toml at path, preserving every
// other key already present, and writes the result back via
// rename-into-place so a concurrent reader never observes a
// half-written file.
func WriteFields(path string, assignments map[string]string) error {
	raw, err := DecodeFile(path)
	if err != nil {
		return err
	}
	for field, value := range assignments {
		if err := SetRawField(&raw, field, value); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return apperr.Wrap(apperr.Config, "encode "+path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return apperr.Wrap(apperr.Config, "write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.Config, "write "+path, err)
	}
	return nil
}

// SchedulingLocation returns the *time.Location scheduling should use
// for cfg: the timezone of the configured coordinates (spec §4.B),
// falling back to UTC when no coordinates are set.
func SchedulingLocation(cfg EffectiveConfig) *time.Location {
	if !cfg.HasCoords {
		return time.UTC
	}
	return geotz.Location(cfg.Lat, cfg.Lon)
}
