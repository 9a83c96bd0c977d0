package config

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// DebounceWindow is the fs-watcher coalescing window (spec §4.G gives
// a 150-500ms range; §9 Open Question (c) pins it at the midpoint
// pending empirical tuning, kept as an internal constant rather than
// a sunsetr.toml key since §6's key table does not list it).
const DebounceWindow = 300 * time.Millisecond

// pollInterval is how often the watcher checks file mtimes. It is
// well under DebounceWindow so a burst of saves coalesces into one
// reload without the watcher itself becoming the latency bottleneck.
const pollInterval = 100 * time.Millisecond

// Event is delivered on Store.Watch's channel: exactly one of Config
// or Err is set, matching spec §4.G's "on success, atomically swaps
// it into H; on failure, the current config is retained and a
// warning is emitted" policy — the controller decides which branch
// to take, this package only reports the parse/validate outcome.
type Event struct {
	Config EffectiveConfig
	Err    error
}

// Watch polls every watched file's mtime for changes, debounces bursts
// within DebounceWindow, and on settling re-loads the currently active
// preset, emitting one Event per settled change. The goroutine exits
// when ctx is cancelled.
func (s *Store) Watch(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)
	go s.watchLoop(ctx, out)
	return out
}

func (s *Store) watchLoop(ctx context.Context, out chan<- Event) {
	defer close(out)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastMtimes := s.snapshotMtimes()
	var pendingSince time.Time
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := s.snapshotMtimes()
			changed := mtimesDiffer(lastMtimes, current)
			lastMtimes = current

			if changed {
				pendingSince = time.Now()
				dirty = true
				continue
			}

			if dirty && time.Since(pendingSince) >= DebounceWindow {
				dirty = false
				cfg, err := s.Load()
				if err != nil {
					out <- Event{Err: err}
					continue
				}
				out <- Event{Config: cfg}
			}
		}
	}
}

// watchedPaths lists every file whose mtime participates in
// debouncing: the base files, plus every preset's files (since the
// active preset can change without sunsetr itself restarting via the
// `preset` command, and a save to any preset's files should still
// trigger a reload if it is the active one).
func (s *Store) watchedPaths() []string {
	paths := []string{s.basePath(), s.baseGeoPath()}
	names, err := s.ListPresets()
	if err != nil {
		return paths
	}
	for _, name := range names {
		dir := s.presetDir(name)
		paths = append(paths, filepath.Join(dir, "sunsetr.toml"), filepath.Join(dir, "geo.toml"))
	}
	return paths
}

func (s *Store) snapshotMtimes() map[string]time.Time {
	out := make(map[string]time.Time)
	for _, p := range s.watchedPaths() {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		out[p] = info.ModTime()
	}
	return out
}

func mtimesDiffer(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return true
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || !bv.Equal(v) {
			return true
		}
	}
	return false
}
