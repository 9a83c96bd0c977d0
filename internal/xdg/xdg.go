// Package xdg resolves the runtime, state, and config directories
// sunsetr uses, following the XDG Base Directory fallbacks, plus the
// per-config-root naming (lock file, socket) that lets multiple
// `--config <dir>` roots run concurrently per spec §4.G/§4.J.
package xdg

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// RuntimeDir returns $XDG_RUNTIME_DIR, falling back to
// <os.TempDir()>/sunsetr-run when unset (some minimal session managers never export it).
func RuntimeDir() string {
	if d := os.Getenv("XDG_RUNTIME_DIR"); d != "" {
		return d
	}
	return filepath.Join(os.TempDir(), "sunsetr-run")
}

// StateHome returns $XDG_STATE_HOME, falling back to ~/.local/state.
func StateHome() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".local", "state")
	}
	return filepath.Join(home, ".local", "state")
}

// ConfigHome returns $XDG_CONFIG_HOME, falling back to ~/.config.
func ConfigHome() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config")
	}
	return filepath.Join(home, ".config")
}

// DefaultConfigRoot is the config root used when --config is not given.
func DefaultConfigRoot() string {
	return filepath.Join(ConfigHome(), "sunsetr")
}

// StateDir returns the directory that holds persisted daemon state
// (currently just active_preset).
func StateDir() string {
	return filepath.Join(StateHome(), "sunsetr")
}

// RootHash returns a short, stable, filesystem-safe fingerprint of a
// config root path. The default root is not hashed (its lock/socket
// names are left unsuffixed for readability); any other root gets a
// "-<hash>" suffix so two `--config` invocations never collide.
func RootHash(configRoot string) string {
	if configRoot == "" || configRoot == DefaultConfigRoot() {
		return ""
	}
	abs, err := filepath.Abs(configRoot)
	if err != nil {
		abs = configRoot
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:8]
}

// LockPath returns the advisory lock file path for a config root, per
// spec §4.J: "$XDG_RUNTIME_DIR/sunsetr/sunsetr[-<hash>].lock".
func LockPath(configRoot string) string {
	name := "sunsetr"
	if h := RootHash(configRoot); h != "" {
		name += "-" + h
	}
	return filepath.Join(RuntimeDir(), "sunsetr", name+".lock")
}

// SocketPath returns the IPC listening socket path for a config root,
// per spec §4.I: "$XDG_RUNTIME_DIR/sunsetr-events.sock" for the default
// root, or a hashed variant for custom roots.
func SocketPath(configRoot string) string {
	name := "sunsetr-events"
	if h := RootHash(configRoot); h != "" {
		name += "-" + h
	}
	return filepath.Join(RuntimeDir(), name+".sock")
}

// ActivePresetPath returns the path to the persisted active-preset
// marker file, per spec §6: "$XDG_STATE_HOME/sunsetr/active_preset".
func ActivePresetPath() string {
	return filepath.Join(StateDir(), "active_preset")
}

// EnsureDir creates dir (and parents) with 0700 permissions if it
// does not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}
