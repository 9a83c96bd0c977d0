// Package backend defines the driver contract spec §4.E requires:
// a capability set plus a tagged-variant adapter, rather than runtime
// subclassing (§9's design note), with two real implementations
// (internal/backend/wlrgamma, internal/backend/hyprctm) and a
// recording stand-in for simulation (internal/backend/nullbackend).
package backend

import "github.com/sunsetr/sunsetr/internal/colormath"

// Capabilities describes what a Driver can do, consulted by the
// controller and smoothing engine to decide whether to animate
// locally or hand endpoints straight to the compositor (spec §4.E,
// §4.F).
type Capabilities struct {
	// SupportsSmoothing is true when the driver wants
	// internal/smoothing to drive intermediate frames (wlrgamma).
	SupportsSmoothing bool
	// NativeAnimation is true when the compositor animates transitions
	// itself at refresh rate (hyprctm); the controller must then send
	// only endpoint targets and disable its own smoothing.
	NativeAnimation bool
}

// Driver is the backend adapter contract spec §4.E describes.
// Implementations must make SetColor idempotent (spec §8 property 5:
// unchanged ColorState must not re-send unchanged protocol traffic)
// and tolerant of monitor hotplug.
type Driver interface {
	// Attach connects to the display backend. Called once at startup
	// (or after a backend restart, since backend changes require one
	// per spec §4.G).
	Attach() error
	// SetColor applies state synchronously, returning only after the
	// compositor has accepted the update.
	SetColor(state colormath.State) error
	// Capabilities reports this driver's animation behavior.
	Capabilities() Capabilities
	// Detach restores the identity color (6500 K, 100%) and releases
	// backend resources. Shutdown smoothing toward identity is the
	// controller's responsibility, driven by repeated SetColor calls;
	// Detach itself is the final, unconditional reset.
	Detach() error
}

// Identity is the color state Detach restores, per spec §4.E.
var Identity = colormath.State{TempK: 6500, GammaPct: 100}

// Name identifies a backend choice from spec §6's `backend` key.
type Name string

const (
	NameAuto       Name = "auto"
	NameHyprland   Name = "hyprland"
	NameHyprsunset Name = "hyprsunset"
	NameWayland    Name = "wayland"
)
