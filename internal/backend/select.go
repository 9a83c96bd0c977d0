package backend

import "os"

// hyprlandCTMInterface is the Wayland global interface name
// hyprland-ctm-control-v1 advertises; declared here (rather than
// importing internal/backend/hyprctm, which would create an import
// cycle with that package's own dependency on this one) since
// auto-selection only needs the interface string, not the adapter.
const hyprlandCTMInterface = "hyprland_ctm_control_manager_v1"

// DetectHyprland reports whether the environment hints at a running
// Hyprland compositor, per spec §4.E.3's "environment hints for the
// compositor".
func DetectHyprland() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

// Select applies spec §4.E.3's auto-selection heuristic: on Hyprland,
// if the CTM protocol is advertised, choose hyprctm; otherwise fall
// back to wlrgamma. globals is the set of Wayland interface names the
// compositor currently advertises (from a wire.Conn.Globals() scan).
func Select(requested Name, onHyprland bool, globals map[string]bool) Name {
	if requested != NameAuto {
		return requested
	}
	if onHyprland && globals[hyprlandCTMInterface] {
		return NameHyprland
	}
	return NameWayland
}
