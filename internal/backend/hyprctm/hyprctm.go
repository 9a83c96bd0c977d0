// Package hyprctm implements the hyprland-ctm-control-v1 backend
// adapter (spec §4.E.2): a 3x3 color-transform matrix per output,
// submitted once per target change since Hyprland animates the
// transition itself.
package hyprctm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/backend/wire"
	"github.com/sunsetr/sunsetr/internal/colormath"
)

// fixedScale is the Wayland wl_fixed denominator: a wl_fixed value is
// a signed 24.8 fixed-point number carried as a wire int32, not an
// IEEE-754 float.
const fixedScale = 256

const (
	managerInterface = "hyprland_ctm_control_manager_v1"
	outputInterface  = "wl_output"

	managerOpSetCTM   uint16 = 0
	managerOpCommit   uint16 = 1
)

// Driver is the Hyprland CTM backend.Driver implementation.
type Driver struct {
	conn      *wire.Conn
	managerID uint32

	outputIDs []uint32
	lastCTM   colormath.CTM
	haveLast  bool
}

var _ backend.Driver = (*Driver)(nil)

// New constructs an unattached Driver; call Attach before use.
func New() *Driver { return &Driver{} }

// Attach binds hyprland_ctm_control_manager_v1 and enumerates the
// currently-advertised wl_output globals. Per spec §4.E.3, callers
// should only select this driver after confirming the manager
// interface is advertised in the registry.
func (d *Driver) Attach() error {
	conn, err := wire.Dial()
	if err != nil {
		return fmt.Errorf("hyprctm: attach: %w", err)
	}

	manager, ok := conn.FindGlobal(managerInterface)
	if !ok {
		conn.Close()
		return fmt.Errorf("hyprctm: attach: compositor does not advertise %s", managerInterface)
	}
	managerID, err := conn.Bind(manager, manager.Version)
	if err != nil {
		conn.Close()
		return fmt.Errorf("hyprctm: attach: bind manager: %w", err)
	}

	d.conn = conn
	d.managerID = managerID

	for _, g := range conn.Globals() {
		if g.Interface == outputInterface {
			outputID, err := conn.Bind(g, g.Version)
			if err != nil {
				conn.Close()
				return fmt.Errorf("hyprctm: bind wl_output: %w", err)
			}
			d.outputIDs = append(d.outputIDs, outputID)
		}
	}

	if err := conn.Roundtrip(); err != nil {
		conn.Close()
		return fmt.Errorf("hyprctm: attach: initial roundtrip: %w", err)
	}
	return nil
}

// SetColor submits the diagonal CTM for state to every bound output,
// skipping the call entirely if the matrix is unchanged from the last
// apply (idempotence, spec §8 property 5).
func (d *Driver) SetColor(state colormath.State) error {
	if d.conn == nil {
		return fmt.Errorf("hyprctm: set_color: not attached")
	}
	ctm := colormath.DiagCTM(state)
	if d.haveLast && ctm == d.lastCTM {
		return nil
	}

	args := encodeCTM(ctm)
	for _, outputID := range d.outputIDs {
		req := append(encodeUint32(outputID), args...)
		if err := d.conn.SendRequest(d.managerID, managerOpSetCTM, req); err != nil {
			return fmt.Errorf("hyprctm: set_ctm: %w", err)
		}
	}
	if err := d.conn.SendRequest(d.managerID, managerOpCommit, nil); err != nil {
		return fmt.Errorf("hyprctm: commit: %w", err)
	}

	d.lastCTM = ctm
	d.haveLast = true
	return nil
}

// Capabilities reports spec §4.E.2: Hyprland animates CTM changes
// itself, so this driver never wants client-side smoothing.
func (d *Driver) Capabilities() backend.Capabilities {
	return backend.Capabilities{SupportsSmoothing: false, NativeAnimation: true}
}

// Detach submits the identity CTM and closes the connection.
func (d *Driver) Detach() error {
	if d.conn == nil {
		return nil
	}
	err := d.SetColor(backend.Identity)
	closeErr := d.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// encodeCTM encodes a row-major 3x3 matrix as nine wl_fixed values
// (signed 24.8 fixed-point, wire-encoded as little-endian int32), the
// protocol's actual "fixed"-precision argument format.
func encodeCTM(m colormath.CTM) []byte {
	out := make([]byte, 0, 9*4)
	for _, v := range m {
		fixed := int32(math.Round(v * fixedScale))
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(fixed))
		out = append(out, b...)
	}
	return out
}
