// Package wlrgamma implements the wlr-gamma-control-unstable-v1
// backend adapter (spec §4.E.1): one gamma_control object per output,
// each fed a ramp written into a sealed anonymous shared-memory
// segment.
package wlrgamma

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/backend/wire"
	"github.com/sunsetr/sunsetr/internal/colormath"
)

const (
	managerInterface = "zwlr_gamma_control_manager_v1"
	outputInterface  = "wl_output"

	managerOpGetGammaControl uint16 = 0
	managerOpDestroy         uint16 = 1

	gammaControlOpSetGamma uint16 = 0
	gammaControlOpDestroy  uint16 = 1

	gammaControlEvGammaSize uint16 = 0
	gammaControlEvFailed    uint16 = 1
)

// output is one display's gamma-control handle.
type output struct {
	controlID uint32
	rampSize  uint32
	lastState colormath.State
	haveLast  bool
}

// Driver is the WLR gamma-control backend.Driver implementation.
type Driver struct {
	conn      *wire.Conn
	managerID uint32

	mu      sync.Mutex
	outputs *backend.OutputTable[*output]
	stopCh  chan struct{}
}

var _ backend.Driver = (*Driver)(nil)

// New constructs an unattached Driver; call Attach before use.
func New() *Driver {
	return &Driver{outputs: backend.NewOutputTable[*output]()}
}

// Attach connects to the compositor, binds the gamma-control manager
// and every currently-advertised wl_output, creates a gamma_control
// object per output, and starts the event-dispatch goroutine that
// keeps the output table current across hotplug (spec §4.E.1, §4.E).
func (d *Driver) Attach() error {
	conn, err := wire.Dial()
	if err != nil {
		return fmt.Errorf("wlrgamma: attach: %w", err)
	}

	manager, ok := conn.FindGlobal(managerInterface)
	if !ok {
		conn.Close()
		return fmt.Errorf("wlrgamma: attach: compositor does not advertise %s", managerInterface)
	}
	managerID, err := conn.Bind(manager, manager.Version)
	if err != nil {
		conn.Close()
		return fmt.Errorf("wlrgamma: attach: bind manager: %w", err)
	}

	d.conn = conn
	d.managerID = managerID
	d.stopCh = make(chan struct{})

	for id, g := range conn.Globals() {
		if g.Interface == outputInterface {
			if err := d.addOutput(id, g); err != nil {
				conn.Close()
				return err
			}
		}
	}

	if err := conn.Roundtrip(); err != nil {
		conn.Close()
		return fmt.Errorf("wlrgamma: attach: initial roundtrip: %w", err)
	}

	// The roundtrip guarantees the compositor has processed every
	// get_gamma_control request issued above, so any gamma_size/failed
	// event those objects generated is already sitting in the queue
	// Roundtrip requeued. Drain it synchronously before handing the
	// connection to the background dispatch loop, so a denied grant
	// (spec §4.E.1: "another client holds exclusive gamma") is caught
	// as the fatal startup configuration error spec §7 requires,
	// rather than silently producing a driver that applies nothing.
	for _, msg := range conn.DrainEvents() {
		if err := d.applyEvent(msg, true); err != nil {
			conn.Close()
			return apperr.Wrap(apperr.Backend, "attach", err)
		}
	}

	go d.dispatch()
	return nil
}

func (d *Driver) addOutput(globalID uint32, g wire.Global) error {
	outputObjID, err := d.conn.Bind(g, g.Version)
	if err != nil {
		return fmt.Errorf("wlrgamma: bind wl_output: %w", err)
	}
	controlID := d.conn.NewID()
	args := append(encodeUint32(controlID), encodeUint32(outputObjID)...)
	if err := d.conn.SendRequest(d.managerID, managerOpGetGammaControl, args); err != nil {
		return fmt.Errorf("wlrgamma: get_gamma_control: %w", err)
	}
	d.outputs.Add(controlID, &output{controlID: controlID})
	return nil
}

// dispatch reads gamma_size/failed events and keeps per-output ramp
// sizes current; it is the sole reader of conn.Events() once Attach
// has returned, matching spec §5's single Wayland dispatch thread.
// Any startup-time failed event was already surfaced fatally by
// Attach's synchronous drain, so a failed event seen here is always a
// runtime revocation (spec §7: non-fatal, the controller keeps
// retrying SetColor on the next update tick).
func (d *Driver) dispatch() {
	for {
		select {
		case msg, ok := <-d.conn.Events():
			if !ok {
				return
			}
			_ = d.applyEvent(msg, false)
		case <-d.stopCh:
			return
		}
	}
}

// applyEvent handles one gamma_control event. When fatalOnFailed is
// true, a "failed" event is returned as an error for the caller to
// treat as spec §4.E.1's fatal configuration error; otherwise it is a
// no-op (spec §7's runtime retry policy already covers it: the next
// SetColor call simply tries again).
func (d *Driver) applyEvent(msg wire.Message, fatalOnFailed bool) error {
	var control *output
	d.outputs.Each(func(id uint32, out *output) error {
		if id == msg.Header.ObjectID {
			control = out
		}
		return nil
	})
	if control == nil {
		// Not addressed to a gamma_control object (e.g. a wl_output
		// event, whose opcodes overlap these).
		return nil
	}
	switch msg.Header.Opcode {
	case gammaControlEvGammaSize:
		if size, ok := decodeUint32(msg.Args); ok {
			control.rampSize = size
		}
	case gammaControlEvFailed:
		if fatalOnFailed {
			return fmt.Errorf("gamma control denied for object %d: another client holds exclusive gamma", msg.Header.ObjectID)
		}
	}
	return nil
}

// SetColor writes a fresh ramp into a sealed memfd and submits it to
// every registered output, skipping outputs whose last-applied state
// already equals state (idempotence, spec §8 property 5).
func (d *Driver) SetColor(state colormath.State) error {
	if d.conn == nil {
		return fmt.Errorf("wlrgamma: set_color: not attached")
	}
	return d.outputs.Each(func(id uint32, out *output) error {
		if out.haveLast && out.lastState.Equal(state) {
			return nil
		}
		if out.rampSize == 0 {
			// gamma_size event hasn't arrived yet; skip until it does.
			return nil
		}
		fd, err := rampFD(state, int(out.rampSize))
		if err != nil {
			return fmt.Errorf("wlrgamma: build ramp fd: %w", err)
		}
		defer unix.Close(fd)

		if err := d.conn.SendRequestFD(id, gammaControlOpSetGamma, nil, fd); err != nil {
			return fmt.Errorf("wlrgamma: set_gamma: %w", err)
		}
		out.lastState = state
		out.haveLast = true
		return nil
	})
}

// Capabilities reports spec §4.E.1: smoothing is driven client-side,
// the compositor has no native animation for gamma ramps.
func (d *Driver) Capabilities() backend.Capabilities {
	return backend.Capabilities{SupportsSmoothing: true, NativeAnimation: false}
}

// Detach restores identity on every output and tears down the
// connection.
func (d *Driver) Detach() error {
	if d.conn == nil {
		return nil
	}
	err := d.SetColor(backend.Identity)
	if d.stopCh != nil {
		close(d.stopCh)
	}
	closeErr := d.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// rampFD builds the N x 3 x 2 byte ramp blob (three uint16 channels)
// for state and n samples, writes it into a sealed anonymous memfd,
// and returns the file descriptor positioned at offset 0, ready to be
// sent as the gamma_control.set_gamma request's fd argument.
func rampFD(state colormath.State, n int) (int, error) {
	r, g, b := colormath.Ramps(state, n, 0xffff)

	fd, err := unix.MemfdCreate("sunsetr-gamma-ramp", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return -1, fmt.Errorf("memfd_create: %w", err)
	}

	buf := make([]byte, n*3*2)
	writeRamp(buf[0*n*2:1*n*2], r)
	writeRamp(buf[1*n*2:2*n*2], g)
	writeRamp(buf[2*n*2:3*n*2], b)

	if err := unix.Ftruncate(fd, int64(len(buf))); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("ftruncate: %w", err)
	}
	if _, err := unix.Pwrite(fd, buf, 0); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("pwrite: %w", err)
	}
	// Seal the segment so the compositor can trust its contents won't
	// change underneath it while it maps the fd, per the protocol's
	// documented contract.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS,
		unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_WRITE|unix.F_SEAL_SEAL); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("add seals: %w", err)
	}
	return fd, nil
}

func writeRamp(dst []byte, vals []uint16) {
	for i, v := range vals {
		dst[i*2] = byte(v)
		dst[i*2+1] = byte(v >> 8)
	}
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func decodeUint32(b []byte) (uint32, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, true
}
