// Package nullbackend implements the recording driver spec §4.K
// requires for --simulate: it satisfies backend.Driver but never
// touches a real compositor, instead appending every applied
// ColorState to an in-memory log the simulation harness inspects.
package nullbackend

import (
	"sync"
	"time"

	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/colormath"
)

// Applied is one recorded SetColor call.
type Applied struct {
	At    time.Time
	State colormath.State
}

// Driver records every applied ColorState instead of driving a real
// display. Capabilities default to SupportsSmoothing so simulation
// exercises the smoothing engine exactly as the real wlrgamma driver
// would; sim.Run overrides this via WithCapabilities when
// Options.BackendCaps is set.
type Driver struct {
	mu    sync.Mutex
	log   []Applied
	caps  backend.Capabilities
	nowFn func() time.Time
}

var _ backend.Driver = (*Driver)(nil)

// New constructs a recording driver. nowFn supplies the timestamp for
// each recorded apply; the simulation harness passes its virtual
// clock's NowWall so recorded timestamps are virtual time, not real
// time.
func New(nowFn func() time.Time) *Driver {
	return &Driver{
		caps:  backend.Capabilities{SupportsSmoothing: true, NativeAnimation: false},
		nowFn: nowFn,
	}
}

// WithCapabilities overrides the reported capabilities, used by
// simulation to exercise the hyprctm-shaped (NativeAnimation) code
// path without a real Hyprland connection.
func (d *Driver) WithCapabilities(caps backend.Capabilities) *Driver {
	d.caps = caps
	return d
}

func (d *Driver) Attach() error { return nil }

func (d *Driver) SetColor(state colormath.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.log) > 0 && d.log[len(d.log)-1].State.Equal(state) {
		return nil
	}
	d.log = append(d.log, Applied{At: d.nowFn(), State: state})
	return nil
}

func (d *Driver) Capabilities() backend.Capabilities { return d.caps }

func (d *Driver) Detach() error { return d.SetColor(backend.Identity) }

// Log returns a snapshot of every applied state, in apply order.
func (d *Driver) Log() []Applied {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Applied, len(d.log))
	copy(out, d.log)
	return out
}

// Last returns the most recently applied state, or the zero value and
// false if nothing has been applied yet.
func (d *Driver) Last() (Applied, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.log) == 0 {
		return Applied{}, false
	}
	return d.log[len(d.log)-1], true
}
