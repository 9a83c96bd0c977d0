// Package sim implements sunsetr's `--simulate` mode (spec §4.K): a
// virtual clock that replaces internal/clock's real Source, paired
// with internal/backend/nullbackend so an entire day (or year) of
// scheduling can be exercised without touching a compositor or
// waiting in real time.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/sunsetr/sunsetr/internal/clock"
)

// Virtual is a clock.Source whose wall and monotonic instants are
// advanced explicitly rather than tracking the OS clock. SleepUntil
// either jumps straight to the deadline (Multiplier == 0, fast-forward)
// or advances at Multiplier x real time, per spec §4.K.
type Virtual struct {
	mu sync.Mutex

	wall time.Time
	mono time.Time

	// Multiplier is the playback speed: 0 means fast-forward (advance
	// instantly, ignoring real elapsed time), otherwise SleepUntil waits
	// (deadline-now)/Multiplier of real wall-clock time before advancing
	// virtual time to deadline.
	Multiplier float64

	// pendingJump is a wall-clock-only offset queued by Jump, applied on
	// the next SleepUntil call independent of the elapsed duration, to
	// simulate scenario S6 (a clock step while sunsetr is running).
	pendingJump time.Duration

	// OnAdvance, if set, is called synchronously after every SleepUntil
	// updates the virtual clock, with the new wall-clock instant. The
	// harness uses this to cancel the run's context once wall time
	// reaches the simulation's end, without a separate polling goroutine.
	OnAdvance func(wall time.Time)
}

var _ clock.Source = (*Virtual)(nil)

// NewVirtual constructs a Virtual clock starting at start, with both
// its wall and monotonic instants initialized to it.
func NewVirtual(start time.Time, multiplier float64) *Virtual {
	return &Virtual{wall: start, mono: start, Multiplier: multiplier}
}

func (v *Virtual) NowWall() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.wall
}

func (v *Virtual) NowMono() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mono
}

// Jump queues a wall-clock-only step of d, applied on the next
// SleepUntil: the monotonic clock advances normally but the wall clock
// additionally steps by d, producing the drift spec §4.A's jump
// detection is built to catch.
func (v *Virtual) Jump(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pendingJump += d
}

// SleepUntil advances virtual time to deadline (spec §4.K) and reports
// whether a queued Jump made that advance look like a clock step.
func (v *Virtual) SleepUntil(ctx context.Context, deadline time.Time) clock.WakeReason {
	select {
	case <-ctx.Done():
		return clock.Cancelled
	default:
	}

	v.mu.Lock()
	delta := deadline.Sub(v.mono)
	if delta < 0 {
		delta = 0
	}
	jump := v.pendingJump
	v.pendingJump = 0
	v.mu.Unlock()

	if v.Multiplier > 0 && delta > 0 {
		real := time.Duration(float64(delta) / v.Multiplier)
		timer := time.NewTimer(real)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return clock.Cancelled
		case <-timer.C:
		}
	} else {
		select {
		case <-ctx.Done():
			return clock.Cancelled
		default:
		}
	}

	v.mu.Lock()
	v.mono = v.mono.Add(delta)
	v.wall = v.wall.Add(delta + jump)
	now := v.wall
	v.mu.Unlock()

	if v.OnAdvance != nil {
		v.OnAdvance(now)
	}

	if jump < 0 {
		jump = -jump
	}
	if jump > clock.JumpTolerance {
		return clock.Jumped
	}
	return clock.Deadline
}
