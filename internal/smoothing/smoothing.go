// Package smoothing implements the sub-second animated transitions
// spec §4.F describes: an adaptive-interval loop that eases between
// two ColorStates over a wall-duration, cancellable and retargetable
// mid-flight.
package smoothing

import (
	"context"
	"time"

	"github.com/sunsetr/sunsetr/internal/clock"
	"github.com/sunsetr/sunsetr/internal/colormath"
)

// slowCadenceFactor is the "2 x base_interval_ms" threshold spec §4.F
// names for detecting a compositor that can't keep up with the
// requested tick rate.
const slowCadenceFactor = 2

// Engine animates ColorState transitions by calling Apply once per
// tick with an interpolated state. It is only meaningful when the
// active backend's Capabilities.SupportsSmoothing is true (spec
// §4.F); callers with a native-animation backend should send only
// endpoint targets and never construct an Engine.
type Engine struct {
	Clock clock.Source
	Apply func(colormath.State) error

	// BaseIntervalMs is adaptive_interval from config, the target tick
	// period before any slow-cadence adjustment.
	BaseIntervalMs int
}

// Run animates from `from` to `to` over duration, calling Apply on
// every tick with a Bézier-eased interpolated state, and finishes by
// applying `to` exactly (spec §8 property 2: endpoints are exact, no
// rounding drift). ctx cancellation returns the most recently applied
// intermediate state so the caller can immediately retarget *from*
// that state without a visible jump (spec §4.F: "re-targets from the
// current interpolated state").
func (e *Engine) Run(ctx context.Context, from, to colormath.State, duration time.Duration) (colormath.State, error) {
	if duration <= 0 {
		if err := e.Apply(to); err != nil {
			return from, err
		}
		return to, nil
	}

	base := time.Duration(e.BaseIntervalMs) * time.Millisecond
	if base <= 0 {
		base = time.Millisecond
	}

	start := e.Clock.NowMono()
	deadline := start.Add(duration)
	current := from

	step := base
	consecutiveSlowTicks := 0
	nextTick := start.Add(step)

	for {
		if !nextTick.Before(deadline) {
			select {
			case <-ctx.Done():
				return current, ctx.Err()
			default:
			}
			reason := e.Clock.SleepUntil(ctx, deadline)
			if reason == clock.Cancelled {
				return current, ctx.Err()
			}
			if err := e.Apply(to); err != nil {
				return current, err
			}
			return to, nil
		}

		waitStart := e.Clock.NowMono()
		reason := e.Clock.SleepUntil(ctx, nextTick)
		if reason == clock.Cancelled {
			return current, ctx.Err()
		}
		actual := e.Clock.NowMono().Sub(waitStart)

		elapsed := nextTick.Sub(start)
		if elapsed > duration {
			elapsed = duration
		}
		progress := float64(elapsed) / float64(duration)
		w := colormath.Ease(progress)
		current = colormath.Blend(from, to, w)
		if err := e.Apply(current); err != nil {
			return current, err
		}

		// Adaptive cadence: if the compositor/scheduler is consistently
		// slower than twice the intended step, double the step size
		// (fewer, coarser frames) so the overall transition still
		// finishes within its wall duration instead of overrunning it.
		if actual > slowCadenceFactor*step {
			consecutiveSlowTicks++
			if consecutiveSlowTicks >= 2 {
				step *= 2
				consecutiveSlowTicks = 0
			}
		} else {
			consecutiveSlowTicks = 0
		}

		nextTick = nextTick.Add(step)
	}
}
