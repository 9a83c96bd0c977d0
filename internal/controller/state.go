package controller

import (
	"time"

	"github.com/sunsetr/sunsetr/internal/colormath"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/schedule"
)

// TestOverride is spec §3's pinned `test` state: while set, the
// scheduler's own apply is suspended and SetColor targets State
// exclusively.
type TestOverride struct {
	State            colormath.State
	RestoreOnRelease bool
}

// InstanceState is spec §3's InstanceState, owned exclusively by the
// controller's event loop — no lock is required on it (spec §5).
type InstanceState struct {
	EffectiveConfig config.EffectiveConfig
	ActivePreset    string
	Schedule        schedule.Period
	CurrentTarget   colormath.State
	LastApplied     colormath.State
	LastAppliedAt   time.Time
	InSmoothing     bool
	TestOverride    *TestOverride
	NextDeadline    time.Time
}
