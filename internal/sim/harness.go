package sim

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/backend/nullbackend"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/controller"
	"github.com/sunsetr/sunsetr/internal/ipc"
)

// Options configures one --simulate run (spec §4.K).
type Options struct {
	Start, End time.Time
	// Multiplier is the playback speed; 0 means fast-forward.
	Multiplier float64
	ConfigRoot string
	// BackendCaps overrides the recording driver's reported
	// capabilities, so a simulation can exercise either the smoothing
	// engine (wlrgamma-shaped) or the native-animation path
	// (hyprctm-shaped) without a real compositor.
	BackendCaps backend.Capabilities
	Logger      *slog.Logger
}

// Result is what a simulation run produces: the full timeline of
// applied color states, recorded by the null backend in virtual-time
// order.
type Result struct {
	Applied []nullbackend.Applied
}

// Run drives a full Controller lifecycle against a Virtual clock and a
// recording backend, from opts.Start to opts.End, then returns every
// state the controller applied. Configuration, IPC, and scheduling are
// unchanged from production (spec §4.K: "all other components are
// unchanged"); only the clock and backend are swapped.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	v := NewVirtual(opts.Start, opts.Multiplier)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.OnAdvance = func(wall time.Time) {
		if !wall.Before(opts.End) {
			cancel()
		}
	}

	drv := nullbackend.New(v.NowWall)
	if opts.BackendCaps != (backend.Capabilities{}) {
		drv.WithCapabilities(opts.BackendCaps)
	}

	store := config.NewStore(opts.ConfigRoot)

	sockPath := filepath.Join(os.TempDir(), fmt.Sprintf("sunsetr-sim-%d.sock", os.Getpid()))
	srv, err := ipc.Listen(sockPath, opts.Logger)
	if err != nil {
		return nil, apperr.Wrap(apperr.Sim, "listen", err)
	}
	defer srv.Close()

	ctrl := controller.New(v, drv, store, srv, opts.Logger)
	if err := ctrl.Run(runCtx); err != nil && runCtx.Err() == nil {
		return nil, apperr.Wrap(apperr.Sim, "run", err)
	}

	return &Result{Applied: drv.Log()}, nil
}

// LogFileName builds the `simulation_YYYYMMDD_HHMMSS.log` name spec
// §4.K specifies for `--log`, stamped with the real wall-clock instant
// the simulation started (not virtual time).
func LogFileName(started time.Time) string {
	return "simulation_" + started.Format("20060102_150405") + ".log"
}

// OpenLogTee opens (creating if necessary) the simulation log file
// alongside the process's normal stderr logging, per spec §4.K:
// "--log tees structured output to simulation_YYYYMMDD_HHMMSS.log".
func OpenLogTee(dir string, started time.Time) (*os.File, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, LogFileName(started))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, apperr.Wrap(apperr.Sim, "open log", err)
	}
	return f, nil
}
