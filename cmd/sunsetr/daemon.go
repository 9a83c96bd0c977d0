package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/backend/hyprctm"
	"github.com/sunsetr/sunsetr/internal/backend/wire"
	"github.com/sunsetr/sunsetr/internal/backend/wlrgamma"
	"github.com/sunsetr/sunsetr/internal/clock"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/controller"
	"github.com/sunsetr/sunsetr/internal/ipc"
	"github.com/sunsetr/sunsetr/internal/lock"
	"github.com/sunsetr/sunsetr/internal/sim"
	"github.com/sunsetr/sunsetr/internal/xdg"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	if flags.simulate {
		return runSimulate()
	}

	if flags.background {
		return spawnBackground()
	}

	logger := setupLogger()

	lk, err := lock.Acquire(xdg.LockPath(flags.configRoot), xdg.SocketPath(flags.configRoot))
	if err != nil {
		return err
	}
	defer lk.Release()

	store := config.NewStore(flags.configRoot)
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	drv, err := resolveBackend(cfg.Backend)
	if err != nil {
		return err
	}

	srv, err := ipc.Listen(xdg.SocketPath(flags.configRoot), logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctrl := controller.New(clock.System{}, drv, store, srv, logger)
	return ctrl.Run(daemonContext())
}

// resolveBackend probes the compositor (when requested is auto) and
// constructs the matching Driver, per spec §4.E.3's auto-selection
// heuristic.
func resolveBackend(requested backend.Name) (backend.Driver, error) {
	name := requested
	if requested == backend.NameAuto {
		onHyprland := backend.DetectHyprland()
		globals := map[string]bool{}
		if conn, err := wire.Dial(); err == nil {
			for _, g := range conn.Globals() {
				globals[g.Interface] = true
			}
			conn.Close()
		}
		name = backend.Select(requested, onHyprland, globals)
	}

	switch name {
	case backend.NameHyprland:
		return hyprctm.New(), nil
	case backend.NameWayland, backend.NameHyprsunset:
		return wlrgamma.New(), nil
	default:
		return nil, apperr.Wrap(apperr.Config, "resolve backend", fmt.Errorf("unsupported backend %q", name))
	}
}

func spawnBackground() error {
	exePath, err := os.Executable()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "spawn background", err)
	}
	childArgs := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a == "--background" {
			continue
		}
		childArgs = append(childArgs, a)
	}
	cmd := exec.Command(exePath, childArgs...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.Internal, "spawn background", err)
	}
	fmt.Printf("sunsetr started in background (pid %d)\n", cmd.Process.Pid)
	return nil
}

func runSimulate() error {
	logger := setupLogger()

	start, err := time.Parse(time.RFC3339, parsedSimulate.start)
	if err != nil {
		return apperr.Wrap(apperr.Sim, "parse simulate start", err)
	}
	end, err := time.Parse(time.RFC3339, parsedSimulate.end)
	if err != nil {
		return apperr.Wrap(apperr.Sim, "parse simulate end", err)
	}
	if !end.After(start) {
		return apperr.Wrap(apperr.Sim, "validate", fmt.Errorf("simulate end must be after simulate start"))
	}

	multiplier := parsedSimulate.multiplier
	if flags.fastForward {
		multiplier = 0
	}

	if flags.simLog {
		started := time.Now()
		f, err := sim.OpenLogTee(".", started)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = setupTeeLogger(f)
	}

	result, err := sim.Run(daemonContext(), sim.Options{
		Start:      start,
		End:        end,
		Multiplier: multiplier,
		ConfigRoot: flags.configRoot,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	for _, applied := range result.Applied {
		fmt.Printf("%s temp=%d gamma=%.1f\n",
			applied.At.Format(time.RFC3339), applied.State.TempK, applied.State.GammaPct)
	}
	return nil
}
