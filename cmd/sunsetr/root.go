package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/applog"
	"github.com/sunsetr/sunsetr/internal/xdg"
)

// globalFlags holds the persistent flags every subcommand can see,
// mirroring the teacher's geo-index command's package-level flag
// variables bound in PersistentFlags.
type globalFlags struct {
	configRoot string
	background bool
	debug      bool

	// simulate toggles spec §6's `--simulate <start> <end>
	// (<mult>|--fast-forward)` surface: a bare switch, with the start
	// and end instants (and optional multiplier) taken positionally
	// from the root command's own arguments rather than as their own
	// `--flag value` pairs, matching the spec's literal invocation
	// shape instead of three separate flags.
	simulate    bool
	fastForward bool
	simLog      bool
}

// simulateArgs holds the positional <start> <end> [<mult>] triple
// parsed from the root command's Args once --simulate is given.
type simulateArgs struct {
	start, end string
	multiplier float64
}

var parsedSimulate simulateArgs

var flags globalFlags

// run builds and executes the root command, translating any returned
// error into spec §6's exit code table.
func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sunsetr:", err)
		return apperr.ExitCode(err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sunsetr [--simulate <start> <end> (<mult>|--fast-forward)]",
		Short:         "Automatic color temperature and gamma for Wayland",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          validateSimulateArgs,
		RunE:          runDaemon,
	}

	root.PersistentFlags().StringVar(&flags.configRoot, "config", xdg.DefaultConfigRoot(), "configuration root directory")
	root.PersistentFlags().BoolVar(&flags.background, "background", false, "detach and run in the background")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "verbose structured logging")

	root.Flags().BoolVar(&flags.simulate, "simulate", false,
		"replace the wall clock with a virtual one over <start> <end> (<mult>|--fast-forward), given as this command's own positional arguments")
	root.Flags().BoolVar(&flags.fastForward, "fast-forward", false, "advance simulated time instantly instead of at a multiplier")
	root.Flags().BoolVar(&flags.simLog, "log", false, "tee structured output to simulation_<timestamp>.log")

	root.AddCommand(
		newTestCmd(),
		newGeoCmd(),
		newPresetCmd(),
		newGetCmd(),
		newSetCmd(),
		newStatusCmd(),
		newReloadCmd(),
		newRestartCmd(),
		newStopCmd(),
	)
	return root
}

// validateSimulateArgs implements spec §6's `--simulate <start> <end>
// (<mult>|--fast-forward)` positional triple: with --simulate unset,
// the root command takes no arguments; with it set, it takes exactly
// <start> <end>, plus <mult> unless --fast-forward was given instead.
func validateSimulateArgs(cmd *cobra.Command, args []string) error {
	if !flags.simulate {
		return cobra.NoArgs(cmd, args)
	}
	want := 3
	if flags.fastForward {
		want = 2
	}
	if len(args) != want {
		if flags.fastForward {
			return fmt.Errorf("--simulate --fast-forward requires exactly <start> <end>, got %d argument(s)", len(args))
		}
		return fmt.Errorf("--simulate requires exactly <start> <end> <mult>, got %d argument(s)", len(args))
	}
	parsedSimulate.start = args[0]
	parsedSimulate.end = args[1]
	if !flags.fastForward {
		mult, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid <mult> %q: %w", args[2], err)
		}
		parsedSimulate.multiplier = mult
	}
	return nil
}

func setupLogger() *slog.Logger {
	return applog.Setup(os.Stderr, flags.debug)
}

// setupTeeLogger installs a logger that writes to both stderr and w,
// for `--log`'s simulation_<timestamp>.log tee (spec §4.K).
func setupTeeLogger(w io.Writer) *slog.Logger {
	return applog.Setup(io.MultiWriter(os.Stderr, w), flags.debug)
}

func daemonContext() context.Context {
	return context.Background()
}
