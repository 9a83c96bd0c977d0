package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/ipc"
)

// newGeoCmd writes geo.toml's coordinates directly, without a running
// daemon. The fuzzy city/timezone selector a full `geo` TUI would
// offer is out of scope (spec line 7); this accepts coordinates
// directly instead, and best-effort nudges a running instance to
// reload so the change takes effect immediately.
func newGeoCmd() *cobra.Command {
	var target string
	c := &cobra.Command{
		Use:   "geo [<lat> <lon>]",
		Short: "Show or set the coordinates used for geo-mode scheduling",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(flags.configRoot)
			if len(args) == 0 {
				return printGeo(store, target)
			}
			if len(args) != 2 {
				return apperr.Wrap(apperr.Config, "geo", fmt.Errorf("usage: geo <lat> <lon>"))
			}
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return apperr.Wrap(apperr.Config, "geo", fmt.Errorf("invalid latitude %q", args[0]))
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return apperr.Wrap(apperr.Config, "geo", fmt.Errorf("invalid longitude %q", args[1]))
			}
			return setGeo(store, target, lat, lon)
		},
	}
	c.Flags().StringVar(&target, "target", "", "preset to read or write instead of the base configuration")
	return c
}

func printGeo(store *config.Store, target string) error {
	raw, err := store.MergedRaw(target)
	if err != nil {
		return err
	}
	fields := config.RawFields(raw, []string{"latitude", "longitude"})
	return printFields(fields, false)
}

func setGeo(store *config.Store, target string, lat, lon float64) error {
	path, err := store.TargetGeoPath(target)
	if err != nil {
		return err
	}
	if err := config.WriteGeoCoords(path, lat, lon); err != nil {
		return err
	}

	// A running instance picks up geo.toml on its own file-watch, but
	// nudge it immediately rather than waiting out the debounce window.
	_, _ = sendRequest(ipc.Request{Cmd: "reload_signal"})
	fmt.Printf("geo: latitude=%g longitude=%g\n", lat, lon)
	return nil
}
