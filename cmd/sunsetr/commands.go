package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/ipc"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [temp gamma]",
		Short: "Pin a color state, or release a previous pin with no arguments",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				resp, err := sendRequest(ipc.Request{Cmd: "test"})
				return printReply(resp, err)
			}
			if len(args) != 2 {
				return apperr.Wrap(apperr.Config, "test", fmt.Errorf("usage: test <temp> <gamma>"))
			}
			temp, err := strconv.Atoi(args[0])
			if err != nil {
				return apperr.Wrap(apperr.Config, "test", fmt.Errorf("invalid temp %q", args[0]))
			}
			gamma, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return apperr.Wrap(apperr.Config, "test", fmt.Errorf("invalid gamma %q", args[1]))
			}
			resp, err := sendRequest(ipc.Request{Cmd: "test", Temp: &temp, Gamma: &gamma})
			return printReply(resp, err)
		},
	}
}

func newPresetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preset <name>|active|list",
		Short: "Switch, query, or list presets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			resp, err := sendRequest(ipc.Request{Cmd: "preset", Name: &name})
			return printReply(resp, err)
		},
	}
}

func newGetCmd() *cobra.Command {
	var asJSON bool
	var target string
	c := &cobra.Command{
		Use:   "get <field>... | all",
		Short: "Read one or more sunsetr.toml fields from the running instance's config root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.Request{Cmd: "get", Fields: args}
			if target != "" {
				req.Target = &target
			}
			resp, err := sendRequest(req)
			if err != nil {
				return err
			}
			return printFields(resp.Fields, asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of key=value lines")
	c.Flags().StringVar(&target, "target", "", "preset to read instead of the base configuration")
	return c
}

func newSetCmd() *cobra.Command {
	var target string
	c := &cobra.Command{
		Use:   "set <field>=<value>...",
		Short: "Write one or more sunsetr.toml fields for the running instance's config root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kv := range args {
				if !strings.Contains(kv, "=") {
					return apperr.Wrap(apperr.Config, "set", fmt.Errorf("expected field=value, got %q", kv))
				}
			}
			req := ipc.Request{Cmd: "set", Set: args}
			if target != "" {
				req.Target = &target
			}
			resp, err := sendRequest(req)
			return printReply(resp, err)
		},
	}
	c.Flags().StringVar(&target, "target", "", "preset to write instead of the base configuration")
	return c
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	var follow bool
	c := &cobra.Command{
		Use:   "status",
		Short: "Report the current schedule and applied color state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return sendStatusFollow(ipc.Request{Cmd: "status_follow"}, func(fields map[string]any) bool {
					printFields(fields, asJSON)
					return true
				})
			}
			resp, err := sendRequest(ipc.Request{Cmd: "status_once"})
			if err != nil {
				return err
			}
			return printFields(resp.Fields, asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of key=value lines")
	c.Flags().BoolVar(&follow, "follow", false, "stream state_applied/period_changed/preset_changed events")
	return c
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read configuration files and apply the change immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendRequest(ipc.Request{Cmd: "reload_signal"})
			return printReply(resp, err)
		},
	}
}

func newRestartCmd() *cobra.Command {
	var instant, background bool
	c := &cobra.Command{
		Use:   "restart",
		Short: "Stop the running instance and start a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := sendRequest(ipc.Request{Cmd: "restart", Instant: &instant, Background: &background}); err != nil {
				return err
			}
			if background {
				return spawnBackground()
			}
			return nil
		},
	}
	c.Flags().BoolVar(&instant, "instant", false, "skip shutdown smoothing")
	c.Flags().BoolVar(&background, "background", false, "restart into the background")
	return c
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendRequest(ipc.Request{Cmd: "stop"})
			return printReply(resp, err)
		},
	}
}

func printReply(resp ipc.Response, err error) error {
	if err != nil {
		return err
	}
	if len(resp.Fields) == 0 {
		fmt.Println("ok")
		return nil
	}
	return printFields(resp.Fields, false)
}

func printFields(fields map[string]any, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(fields)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "encode fields", err)
		}
		fmt.Println(string(data))
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%v\n", k, fields[k])
		if k == "next_change" {
			if ts, ok := fields[k].(string); ok {
				if when, err := time.Parse(time.RFC3339, ts); err == nil {
					fmt.Printf("next_change_humanized=%s\n", humanize.Time(when))
				}
			}
		}
	}
	return nil
}
