// Package controller implements sunsetr's main event loop (spec
// §4.H): the single-threaded state machine that owns InstanceState,
// reconciles the schedule against wall-clock time, and processes
// timer, fs-watch, signal, and IPC events in the order they arrive.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sunsetr/sunsetr/internal/apperr"
	"github.com/sunsetr/sunsetr/internal/backend"
	"github.com/sunsetr/sunsetr/internal/clock"
	"github.com/sunsetr/sunsetr/internal/colormath"
	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/ipc"
	"github.com/sunsetr/sunsetr/internal/schedule"
	"github.com/sunsetr/sunsetr/internal/smoothing"
)

// mergedChannelCapacity is the buffered channel size spec §5 pins for
// the controller's single merged event channel.
const mergedChannelCapacity = 32

// Controller drives the state machine table in spec §4.H.
type Controller struct {
	Clock   clock.Source
	Backend backend.Driver
	Store   *config.Store
	IPC     *ipc.Server
	Logger  *slog.Logger

	caps backend.Capabilities
	cfg  config.EffectiveConfig
	loc  *time.Location

	state  InstanceState
	merged chan Event
}

// New constructs a Controller. Call Run to start the event loop.
func New(clk clock.Source, drv backend.Driver, store *config.Store, srv *ipc.Server, logger *slog.Logger) *Controller {
	return &Controller{
		Clock:   clk,
		Backend: drv,
		Store:   store,
		IPC:     srv,
		Logger:  logger,
		merged:  make(chan Event, mergedChannelCapacity),
	}
}

// Run loads the initial configuration, attaches the backend, performs
// startup smoothing, and runs the event loop until ctx is cancelled or
// a stop command/signal is processed. It returns nil on a clean
// shutdown.
func (c *Controller) Run(ctx context.Context) error {
	cfg, err := c.Store.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.loc = config.SchedulingLocation(cfg)

	active, err := c.Store.ActivePreset()
	if err != nil {
		return err
	}
	c.state.ActivePreset = active
	c.state.EffectiveConfig = cfg

	if err := c.Backend.Attach(); err != nil {
		return apperr.Wrap(apperr.Backend, "attach", err)
	}
	caps := c.Backend.Capabilities()
	c.caps = caps

	period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
	c.state.Schedule = period
	target := c.colorFor(period)

	if cfg.Smoothing && caps.SupportsSmoothing {
		c.smoothApply(ctx, backend.Identity, target, cfg.StartupDuration)
	} else {
		c.Backend.SetColor(target)
	}
	c.state.CurrentTarget = target
	c.state.LastApplied = target
	c.state.LastAppliedAt = c.Clock.NowMono()
	c.publishStateApplied(period, target, deadline)

	done := make(chan struct{})

	// The merge goroutines are the auxiliary threads spec §5 allows
	// alongside the main loop (Wayland dispatch is pumped by the
	// backend itself; these fan fs-watch/signal/IPC notifications into
	// the one merged channel the loop actually blocks on). Closing done
	// stops all three, the group context also stops the config watcher,
	// and errgroup waits for them before Run returns.
	group, groupCtx := errgroup.WithContext(ctx)

	watchCh := c.Store.Watch(groupCtx)
	group.Go(func() error {
		mergeConfig(watchCh, c.merged, done)
		return nil
	})

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)
	group.Go(func() error {
		mergeSignals(sigCh, c.merged, done)
		return nil
	})

	group.Go(func() error {
		mergeIPC(c.IPC.Commands(), c.merged, done)
		return nil
	})

	loopErr := c.loop(ctx)
	close(done)
	if err := group.Wait(); err != nil && loopErr == nil {
		return err
	}
	return loopErr
}

func (c *Controller) loop(ctx context.Context) error {
	for {
		period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
		tickDeadline := deadline
		if (period.Kind == schedule.Sunset || period.Kind == schedule.Sunrise) && c.state.TestOverride == nil {
			next := c.Clock.NowWall().Add(c.cfg.UpdateInterval)
			if next.Before(tickDeadline) {
				tickDeadline = next
			}
		}
		mono := c.monoDeadline(tickDeadline)

		reason, ev := c.waitFor(ctx, mono)
		if ev != nil {
			stop := c.handleEvent(ctx, ev)
			if stop {
				return c.shutdown(ctx)
			}
			continue
		}

		switch reason {
		case clock.Jumped:
			c.handleJump(ctx)
		case clock.Deadline:
			c.applyCurrent(ctx)
		case clock.Cancelled:
			if ctx.Err() != nil {
				return c.shutdown(ctx)
			}
		}
	}
}

// waitFor suspends in c.Clock.SleepUntil(deadline) while racing the
// merged event channel, so the only true blocking wait is the clock's
// own primitive (spec §5), with fs-watch/signal/IPC events preempting
// it through context cancellation.
func (c *Controller) waitFor(ctx context.Context, deadline time.Time) (clock.WakeReason, Event) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(chan Event, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case ev := <-c.merged:
			pending <- ev
			cancel()
		case <-waitCtx.Done():
		}
	}()

	reason := c.Clock.SleepUntil(waitCtx, deadline)
	// Stop the helper and wait for it, so an event it has already taken
	// off the merged channel lands in pending instead of being lost.
	cancel()
	<-finished

	select {
	case ev := <-pending:
		return reason, ev
	default:
		return reason, nil
	}
}

func (c *Controller) monoDeadline(wallDeadline time.Time) time.Time {
	now := c.Clock.NowWall()
	mono := c.Clock.NowMono()
	offset := mono.Sub(now)
	return wallDeadline.Add(offset)
}

func (c *Controller) evaluateSchedule(now time.Time) (schedule.Period, time.Time, schedule.Kind) {
	params := c.cfg.ScheduleParams(c.loc)
	return schedule.Evaluate(now, params)
}

// colorFor computes the ColorState for period under the current
// config, per spec §4.D: stable periods map directly to their
// endpoint, transition periods ease-blend between the two endpoints
// the window bridges.
func (c *Controller) colorFor(period schedule.Period) colormath.State {
	switch period.Kind {
	case schedule.Day:
		return c.cfg.Day
	case schedule.Night:
		return c.cfg.Night
	case schedule.Static:
		return c.cfg.Static
	case schedule.Sunset:
		w := colormath.Ease(period.Progress)
		return colormath.Blend(c.cfg.Day, c.cfg.Night, w)
	case schedule.Sunrise:
		w := colormath.Ease(period.Progress)
		return colormath.Blend(c.cfg.Night, c.cfg.Day, w)
	default:
		return c.cfg.Day
	}
}

// applyCurrent recomputes the schedule against now, applies the
// resulting color (or the pinned test override), and broadcasts
// state_applied plus period_changed when the Kind changed.
func (c *Controller) applyCurrent(ctx context.Context) {
	prevKind := c.state.Schedule.Kind
	period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
	c.state.Schedule = period

	target := c.colorFor(period)
	if c.state.TestOverride != nil {
		target = c.state.TestOverride.State
	}

	if !target.Equal(c.state.LastApplied) {
		if err := c.Backend.SetColor(target); err != nil {
			c.Logger.Warn("backend set_color failed", "kind", apperr.KindOf(err), "error", err)
		} else {
			c.state.LastApplied = target
			c.state.LastAppliedAt = c.Clock.NowMono()
		}
	}
	c.state.CurrentTarget = target

	if period.Kind != prevKind {
		c.IPC.Broadcast(ipc.PeriodChanged{
			EventType:  "period_changed",
			FromPeriod: prevKind.String(),
			ToPeriod:   period.Kind.String(),
		})
	}
	c.publishStateApplied(period, target, deadline)
}

func (c *Controller) publishStateApplied(period schedule.Period, target colormath.State, nextDeadline time.Time) {
	c.state.NextDeadline = nextDeadline
	stateStr := "stable"
	if period.Kind == schedule.Sunset || period.Kind == schedule.Sunrise {
		stateStr = "transitioning"
	}
	var activePreset *string
	if c.state.ActivePreset != "" {
		p := c.state.ActivePreset
		activePreset = &p
	}
	ev := ipc.StateApplied{
		EventType:    "state_applied",
		ActivePreset: activePreset,
		Period:       period.Kind.String(),
		State:        stateStr,
		Progress:     period.Progress,
		CurrentTemp:  c.state.LastApplied.TempK,
		CurrentGamma: c.state.LastApplied.GammaPct,
		TargetTemp:   target.TempK,
		TargetGamma:  target.GammaPct,
		NextPeriod:   nextDeadline.UTC().Format(time.RFC3339),
	}
	c.IPC.Broadcast(ev)
}

// smoothApply runs the smoothing engine from `from` to `to` over
// duration, applying every intermediate frame to the backend. It is
// the trigger-site helper for startup, shutdown, preset switch,
// reload, and test-release animations (spec §4.F).
func (c *Controller) smoothApply(ctx context.Context, from, to colormath.State, duration time.Duration) colormath.State {
	engine := &smoothing.Engine{
		Clock:          c.Clock,
		Apply:          c.Backend.SetColor,
		BaseIntervalMs: int(c.cfg.AdaptiveInterval / time.Millisecond),
	}
	c.state.InSmoothing = true
	defer func() { c.state.InSmoothing = false }()

	result, err := engine.Run(ctx, from, to, duration)
	if err != nil && c.Logger != nil {
		c.Logger.Warn("smoothing interrupted", "error", err)
	}
	c.state.LastApplied = result
	c.state.LastAppliedAt = c.Clock.NowMono()
	return result
}

func (c *Controller) handleJump(ctx context.Context) {
	c.Logger.Info("wall-clock jump detected, recomputing schedule")
	period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
	c.state.Schedule = period
	target := c.colorFor(period)
	if c.state.TestOverride != nil {
		target = c.state.TestOverride.State
	}
	// Snap: apply the corrected target immediately so the display
	// reflects the corrected time without delay. No smoothing animation
	// runs here; later ticks apply the schedule directly as usual.
	c.Backend.SetColor(target)
	c.state.LastApplied = target
	c.state.LastAppliedAt = c.Clock.NowMono()
	c.state.CurrentTarget = target
	c.publishStateApplied(period, target, deadline)
}

// handleEvent processes one merged Event and reports whether the
// controller should shut down.
func (c *Controller) handleEvent(ctx context.Context, ev Event) bool {
	switch e := ev.(type) {
	case ConfigChanged:
		c.handleConfigChanged(ctx, e)
	case SignalReceived:
		return c.handleSignal(ctx, e.Signal)
	case CommandReceived:
		c.handleCommand(ctx, e.Cmd)
	}
	return false
}

func (c *Controller) handleConfigChanged(ctx context.Context, e ConfigChanged) {
	if e.Err != nil {
		c.Logger.Warn("config reload failed, keeping previous configuration", "error", e.Err)
		return
	}
	if e.Config.Backend != c.cfg.Backend {
		c.Logger.Warn("backend change requires restart; ignoring for this reload",
			"current", c.cfg.Backend, "requested", e.Config.Backend)
		e.Config.Backend = c.cfg.Backend
	}

	prevTarget := c.state.CurrentTarget
	c.cfg = e.Config
	c.state.EffectiveConfig = e.Config
	c.loc = config.SchedulingLocation(e.Config)
	c.Logger.Debug("configuration reloaded", "config", marshal(e.Config))

	period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
	c.state.Schedule = period
	target := c.colorFor(period)
	if c.state.TestOverride != nil {
		target = c.state.TestOverride.State
	}

	if !target.Equal(prevTarget) && c.cfg.Smoothing && c.caps.SupportsSmoothing {
		target = c.smoothApply(ctx, prevTarget, target, c.cfg.StartupDuration)
	} else {
		c.Backend.SetColor(target)
		c.state.LastApplied = target
		c.state.LastAppliedAt = c.Clock.NowMono()
	}
	c.state.CurrentTarget = target
	c.publishStateApplied(period, target, deadline)
}

func (c *Controller) handleSignal(ctx context.Context, sig os.Signal) bool {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return true
	case syscall.SIGHUP:
		cfg, err := c.Store.Load()
		if err != nil {
			c.Logger.Warn("SIGHUP reload failed, keeping previous configuration", "error", err)
			return false
		}
		c.handleConfigChanged(ctx, ConfigChanged{Config: cfg})
	case syscall.SIGUSR2:
		c.handleJump(ctx)
	case syscall.SIGUSR1:
		// Reserved for internal IPC wakeup; nothing to do here.
	}
	return false
}

func (c *Controller) shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down")
	target := backend.Identity
	if c.cfg.Smoothing && c.caps.SupportsSmoothing {
		c.smoothApply(context.Background(), c.state.LastApplied, target, c.cfg.ShutdownDuration)
	} else {
		c.Backend.SetColor(target)
	}
	if err := c.Backend.Detach(); err != nil {
		return apperr.Wrap(apperr.Backend, "detach", err)
	}
	return nil
}

func (c *Controller) handleCommand(ctx context.Context, cmd ipc.Command) {
	switch cmd.Request.Cmd {
	case "status_once":
		cmd.Reply(c.statusResponse())
	case "status_follow":
		if cmd.Promote != nil {
			cmd.Promote()
		}
		cmd.Reply(c.statusResponse())
	case "preset":
		cmd.Reply(c.handlePresetCommand(ctx, cmd.Request))
	case "test":
		cmd.Reply(c.handleTestCommand(ctx, cmd.Request))
	case "get":
		cmd.Reply(c.handleGetCommand(cmd.Request))
	case "set":
		cmd.Reply(c.handleSetCommand(ctx, cmd.Request))
	case "reload_signal":
		cfg, err := c.Store.Load()
		if err != nil {
			cmd.Reply(ipc.Err("config", err.Error()))
			return
		}
		c.handleConfigChanged(ctx, ConfigChanged{Config: cfg})
		cmd.Reply(ipc.Ok(nil))
	case "stop":
		cmd.Reply(ipc.Ok(nil))
		// The reply goes out first; the process then sends itself
		// SIGTERM, and the actual shutdown happens when the loop
		// observes that as a SignalReceived.
		go func() { _ = syscall.Kill(os.Getpid(), syscall.SIGTERM) }()
	case "restart":
		if cmd.Request.Instant != nil && *cmd.Request.Instant {
			c.cfg.ShutdownDuration = 0
		}
		cmd.Reply(ipc.Ok(nil))
		go func() { _ = syscall.Kill(os.Getpid(), syscall.SIGTERM) }()
	default:
		cmd.Reply(ipc.Err("ipc", fmt.Sprintf("unknown command %q", cmd.Request.Cmd)))
	}
}

func (c *Controller) statusResponse() ipc.Response {
	fields := map[string]any{
		"active_preset": nullableString(c.state.ActivePreset),
		"period":        c.state.Schedule.Kind.String(),
		"progress":      c.state.Schedule.Progress,
		"current_temp":  c.state.LastApplied.TempK,
		"current_gamma": c.state.LastApplied.GammaPct,
		"target_temp":   c.state.CurrentTarget.TempK,
		"target_gamma":  c.state.CurrentTarget.GammaPct,
		"next_change":   c.state.NextDeadline.UTC().Format(time.RFC3339),
	}
	return ipc.Ok(fields)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// handleGetCommand reads raw sunsetr.toml keys from req.Target's
// layer (base config when Target is nil or empty) for `sunsetr get`.
func (c *Controller) handleGetCommand(req ipc.Request) ipc.Response {
	target := ""
	if req.Target != nil {
		target = *req.Target
	}
	raw, err := c.Store.MergedRaw(target)
	if err != nil {
		return ipc.Err(string(apperr.KindOf(err)), err.Error())
	}
	names := req.Fields
	if len(names) == 0 {
		names = []string{"all"}
	}
	fields := config.RawFields(raw, names)
	return ipc.Ok(fields)
}

// handleSetCommand writes field=value assignments to req.Target's
// sunsetr.toml (the base file when Target is nil or empty), then
// reloads and applies the new configuration immediately so the CLI's
// `set` round-trips synchronously (spec §6).
func (c *Controller) handleSetCommand(ctx context.Context, req ipc.Request) ipc.Response {
	target := ""
	if req.Target != nil {
		target = *req.Target
	}
	path, err := c.Store.TargetConfigPath(target)
	if err != nil {
		return ipc.Err(string(apperr.KindOf(err)), err.Error())
	}

	assignments := make(map[string]string, len(req.Set))
	for _, kv := range req.Set {
		field, value, ok := splitAssignment(kv)
		if !ok {
			return ipc.Err("config", fmt.Sprintf("expected field=value, got %q", kv))
		}
		assignments[field] = value
	}
	if err := config.WriteFields(path, assignments); err != nil {
		return ipc.Err(string(apperr.KindOf(err)), err.Error())
	}

	cfg, err := c.Store.Load()
	if err != nil {
		return ipc.Err("config", err.Error())
	}
	c.handleConfigChanged(ctx, ConfigChanged{Config: cfg})
	return ipc.Ok(nil)
}

func splitAssignment(kv string) (field, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

func (c *Controller) handlePresetCommand(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Name == nil {
		return ipc.Err("config", "preset command requires a name")
	}
	switch *req.Name {
	case "active":
		return ipc.Ok(map[string]any{"active_preset": nullableString(c.state.ActivePreset)})
	case "list":
		names, err := c.Store.ListPresets()
		if err != nil {
			return ipc.Err("config", err.Error())
		}
		anyNames := make([]any, len(names))
		for i, n := range names {
			anyNames[i] = n
		}
		return ipc.Ok(map[string]any{"presets": anyNames})
	default:
		return c.switchPreset(ctx, *req.Name)
	}
}

// switchPreset implements spec §8 property 8's toggle semantics:
// switching to the already-active preset returns to the base
// configuration rather than re-applying the same preset, since
// `preset X` immediately followed by `preset X` must yield exactly
// the base config.
func (c *Controller) switchPreset(ctx context.Context, name string) ipc.Response {
	target := name
	if name == c.state.ActivePreset {
		target = ""
	}

	newCfg, err := c.Store.LoadPreset(target)
	if err != nil {
		return ipc.Err("config", err.Error())
	}
	if err := c.Store.SetActivePreset(target); err != nil {
		return ipc.Err("config", err.Error())
	}

	var fromPreset, toPreset *string
	if c.state.ActivePreset != "" {
		f := c.state.ActivePreset
		fromPreset = &f
	}
	if target != "" {
		t := target
		toPreset = &t
	}

	prevTarget := c.state.CurrentTarget
	c.cfg = newCfg
	c.state.EffectiveConfig = newCfg
	c.state.ActivePreset = target
	c.loc = config.SchedulingLocation(newCfg)

	period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
	c.state.Schedule = period
	colorTarget := c.colorFor(period)
	if c.state.TestOverride != nil {
		colorTarget = c.state.TestOverride.State
	}

	if c.cfg.Smoothing && c.caps.SupportsSmoothing {
		colorTarget = c.smoothApply(ctx, prevTarget, colorTarget, c.cfg.StartupDuration)
	} else {
		c.Backend.SetColor(colorTarget)
		c.state.LastApplied = colorTarget
		c.state.LastAppliedAt = c.Clock.NowMono()
	}
	c.state.CurrentTarget = colorTarget

	c.IPC.Broadcast(ipc.PresetChanged{
		EventType:    "preset_changed",
		FromPreset:   fromPreset,
		ToPreset:     toPreset,
		TargetPeriod: period.Kind.String(),
		TargetTemp:   colorTarget.TempK,
		TargetGamma:  colorTarget.GammaPct,
	})
	c.publishStateApplied(period, colorTarget, deadline)

	return ipc.Ok(map[string]any{"active_preset": nullableString(c.state.ActivePreset)})
}

func (c *Controller) handleTestCommand(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Temp == nil || req.Gamma == nil {
		// A request with no temp/gamma releases the override (spec §4.H:
		// "test-pinned -> release -> back to normal").
		if c.state.TestOverride == nil {
			return ipc.Ok(map[string]any{"released": false})
		}
		c.state.TestOverride = nil
		period, deadline, _ := c.evaluateSchedule(c.Clock.NowWall())
		c.state.Schedule = period
		target := c.colorFor(period)
		prev := c.state.CurrentTarget
		if c.cfg.Smoothing && c.caps.SupportsSmoothing {
			target = c.smoothApply(ctx, prev, target, c.cfg.StartupDuration)
		} else {
			c.Backend.SetColor(target)
			c.state.LastApplied = target
			c.state.LastAppliedAt = c.Clock.NowMono()
		}
		c.state.CurrentTarget = target
		c.publishStateApplied(period, target, deadline)
		return ipc.Ok(map[string]any{"released": true})
	}

	override := colormath.State{TempK: *req.Temp, GammaPct: *req.Gamma}
	prev := c.state.CurrentTarget
	c.state.TestOverride = &TestOverride{State: override, RestoreOnRelease: true}

	applied := override
	if c.cfg.Smoothing && c.caps.SupportsSmoothing {
		applied = c.smoothApply(ctx, prev, override, c.cfg.StartupDuration)
	} else {
		c.Backend.SetColor(override)
		c.state.LastApplied = override
		c.state.LastAppliedAt = c.Clock.NowMono()
	}
	c.state.CurrentTarget = applied

	period := c.state.Schedule
	c.publishStateApplied(period, applied, c.Clock.NowWall().Add(c.cfg.UpdateInterval))
	return ipc.Ok(map[string]any{"temp": applied.TempK, "gamma": applied.GammaPct})
}

// marshal is a small helper kept for parity with the teacher's
// services, which frequently round-trip through encoding/json when
// logging structured payloads at debug level.
func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
