package controller

import (
	"os"

	"github.com/sunsetr/sunsetr/internal/config"
	"github.com/sunsetr/sunsetr/internal/ipc"
)

// Event is the single sum-typed interface every fs-watch, signal, and
// IPC notification is wrapped in before reaching the controller's
// merged channel, per spec §9: "collapse all of these into one typed
// event enum delivered through a single channel; the controller's
// correctness depends on linearization, not on the transport-specific
// source."
type Event interface{ isControllerEvent() }

// ConfigChanged is delivered by internal/config's hot-reload watcher.
type ConfigChanged struct {
	Config config.EffectiveConfig
	Err    error
}

func (ConfigChanged) isControllerEvent() {}

// SignalReceived wraps an incoming process signal.
type SignalReceived struct {
	Signal os.Signal
}

func (SignalReceived) isControllerEvent() {}

// CommandReceived wraps a decoded IPC request awaiting a reply.
type CommandReceived struct {
	Cmd ipc.Command
}

func (CommandReceived) isControllerEvent() {}

// mergeConfig forwards every watcher Event onto merged as a
// ConfigChanged, until ctx is done.
func mergeConfig(ch <-chan config.Event, merged chan<- Event, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			select {
			case merged <- ConfigChanged{Config: ev.Config, Err: ev.Err}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

// mergeSignals forwards every received signal onto merged.
func mergeSignals(ch <-chan os.Signal, merged chan<- Event, done <-chan struct{}) {
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return
			}
			select {
			case merged <- SignalReceived{Signal: sig}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

// mergeIPC forwards every accepted IPC command onto merged.
func mergeIPC(ch <-chan ipc.Command, merged chan<- Event, done <-chan struct{}) {
	for {
		select {
		case cmd, ok := <-ch:
			if !ok {
				return
			}
			select {
			case merged <- CommandReceived{Cmd: cmd}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}
