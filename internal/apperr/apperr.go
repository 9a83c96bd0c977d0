// Package apperr defines sunsetr's error taxonomy and its mapping onto
// process exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy and exit-code purposes.
type Kind string

const (
	Config   Kind = "config"
	Backend  Kind = "backend"
	Ipc      Kind = "ipc"
	Lock     Kind = "lock"
	Sim      Kind = "sim"
	Internal Kind = "internal"
)

// Error wraps an underlying error with a Kind and the operation that
// produced it, so callers up the stack can decide fatal-vs-warn without
// string-matching error text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error, or returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// ExitCode maps an error to the process exit code defined in spec §6.
//
//	0 success; 1 generic failure; 2 configuration/validation error;
//	3 IPC connection refused (no running instance); 4 lock contention
//	by a live instance rejecting takeover.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case Config:
		return 2
	case Ipc:
		return 3
	case Lock:
		return 4
	default:
		return 1
	}
}
