package model

import (
	"errors"
	"fmt"
)

// Kind classifies why a recommendation cycle failed.
type Kind int

const (
	KindUnknown Kind = iota
	// SpawnFailure: the worker could not be launched.
	SpawnFailure
	// PipeFailure: writing to or reading from the worker's pipes failed.
	PipeFailure
	// ProtocolFailure: the output was not the expected JSON document.
	ProtocolFailure
	// TimeoutFailure: the worker did not finish within the configured timeout and was killed.
	TimeoutFailure
)

func (k Kind) String() string {
	switch k {
	case SpawnFailure:
		return "spawn_failure"
	case PipeFailure:
		return "pipe_failure"
	case ProtocolFailure:
		return "protocol_failure"
	case TimeoutFailure:
		return "timeout_failure"
	default:
		return "unknown"
	}
}

// Error is returned by Bridge for every failed cycle.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// Stderr holds the tail of the worker's error stream, if any.
	Stderr string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("model %s: %s", e.Kind, e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// IsModelInferenceError reports whether err came out of a failed worker cycle.
func IsModelInferenceError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
