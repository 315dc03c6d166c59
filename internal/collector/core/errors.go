package core

import (
	"errors"
	"fmt"
)

// ErrNoMessages is returned when trailing-message inspection finds no
// conversation history at all.
var ErrNoMessages = errors.New("no messages found in state")

// ConfigError reports a missing or malformed topic source or required
// setting. It is fatal: the run aborts before any topic is processed.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ModelInvocationError reports a model call failure during the assistant or
// extraction steps. It is fatal to the current worker run only; the
// controller logs it and moves to the next topic.
type ModelInvocationError struct {
	Stage string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed during %s: %v", e.Stage, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// ToolExecutionError reports a failed tool call. It is surfaced to the model
// as an observation so it can self-correct.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// StateError reports a state shape the reactive loop cannot work with, such
// as a container with no message history.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state: %s", e.Reason)
}

// DeduplicationError wraps an engine-level failure inside the similarity
// engine. It never escapes Deduplicate; the engine logs it and returns the
// input unchanged.
type DeduplicationError struct {
	Stage string
	Err   error
}

func (e *DeduplicationError) Error() string {
	return fmt.Sprintf("deduplication %s: %v", e.Stage, e.Err)
}

func (e *DeduplicationError) Unwrap() error { return e.Err }
