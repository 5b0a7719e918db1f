package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the stepping engine.
var (
	// ErrConfiguration indicates an invalid decomposition, integrator order,
	// pipeline or run configuration. Always raised at setup and never retried.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrCommunication indicates a halo exchange or collective could not
	// complete. Every rank of the group must observe it.
	ErrCommunication = errors.New("dynamo: communication failure")

	// ErrModuleExecution indicates a pipeline module failed during a step.
	ErrModuleExecution = errors.New("dynamo: module execution failed")

	// ErrDiverging indicates the balancing iteration stopped because the
	// error grew. It is reported as a stop reason, not returned.
	ErrDiverging = errors.New("dynamo: iteration diverging")

	// ErrInvalidState indicates a state holding NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the run was interrupted.
	ErrContextCanceled = errors.New("dynamo: run canceled by context")
)

// ConfigError names the component that rejected its configuration.
type ConfigError struct {
	Component string
	Reason    string
}

// Configf builds a ConfigError with a formatted reason.
func Configf(component, format string, args ...any) error {
	return &ConfigError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Component, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// CommError wraps a failed point-to-point or collective operation.
type CommError struct {
	Rank int
	Peer int // -1 for collectives
	Op   string
	Err  error
}

func (e *CommError) Error() string {
	if e.Peer < 0 {
		return fmt.Sprintf("%s: rank %d: %s: %v", ErrCommunication, e.Rank, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: rank %d <-> %d: %s: %v", ErrCommunication, e.Rank, e.Peer, e.Op, e.Err)
}

func (e *CommError) Unwrap() []error {
	return []error{ErrCommunication, e.Err}
}

// ModuleError wraps an error raised inside a pipeline module.
type ModuleError struct {
	Module string
	Step   int
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %s (step %d): %v", ErrModuleExecution, e.Module, e.Step, e.Err)
}

func (e *ModuleError) Unwrap() []error {
	return []error{ErrModuleExecution, e.Err}
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
