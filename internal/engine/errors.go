package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfigError is returned before a run starts when the configuration is
// invalid. Problems lists every failed constraint; nothing is clamped.
type ConfigError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// FaultCode categorizes fatal run errors.
type FaultCode string

const (
	// ErrCodeAgentFault indicates an agent hit a broken ring invariant,
	// such as taking a utensil twice. The ring fault is wrapped.
	ErrCodeAgentFault FaultCode = "AGENT_FAULT"

	// ErrCodeAgentPanic indicates an agent goroutine panicked.
	ErrCodeAgentPanic FaultCode = "AGENT_PANIC"

	// ErrCodeShutdownTimeout indicates agents did not all stop within the
	// grace period after the stop signal.
	ErrCodeShutdownTimeout FaultCode = "SHUTDOWN_TIMEOUT"
)

// FaultError is a fatal run error. Faults are never retried and never
// masked: a run with a faulted agent fails as a whole.
type FaultError struct {
	// Code identifies the error category.
	Code FaultCode

	// Agent is the faulted agent, or -1 when no single agent is to blame.
	Agent int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Agent >= 0 {
		fmt.Fprintf(&b, " (agent=%d)", e.Agent)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *FaultError) Unwrap() error { return e.Err }

// IsFault returns true if err is or wraps a FaultError.
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

// IsShutdownTimeout returns true if err is a shutdown timeout fault.
func IsShutdownTimeout(err error) bool {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeShutdownTimeout
	}
	return false
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newAgentFault(agent int, err error) *FaultError {
	return &FaultError{
		Code:    ErrCodeAgentFault,
		Agent:   agent,
		Message: "agent broke a ring invariant",
		Err:     err,
	}
}

func newPanicFault(agent int, x any) *FaultError {
	fe := &FaultError{
		Code:    ErrCodeAgentPanic,
		Agent:   agent,
		Message: fmt.Sprintf("panic in agent: %v", x),
	}
	if err, ok := x.(error); ok {
		fe.Message = "panic in agent"
		fe.Err = err
	}
	return fe
}

func newShutdownTimeout(grace time.Duration, running []int) *FaultError {
	return &FaultError{
		Code:    ErrCodeShutdownTimeout,
		Agent:   -1,
		Message: fmt.Sprintf("agents %v still running %s after stop", running, grace),
	}
}
