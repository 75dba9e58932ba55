package ring

import (
	"errors"
	"fmt"
)

// FaultCode categorizes internal-consistency faults.
type FaultCode string

const (
	// ErrCodeReacquire indicates an agent tried to take a utensil it
	// already holds.
	ErrCodeReacquire FaultCode = "REACQUIRE"

	// ErrCodeForeignRelease indicates an agent released a utensil it does
	// not hold.
	ErrCodeForeignRelease FaultCode = "FOREIGN_RELEASE"

	// ErrCodeMutualExclusion indicates a utensil was granted while another
	// agent was still recorded as its holder.
	ErrCodeMutualExclusion FaultCode = "MUTUAL_EXCLUSION"
)

// FaultError reports a broken invariant of the ring. It is never
// transient: the run that produced it must be aborted.
type FaultError struct {
	Code     FaultCode
	Agent    int
	Resource int
	// Holder is the recorded holder at the time of the fault, or -1.
	Holder int
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	switch e.Code {
	case ErrCodeReacquire:
		return fmt.Sprintf("%s: agent %d already holds utensil %d", e.Code, e.Agent, e.Resource)
	case ErrCodeForeignRelease:
		return fmt.Sprintf("%s: agent %d released utensil %d held by %d", e.Code, e.Agent, e.Resource, e.Holder)
	case ErrCodeMutualExclusion:
		return fmt.Sprintf("%s: agent %d granted utensil %d still held by %d", e.Code, e.Agent, e.Resource, e.Holder)
	default:
		return fmt.Sprintf("%s: agent %d utensil %d", e.Code, e.Agent, e.Resource)
	}
}

// IsFault reports whether err is or wraps a FaultError with the given code.
// An empty code matches any fault.
func IsFault(err error, code FaultCode) bool {
	var fe *FaultError
	if errors.As(err, &fe) {
		return code == "" || fe.Code == code
	}
	return false
}
