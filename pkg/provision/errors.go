package provision

import (
	"errors"
	"fmt"

	dm "github.com/andrej220/formation/pkg/shared-models"
)

var (
	// ErrHostsFailed is the aggregate failure of a phase that drained completely
	// but had at least one host return a non-zero exit status.
	ErrHostsFailed = errors.New("one or more hosts failed")
	// ErrPhaseInFlight means Exec was called before the previous cycle was joined.
	ErrPhaseInFlight = errors.New("previous phase has not been joined")
)

// CommandError is a non-zero exit recorded for one host in one phase.
type CommandError struct {
	Phase      dm.PhaseName
	Node       string
	Host       string
	ExitStatus int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: host %s (%s) returned exit status %d", e.Phase, e.Host, e.Node, e.ExitStatus)
}

// HostError is a worker fault: the task for a host failed without producing
// an exit status. It stops the phase immediately.
type HostError struct {
	Phase dm.PhaseName
	Node  string
	Host  string
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: host %s (%s): %v", e.Phase, e.Host, e.Node, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}
