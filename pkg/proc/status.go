package proc

import (
	"errors"
	"fmt"

	sys "golang.org/x/sys/unix"
)

// ErrUnexpectedWaitStatus indicates the OS reported a wait status the
// state machine cannot classify. This is not recoverable at the command
// boundary: it means an assumption about the platform is broken and the
// whole session should be torn down.
var ErrUnexpectedWaitStatus = errors.New("unexpected wait status")

// ProcessExitedError indicates an operation was attempted on an inferior
// that is no longer alive.
type ProcessExitedError struct {
	Pid int
}

func (pe ProcessExitedError) Error() string {
	return fmt.Sprintf("process %d has exited", pe.Pid)
}

// StatusKind discriminates the variants of Status.
type StatusKind int

const (
	// Stopped indicates the inferior stopped under a signal and can be
	// inspected and resumed.
	Stopped StatusKind = iota
	// Exited indicates the inferior exited normally.
	Exited
	// Signaled indicates the inferior was terminated by a signal.
	Signaled
)

// Status is the decoded state of the inferior after a wait. Exactly the
// fields relevant to the Kind are meaningful: ExitStatus for Exited,
// Signal for Signaled, Signal and PC for Stopped.
type Status struct {
	Kind       StatusKind
	ExitStatus int
	Signal     sys.Signal
	PC         uint64
}

func (s Status) String() string {
	switch s.Kind {
	case Exited:
		return fmt.Sprintf("exited with status %d", s.ExitStatus)
	case Signaled:
		return fmt.Sprintf("terminated by signal %s", sys.SignalName(s.Signal))
	default:
		return fmt.Sprintf("stopped with %s at %#x", sys.SignalName(s.Signal), s.PC)
	}
}
