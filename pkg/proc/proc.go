// Package proc provides functions for launching and manipulating a
// traced process during the debug session: breakpoint patching,
// continue/step execution control, memory access and stack unwinding.
//
// Everything here is Linux/amd64 only and assumes a single-threaded
// view of the target: the inferior is observed exclusively through
// blocking waits, so either the debugger is running and the target is
// stopped, or the target is running and the debugger is blocked.
package proc

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	sys "golang.org/x/sys/unix"

	"github.com/chinggg/minidbg/pkg/logflags"
)

// Inferior represents the process under trace control. It owns the OS
// process handle exclusively; after the process exits the handle is
// dead and the owner must drop it.
type Inferior struct {
	pid     int
	process *os.Process
	exited  bool

	ptraceChan     chan func()
	ptraceDoneChan chan struct{}
	log            *logrus.Entry
}

// Launch starts the target executable under trace control. Tracing is
// enabled across exec, so the very first instruction of the target
// raises a trap and the debugger gains control before any user code
// runs. If the process cannot be spawned, or the first wait does not
// report the expected trap, the attempt is discarded entirely and no
// Inferior is created.
func Launch(path string, args []string) (*Inferior, error) {
	inf := &Inferior{
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan struct{}),
		log:            logflags.ProcLogger(),
	}
	go inf.handlePtraceFuncs()

	var err error
	inf.execPtraceFunc(func() {
		cmd := exec.Command(path, args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if err = cmd.Start(); err != nil {
			return
		}
		inf.pid = cmd.Process.Pid
		inf.process = cmd.Process
	})
	if err != nil {
		inf.release()
		return nil, fmt.Errorf("could not launch %s: %w", path, err)
	}

	status, err := inf.wait()
	if err != nil {
		inf.discard()
		return nil, fmt.Errorf("waiting for target execve failed: %w", err)
	}
	if status.Kind != Stopped || status.Signal != sys.SIGTRAP {
		inf.discard()
		return nil, fmt.Errorf("unexpected initial process state: %s", status)
	}

	inf.log.Debugf("launched process %d: %s", inf.pid, path)
	return inf, nil
}

// Pid returns the process identifier of the inferior.
func (inf *Inferior) Pid() int {
	return inf.pid
}

// Exited returns whether the inferior is known to be dead.
func (inf *Inferior) Exited() bool {
	return inf.exited
}

// wait blocks until the inferior changes state and decodes the raw wait
// status. Exited and Signaled are terminal: the process is reaped and
// the handle marked dead. Any status outside the three expected shapes
// is a broken platform assumption, reported as ErrUnexpectedWaitStatus.
func (inf *Inferior) wait() (Status, error) {
	var ws sys.WaitStatus
	_, err := sys.Wait4(inf.pid, &ws, 0, nil)
	if err != nil {
		return Status{}, fmt.Errorf("wait failed: %w", err)
	}

	switch {
	case ws.Exited():
		inf.markExited()
		return Status{Kind: Exited, ExitStatus: ws.ExitStatus()}, nil
	case ws.Signaled():
		inf.markExited()
		return Status{Kind: Signaled, Signal: ws.Signal()}, nil
	case ws.Stopped():
		regs, err := inf.Registers()
		if err != nil {
			return Status{}, err
		}
		return Status{Kind: Stopped, Signal: ws.StopSignal(), PC: regs.PC()}, nil
	default:
		return Status{}, fmt.Errorf("%w: %#x", ErrUnexpectedWaitStatus, uint32(ws))
	}
}

// Continue resumes the stopped inferior until the next stop, exit or
// termination by signal, transparently stepping over a breakpoint at
// the current position.
//
// A software breakpoint traps one instruction past its address, so if
// PC-1 is an installed breakpoint the original byte is restored, the
// program counter rewound onto it, and exactly one instruction executed
// before the trap byte is patched back in. Skipping the restore would
// resume mid-instruction into garbage bytes; skipping the re-patch
// would make the breakpoint fire only once per session.
func (inf *Inferior) Continue(table *BreakpointTable) (Status, error) {
	if inf.exited {
		return Status{}, ProcessExitedError{Pid: inf.pid}
	}

	regs, err := inf.Registers()
	if err != nil {
		return Status{}, err
	}

	if bp, ok := table.Lookup(regs.PC() - 1); ok && bp.Installed() {
		if _, err := inf.WriteByte(bp.Addr, bp.OriginalData[0]); err != nil {
			return Status{}, err
		}
		if err := inf.SetPC(bp.Addr); err != nil {
			return Status{}, err
		}
		status, err := inf.Step()
		if err != nil {
			return Status{}, err
		}
		if status.Kind != Stopped {
			// The original instruction killed the process; there is no
			// memory left to re-arm.
			return status, nil
		}
		if _, err := inf.WriteByte(bp.Addr, breakpointInstruction); err != nil {
			return Status{}, err
		}
		inf.log.Debugf("stepped over breakpoint %d at %#x", bp.ID, bp.Addr)
	}

	inf.execPtraceFunc(func() {
		err = sys.PtraceCont(inf.pid, 0)
	})
	if err != nil {
		return Status{}, fmt.Errorf("could not continue: %w", err)
	}
	return inf.wait()
}

// Step executes exactly one machine instruction and reports the
// resulting state.
func (inf *Inferior) Step() (Status, error) {
	if inf.exited {
		return Status{}, ProcessExitedError{Pid: inf.pid}
	}
	var err error
	inf.execPtraceFunc(func() {
		err = sys.PtraceSingleStep(inf.pid)
	})
	if err != nil {
		return Status{}, fmt.Errorf("step failed: %w", err)
	}
	return inf.wait()
}

// Kill forcibly terminates the inferior and waits for its final status,
// so that no zombie is left behind. Calling Kill on an inferior that
// has already exited is a caller error.
func (inf *Inferior) Kill() (Status, error) {
	if inf.exited {
		return Status{}, ProcessExitedError{Pid: inf.pid}
	}
	if err := inf.process.Kill(); err != nil {
		return Status{}, fmt.Errorf("could not kill process %d: %w", inf.pid, err)
	}
	return inf.wait()
}

func (inf *Inferior) markExited() {
	if inf.exited {
		return
	}
	inf.exited = true
	inf.release()
	inf.log.Debugf("process %d exited", inf.pid)
}

// discard kills and reaps a half-launched process whose initial stop
// was not the expected trap.
func (inf *Inferior) discard() {
	if inf.exited {
		return
	}
	if err := inf.process.Kill(); err == nil {
		var ws sys.WaitStatus
		sys.Wait4(inf.pid, &ws, 0, nil)
	}
	inf.exited = true
	inf.release()
}

// release frees the goroutine locked to the ptrace thread.
func (inf *Inferior) release() {
	close(inf.ptraceChan)
}
