// Package debugger mediates user commands against the process under
// debug: it owns the target path, the breakpoint table and the current
// inferior, and is the only component with externally visible state
// transitions. Externally the session is either in the NoProcess state
// (no inferior) or the ProcessStopped state; the running state is
// transient because every resume blocks until the next stop.
package debugger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chinggg/minidbg/pkg/logflags"
	"github.com/chinggg/minidbg/pkg/proc"
	"github.com/chinggg/minidbg/pkg/symbols"
)

// DefaultMaxStackDepth bounds backtraces when the config does not
// override it.
const DefaultMaxStackDepth = 64

// ErrNoProcess is returned by commands that require a live inferior
// when there is none. Not fatal: the session keeps running.
var ErrNoProcess = errors.New("no process to debug")

// Config provides the configuration to start a Debugger.
type Config struct {
	// TargetPath is the path of the executable to debug.
	TargetPath string
	// MaxStackDepth bounds the frame-pointer walk of backtraces.
	MaxStackDepth int
}

// Debugger service.
//
// Debugger provides a higher level of abstraction over proc,
// implementing the session command semantics on top of the raw process
// control primitives.
type Debugger struct {
	config      *Config
	symbols     *symbols.Table
	breakpoints *proc.BreakpointTable
	inferior    *proc.Inferior
	log         *logrus.Entry
}

// New creates a new Debugger for the given target. The target's symbol
// table is loaded eagerly: a target without one cannot be debugged at
// all, so that failure aborts session creation.
func New(config *Config) (*Debugger, error) {
	symtab, err := symbols.Load(config.TargetPath)
	if err != nil {
		return nil, err
	}
	if config.MaxStackDepth <= 0 {
		config.MaxStackDepth = DefaultMaxStackDepth
	}
	return &Debugger{
		config:      config,
		symbols:     symtab,
		breakpoints: proc.NewBreakpointTable(),
		log:         logflags.DebuggerLogger(),
	}, nil
}

// TargetPath returns the path of the executable being debugged.
func (d *Debugger) TargetPath() string {
	return d.config.TargetPath
}

// Symbols returns the symbol table of the target.
func (d *Debugger) Symbols() *symbols.Table {
	return d.symbols
}

// HasInferior returns whether a process currently exists.
func (d *Debugger) HasInferior() bool {
	return d.inferior != nil
}

// Pid returns the process identifier of the current inferior, zero if
// there is none.
func (d *Debugger) Pid() int {
	if d.inferior == nil {
		return 0
	}
	return d.inferior.Pid()
}

// Run launches the target with the given arguments. Any existing
// inferior is killed and reaped first, so that at most one process ever
// exists. Recorded breakpoints are installed before the initial resume,
// which guarantees that a breakpoint on the very first reachable
// address is armed in time.
func (d *Debugger) Run(args []string) (proc.Status, error) {
	if d.inferior != nil {
		d.log.Debugf("killing existing process %d", d.inferior.Pid())
		if _, err := d.inferior.Kill(); err != nil {
			return proc.Status{}, fmt.Errorf("could not kill existing process: %w", err)
		}
		d.inferior = nil
	}

	inf, err := proc.Launch(d.config.TargetPath, args)
	if err != nil {
		return proc.Status{}, err
	}

	d.breakpoints.Reset()
	if err := d.breakpoints.InstallAll(inf); err != nil {
		inf.Kill()
		return proc.Status{}, err
	}

	d.inferior = inf
	return d.resume()
}

// Continue resumes the stopped inferior until the next stop, exit or
// signal.
func (d *Debugger) Continue() (proc.Status, error) {
	if d.inferior == nil {
		return proc.Status{}, fmt.Errorf("%w: nothing to continue", ErrNoProcess)
	}
	return d.resume()
}

func (d *Debugger) resume() (proc.Status, error) {
	status, err := d.inferior.Continue(d.breakpoints)
	if err != nil {
		return proc.Status{}, err
	}
	if status.Kind != proc.Stopped {
		d.inferior = nil
	}
	return status, nil
}

// FindLocation resolves a breakpoint location spec to an address. Three
// forms are accepted, tried in order: "*" followed by a hex address, a
// decimal line number, and a function name.
func (d *Debugger) FindLocation(spec string) (uint64, error) {
	if rest := strings.TrimPrefix(spec, "*"); rest != spec {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(rest), "0x"), 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address %q", rest)
		}
		return addr, nil
	}
	if line, err := strconv.Atoi(spec); err == nil {
		return d.symbols.LineToPC(line)
	}
	return d.symbols.FuncToPC(spec)
}

// CreateBreakpoint resolves spec and records a breakpoint for it. If a
// process is currently stopped the trap byte is patched in immediately;
// otherwise the breakpoint stays pending until the next Run. An
// unresolvable spec leaves the table unchanged.
func (d *Debugger) CreateBreakpoint(spec string) (*proc.Breakpoint, error) {
	addr, err := d.FindLocation(spec)
	if err != nil {
		return nil, err
	}

	bp, err := d.breakpoints.Add(addr)
	if err != nil {
		return nil, err
	}

	if fn, err := d.symbols.PCToFunc(addr); err == nil {
		bp.FunctionName = fn
	}
	if line, err := d.symbols.PCToLine(addr); err == nil {
		bp.Line = line
	}

	if d.inferior != nil {
		if err := d.breakpoints.Install(d.inferior, addr); err != nil {
			// The address is still recorded as pending for a future run.
			return bp, err
		}
	}
	return bp, nil
}

// ClearBreakpoint removes the breakpoint matching spec, restoring the
// displaced byte if the breakpoint is installed in a live process.
func (d *Debugger) ClearBreakpoint(spec string) (*proc.Breakpoint, error) {
	addr, err := d.FindLocation(spec)
	if err != nil {
		return nil, err
	}
	return d.breakpoints.Clear(d.inferior, addr)
}

// Breakpoints returns the recorded breakpoints in creation order.
func (d *Debugger) Breakpoints() []*proc.Breakpoint {
	return d.breakpoints.All()
}

// Stacktrace returns the call stack of the stopped inferior, innermost
// frame first. On a symbol lookup failure the partial stack gathered so
// far is returned along with the error.
func (d *Debugger) Stacktrace() ([]proc.Stackframe, error) {
	if d.inferior == nil {
		return nil, fmt.Errorf("%w: nothing to backtrace", ErrNoProcess)
	}
	return d.inferior.Stacktrace(d.symbols, d.config.MaxStackDepth)
}

// Disassemble decodes count instructions at the stopped inferior's
// current program counter.
func (d *Debugger) Disassemble(count int) ([]proc.AsmInstruction, error) {
	if d.inferior == nil {
		return nil, fmt.Errorf("%w: nothing to disassemble", ErrNoProcess)
	}
	regs, err := d.inferior.Registers()
	if err != nil {
		return nil, err
	}
	return d.inferior.Disassemble(d.breakpoints, regs.PC(), count)
}

// StopLocation resolves the stopped inferior's program counter to a
// function name and line for reporting. Lookup failure is non-fatal and
// reported through the error.
func (d *Debugger) StopLocation() (fn string, line int, err error) {
	if d.inferior == nil {
		return "", 0, ErrNoProcess
	}
	regs, err := d.inferior.Registers()
	if err != nil {
		return "", 0, err
	}
	fn, err = d.symbols.PCToFunc(regs.PC())
	if err != nil {
		return "", 0, err
	}
	line, err = d.symbols.PCToLine(regs.PC())
	if err != nil {
		return fn, 0, err
	}
	return fn, line, nil
}

// Detach kills any live inferior. It is called when the session ends;
// afterwards the debugger is back in the NoProcess state.
func (d *Debugger) Detach() error {
	if d.inferior == nil {
		return nil
	}
	d.log.Debugf("killing process %d", d.inferior.Pid())
	_, err := d.inferior.Kill()
	d.inferior = nil
	return err
}
