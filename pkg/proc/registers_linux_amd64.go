package proc

import sys "golang.org/x/sys/unix"

// Regs holds a snapshot of the inferior's register file. Only valid
// while the inferior is stopped.
type Regs struct {
	regs *sys.PtraceRegs
}

// PC returns the current program counter.
func (r *Regs) PC() uint64 {
	return r.regs.PC()
}

// FrameBase returns the frame base pointer register, which by convention
// holds the base address of the current call frame.
func (r *Regs) FrameBase() uint64 {
	return r.regs.Rbp
}

// SetPC rewrites the program counter in the inferior's register file.
func (inf *Inferior) SetPC(pc uint64) error {
	var err error
	if inf.exited {
		return ProcessExitedError{Pid: inf.pid}
	}
	inf.execPtraceFunc(func() {
		var regs sys.PtraceRegs
		err = sys.PtraceGetRegs(inf.pid, &regs)
		if err != nil {
			return
		}
		regs.SetPC(pc)
		err = sys.PtraceSetRegs(inf.pid, &regs)
	})
	return err
}

// Registers returns the current register snapshot for the inferior.
func (inf *Inferior) Registers() (*Regs, error) {
	var (
		regs sys.PtraceRegs
		err  error
	)
	if inf.exited {
		return nil, ProcessExitedError{Pid: inf.pid}
	}
	inf.execPtraceFunc(func() {
		err = sys.PtraceGetRegs(inf.pid, &regs)
	})
	if err != nil {
		return nil, err
	}
	return &Regs{regs: &regs}, nil
}
