package proc

// SymbolResolver is the lookup service the unwinder needs to name the
// frames it discovers. Lookup failures are reportable, not fatal.
type SymbolResolver interface {
	PCToFunc(pc uint64) (string, error)
	PCToLine(pc uint64) (int, error)
	EntryFunction() string
}

// Stackframe represents one resolved frame of the inferior's call stack.
type Stackframe struct {
	PC           uint64
	FunctionName string
	Line         int
}

// Stacktrace walks the saved frame-pointer chain of the stopped inferior
// and returns the call stack, innermost frame first. The walk terminates
// at the entry function; depth bounds it defensively in case the frame
// chain is corrupted and the entry function never appears.
//
// Each frame's return address lives one word above the frame base, and
// the caller's frame base is saved at the frame base itself. This is
// only correct for code compiled with frame pointers preserved.
//
// On a resolution failure the frames gathered so far are returned along
// with the error, so the caller can still report a partial stack.
func (inf *Inferior) Stacktrace(resolver SymbolResolver, depth int) ([]Stackframe, error) {
	regs, err := inf.Registers()
	if err != nil {
		return nil, err
	}

	var (
		frames    []Stackframe
		pc        = regs.PC()
		frameBase = regs.FrameBase()
	)

	for len(frames) < depth {
		fn, err := resolver.PCToFunc(pc)
		if err != nil {
			return frames, err
		}
		line, err := resolver.PCToLine(pc)
		if err != nil {
			return frames, err
		}
		frames = append(frames, Stackframe{PC: pc, FunctionName: fn, Line: line})

		if fn == resolver.EntryFunction() {
			break
		}

		retaddr, err := inf.ReadWord(frameBase + wordSize)
		if err != nil {
			return frames, err
		}
		callerBase, err := inf.ReadWord(frameBase)
		if err != nil {
			return frames, err
		}
		pc, frameBase = retaddr, callerBase
	}

	return frames, nil
}
