package proc

import (
	"golang.org/x/arch/x86/x86asm"
)

const maxInstructionLength = 15

// AssemblyFlavour selects the output syntax of disassembled instructions.
type AssemblyFlavour int

const (
	IntelFlavour AssemblyFlavour = iota
	GNUFlavour
	GoFlavour
)

// AsmInstruction is a single decoded instruction of the inferior.
type AsmInstruction struct {
	Loc        uint64
	Bytes      []byte
	Breakpoint bool
	AtPC       bool
	Inst       *x86asm.Inst
}

// Text returns the disassembled instruction in the given syntax flavour.
func (inst *AsmInstruction) Text(flavour AssemblyFlavour) string {
	if inst.Inst == nil {
		return "?"
	}
	switch flavour {
	case GNUFlavour:
		return x86asm.GNUSyntax(*inst.Inst, inst.Loc, nil)
	case GoFlavour:
		return x86asm.GoSyntax(*inst.Inst, inst.Loc, nil)
	default:
		return x86asm.IntelSyntax(*inst.Inst, inst.Loc, nil)
	}
}

// Disassemble decodes up to count instructions of the stopped inferior
// starting at startPC. Addresses holding an installed breakpoint are
// shown with their original byte, not the trap opcode that currently
// occupies them.
func (inf *Inferior) Disassemble(table *BreakpointTable, startPC uint64, count int) ([]AsmInstruction, error) {
	if inf.exited {
		return nil, ProcessExitedError{Pid: inf.pid}
	}

	mem := make([]byte, count*maxInstructionLength)
	if _, err := inf.ReadMemory(mem, startPC); err != nil {
		return nil, err
	}

	// Patch displaced original bytes back into the local copy so the
	// listing shows real instructions.
	for _, bp := range table.All() {
		if !bp.Installed() {
			continue
		}
		if bp.Addr >= startPC && bp.Addr < startPC+uint64(len(mem)) {
			mem[bp.Addr-startPC] = bp.OriginalData[0]
		}
	}

	instructions := make([]AsmInstruction, 0, count)
	pc := startPC
	for len(instructions) < count && len(mem) > 0 {
		_, atbp := table.Lookup(pc)
		inst, err := x86asm.Decode(mem, 64)
		if err != nil {
			// Undecodable byte, skip it and keep going.
			instructions = append(instructions, AsmInstruction{Loc: pc, Bytes: mem[:1], Breakpoint: atbp})
			pc++
			mem = mem[1:]
			continue
		}
		instructions = append(instructions, AsmInstruction{
			Loc:        pc,
			Bytes:      mem[:inst.Len],
			Breakpoint: atbp,
			AtPC:       pc == startPC,
			Inst:       &inst,
		})
		pc += uint64(inst.Len)
		mem = mem[inst.Len:]
	}
	return instructions, nil
}
