package proc

import "fmt"

// breakpointInstruction is the INT 3 software breakpoint trap opcode.
const breakpointInstruction byte = 0xCC

// Breakpoint represents a single breakpoint. Stores information on the
// breakpoint including the byte of data that originally was stored at
// that address.
type Breakpoint struct {
	ID   int
	Addr uint64

	// FunctionName and Line describe the breakpoint location when the
	// symbol table could resolve it. Display only.
	FunctionName string
	Line         int

	// OriginalData is the byte displaced by the trap opcode. It is nil
	// while the breakpoint is pending, i.e. recorded but not patched
	// into any process.
	OriginalData []byte
}

func (bp *Breakpoint) String() string {
	if bp.FunctionName != "" {
		return fmt.Sprintf("Breakpoint %d at %#x for %s (line %d)", bp.ID, bp.Addr, bp.FunctionName, bp.Line)
	}
	return fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
}

// Installed returns whether the breakpoint is currently patched into the
// inferior's memory.
func (bp *Breakpoint) Installed() bool {
	return bp.OriginalData != nil
}

// BreakpointExistsError is returned when trying to set a breakpoint at
// an address that already has a breakpoint set for it.
type BreakpointExistsError struct {
	Addr uint64
}

func (bpe BreakpointExistsError) Error() string {
	return fmt.Sprintf("breakpoint exists at %#x", bpe.Addr)
}

// NoBreakpointError is returned when trying to clear a breakpoint that
// does not exist.
type NoBreakpointError struct {
	Addr uint64
}

func (nbp NoBreakpointError) Error() string {
	return fmt.Sprintf("no breakpoint at %#x", nbp.Addr)
}

// BreakpointTable is the collection of breakpoints for one debugging
// session. Addresses outlive any single inferior; the displaced original
// bytes do not, and are dropped every time a new inferior is launched.
// The table is owned by the session and passed explicitly into the
// operations that need it.
type BreakpointTable struct {
	addrs     []uint64 // insertion order, for display and InstallAll
	bps       map[uint64]*Breakpoint
	idCounter int
}

// NewBreakpointTable returns an empty breakpoint table.
func NewBreakpointTable() *BreakpointTable {
	return &BreakpointTable{bps: make(map[uint64]*Breakpoint)}
}

// Add records a breakpoint address and assigns it a sequential ID. The
// breakpoint starts out pending; use Install to patch it into a stopped
// inferior.
func (bt *BreakpointTable) Add(addr uint64) (*Breakpoint, error) {
	if _, ok := bt.bps[addr]; ok {
		return nil, BreakpointExistsError{Addr: addr}
	}
	bt.idCounter++
	bp := &Breakpoint{ID: bt.idCounter, Addr: addr}
	bt.addrs = append(bt.addrs, addr)
	bt.bps[addr] = bp
	return bp, nil
}

// Lookup returns the breakpoint recorded for addr, if any.
func (bt *BreakpointTable) Lookup(addr uint64) (*Breakpoint, bool) {
	bp, ok := bt.bps[addr]
	return bp, ok
}

// All returns the recorded breakpoints in insertion order.
func (bt *BreakpointTable) All() []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(bt.addrs))
	for _, addr := range bt.addrs {
		bps = append(bps, bt.bps[addr])
	}
	return bps
}

// Len returns the number of recorded breakpoints.
func (bt *BreakpointTable) Len() int {
	return len(bt.addrs)
}

// Install patches the trap opcode into the inferior at the recorded
// address, capturing the displaced byte. On failure the address stays
// recorded as pending so a future run can still install it.
func (bt *BreakpointTable) Install(inf *Inferior, addr uint64) error {
	bp, ok := bt.bps[addr]
	if !ok {
		return NoBreakpointError{Addr: addr}
	}
	orig, err := inf.WriteByte(addr, breakpointInstruction)
	if err != nil {
		return fmt.Errorf("could not install breakpoint at %#x: %w", addr, err)
	}
	bp.OriginalData = []byte{orig}
	return nil
}

// InstallAll patches every recorded address into a newly launched
// inferior, so that pending breakpoints become active at process birth.
func (bt *BreakpointTable) InstallAll(inf *Inferior) error {
	for _, addr := range bt.addrs {
		if err := bt.Install(inf, addr); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes the breakpoint at addr. If inf is non-nil and the
// breakpoint is installed, the original byte is restored first.
func (bt *BreakpointTable) Clear(inf *Inferior, addr uint64) (*Breakpoint, error) {
	bp, ok := bt.bps[addr]
	if !ok {
		return nil, NoBreakpointError{Addr: addr}
	}
	if inf != nil && bp.Installed() {
		if _, err := inf.WriteByte(addr, bp.OriginalData[0]); err != nil {
			return nil, fmt.Errorf("could not clear breakpoint at %#x: %w", addr, err)
		}
	}
	delete(bt.bps, addr)
	for i, a := range bt.addrs {
		if a == addr {
			bt.addrs = append(bt.addrs[:i], bt.addrs[i+1:]...)
			break
		}
	}
	return bp, nil
}

// Reset drops the displaced byte data of every breakpoint, returning
// them all to pending. Called when the inferior they were patched into
// is gone and a new one is about to be launched.
func (bt *BreakpointTable) Reset() {
	for _, bp := range bt.bps {
		bp.OriginalData = nil
	}
}
