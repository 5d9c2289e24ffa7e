package proc

import sys "golang.org/x/sys/unix"

const wordSize = 8

// alignAddr rounds addr down to the start of the enclosing machine word.
func alignAddr(addr uint64) uint64 {
	return addr &^ (wordSize - 1)
}

// ReadMemory reads len(data) bytes from the inferior's address space
// starting at addr.
func (inf *Inferior) ReadMemory(data []byte, addr uint64) (n int, err error) {
	if inf.exited {
		return 0, ProcessExitedError{Pid: inf.pid}
	}
	inf.execPtraceFunc(func() {
		n, err = sys.PtracePeekData(inf.pid, uintptr(addr), data)
	})
	return n, err
}

// ReadWord reads the machine word enclosing addr.
func (inf *Inferior) ReadWord(addr uint64) (uint64, error) {
	var (
		word uint64
		err  error
	)
	if inf.exited {
		return 0, ProcessExitedError{Pid: inf.pid}
	}
	inf.execPtraceFunc(func() {
		buf := make([]byte, wordSize)
		_, err = sys.PtracePeekData(inf.pid, uintptr(alignAddr(addr)), buf)
		if err != nil {
			return
		}
		for i := wordSize - 1; i >= 0; i-- {
			word = word<<8 | uint64(buf[i])
		}
	})
	return word, err
}

// ReadByte reads the single byte at addr.
func (inf *Inferior) ReadByte(addr uint64) (byte, error) {
	word, err := inf.ReadWord(addr)
	if err != nil {
		return 0, err
	}
	shift := (addr - alignAddr(addr)) * 8
	return byte(word >> shift), nil
}

// WriteWord overwrites the machine word enclosing addr.
func (inf *Inferior) WriteWord(addr uint64, word uint64) error {
	var err error
	if inf.exited {
		return ProcessExitedError{Pid: inf.pid}
	}
	inf.execPtraceFunc(func() {
		buf := make([]byte, wordSize)
		for i := 0; i < wordSize; i++ {
			buf[i] = byte(word >> (8 * uint(i)))
		}
		_, err = sys.PtracePokeData(inf.pid, uintptr(alignAddr(addr)), buf)
	})
	return err
}

// WriteByte replaces the single byte at addr with val, leaving every
// other byte of the enclosing word untouched, and returns the byte that
// was displaced. The displaced byte must be captured here, before the
// write: reading it afterwards would yield val instead.
func (inf *Inferior) WriteByte(addr uint64, val byte) (byte, error) {
	word, err := inf.ReadWord(addr)
	if err != nil {
		return 0, err
	}
	shift := (addr - alignAddr(addr)) * 8
	orig := byte(word >> shift)
	merged := word&^(0xff<<shift) | uint64(val)<<shift
	if err := inf.WriteWord(addr, merged); err != nil {
		return 0, err
	}
	return orig, nil
}
