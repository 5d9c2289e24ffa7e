// Package symbols maps code addresses in a target executable to function
// names and source lines, and back. Lookups are served from the Go symbol
// table embedded in the target's ELF image.
package symbols

import (
	"debug/elf"
	"debug/gosym"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// entryFunction is the function the stack unwinder terminates on.
const entryFunction = "main.main"

// pcCacheSize bounds the number of cached pc->location lookups. Backtraces
// and stop reports hit the same handful of addresses over and over.
const pcCacheSize = 256

// NotFoundError is returned for any lookup that has no answer in the
// symbol table.
type NotFoundError struct {
	what string
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("no symbol found for %s", err.what)
}

type location struct {
	fn   string
	line int
}

// Table provides address<->symbol lookups for one executable. It is
// read-only after Load and holds no reference to any running process.
type Table struct {
	symTable *gosym.Table
	mainFile string
	pcCache  *lru.Cache
}

// Load reads the Go symbol table out of the ELF executable at path.
func Load(path string) (*Table, error) {
	exe, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer exe.Close()

	var symdat, pclndat []byte

	if sec := exe.Section(".gosymtab"); sec != nil {
		symdat, err = sec.Data()
		if err != nil {
			return nil, fmt.Errorf("could not get .gosymtab section: %w", err)
		}
	}

	sec := exe.Section(".gopclntab")
	if sec == nil {
		return nil, fmt.Errorf("could not find .gopclntab section in %s", path)
	}
	pclndat, err = sec.Data()
	if err != nil {
		return nil, fmt.Errorf("could not get .gopclntab section: %w", err)
	}

	text := exe.Section(".text")
	if text == nil {
		return nil, fmt.Errorf("could not find .text section in %s", path)
	}

	pcln := gosym.NewLineTable(pclndat, text.Addr)
	tab, err := gosym.NewTable(symdat, pcln)
	if err != nil {
		return nil, fmt.Errorf("could not initialize line table: %w", err)
	}

	cache, err := lru.New(pcCacheSize)
	if err != nil {
		return nil, err
	}

	t := &Table{symTable: tab, pcCache: cache}

	// Line numbers given without a file are resolved against the file
	// that defines the entry function.
	if fn := tab.LookupFunc(entryFunction); fn != nil {
		t.mainFile, _, _ = tab.PCToLine(fn.Entry)
	}

	return t, nil
}

// EntryFunction returns the name of the function stack unwinding stops at.
func (t *Table) EntryFunction() string {
	return entryFunction
}

// LineToPC resolves a line number in the file defining the entry function
// to a code address.
func (t *Table) LineToPC(line int) (uint64, error) {
	if t.mainFile == "" {
		return 0, &NotFoundError{what: fmt.Sprintf("line %d", line)}
	}
	pc, _, err := t.symTable.LineToPC(t.mainFile, line)
	if err != nil {
		return 0, &NotFoundError{what: fmt.Sprintf("line %d", line)}
	}
	return pc, nil
}

// FuncToPC resolves a function name to its entry address. Names without a
// package qualifier are also tried in package main, so that "foo" finds
// "main.foo".
func (t *Table) FuncToPC(name string) (uint64, error) {
	fn := t.symTable.LookupFunc(name)
	if fn == nil {
		fn = t.symTable.LookupFunc("main." + name)
	}
	if fn == nil {
		return 0, &NotFoundError{what: fmt.Sprintf("function %s", name)}
	}
	return fn.Entry, nil
}

// PCToFunc resolves a code address to the name of the enclosing function.
func (t *Table) PCToFunc(pc uint64) (string, error) {
	loc, err := t.lookupPC(pc)
	if err != nil {
		return "", err
	}
	return loc.fn, nil
}

// PCToLine resolves a code address to a source line number.
func (t *Table) PCToLine(pc uint64) (int, error) {
	loc, err := t.lookupPC(pc)
	if err != nil {
		return 0, err
	}
	return loc.line, nil
}

func (t *Table) lookupPC(pc uint64) (location, error) {
	if cached, ok := t.pcCache.Get(pc); ok {
		return cached.(location), nil
	}
	_, line, fn := t.symTable.PCToLine(pc)
	if fn == nil {
		return location{}, &NotFoundError{what: fmt.Sprintf("address %#x", pc)}
	}
	loc := location{fn: fn.Name, line: line}
	t.pcCache.Add(pc, loc)
	return loc, nil
}

// Functions returns the names of all functions in the symbol table.
func (t *Table) Functions() []string {
	funcs := make([]string, 0, len(t.symTable.Funcs))
	for i := range t.symTable.Funcs {
		funcs = append(funcs, t.symTable.Funcs[i].Name)
	}
	return funcs
}
