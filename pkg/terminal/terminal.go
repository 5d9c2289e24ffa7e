package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	isatty "github.com/mattn/go-isatty"

	"github.com/chinggg/minidbg/pkg/config"
	"github.com/chinggg/minidbg/pkg/debugger"
	"github.com/chinggg/minidbg/pkg/proc"
)

const (
	historyFile                 string = "history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
	ansiBlue                    int    = 34
)

// Term represents the terminal running the debug session.
type Term struct {
	debugger *debugger.Debugger
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	funcs    *trie.Trie
	dumb     bool
	flavour  proc.AssemblyFlavour
	stdout   io.Writer
	InitFile string
}

// New returns a new Term bound to the given debugger.
func New(d *debugger.Debugger, conf *config.Config) *Term {
	cmds := DebugCommands(d)
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	if conf == nil {
		conf = &config.Config{}
	}

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" ||
		!isatty.IsTerminal(os.Stdout.Fd())

	flavour := proc.IntelFlavour
	if conf.DisassembleFlavor != nil {
		switch *conf.DisassembleFlavor {
		case "gnu":
			flavour = proc.GNUFlavour
		case "go":
			flavour = proc.GoFlavour
		}
	}

	funcs := trie.New()
	for _, fname := range d.Symbols().Functions() {
		funcs.Add(fname, nil)
	}

	return &Term{
		debugger: d,
		conf:     conf,
		prompt:   "(minidbg) ",
		line:     liner.NewLiner(),
		cmds:     cmds,
		funcs:    funcs,
		dumb:     dumb,
		flavour:  flavour,
		stdout:   os.Stdout,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins running the debugger in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	t.line.SetCompleter(func(line string) (c []string) {
		lowerline := strings.ToLower(line)
		for _, cmd := range t.cmds.cmds {
			for _, alias := range cmd.aliases {
				if strings.HasPrefix(alias, lowerline) {
					c = append(c, alias)
				}
			}
		}
		if idx := strings.LastIndex(line, " "); idx >= 0 {
			prefix, partial := line[:idx+1], line[idx+1:]
			for _, fname := range t.funcs.PrefixSearch(partial) {
				c = append(c, prefix+fname)
			}
		}
		return
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.\n", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.\n", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("Debugging %s. Type 'help' for list of commands.\n", t.debugger.TargetPath())

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Println("exit")
				return t.handleExit()
			}
			return 1, errors.New("prompt for input failed")
		}
		if cmdstr == "" {
			continue
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			if errors.Is(err, proc.ErrUnexpectedWaitStatus) {
				// Broken platform assumption, do not keep going.
				return 1, err
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// Println prints a line to the terminal with a highlighted prefix.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		terminalColorEscapeCode := fmt.Sprintf(terminalHighlightEscapeCode, ansiBlue)
		prefix = fmt.Sprintf("%s%s%s", terminalColorEscapeCode, prefix, terminalResetEscapeCode)
	}
	fmt.Fprintf(t.stdout, "%s %s\n", prefix, str)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}

	if t.debugger.HasInferior() {
		fmt.Printf("Killing running process (pid %d)\n", t.debugger.Pid())
	}
	if err := t.debugger.Detach(); err != nil {
		return 1, err
	}
	return 0, nil
}
