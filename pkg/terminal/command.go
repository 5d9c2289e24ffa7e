// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/chinggg/minidbg/pkg/debugger"
	"github.com/chinggg/minidbg/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the terminal process.
type Commands struct {
	cmds     []command
	debugger *debugger.Debugger
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands(d *debugger.Debugger) *Commands {
	c := &Commands{debugger: d}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"run", "r"}, cmdFn: c.run, helpMsg: `Launches the target process.

	run [args...]

If a process already exists it is killed first. Recorded breakpoints are
installed before the process executes any user code. Arguments are
tokenized like a shell command line.`},
		{aliases: []string{"continue", "c"}, cmdFn: c.cont, helpMsg: "Run until breakpoint or program termination."},
		{aliases: []string{"break", "b"}, cmdFn: c.breakpoint, helpMsg: `Sets a breakpoint.

	break <locspec>

A locspec is one of: a raw address ("*401000" or "*0x401000"), a line
number in the file defining the entry function, or a function name.`},
		{aliases: []string{"breakpoints", "bp"}, cmdFn: c.breakpoints, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"clear"}, cmdFn: c.clear, helpMsg: `Deletes breakpoint.

	clear <locspec>`},
		{aliases: []string{"backtrace", "bt"}, cmdFn: c.stacktrace, helpMsg: "Print stack trace of the stopped process."},
		{aliases: []string{"disassemble", "disass"}, cmdFn: c.disassemble, helpMsg: "Disassemble at the current program counter."},
		{aliases: []string{"quit", "q", "exit"}, cmdFn: c.quit, helpMsg: "Exit the debugger, killing any live process."},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

// ExitRequestError is returned by the quit command to signal the
// terminal loop to stop.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '\t', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func (c *Commands) run(t *Term, args string) error {
	targetArgs, err := parseArgv(args)
	if err != nil {
		return err
	}
	if c.debugger.HasInferior() {
		fmt.Fprintf(t.stdout, "Killing running process (pid %d)\n", c.debugger.Pid())
	}
	status, err := c.debugger.Run(targetArgs)
	if err != nil {
		return err
	}
	c.reportStatus(t, status)
	return nil
}

func (c *Commands) cont(t *Term, args string) error {
	status, err := c.debugger.Continue()
	if err != nil {
		return err
	}
	c.reportStatus(t, status)
	return nil
}

func (c *Commands) breakpoint(t *Term, args string) error {
	if args == "" {
		return errors.New("argument required, specify a location")
	}
	bp, err := c.debugger.CreateBreakpoint(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s set\n", bp)
	return nil
}

func (c *Commands) breakpoints(t *Term, args string) error {
	for _, bp := range c.debugger.Breakpoints() {
		fmt.Fprintln(t.stdout, bp)
	}
	return nil
}

func (c *Commands) clear(t *Term, args string) error {
	if args == "" {
		return errors.New("argument required, specify a location")
	}
	bp, err := c.debugger.ClearBreakpoint(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s cleared\n", bp)
	return nil
}

func (c *Commands) stacktrace(t *Term, args string) error {
	frames, err := c.debugger.Stacktrace()
	for i, frame := range frames {
		fmt.Fprintf(t.stdout, "%d\t%#x in %s (line %d)\n", i, frame.PC, frame.FunctionName, frame.Line)
	}
	return err
}

func (c *Commands) disassemble(t *Term, args string) error {
	instructions, err := c.debugger.Disassemble(10)
	if err != nil {
		return err
	}
	for _, inst := range instructions {
		marker := "  "
		if inst.AtPC {
			marker = "=>"
		}
		text := inst.Text(t.flavour)
		if inst.Breakpoint {
			text += "\t<breakpoint>"
		}
		fmt.Fprintf(t.stdout, "%s %#x\t%s\n", marker, inst.Loc, text)
	}
	return nil
}

func (c *Commands) quit(t *Term, args string) error {
	return ExitRequestError{}
}

// reportStatus prints the decoded process state after a run or continue,
// with the stop location when the symbol table can name it.
func (c *Commands) reportStatus(t *Term, status proc.Status) {
	switch status.Kind {
	case proc.Exited:
		fmt.Fprintf(t.stdout, "Process exited with status %d\n", status.ExitStatus)
	case proc.Signaled:
		fmt.Fprintf(t.stdout, "Process %s\n", status)
	default:
		fmt.Fprintf(t.stdout, "Process %d %s\n", c.debugger.Pid(), status)
		fn, line, err := c.debugger.StopLocation()
		if err == nil {
			t.Println("=>", fmt.Sprintf("%s (line %d)", fn, line))
		}
	}
}

// executeFile runs each line of the given file as a command. Empty
// lines and lines starting with # are skipped; command failures are
// reported but do not stop execution.
func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Printf("%s:%d: %v\n", name, lineno, err)
		}
	}
	return scanner.Err()
}

func parseArgv(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal commandline '%s'", args)
	}
	return v[0], nil
}
