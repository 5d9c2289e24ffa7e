package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestCommandDefault(t *testing.T) {
	cmds := &Commands{cmds: []command{{aliases: []string{"break"}, cmdFn: nil}}}

	cmd := cmds.Find("nonexistent-command")
	if err := cmd(nil, ""); err != errNoCmd {
		t.Fatalf("expected errNoCmd, got %v", err)
	}
}

func TestCommandAliases(t *testing.T) {
	cmds := DebugCommands(nil)

	for _, name := range []string{"continue", "c"} {
		var found bool
		for _, cmd := range cmds.cmds {
			if cmd.match(name) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no command matches %q", name)
		}
	}
}

func TestCommandsSorted(t *testing.T) {
	cmds := DebugCommands(nil)

	if !sort.SliceIsSorted(cmds.cmds, func(i, j int) bool {
		return cmds.cmds[i].aliases[0] < cmds.cmds[j].aliases[0]
	}) {
		t.Fatal("commands are not sorted by first alias")
	}
}

func TestCommandMerge(t *testing.T) {
	cmds := DebugCommands(nil)
	cmds.Merge(map[string][]string{"break": {"brk"}, "nonexistent": {"x"}})

	var found bool
	for _, cmd := range cmds.cmds {
		if cmd.match("brk") {
			found = true
			if cmd.aliases[0] != "break" {
				t.Fatalf("brk merged into %q", cmd.aliases[0])
			}
		}
		if cmd.match("x") {
			t.Fatal("alias for unknown command was merged")
		}
	}
	if !found {
		t.Fatal("merged alias brk not found")
	}
}

func TestQuitRequestsExit(t *testing.T) {
	cmds := DebugCommands(nil)

	err := cmds.Call("quit", &Term{stdout: new(bytes.Buffer)})
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
}

func TestHelpListsCommands(t *testing.T) {
	var buf bytes.Buffer
	cmds := DebugCommands(nil)

	if err := cmds.Call("help", &Term{stdout: &buf}); err != nil {
		t.Fatal("help:", err)
	}
	out := buf.String()
	for _, name := range []string{"break", "continue", "run", "backtrace", "quit"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output missing %q:\n%s", name, out)
		}
	}

	buf.Reset()
	if err := cmds.Call("help break", &Term{stdout: &buf}); err != nil {
		t.Fatal("help break:", err)
	}
	if !strings.Contains(buf.String(), "locspec") {
		t.Fatalf("help break output missing usage:\n%s", buf.String())
	}
	if err := cmds.Call("help nonexistent-command", &Term{stdout: &buf}); err != errNoCmd {
		t.Fatalf("expected errNoCmd, got %v", err)
	}
}

func TestBreakWithoutLocation(t *testing.T) {
	cmds := DebugCommands(nil)

	if err := cmds.Call("break", &Term{stdout: new(bytes.Buffer)}); err == nil {
		t.Fatal("expected error for break without location")
	}
	if err := cmds.Call("clear", &Term{stdout: new(bytes.Buffer)}); err == nil {
		t.Fatal("expected error for clear without location")
	}
}

func TestParseArgv(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one two", []string{"one", "two"}},
		{`"one two" three`, []string{"one two", "three"}},
		{"'quoted arg'", []string{"quoted arg"}},
	} {
		got, err := parseArgv(tc.in)
		if err != nil {
			t.Fatalf("parseArgv(%q): %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("parseArgv(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("parseArgv(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}

	if _, err := parseArgv("one | two"); err == nil {
		t.Fatal("expected error for pipeline in arguments")
	}
	if _, err := parseArgv("`date`"); err == nil {
		t.Fatal("expected error for backtick in arguments")
	}
}

func TestExecuteFileSkipsComments(t *testing.T) {
	name := filepath.Join(t.TempDir(), "init")
	script := "# comment\n\nhelp\n"
	if err := os.WriteFile(name, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	cmds := DebugCommands(nil)
	if err := cmds.executeFile(&Term{stdout: &buf}, name); err != nil {
		t.Fatal("executeFile:", err)
	}
	if !strings.Contains(buf.String(), "commands are available") {
		t.Fatalf("help was not executed:\n%s", buf.String())
	}
}
