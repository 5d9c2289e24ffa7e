package debugger

import (
	"errors"
	"os"
	"strconv"
	"testing"

	sys "golang.org/x/sys/unix"

	"github.com/chinggg/minidbg/pkg/proc"
	protest "github.com/chinggg/minidbg/pkg/proc/test"
)

func TestMain(m *testing.M) {
	os.Exit(protest.RunTestsWithFixtures(m))
}

func withTestDebugger(t *testing.T, fixtureName string, fn func(d *Debugger, fixture protest.Fixture)) {
	t.Helper()
	fixture := protest.BuildFixture(fixtureName)
	d, err := New(&Config{TargetPath: fixture.Path})
	if err != nil {
		t.Fatal("New():", err)
	}
	defer d.Detach()
	fn(d, fixture)
}

func TestNewBadTarget(t *testing.T) {
	if _, err := New(&Config{TargetPath: "/does/not/exist"}); err == nil {
		t.Fatal("expected error for target without a symbol table")
	}
}

func TestRunToExit(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		if status.Kind != proc.Exited || status.ExitStatus != 0 {
			t.Fatalf("expected clean exit, got %s", status)
		}
		if d.HasInferior() {
			t.Fatal("inferior still present after exit")
		}
	})
}

func TestRunKillsExistingProcess(t *testing.T) {
	withTestDebugger(t, "infloopprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("main.main"); err != nil {
			t.Fatal("CreateBreakpoint():", err)
		}
		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected stop at breakpoint, got %s", status)
		}
		firstPid := d.Pid()

		status, err = d.Run(nil)
		if err != nil {
			t.Fatal("second Run():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected stop at breakpoint, got %s", status)
		}
		if d.Pid() == firstPid {
			t.Fatal("second run reused the first process")
		}
		// The first process must be fully reaped, not left a zombie.
		if err := sys.Kill(firstPid, 0); err != sys.ESRCH {
			t.Fatalf("expected ESRCH for pid %d, got %v", firstPid, err)
		}
	})
}

func TestBreakpointHitAndRearm(t *testing.T) {
	withTestDebugger(t, "testloopprog", func(d *Debugger, fixture protest.Fixture) {
		bp, err := d.CreateBreakpoint("foo")
		if err != nil {
			t.Fatal("CreateBreakpoint():", err)
		}
		if bp.FunctionName != "main.foo" {
			t.Fatalf("breakpoint annotated with %q", bp.FunctionName)
		}

		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		for hits := 0; status.Kind == proc.Stopped; hits++ {
			if hits > 3 {
				t.Fatal("too many breakpoint hits")
			}
			fn, _, err := d.StopLocation()
			if err != nil {
				t.Fatal("StopLocation():", err)
			}
			if fn != "main.foo" {
				t.Fatalf("stopped in %s, want main.foo", fn)
			}
			status, err = d.Continue()
			if err != nil {
				t.Fatal("Continue():", err)
			}
		}
		if status.Kind != proc.Exited || status.ExitStatus != 0 {
			t.Fatalf("expected clean exit, got %s", status)
		}
	})
}

func TestBreakpointWhileStopped(t *testing.T) {
	withTestDebugger(t, "testloopprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("main.foo"); err != nil {
			t.Fatal("CreateBreakpoint(foo):", err)
		}
		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected stop at main.foo, got %s", status)
		}

		barAddr, err := d.FindLocation("main.bar")
		if err != nil {
			t.Fatal("FindLocation(bar):", err)
		}
		origByte, err := d.inferior.ReadByte(barAddr)
		if err != nil {
			t.Fatal("ReadByte():", err)
		}

		// A breakpoint created in a stopped process is patched in
		// immediately, not left pending for the next run.
		bp, err := d.CreateBreakpoint("main.bar")
		if err != nil {
			t.Fatal("CreateBreakpoint(bar):", err)
		}
		if !bp.Installed() {
			t.Fatal("breakpoint created while stopped is not installed")
		}
		patched, err := d.inferior.ReadByte(barAddr)
		if err != nil {
			t.Fatal("ReadByte():", err)
		}
		if patched != 0xCC {
			t.Fatalf("expected trap opcode at %#x, got %#x", barAddr, patched)
		}

		stops := []string{"main.bar", "main.foo"}
		for _, want := range stops {
			status, err = d.Continue()
			if err != nil {
				t.Fatal("Continue():", err)
			}
			if status.Kind != proc.Stopped {
				t.Fatalf("expected stop in %s, got %s", want, status)
			}
			fn, _, err := d.StopLocation()
			if err != nil {
				t.Fatal("StopLocation():", err)
			}
			if fn != want {
				t.Fatalf("stopped in %s, want %s", fn, want)
			}
		}

		// Clearing in a stopped process restores the displaced byte.
		if _, err := d.ClearBreakpoint("main.bar"); err != nil {
			t.Fatal("ClearBreakpoint(bar):", err)
		}
		restored, err := d.inferior.ReadByte(barAddr)
		if err != nil {
			t.Fatal("ReadByte():", err)
		}
		if restored != origByte {
			t.Fatalf("byte at %#x is %#x after clear, want %#x", barAddr, restored, origByte)
		}

		status, err = d.Continue()
		if err != nil {
			t.Fatal("Continue():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected final stop in main.foo, got %s", status)
		}
		if fn, _, _ := d.StopLocation(); fn != "main.foo" {
			t.Fatalf("stopped in %s after clearing main.bar", fn)
		}

		status, err = d.Continue()
		if err != nil {
			t.Fatal("Continue():", err)
		}
		if status.Kind != proc.Exited || status.ExitStatus != 0 {
			t.Fatalf("expected clean exit, got %s", status)
		}
	})
}

func TestContinueWithoutProcess(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.Continue(); !errors.Is(err, ErrNoProcess) {
			t.Fatalf("expected ErrNoProcess, got %v", err)
		}
		if _, err := d.Stacktrace(); !errors.Is(err, ErrNoProcess) {
			t.Fatalf("expected ErrNoProcess, got %v", err)
		}
		if _, err := d.Disassemble(5); !errors.Is(err, ErrNoProcess) {
			t.Fatalf("expected ErrNoProcess, got %v", err)
		}
	})
}

func TestFindLocationForms(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		fnAddr, err := d.FindLocation("main.helloworld")
		if err != nil {
			t.Fatal("FindLocation(function):", err)
		}

		byAddr, err := d.FindLocation("*0x401000")
		if err != nil {
			t.Fatal("FindLocation(*addr):", err)
		}
		if byAddr != 0x401000 {
			t.Fatalf("raw address parsed as %#x", byAddr)
		}

		line, err := d.Symbols().PCToLine(fnAddr)
		if err != nil {
			t.Fatal("PCToLine():", err)
		}
		byLine, err := d.FindLocation(strconv.Itoa(line))
		if err != nil {
			t.Fatal("FindLocation(line):", err)
		}
		if byLine == 0 {
			t.Fatal("line spec resolved to address zero")
		}

		if _, err := d.FindLocation(""); err == nil {
			t.Fatal("expected error for empty location")
		}
		if _, err := d.FindLocation("*zz"); err == nil {
			t.Fatal("expected error for malformed address")
		}
		if _, err := d.FindLocation("999999"); err == nil {
			t.Fatal("expected error for out of range line")
		}
	})
}

func TestInvalidSpecLeavesTableUnchanged(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("nosuchfunction"); err == nil {
			t.Fatal("expected error for unknown function")
		}
		if len(d.Breakpoints()) != 0 {
			t.Fatalf("table has %d breakpoints after failed create", len(d.Breakpoints()))
		}
	})
}

func TestClearBreakpoint(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("main.helloworld"); err != nil {
			t.Fatal("CreateBreakpoint():", err)
		}
		if _, err := d.ClearBreakpoint("main.helloworld"); err != nil {
			t.Fatal("ClearBreakpoint():", err)
		}
		if len(d.Breakpoints()) != 0 {
			t.Fatal("breakpoint still recorded after clear")
		}
		if _, err := d.ClearBreakpoint("main.helloworld"); err == nil {
			t.Fatal("expected error clearing a breakpoint twice")
		}
	})
}

func TestStacktraceAtBreakpoint(t *testing.T) {
	withTestDebugger(t, "testnestedprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("main.gamma"); err != nil {
			t.Fatal("CreateBreakpoint():", err)
		}
		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected stop at breakpoint, got %s", status)
		}
		frames, err := d.Stacktrace()
		if err != nil {
			t.Fatal("Stacktrace():", err)
		}
		if len(frames) < 2 {
			t.Fatalf("expected at least 2 frames, got %d", len(frames))
		}
		if frames[0].FunctionName != "main.gamma" {
			t.Fatalf("innermost frame is %s", frames[0].FunctionName)
		}
		if frames[len(frames)-1].FunctionName != "main.main" {
			t.Fatalf("outermost frame is %s", frames[len(frames)-1].FunctionName)
		}
	})
}

func TestDisassembleAtBreakpoint(t *testing.T) {
	withTestDebugger(t, "testprog", func(d *Debugger, fixture protest.Fixture) {
		if _, err := d.CreateBreakpoint("main.helloworld"); err != nil {
			t.Fatal("CreateBreakpoint():", err)
		}
		status, err := d.Run(nil)
		if err != nil {
			t.Fatal("Run():", err)
		}
		if status.Kind != proc.Stopped {
			t.Fatalf("expected stop at breakpoint, got %s", status)
		}
		instrs, err := d.Disassemble(5)
		if err != nil {
			t.Fatal("Disassemble():", err)
		}
		if len(instrs) != 5 {
			t.Fatalf("expected 5 instructions, got %d", len(instrs))
		}
		if !instrs[0].AtPC {
			t.Fatal("first instruction not marked as current")
		}
		// The trap byte must never leak into the decoded text.
		for _, inst := range instrs {
			if len(inst.Bytes) == 1 && inst.Bytes[0] == 0xCC {
				t.Fatalf("trap byte visible in disassembly at %#x", inst.Loc)
			}
		}
	})
}
