package logflags

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func resetFlags() {
	debugger = false
	proc = false
	terminal = false
}

func TestSetupDefaults(t *testing.T) {
	defer resetFlags()

	if err := Setup(true, ""); err != nil {
		t.Fatal("Setup():", err)
	}
	if !Debugger() {
		t.Fatal("debugger logging not enabled by default")
	}
	if Proc() || Terminal() {
		t.Fatal("unrequested subsystems enabled")
	}
}

func TestSetupList(t *testing.T) {
	defer resetFlags()

	if err := Setup(true, "proc,terminal"); err != nil {
		t.Fatal("Setup():", err)
	}
	if !Proc() || !Terminal() {
		t.Fatal("requested subsystems not enabled")
	}
	if Debugger() {
		t.Fatal("debugger logging enabled without being requested")
	}
}

func TestSetupErrors(t *testing.T) {
	defer resetFlags()

	if err := Setup(false, "proc"); err != errLogstrWithoutLog {
		t.Fatalf("expected errLogstrWithoutLog, got %v", err)
	}
	if err := Setup(true, "nosuchlayer"); err == nil {
		t.Fatal("expected error for unknown log layer")
	}
}

func TestLoggerLevels(t *testing.T) {
	defer resetFlags()

	if lvl := DebuggerLogger().Logger.Level; lvl != logrus.PanicLevel {
		t.Fatalf("disabled logger at level %v", lvl)
	}
	if err := Setup(true, "debugger"); err != nil {
		t.Fatal("Setup():", err)
	}
	if lvl := DebuggerLogger().Logger.Level; lvl != logrus.DebugLevel {
		t.Fatalf("enabled logger at level %v", lvl)
	}
}
