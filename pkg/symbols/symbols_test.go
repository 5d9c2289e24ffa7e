package symbols

import (
	"errors"
	"os"
	"testing"

	protest "github.com/chinggg/minidbg/pkg/proc/test"
)

func TestMain(m *testing.M) {
	os.Exit(protest.RunTestsWithFixtures(m))
}

func loadFixtureTable(t *testing.T, name string) *Table {
	fixture := protest.BuildFixture(name)
	table, err := Load(fixture.Path)
	if err != nil {
		t.Fatal("Load():", err)
	}
	return table
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist"); err == nil {
		t.Fatal("expected error loading nonexistent executable")
	}
}

func TestFuncToPC(t *testing.T) {
	table := loadFixtureTable(t, "testprog")

	pc, err := table.FuncToPC("main.main")
	if err != nil {
		t.Fatal("FuncToPC():", err)
	}
	if pc == 0 {
		t.Fatal("entry address for main.main is zero")
	}

	// Unqualified names resolve in package main.
	short, err := table.FuncToPC("helloworld")
	if err != nil {
		t.Fatal("FuncToPC():", err)
	}
	qualified, err := table.FuncToPC("main.helloworld")
	if err != nil {
		t.Fatal("FuncToPC():", err)
	}
	if short != qualified {
		t.Fatalf("helloworld resolved to %#x, main.helloworld to %#x", short, qualified)
	}
}

func TestPCToFuncRoundTrip(t *testing.T) {
	table := loadFixtureTable(t, "testprog")

	pc, err := table.FuncToPC("main.helloworld")
	if err != nil {
		t.Fatal("FuncToPC():", err)
	}
	fn, err := table.PCToFunc(pc)
	if err != nil {
		t.Fatal("PCToFunc():", err)
	}
	if fn != "main.helloworld" {
		t.Fatalf("round trip resolved to %s", fn)
	}

	// Second lookup is served from the cache and must agree.
	again, err := table.PCToFunc(pc)
	if err != nil {
		t.Fatal("PCToFunc():", err)
	}
	if again != fn {
		t.Fatalf("cached lookup resolved to %s", again)
	}
}

func TestLineToPC(t *testing.T) {
	table := loadFixtureTable(t, "testprog")

	pc, err := table.FuncToPC("main.helloworld")
	if err != nil {
		t.Fatal("FuncToPC():", err)
	}
	line, err := table.PCToLine(pc)
	if err != nil {
		t.Fatal("PCToLine():", err)
	}
	if line == 0 {
		t.Fatal("line for main.helloworld is zero")
	}
	if _, err := table.LineToPC(line); err != nil {
		t.Fatal("LineToPC():", err)
	}
}

func TestLookupNotFound(t *testing.T) {
	table := loadFixtureTable(t, "testprog")

	var notFound *NotFoundError
	if _, err := table.FuncToPC("xyz"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := table.PCToFunc(0xdeadbeef0000); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := table.LineToPC(999999); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFunctionsIncludeMain(t *testing.T) {
	table := loadFixtureTable(t, "testprog")

	found := false
	for _, fname := range table.Functions() {
		if fname == table.EntryFunction() {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("function list does not contain %s", table.EntryFunction())
	}
}
