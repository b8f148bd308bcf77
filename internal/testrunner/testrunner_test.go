package testrunner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/deixis/codecheck/internal/framework"
	"github.com/deixis/codecheck/internal/runner"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// writeScript creates an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistry_Frameworks(t *testing.T) {
	r := NewRegistry(Options{})
	if !slices.Equal(r.Frameworks(), framework.Names()) {
		t.Errorf("Frameworks = %v", r.Frameworks())
	}
	if !r.IsKnown("go") || !r.IsKnown("nunit-console") {
		t.Error("IsKnown rejected a built-in framework")
	}
	if r.IsKnown("jest") {
		t.Error("IsKnown accepted an unknown framework")
	}
}

func TestRegistry_KnownFrameworkCommand(t *testing.T) {
	tr, err := DefaultRegistry.New("go", []string{"./..."}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tr.CommandLine(); got != "go test ./... -v" {
		t.Errorf("CommandLine = %q", got)
	}
	if tr.Framework() != "go" {
		t.Errorf("Framework = %q", tr.Framework())
	}
}

func TestRegistry_UnknownFallsBack(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "mytests", `echo "Loaded suite"
echo "5 tests, 5 assertions, 1 failures, 0 errors, 0 pendings, 0 omissions, 0 notifications"
exit 1
`)
	tr, err := DefaultRegistry.New(script, nil, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := tr.Execute(waitCtx(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := framework.Tally{Success: 4, Failure: 1}
	if res.Tally != want {
		t.Errorf("Tally = %+v, want %+v", res.Tally, want)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if res.Ambiguous {
		t.Errorf("Ambiguous = true, want false (%s)", res.Reason)
	}
	if res.Passed() {
		t.Error("Passed = true, want false")
	}
}

func TestRegistry_UnknownNameWithQuotes(t *testing.T) {
	for _, name := range []string{"run'tests", `say"hi`} {
		tr, err := DefaultRegistry.New(name, []string{"a"}, "")
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if got := tr.Process().Path(); got != name {
			t.Errorf("Path = %q, want %q", got, name)
		}
		if got := tr.Process().Args(); len(got) != 1 || got[0] != "a" {
			t.Errorf("Args = %q, want [a]", got)
		}
	}

	dir := t.TempDir()
	script := writeScript(t, dir, "run'tests", "echo '3 tests, 3 assertions, 0 failures, 0 errors, 0 pendings'\n")
	tr, err := DefaultRegistry.New(script, nil, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := tr.Execute(waitCtx(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := (framework.Tally{Success: 3}); res.Tally != want || !res.Passed() {
		t.Errorf("Tally = %+v, passed = %v; want %+v, passed", res.Tally, res.Passed(), want)
	}
}

func TestRegistry_EmptyName(t *testing.T) {
	if _, err := DefaultRegistry.New("", nil, ""); err == nil {
		t.Error("expected error for empty framework name")
	}
}

func TestTestRunner_AmbiguousNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "crash", "echo 'Segmentation fault' >&2\nexit 139\n")
	tr, err := DefaultRegistry.New(script, nil, dir)
	if err != nil {
		t.Fatal(err)
	}
	res, err := tr.Execute(waitCtx(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Ambiguous {
		t.Error("Ambiguous = false, want true")
	}
	if !strings.Contains(res.Reason, "139") {
		t.Errorf("Reason = %q, want exit code", res.Reason)
	}
}

func TestTestRunner_AmbiguousZeroExitWithFailures(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "lenient", "echo '2 tests, 2 assertions, 1 failures, 0 errors, 0 pendings'\n")
	tr, err := DefaultRegistry.New(script, nil, dir)
	if err != nil {
		t.Fatal(err)
	}
	res, err := tr.Execute(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ambiguous {
		t.Error("Ambiguous = false, want true")
	}
}

func TestTestRunner_PerLineFramework(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fakego", `echo "=== RUN   TestA"
echo "--- PASS: TestA (0.00s)"
echo "--- FAIL: TestB (0.00s)"
echo "--- PASS: TestC (0.00s)"
exit 1
`)
	spec, _ := framework.Lookup(framework.Go)
	spec.Command = script
	tr, err := New(spec, nil, dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	res, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	want := framework.Tally{Success: 2, Failure: 1}
	if res.Tally != want {
		t.Errorf("Tally = %+v, want %+v", res.Tally, want)
	}
	if tr.Tally() != want {
		t.Errorf("Tally() = %+v, want %+v", tr.Tally(), want)
	}
	again, err := tr.Wait(waitCtx(t))
	if err != nil || again != res {
		t.Error("second Wait did not return the same result")
	}
}

func TestTestRunner_SpawnError(t *testing.T) {
	tr, err := DefaultRegistry.New("nonexistent-framework-xyz", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = tr.Execute(waitCtx(t))
	var spawnErr *runner.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("Execute = %v, want *runner.SpawnError", err)
	}
}

func TestTestRunner_ArgsNotRetokenised(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "args", `for a in "$@"; do echo "[$a]"; done`)
	tr, err := DefaultRegistry.New(script, []string{"two words"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	tr.Process().OnLine(func(l runner.Line) { lines = append(lines, l.Text) })
	if _, err := tr.Execute(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lines, []string{"[two words]"}) {
		t.Errorf("lines = %q", lines)
	}
}
