package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deixis/codecheck/internal/console"
	"github.com/deixis/codecheck/internal/framework"
)

func sampleRun(id string) *RunResult {
	return &RunResult{
		ID:   id,
		Kind: Check,
		Suites: []SuiteResult{
			{Name: "unit", Framework: "go", Status: Pass, Tally: framework.Tally{Success: 3}},
			{Name: "specs", Framework: "rspec", Status: Fail, Tally: framework.Tally{Success: 4, Failure: 1}, ExitCode: 1},
			{Name: "legacy", Framework: "sbt", Status: Unavailable, Reason: "sbt not found"},
		},
		Console: []ConsoleResult{
			{Name: "fizzbuzz", Command: "./fizzbuzz", Status: Fail, Errors: []console.Error{
				{Index: 2, Kind: console.Mismatch, Expected: "Fizz", Actual: "3"},
				{Index: 5, Kind: console.InsufficientOutput, Expected: "Fizz"},
			}},
			{Name: "echo", Command: "cat", Status: Pass},
		},
	}
}

// memStore is a map-backed Store that counts loads.
type memStore struct {
	runs  map[string]*RunResult
	loads int
}

func newMemStore() *memStore { return &memStore{runs: map[string]*RunResult{}} }

func (m *memStore) Save(r *RunResult) error { m.runs[r.ID] = r; return nil }

func (m *memStore) Load(id string) (*RunResult, error) {
	m.loads++
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func TestRunResult_Expect(t *testing.T) {
	r := sampleRun("a")
	if err := r.Expect(Check); err != nil {
		t.Errorf("Expect(Check) = %v", err)
	}
	if err := r.Expect(Console); err == nil {
		t.Error("Expect(Console) should fail for a check run")
	}
}

func TestRunResult_PassedAndCounts(t *testing.T) {
	r := sampleRun("a")
	if r.Passed() {
		t.Error("Passed = true, want false")
	}
	counts := r.Counts()
	if counts[Pass] != 2 || counts[Fail] != 2 || counts[Unavailable] != 1 {
		t.Errorf("Counts = %v", counts)
	}
	if got, want := Summary(r), "2 pass, 2 fail, 1 unavailable"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
	if got := Summary(&RunResult{}); got != "nothing to run" {
		t.Errorf("Summary(empty) = %q", got)
	}
	if !(&RunResult{Suites: []SuiteResult{{Status: Pass}}}).Passed() {
		t.Error("all-pass run reported as failing")
	}
}

func TestByName(t *testing.T) {
	r := sampleRun("a")

	diags := ByName(r, "fizzbuzz")
	if len(diags) != 2 {
		t.Fatalf("ByName(fizzbuzz) = %d diagnostics, want 2", len(diags))
	}
	if diags[0].Line != 3 || diags[0].Detail != "mismatch" {
		t.Errorf("diags[0] = %+v", diags[0])
	}
	if diags[0].Output == "" {
		t.Error("mismatch diagnostic should carry a diff")
	}

	if got := ByName(r, "unit"); len(got) != 0 {
		t.Errorf("ByName(unit) = %v, want none for a passing suite", got)
	}

	specs := ByName(r, "specs")
	if len(specs) != 1 || !strings.Contains(specs[0].Message, "1 failed") {
		t.Errorf("ByName(specs) = %+v", specs)
	}

	legacy := ByName(r, "legacy")
	if len(legacy) != 1 || legacy[0].Message != "sbt not found" {
		t.Errorf("ByName(legacy) = %+v", legacy)
	}

	if got := Diagnostics(r); len(got) != 4 {
		t.Errorf("Diagnostics = %d, want 4", len(got))
	}
}

func TestLookup(t *testing.T) {
	r := sampleRun("a")
	s, c, ok := Lookup(r, "specs")
	if !ok || s == nil || c != nil || s.Framework != "rspec" {
		t.Errorf("Lookup(specs) = %v, %v, %v", s, c, ok)
	}
	s, c, ok = Lookup(r, "echo")
	if !ok || s != nil || c == nil {
		t.Errorf("Lookup(echo) = %v, %v, %v", s, c, ok)
	}
	if _, _, ok := Lookup(r, "missing"); ok {
		t.Error("Lookup(missing) found something")
	}
}

func TestDiskStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	store := NewDiskStore(dir)

	if err := store.Save(sampleRun("run-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "run-1" || len(got.Suites) != 3 || len(got.Console) != 2 {
		t.Errorf("Load = %+v", got)
	}
	if got.Console[0].Errors[1].Kind != console.InsufficientOutput {
		t.Errorf("error kind = %q", got.Console[0].Errors[1].Kind)
	}
	if d, _ := store.Dir(); d != dir {
		t.Errorf("Dir = %q, want %q", d, dir)
	}
}

func TestDiskStore_NotFound(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	if _, err := store.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
	if _, err := store.Load("../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(traversal) = %v, want ErrNotFound", err)
	}
	if err := store.Save(&RunResult{ID: "../x"}); err == nil {
		t.Error("Save accepted a traversal id")
	}
}

func TestDiskStore_TempDir(t *testing.T) {
	store := NewDiskStore("")
	dir, err := store.Dir()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	if !strings.Contains(filepath.Base(dir), "codecheck-runs-") {
		t.Errorf("Dir = %q", dir)
	}
}

func TestLRUStore_Eviction(t *testing.T) {
	back := newMemStore()
	lru := NewLRUStore(2, back)

	for i := range 3 {
		if err := lru.Save(sampleRun(fmt.Sprintf("r%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if lru.Len() != 2 {
		t.Errorf("Len = %d, want 2", lru.Len())
	}

	// r1 and r2 are cached.
	if _, err := lru.Load("r2"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0 for a cache hit", back.loads)
	}

	// r0 was evicted and must come from the backing store.
	if _, err := lru.Load("r0"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}

	// Loading r0 promoted it and evicted r1, the least recently used.
	if _, err := lru.Load("r1"); err != nil {
		t.Fatal(err)
	}
	if back.loads != 2 {
		t.Errorf("backing loads = %d, want 2", back.loads)
	}
}

func TestLRUStore_MissPropagatesError(t *testing.T) {
	lru := NewLRUStore(0, newMemStore())
	if _, err := lru.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
	if lru.Len() != 0 {
		t.Errorf("Len = %d after a miss", lru.Len())
	}
}
