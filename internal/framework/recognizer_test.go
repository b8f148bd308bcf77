package framework

import (
	"slices"
	"testing"

	"github.com/deixis/codecheck/internal/runner"
)

func feed(r Recognizer, lines ...string) Tally {
	var t Tally
	for _, l := range lines {
		r.Recognize(runner.Stdout, l, &t)
	}
	return t
}

func TestDefaultRecognizer_RubyTestUnit(t *testing.T) {
	got := feed(DefaultRecognizer(), "5 tests, 5 assertions, 1 failures, 0 errors, 0 pendings, 0 omissions, 0 notifications")
	want := Tally{Success: 4, Failure: 1}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestDefaultRecognizer_ErrorsCountAsFailures(t *testing.T) {
	got := feed(DefaultRecognizer(), "10 tests, 12 assertions, 2 failures, 3 errors, 0 pendings")
	want := Tally{Success: 5, Failure: 5}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestDefaultRecognizer_IgnoresUnrelatedLines(t *testing.T) {
	got := feed(DefaultRecognizer(), "Loaded suite foo", "Started", "....", "Finished in 0.01 seconds.")
	if got != (Tally{}) {
		t.Errorf("Tally = %+v, want zero", got)
	}
}

func TestSummaryRecognizer_Overwrites(t *testing.T) {
	got := feed(DefaultRecognizer(),
		"2 tests, 2 assertions, 1 failures, 0 errors, 0 pendings",
		"3 tests, 3 assertions, 0 failures, 0 errors, 0 pendings",
	)
	want := Tally{Success: 3}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestPrefixRecognizer_Go(t *testing.T) {
	spec, _ := Lookup(Go)
	got := feed(spec.Recognizer(),
		"=== RUN   TestA",
		"--- PASS: TestA (0.00s)",
		"=== RUN   TestB",
		"    foo_test.go:12: boom",
		"--- FAIL: TestB (0.00s)",
		"    --- PASS: TestB/sub (0.00s)",
		"--- PASS: TestC (0.01s)",
		"FAIL",
	)
	want := Tally{Success: 2, Failure: 1}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestPrefixRecognizer_TAP(t *testing.T) {
	spec, _ := Lookup(Prove)
	got := feed(spec.Recognizer(), "t/basic.t ..", "1..3", "ok 1 - adds", "not ok 2 - subtracts", "ok 3", "Result: FAIL")
	want := Tally{Success: 2, Failure: 1}
	if got != want {
		t.Errorf("Tally = %+v, want %+v", got, want)
	}
}

func TestNormalize_StripsANSI(t *testing.T) {
	got := Normalize("\x1b[32m  3 passing\x1b[0m (5ms)  ")
	if got != "  3 passing (5ms)" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestGrammars(t *testing.T) {
	tests := []struct {
		framework string
		lines     []string
		want      Tally
	}{
		{Mocha, []string{"  \x1b[32m4 passing\x1b[0m (20ms)", "  \x1b[31m2 failing\x1b[0m"}, Tally{4, 2}},
		{Mocha, []string{"  7 passing (3ms)"}, Tally{7, 0}},
		{RSpec, []string{"Finished in 0.1 seconds", "6 examples, 2 failures, 1 pending"}, Tally{4, 2}},
		{RSpec, []string{"1 example, 0 failures"}, Tally{1, 0}},
		{Nosetests, []string{"..F.E", "Ran 5 tests in 0.003s", "", "FAILED (failures=1, errors=1)"}, Tally{3, 2}},
		{Nosetests, []string{"Ran 2 tests in 0.001s", "OK"}, Tally{2, 0}},
		{PHPUnit, []string{"OK (3 tests, 7 assertions)"}, Tally{3, 0}},
		{PHPUnit, []string{"Tests: 6, Assertions: 9, Errors: 1, Failures: 2."}, Tally{3, 3}},
		{PHPUnit, []string{"Tests: 4, Assertions: 4, Failures: 1."}, Tally{3, 1}},
		{Maven, []string{
			"[INFO] Tests run: 3, Failures: 1, Errors: 0, Skipped: 0, Time elapsed: 0.05 s - in a.FooTest",
			"[INFO] Tests run: 2, Failures: 0, Errors: 0, Skipped: 0, Time elapsed: 0.01 s - in a.BarTest",
			"[ERROR] Tests run: 5, Failures: 1, Errors: 0, Skipped: 0",
		}, Tally{4, 1}},
		{Mvn, []string{"Tests run: 4, Failures: 1, Errors: 1, Skipped: 1"}, Tally{2, 2}},
		{Sbt, []string{"[info] Tests: succeeded 8, failed 1, canceled 0, ignored 0, pending 0"}, Tally{8, 1}},
		{Cabal, []string{"1 of 1 test suites (3 of 5 test cases) passed."}, Tally{3, 2}},
		{Gradle, []string{"7 tests completed, 2 failed"}, Tally{5, 2}},
		{NUnit, []string{"Tests run: 5, Errors: 1, Failures: 1, Inconclusive: 0, Time: 0.1 seconds"}, Tally{3, 2}},
		{NUnit, []string{"    Test Count: 5, Passed: 4, Failed: 1, Warnings: 0, Inconclusive: 0, Skipped: 0"}, Tally{4, 1}},
	}
	for _, tt := range tests {
		spec, ok := Lookup(tt.framework)
		if !ok {
			t.Fatalf("Lookup(%q) failed", tt.framework)
		}
		if got := feed(spec.Recognizer(), tt.lines...); got != tt.want {
			t.Errorf("%s %q: Tally = %+v, want %+v", tt.framework, tt.lines, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	names := Names()
	for _, want := range []string{"mocha", "sbt", "mvn", "maven", "rspec", "nosetests", "cabal", "phpunit", "go", "prove", "gradle", "nunit-console"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() missing %q", want)
		}
	}
}

func TestSpecArgs_RequiredAppendedOnce(t *testing.T) {
	spec, _ := Lookup(Go)
	if got := spec.Args([]string{"./..."}); !slices.Equal(got, []string{"./...", "-v"}) {
		t.Errorf("Args = %q", got)
	}
	if got := spec.Args([]string{"-v", "./..."}); !slices.Equal(got, []string{"-v", "./..."}) {
		t.Errorf("Args = %q", got)
	}
}

func TestGeneric_UsesDefaultRecognizer(t *testing.T) {
	spec := Generic("ruby")
	if spec.Command != "ruby" {
		t.Errorf("Command = %q", spec.Command)
	}
	got := feed(spec.Recognizer(), "3 tests, 3 assertions, 0 failures, 1 errors, 0 pendings")
	if got != (Tally{Success: 2, Failure: 1}) {
		t.Errorf("Tally = %+v", got)
	}
}

func TestTally_Total(t *testing.T) {
	if (Tally{Success: 2, Failure: 3}).Total() != 5 {
		t.Error("Total != 5")
	}
}
