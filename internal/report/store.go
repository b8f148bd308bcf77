// Package report provides structured persistence and retrieval of
// codecheck run results. Results are stored as typed structs and can be
// queried by suite or console case name.
package report

import (
	"fmt"
	"strings"

	"github.com/deixis/codecheck/internal/console"
	"github.com/deixis/codecheck/internal/framework"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Check runs every configured suite and console case.
	Check Kind = "check"
	// Test runs a single test framework.
	Test Kind = "test"
	// Console verifies a single console interaction.
	Console Kind = "console"
)

// Status is the outcome of one suite or console case.
type Status string

const (
	Pass        Status = "pass"
	Fail        Status = "fail"
	Ambiguous   Status = "ambiguous"
	Unavailable Status = "unavailable"
	Error       Status = "error"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured output of one run.
type RunResult struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Suites  []SuiteResult   `json:"suites,omitempty"`
	Console []ConsoleResult `json:"console,omitempty"`
}

// SuiteResult is the outcome of one test framework run.
type SuiteResult struct {
	Name      string          `json:"name"`
	Framework string          `json:"framework"`
	Command   string          `json:"command,omitempty"`
	Status    Status          `json:"status"`
	Tally     framework.Tally `json:"tally"`
	ExitCode  int             `json:"exit_code"`
	Reason    string          `json:"reason,omitempty"` // ambiguity reason, install hint or error text
	Output    string          `json:"output,omitempty"` // tail of combined output for failed runs
}

// ConsoleResult is the outcome of one console interaction.
type ConsoleResult struct {
	Name     string          `json:"name"`
	Command  string          `json:"command"`
	Status   Status          `json:"status"`
	Errors   []console.Error `json:"errors,omitempty"`
	Actual   []string        `json:"actual,omitempty"`
	ExitCode int             `json:"exit_code"`
	Reason   string          `json:"reason,omitempty"`
	Stderr   string          `json:"stderr,omitempty"` // tail of stderr for failed cases
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Passed reports whether every suite and console case passed.
func (r *RunResult) Passed() bool {
	for _, s := range r.Suites {
		if s.Status != Pass {
			return false
		}
	}
	for _, c := range r.Console {
		if c.Status != Pass {
			return false
		}
	}
	return true
}

// Counts returns the number of entries per status.
func (r *RunResult) Counts() map[Status]int {
	out := map[Status]int{}
	for _, s := range r.Suites {
		out[s.Status]++
	}
	for _, c := range r.Console {
		out[c.Status]++
	}
	return out
}

// Diagnostic is a uniform view of one non-passing entry.
type Diagnostic struct {
	Source  string // "test" or "console"
	Name    string
	Status  Status
	Line    int    // 1-based output line for console errors
	Detail  string // framework name or error kind
	Message string
	Output  string
}

// Diagnostics returns every non-passing entry of result.
func Diagnostics(result *RunResult) []Diagnostic {
	return toDiagnostics(result, "")
}

// ByName returns the diagnostics of the suite or console case called name.
func ByName(result *RunResult, name string) []Diagnostic {
	return toDiagnostics(result, name)
}

// Lookup finds a suite or console case by name. Exactly one of the
// returned pointers is non-nil when found.
func Lookup(result *RunResult, name string) (*SuiteResult, *ConsoleResult, bool) {
	for i := range result.Suites {
		if result.Suites[i].Name == name {
			return &result.Suites[i], nil, true
		}
	}
	for i := range result.Console {
		if result.Console[i].Name == name {
			return nil, &result.Console[i], true
		}
	}
	return nil, nil, false
}

// Summary renders a one-line overview such as "3 pass, 1 fail".
func Summary(result *RunResult) string {
	counts := result.Counts()
	var parts []string
	for _, s := range []Status{Pass, Fail, Ambiguous, Unavailable, Error} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "nothing to run"
	}
	return strings.Join(parts, ", ")
}

func toDiagnostics(r *RunResult, name string) []Diagnostic {
	var out []Diagnostic

	for _, s := range r.Suites {
		if s.Status == Pass || (name != "" && s.Name != name) {
			continue
		}
		msg := s.Reason
		if msg == "" {
			msg = fmt.Sprintf("%d passed, %d failed, exit code %d", s.Tally.Success, s.Tally.Failure, s.ExitCode)
		}
		out = append(out, Diagnostic{
			Source:  "test",
			Name:    s.Name,
			Status:  s.Status,
			Detail:  s.Framework,
			Message: msg,
			Output:  s.Output,
		})
	}

	for _, c := range r.Console {
		if c.Status == Pass || (name != "" && c.Name != name) {
			continue
		}
		if len(c.Errors) == 0 {
			out = append(out, Diagnostic{
				Source:  "console",
				Name:    c.Name,
				Status:  c.Status,
				Message: c.Reason,
			})
			continue
		}
		for _, e := range c.Errors {
			out = append(out, Diagnostic{
				Source:  "console",
				Name:    c.Name,
				Status:  c.Status,
				Line:    e.Index + 1,
				Detail:  string(e.Kind),
				Message: e.String(),
				Output:  e.Diff(),
			})
		}
	}

	return out
}
