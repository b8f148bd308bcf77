// Package framework recognises test results in the textual output of
// external test frameworks. Each framework contributes a Recognizer that
// inspects one line at a time and updates a Tally.
package framework

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/deixis/codecheck/internal/runner"
)

// Tally counts recognised test outcomes.
type Tally struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Total returns Success + Failure.
func (t Tally) Total() int { return t.Success + t.Failure }

// Recognizer classifies output lines of one framework. Implementations
// may keep state between lines but must ignore lines they do not
// understand.
type Recognizer interface {
	Recognize(stream runner.Stream, text string, t *Tally)
}

// Normalize strips ANSI escape sequences and trailing whitespace so
// coloured reporter output matches the plain grammars.
func Normalize(text string) string {
	return strings.TrimRight(stripansi.Strip(text), " \t\r")
}

// PrefixRecognizer counts one success or failure per line starting with
// the corresponding literal prefix.
type PrefixRecognizer struct {
	Pass []string
	Fail []string
}

func (r PrefixRecognizer) Recognize(_ runner.Stream, text string, t *Tally) {
	line := Normalize(text)
	// Failure prefixes are checked first: "not ok" contains "ok".
	for _, p := range r.Fail {
		if strings.HasPrefix(line, p) {
			t.Failure++
			return
		}
	}
	for _, p := range r.Pass {
		if strings.HasPrefix(line, p) {
			t.Success++
			return
		}
	}
}

// SummaryRule parses one aggregate line. Parse returns ok=false when
// the line does not carry counts.
type SummaryRule struct {
	Pattern *regexp.Regexp
	Parse   func(m []string) (Tally, bool)
}

// SummaryRecognizer overwrites the tally with the counts of the latest
// matching summary line. Rules are tried in order; the first match wins.
type SummaryRecognizer struct {
	Rules []SummaryRule
}

func (r SummaryRecognizer) Recognize(_ runner.Stream, text string, t *Tally) {
	line := Normalize(text)
	for _, rule := range r.Rules {
		m := rule.Pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if parsed, ok := rule.Parse(m); ok {
			*t = parsed
		}
		return
	}
}

// totalFailuresErrors builds a Parse func for grammars reporting a
// total plus failure and error counts at the given submatch indexes.
// A negative index means the grammar has no such count.
func totalFailuresErrors(total, failures, errs int) func([]string) (Tally, bool) {
	return func(m []string) (Tally, bool) {
		n, ok := atoi(m, total)
		if !ok {
			return Tally{}, false
		}
		f, _ := atoi(m, failures)
		e, _ := atoi(m, errs)
		bad := f + e
		if bad > n {
			bad = n
		}
		return Tally{Success: n - bad, Failure: bad}, true
	}
}

// passFail builds a Parse func for grammars reporting pass and fail
// counts directly.
func passFail(pass, fail int) func([]string) (Tally, bool) {
	return func(m []string) (Tally, bool) {
		p, ok := atoi(m, pass)
		if !ok {
			return Tally{}, false
		}
		f, _ := atoi(m, fail)
		return Tally{Success: p, Failure: f}, true
	}
}

func atoi(m []string, i int) (int, bool) {
	if i < 0 || i >= len(m) || m[i] == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// rubyTestUnit matches the test-unit summary, e.g.
// "2 tests, 2 assertions, 0 failures, 0 errors, 0 pendings, 0 omissions, 0 notifications".
var rubyTestUnit = SummaryRule{
	Pattern: regexp.MustCompile(`^(\d+) tests,.*, (\d+) failures,.* (\d+) errors,.*`),
	Parse:   totalFailuresErrors(1, 2, 3),
}

// DefaultRecognizer is used for frameworks without a dedicated grammar.
func DefaultRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{rubyTestUnit}}
}
