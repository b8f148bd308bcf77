package framework

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/deixis/codecheck/internal/runner"
)

var (
	mochaPassing = regexp.MustCompile(`^\s*(\d+) passing\b`)
	mochaFailing = regexp.MustCompile(`^\s*(\d+) failing\b`)
)

// mochaRecognizer reads the spec reporter epilogue, which reports
// passing and failing counts on separate lines.
type mochaRecognizer struct{}

func (mochaRecognizer) Recognize(_ runner.Stream, text string, t *Tally) {
	line := Normalize(text)
	if m := mochaPassing.FindStringSubmatch(line); m != nil {
		t.Success, _ = strconv.Atoi(m[1])
	} else if m := mochaFailing.FindStringSubmatch(line); m != nil {
		t.Failure, _ = strconv.Atoi(m[1])
	}
}

var (
	noseRan    = regexp.MustCompile(`^Ran (\d+) tests? in `)
	noseFailed = regexp.MustCompile(`^FAILED \((.*)\)`)
)

// noseRecognizer combines "Ran N tests in Xs" with the following
// "FAILED (failures=F, errors=E)" line.
type noseRecognizer struct {
	total int
}

func (r *noseRecognizer) Recognize(_ runner.Stream, text string, t *Tally) {
	line := Normalize(text)
	if m := noseRan.FindStringSubmatch(line); m != nil {
		r.total, _ = strconv.Atoi(m[1])
		*t = Tally{Success: r.total}
		return
	}
	if m := noseFailed.FindStringSubmatch(line); m != nil {
		bad := countIn(m[1], "failures=") + countIn(m[1], "errors=")
		if bad > r.total {
			bad = r.total
		}
		*t = Tally{Success: r.total - bad, Failure: bad}
	}
}

// countIn returns the integer following label in s, or 0.
func countIn(s, label string) int {
	i := strings.Index(s, label)
	if i < 0 {
		return 0
	}
	rest := s[i+len(label):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(rest[:end])
	return n
}

var phpunitOK = SummaryRule{
	Pattern: regexp.MustCompile(`^OK \((\d+) tests?, `),
	Parse:   totalFailuresErrors(1, -1, -1),
}

var phpunitTests = SummaryRule{
	Pattern: regexp.MustCompile(`^Tests: (\d+), Assertions: \d+.*$`),
	Parse: func(m []string) (Tally, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Tally{}, false
		}
		bad := countIn(m[0], "Failures: ") + countIn(m[0], "Errors: ")
		if bad > n {
			bad = n
		}
		return Tally{Success: n - bad, Failure: bad}, true
	},
}

// mavenSummary matches surefire totals. Per-class lines carry
// "Time elapsed" and are skipped so the module summary is what remains.
var mavenSummary = SummaryRule{
	Pattern: regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Errors: (\d+)(, Skipped: \d+)?$`),
	Parse:   totalFailuresErrors(1, 2, 3),
}

func rspecRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{{
		Pattern: regexp.MustCompile(`^(\d+) examples?, (\d+) failures?`),
		Parse:   totalFailuresErrors(1, 2, -1),
	}}}
}

func sbtRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{{
		Pattern: regexp.MustCompile(`Tests: succeeded (\d+), failed (\d+)`),
		Parse:   passFail(1, 2),
	}}}
}

func cabalRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{{
		Pattern: regexp.MustCompile(`\((\d+) of (\d+) test cases\) passed`),
		Parse: func(m []string) (Tally, bool) {
			passed, err1 := strconv.Atoi(m[1])
			total, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil || passed > total {
				return Tally{}, false
			}
			return Tally{Success: passed, Failure: total - passed}, true
		},
	}}}
}

func gradleRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{{
		Pattern: regexp.MustCompile(`^(\d+) tests? completed, (\d+) failed`),
		Parse:   totalFailuresErrors(1, 2, -1),
	}}}
}

func nunitRecognizer() Recognizer {
	return SummaryRecognizer{Rules: []SummaryRule{
		{
			// NUnit 3: "Test Count: 5, Passed: 4, Failed: 1, Warnings: 0, ..."
			Pattern: regexp.MustCompile(`Test Count: \d+, Passed: (\d+), Failed: (\d+)`),
			Parse:   passFail(1, 2),
		},
		{
			// NUnit 2: "Tests run: 5, Errors: 0, Failures: 1, Inconclusive: 0, ..."
			Pattern: regexp.MustCompile(`^Tests run: (\d+), Errors: (\d+), Failures: (\d+)`),
			Parse:   totalFailuresErrors(1, 3, 2),
		},
	}}
}

type mavenRecognizer struct{ SummaryRecognizer }

func (r mavenRecognizer) Recognize(stream runner.Stream, text string, t *Tally) {
	if strings.Contains(text, "Time elapsed") {
		return
	}
	r.SummaryRecognizer.Recognize(stream, text, t)
}
