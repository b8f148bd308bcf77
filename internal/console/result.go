package console

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrorKind classifies a verification error.
type ErrorKind string

const (
	// Mismatch is a line present on both sides with different content.
	Mismatch ErrorKind = "mismatch"
	// InsufficientOutput means the program printed fewer lines than expected.
	InsufficientOutput ErrorKind = "insufficient_output"
	// ExcessOutput means the program printed more lines than expected.
	ExcessOutput ErrorKind = "excess_output"
)

// Error is one positional verification failure. For length errors Index
// is the first missing or extra position.
type Error struct {
	Index    int       `json:"index"`
	Kind     ErrorKind `json:"kind"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

func (e Error) String() string {
	switch e.Kind {
	case Mismatch:
		return fmt.Sprintf("line %d: expected %q, got %q", e.Index+1, e.Expected, e.Actual)
	case InsufficientOutput:
		return fmt.Sprintf("line %d: output ended, expected %q", e.Index+1, e.Expected)
	case ExcessOutput:
		return fmt.Sprintf("line %d: unexpected output %q", e.Index+1, e.Actual)
	default:
		return fmt.Sprintf("line %d: %s", e.Index+1, e.Kind)
	}
}

// Diff renders a character-level diff of a mismatch as
// "-removed+inserted" spans, or "" for other kinds.
func (e Error) Diff() string {
	if e.Kind != Mismatch {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(e.Expected, e.Actual, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, "[-%s-]", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, "{+%s+}", d.Text)
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// Result is the outcome of one verification. Succeed is true exactly
// when Errors is empty; the exit code does not affect it.
type Result struct {
	Succeed  bool     `json:"succeed"`
	Errors   []Error  `json:"errors,omitempty"`
	Actual   []string `json:"actual"`
	ExitCode int      `json:"exit_code"`
}

// Compare matches expected and actual by position. Each differing pair
// yields one Mismatch; a length difference yields exactly one
// InsufficientOutput or ExcessOutput error regardless of how many lines
// are missing or extra.
func Compare(expected, actual []string) *Result {
	r := &Result{Actual: actual}

	n := min(len(expected), len(actual))
	for i := range n {
		if expected[i] != actual[i] {
			r.Errors = append(r.Errors, Error{
				Index:    i,
				Kind:     Mismatch,
				Expected: expected[i],
				Actual:   actual[i],
			})
		}
	}

	switch {
	case len(actual) < len(expected):
		r.Errors = append(r.Errors, Error{Index: n, Kind: InsufficientOutput, Expected: expected[n]})
	case len(actual) > len(expected):
		r.Errors = append(r.Errors, Error{Index: n, Kind: ExcessOutput, Actual: actual[n]})
	}

	r.Succeed = len(r.Errors) == 0
	return r
}
