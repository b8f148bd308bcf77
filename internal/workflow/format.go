package workflow

import (
	"fmt"
	"strings"

	"github.com/deixis/codecheck/internal/report"
)

// maxFailureLines is the maximum number of output lines shown per entry.
const maxFailureLines = 20

// Format renders a run as plain text: a status header, one line per
// suite and console case, and details for everything that did not pass.
func Format(rr *report.RunResult) string {
	var b strings.Builder

	status := "PASS"
	if !rr.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "Status: %s (%s)\n", status, report.Summary(rr))
	fmt.Fprintf(&b, "Run ID: %s\n", rr.ID)

	if len(rr.Suites) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Tests:")
		for _, s := range rr.Suites {
			fmt.Fprintf(&b, "  %-12s %s: %d passed, %d failed", s.Status, s.Name, s.Tally.Success, s.Tally.Failure)
			if s.Status != report.Unavailable && s.Status != report.Error {
				fmt.Fprintf(&b, " (exit %d)", s.ExitCode)
			}
			fmt.Fprintln(&b)
		}
	}
	if len(rr.Console) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Console:")
		for _, c := range rr.Console {
			fmt.Fprintf(&b, "  %-12s %s", c.Status, c.Name)
			if n := len(c.Errors); n > 0 {
				fmt.Fprintf(&b, ": %d errors", n)
			}
			fmt.Fprintln(&b)
		}
	}

	for _, s := range rr.Suites {
		if s.Status == report.Pass {
			continue
		}
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s (%s): %s\n", s.Name, s.Framework, s.Status)
		if s.Command != "" {
			fmt.Fprintf(&b, "  command: %s\n", s.Command)
		}
		writeIndented(&b, s.Reason)
		writeIndented(&b, truncateLines(s.Output, maxFailureLines))
	}
	for _, c := range rr.Console {
		if c.Status == report.Pass && c.Reason == "" {
			continue
		}
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%s (console): %s\n", c.Name, c.Status)
		writeIndented(&b, c.Reason)
		if c.Stderr != "" {
			fmt.Fprintln(&b, "  stderr:")
			writeIndented(&b, truncateLines(c.Stderr, maxFailureLines))
		}
		for i, e := range c.Errors {
			if i == maxFailureLines {
				fmt.Fprintf(&b, "  ... (%d more errors)\n", len(c.Errors)-i)
				break
			}
			fmt.Fprintf(&b, "  - %s\n", e)
			if d := e.Diff(); d != "" {
				fmt.Fprintf(&b, "    diff: %s\n", d)
			}
		}
	}

	return b.String()
}

func writeIndented(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	for _, line := range strings.Split(s, "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
}

// truncateLines keeps the last n lines of s, noting how many were cut.
func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	cut := len(lines) - n
	return fmt.Sprintf("... (%d lines truncated)\n%s", cut, strings.Join(lines[cut:], "\n"))
}

// FormatFailures lists one line per non-passing entry, suitable for
// piping into cc_inspect.
func FormatFailures(rr *report.RunResult) []string {
	var out []string
	for _, d := range report.Diagnostics(rr) {
		line := fmt.Sprintf("%s %s: %s", d.Source, d.Name, d.Message)
		out = append(out, strings.SplitN(line, "\n", 2)[0])
	}
	return out
}
