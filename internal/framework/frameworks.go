package framework

import (
	"slices"
)

// Framework names accepted by the registry.
const (
	Mocha     = "mocha"
	Sbt       = "sbt"
	Mvn       = "mvn"
	Maven     = "maven"
	RSpec     = "rspec"
	Nosetests = "nosetests"
	Cabal     = "cabal"
	PHPUnit   = "phpunit"
	Go        = "go"
	Prove     = "prove"
	Gradle    = "gradle"
	NUnit     = "nunit-console"
)

// Spec describes how to invoke one framework and read its output.
type Spec struct {
	Name string
	// Command is the invocation template, split like a command line.
	Command string
	// RequiredArgs are appended when not already present in the user
	// arguments (e.g. -v so per-test lines are printed).
	RequiredArgs []string
	// Install is a human hint shown when the executable is missing.
	Install string

	newRecognizer func() Recognizer
}

// Recognizer returns a fresh recognizer for one run.
func (s Spec) Recognizer() Recognizer {
	if s.newRecognizer == nil {
		return DefaultRecognizer()
	}
	return s.newRecognizer()
}

// Args returns user args followed by any missing required args.
func (s Spec) Args(user []string) []string {
	args := slices.Clone(user)
	for _, req := range s.RequiredArgs {
		if !slices.Contains(args, req) {
			args = append(args, req)
		}
	}
	return args
}

var builtin = []Spec{
	{Name: Mocha, Command: "mocha", Install: "npm install --global mocha",
		newRecognizer: func() Recognizer { return mochaRecognizer{} }},
	{Name: Sbt, Command: "sbt test", Install: "https://www.scala-sbt.org/download",
		newRecognizer: sbtRecognizer},
	{Name: Mvn, Command: "mvn test", Install: "https://maven.apache.org/install.html",
		newRecognizer: newMaven},
	{Name: Maven, Command: "mvn test", Install: "https://maven.apache.org/install.html",
		newRecognizer: newMaven},
	{Name: RSpec, Command: "rspec", Install: "gem install rspec",
		newRecognizer: rspecRecognizer},
	{Name: Nosetests, Command: "nosetests", Install: "pip install nose",
		newRecognizer: func() Recognizer { return &noseRecognizer{} }},
	{Name: Cabal, Command: "cabal test", Install: "https://www.haskell.org/ghcup/",
		newRecognizer: cabalRecognizer},
	{Name: PHPUnit, Command: "phpunit", Install: "composer global require phpunit/phpunit",
		newRecognizer: func() Recognizer { return SummaryRecognizer{Rules: []SummaryRule{phpunitOK, phpunitTests}} }},
	{Name: Go, Command: "go test", RequiredArgs: []string{"-v"}, Install: "https://go.dev/doc/install",
		newRecognizer: func() Recognizer {
			return PrefixRecognizer{Pass: []string{"--- PASS:"}, Fail: []string{"--- FAIL:"}}
		}},
	{Name: Prove, Command: "prove", RequiredArgs: []string{"-v"}, Install: "cpan Test::Harness",
		newRecognizer: func() Recognizer {
			return PrefixRecognizer{Pass: []string{"ok "}, Fail: []string{"not ok "}}
		}},
	{Name: Gradle, Command: "gradle test", Install: "https://gradle.org/install/",
		newRecognizer: gradleRecognizer},
	{Name: NUnit, Command: "nunit-console", Install: "https://nunit.org/download/",
		newRecognizer: nunitRecognizer},
}

func newMaven() Recognizer {
	return mavenRecognizer{SummaryRecognizer{Rules: []SummaryRule{mavenSummary}}}
}

// Names returns the recognised framework names in a fixed order.
func Names() []string {
	names := make([]string, len(builtin))
	for i, s := range builtin {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the Spec for name.
func Lookup(name string) (Spec, bool) {
	for _, s := range builtin {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Generic returns a Spec that runs name itself as the executable and
// applies the default recognizer.
func Generic(name string) Spec {
	return Spec{Name: name, Command: name}
}
