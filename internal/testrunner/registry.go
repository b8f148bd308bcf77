package testrunner

import (
	"slices"

	"github.com/deixis/codecheck/internal/framework"
)

// Registry maps framework names to runners.
type Registry struct {
	opts Options
}

// NewRegistry returns a registry whose runners share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// DefaultRegistry creates runners with no environment overlay, echo off
// and logging discarded.
var DefaultRegistry = NewRegistry(Options{})

// Frameworks lists the recognised framework names.
func (r *Registry) Frameworks() []string {
	return framework.Names()
}

// IsKnown reports whether name is a recognised framework.
func (r *Registry) IsKnown(name string) bool {
	return slices.Contains(framework.Names(), name)
}

// Spec returns the framework spec for name, falling back to a generic
// spec that runs name itself with the default recognizer.
func (r *Registry) Spec(name string) framework.Spec {
	if spec, ok := framework.Lookup(name); ok {
		return spec
	}
	return framework.Generic(name)
}

// New creates a runner for name. Unknown names never fail lookup; an
// error is only returned when the resulting command cannot be built,
// such as for an empty name.
func (r *Registry) New(name string, args []string, dir string) (*TestRunner, error) {
	return New(r.Spec(name), args, dir, r.opts)
}
