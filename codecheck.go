// Package codecheck runs test frameworks and scripted console programs
// as child processes and reports structured results.
package codecheck

// Version is the codecheck release version.
const Version = "0.3.0"
