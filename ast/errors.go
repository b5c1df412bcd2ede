package ast

import (
	"fmt"
	"strings"

	"github.com/aro-lang/aro/location"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	// SeverityError indicates the program cannot be compiled or run as-is.
	SeverityError Severity = iota
	// SeverityWarning indicates a non-fatal condition: the program compiles
	// and runs, but the diagnostic flags a likely mistake.
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a single parse, semantic, or runtime finding reported
// in business terms rather than stack frames (spec §7).
type Diagnostic struct {
	Severity Severity           `json:"severity"`
	Location *location.Location `json:"location,omitempty"`
	Message  string             `json:"message"`
	Hints    []string           `json:"hints,omitempty"`
}

// NewError builds an error-severity Diagnostic.
func NewError(loc *location.Location, hints []string, f string, a ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Location: loc, Message: fmt.Sprintf(f, a...), Hints: hints}
}

// NewWarning builds a warning-severity Diagnostic.
func NewWarning(loc *location.Location, hints []string, f string, a ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityWarning, Location: loc, Message: fmt.Sprintf(f, a...), Hints: hints}
}

func (d *Diagnostic) Error() string {
	prefix := d.Location.String()
	if prefix == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, d.Severity, d.Message)
}

// Diagnostics is an accumulated collection of Diagnostic values. The
// parser and analyzer never stop at the first error; they accumulate
// diagnostics and keep going so a caller sees everything wrong with a
// source file in one pass.
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	if len(ds) == 0 {
		return "no error(s)"
	}
	if len(ds) == 1 {
		return ds[0].Error()
	}
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Error()
	}
	return fmt.Sprintf("%d diagnostics occurred:\n%s", len(ds), strings.Join(parts, "\n"))
}

// HasErrors reports whether any Diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the subset of ds with error severity.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
