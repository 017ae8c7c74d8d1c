package preprocessor

import (
	"errors"
	"fmt"
)

type Kind int

const (
	DirectiveSyntaxError Kind = iota
	UnmatchedElseOrEndifError
	UnterminatedConditionalError
	MacroRedefinitionWarning
	EvaluationError
	UserError
	VersionOrderError
	ExtensionError
	ReservedNameWarning
)

var kindNames = [...]string{
	DirectiveSyntaxError:         "DirectiveSyntaxError",
	UnmatchedElseOrEndifError:    "UnmatchedElseOrEndifError",
	UnterminatedConditionalError: "UnterminatedConditionalError",
	MacroRedefinitionWarning:     "MacroRedefinitionWarning",
	EvaluationError:              "EvaluationError",
	UserError:                    "UserError",
	VersionOrderError:            "VersionOrderError",
	ExtensionError:               "ExtensionError",
	ReservedNameWarning:          "ReservedNameWarning",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a problem found while preprocessing. Line is the reported
// line, i.e. after any #line adjustment.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Line     int
	Severity Severity
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%d: %s: %s", d.Line, d.Severity, d.Message)
}

// Fatal reports whether the diagnostic stopped emission.
func (d Diagnostic) Fatal() bool {
	return d.Kind == UserError || d.Kind == VersionOrderError
}

// Extension is an #extension directive seen in active code.
type Extension struct {
	Name, Behavior string
	Line           int
}

// Pragma is a #pragma directive seen in active code.
type Pragma struct {
	Line int
	Text string
}

// Result is the outcome of one Process call.
type Result struct {
	Output      string
	Diagnostics []Diagnostic
	// Version is the number given by #version, 0 when absent.
	Version    int
	Profile    string
	Extensions []Extension
	Pragmas    []Pragma
}

// Err joins every Error-severity diagnostic, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, d := range r.Diagnostics {
		if d.Severity == Error {
			errs = append(errs, d)
		}
	}
	return errors.Join(errs...)
}

// Fatal reports whether processing was halted.
func (r Result) Fatal() bool {
	for _, d := range r.Diagnostics {
		if d.Fatal() {
			return true
		}
	}
	return false
}
