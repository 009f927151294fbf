package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputValidation    = errors.New("invalid input")
	ErrSelectorOutput     = errors.New("unparseable selector output")
	ErrMissingSource      = errors.New("missing source")
	ErrExternalProcess    = errors.New("external process failed")
	ErrAssemblyIncomplete = errors.New("assembly incomplete")
)

// ProcessError describes a failed encoder or prober invocation.
type ProcessError struct {
	Tool       string
	Op         string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Tool, e.Op)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		b.WriteString("\n")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrExternalProcess }
