package runbook

import (
	"errors"
	"fmt"
)

// ErrParse is the sentinel for runbook parse and validation failures.
var ErrParse = errors.New("runbook parse error")

// ParseError reports why a runbook file was rejected.
type ParseError struct {
	Path   string
	Reason string
}

// Error returns formatted error message
func (e *ParseError) Error() string {
	return fmt.Sprintf("runbook %s: %s", e.Path, e.Reason)
}

// Unwrap returns the sentinel for errors.Is matching
func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a parse error for a file.
func NewParseError(path, reason string) *ParseError {
	return &ParseError{Path: path, Reason: reason}
}
