package csvparse

import (
	"errors"
	"fmt"
)

// Structural failures abort the whole file.
var (
	ErrLineTooLong     = errors.New("line too long")
	ErrFieldCount      = errors.New("invalid number of fields")
	ErrMalformedScalar = errors.New("malformed value")
	ErrMalformedLine   = errors.New("malformed line")
)

// StructuralError reports why a file could not be parsed at all.
type StructuralError struct {
	Line   int
	Reason string
	Err    error
}

func structural(line int, kind error, reason string) *StructuralError {
	return &StructuralError{Line: line, Reason: reason, Err: kind}
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}
