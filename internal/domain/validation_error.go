package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ValueErrorTitle is the title of a row that carries an invalid value.
	ValueErrorTitle = "Value error"
	// MissingFieldTitle is the title of a row that omits a mandatory value.
	MissingFieldTitle = "Mandatory field missing"
)

var (
	// ErrEmptyValidationDetail is returned when a validation error is built without a detail.
	ErrEmptyValidationDetail = errors.New("validation error detail must not be empty")
	// ErrInvalidLineNumber is returned when a validation error is built for a non-positive line.
	ErrInvalidLineNumber = errors.New("validation error line number must be positive")
)

// ValidationError reports a row-level problem found while parsing or validating an input file.
// Values are immutable once built; use NewValidationError or NewMissingFieldError.
type ValidationError struct {
	title      string
	detail     string
	lineNumber int
}

// NewValidationError builds a "Value error" for the given line.
func NewValidationError(detail string, lineNumber int) (ValidationError, error) {
	return newValidationError(ValueErrorTitle, detail, lineNumber)
}

// NewMissingFieldError builds a "Mandatory field missing" error for the given line.
func NewMissingFieldError(detail string, lineNumber int) (ValidationError, error) {
	return newValidationError(MissingFieldTitle, detail, lineNumber)
}

func newValidationError(title, detail string, lineNumber int) (ValidationError, error) {
	if strings.TrimSpace(detail) == "" {
		return ValidationError{}, ErrEmptyValidationDetail
	}
	if lineNumber <= 0 {
		return ValidationError{}, fmt.Errorf("%w: got %d", ErrInvalidLineNumber, lineNumber)
	}
	return ValidationError{title: title, detail: detail, lineNumber: lineNumber}, nil
}

func (e ValidationError) Title() string   { return e.title }
func (e ValidationError) Detail() string  { return e.detail }
func (e ValidationError) LineNumber() int { return e.lineNumber }

// DetailWithLine renders the detail prefixed with its line, e.g. "Line 3: Invalid VRM".
func (e ValidationError) DetailWithLine() string {
	return fmt.Sprintf("Line %d: %s", e.lineNumber, e.detail)
}

func (e ValidationError) Error() string {
	return e.DetailWithLine()
}
