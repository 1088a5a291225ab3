package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrCorruptJobErrors is returned when a persisted error blob cannot be decoded.
var ErrCorruptJobErrors = errors.New("corrupt register job errors")

// JobError is one rejected row of a register job.
type JobError struct {
	VRM        string `json:"vrm,omitempty"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// JobErrors is the ordered list of errors attached to a register job. It is stored as a single
// JSONB value.
type JobErrors []JobError

// NewJobError builds an error that is not tied to a particular line, e.g. a structural failure.
func NewJobError(title, detail string) JobError {
	return JobError{Title: title, Detail: detail}
}

// JobErrorFromValidation converts a row-level validation error. vrm may be empty.
func JobErrorFromValidation(err ValidationError, vrm string) JobError {
	return JobError{
		VRM:        vrm,
		Title:      err.Title(),
		Detail:     err.DetailWithLine(),
		LineNumber: err.LineNumber(),
	}
}

// JobErrorsFromValidation converts validation errors in order. vrmForLine may be nil.
func JobErrorsFromValidation(errs []ValidationError, vrmForLine func(line int) string) JobErrors {
	out := make(JobErrors, 0, len(errs))
	for _, err := range errs {
		vrm := ""
		if vrmForLine != nil {
			vrm = vrmForLine(err.LineNumber())
		}
		out = append(out, JobErrorFromValidation(err, vrm))
	}
	return out
}

// SortedByLine returns a copy ordered by line number. Errors without a line come first and the
// relative order of equal lines is kept.
func (e JobErrors) SortedByLine() JobErrors {
	sorted := append(JobErrors(nil), e...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LineNumber < sorted[j].LineNumber
	})
	return sorted
}

// Limit returns at most n errors. A non-positive n returns the list unchanged.
func (e JobErrors) Limit(n int) JobErrors {
	if n <= 0 || len(e) <= n {
		return e
	}
	return e[:n]
}

// EncodeJobErrors marshals the list into its JSONB layout. A nil or empty list encodes to nil so
// the column stays NULL; DecodeJobErrors turns that NULL back into JobErrors{} (empty, never nil).
func EncodeJobErrors(errs JobErrors) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("marshal register job errors: %w", err)
	}
	return encoded, nil
}

// DecodeJobErrors unmarshals a persisted blob. NULL or empty input yields an empty list; anything
// that fails to decode is reported as ErrCorruptJobErrors.
func DecodeJobErrors(data []byte) (JobErrors, error) {
	if len(data) == 0 {
		return JobErrors{}, nil
	}
	var errs JobErrors
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptJobErrors, err)
	}
	if errs == nil {
		errs = JobErrors{}
	}
	return errs, nil
}
