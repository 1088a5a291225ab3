package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewValidationError(t *testing.T) {
	for _, line := range []int{0, -1, -100} {
		if _, err := NewValidationError("Invalid VRM", line); !errors.Is(err, ErrInvalidLineNumber) {
			t.Fatalf("line %d: expected ErrInvalidLineNumber, got %v", line, err)
		}
	}
	if _, err := NewValidationError("   ", 3); !errors.Is(err, ErrEmptyValidationDetail) {
		t.Fatalf("expected ErrEmptyValidationDetail, got %v", err)
	}

	for _, line := range []int{1, 2, 999} {
		verr, err := NewValidationError("Invalid VRM", line)
		if err != nil {
			t.Fatalf("line %d: unexpected error %v", line, err)
		}
		if verr.Detail() != "Invalid VRM" || verr.LineNumber() != line || verr.Title() != ValueErrorTitle {
			t.Fatalf("validation error does not echo inputs: %+v", verr)
		}
	}
}

func TestValidationErrorRendersLine(t *testing.T) {
	verr, err := NewMissingFieldError("Missing VRM", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verr.Title() != MissingFieldTitle {
		t.Fatalf("expected missing field title, got %q", verr.Title())
	}
	if verr.Error() != "Line 4: Missing VRM" {
		t.Fatalf("unexpected rendering %q", verr.Error())
	}
}

func TestJobErrorsRoundTrip(t *testing.T) {
	cases := []JobErrors{
		{{VRM: "AB12CDE", Title: ValueErrorTitle, Detail: "Line 3: Invalid VRM", LineNumber: 3}},
		{
			{VRM: "ZZ99ZZZ", Title: MissingFieldTitle, Detail: "Line 9: Missing end date", LineNumber: 9},
			{Title: ValueErrorTitle, Detail: "Line 2: quote \" and unicode ✓", LineNumber: 2},
			{Title: ValueErrorTitle, Detail: "Line contains 6 fields whereas it should 7"},
		},
	}
	for _, errs := range cases {
		encoded, err := EncodeJobErrors(errs)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, err := DecodeJobErrors(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(errs, decoded) {
			t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", errs, decoded)
		}
	}
}

func TestEncodeJobErrorsEmptyIsNull(t *testing.T) {
	for _, errs := range []JobErrors{nil, {}} {
		encoded, err := EncodeJobErrors(errs)
		if err != nil || encoded != nil {
			t.Fatalf("expected nil blob for %#v, got %q (%v)", errs, encoded, err)
		}
	}
	decoded, err := DecodeJobErrors(nil)
	if err != nil || decoded == nil || len(decoded) != 0 {
		t.Fatalf("expected empty non-nil errors for NULL, got %#v (%v)", decoded, err)
	}
}

func TestDecodeJobErrorsCorrupt(t *testing.T) {
	_, err := DecodeJobErrors([]byte(`{"vrm":`))
	if !errors.Is(err, ErrCorruptJobErrors) {
		t.Fatalf("expected ErrCorruptJobErrors, got %v", err)
	}
}

func TestJobErrorsSortAndLimit(t *testing.T) {
	errs := JobErrors{
		{Detail: "c", LineNumber: 7},
		{Detail: "a", LineNumber: 2},
		{Detail: "b", LineNumber: 2},
		{Detail: "d", LineNumber: 1},
	}
	sorted := errs.SortedByLine()
	got := []string{sorted[0].Detail, sorted[1].Detail, sorted[2].Detail, sorted[3].Detail}
	if !reflect.DeepEqual(got, []string{"d", "a", "b", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if errs[0].Detail != "c" {
		t.Fatalf("SortedByLine must not reorder the receiver")
	}
	if limited := sorted.Limit(2); len(limited) != 2 || limited[1].Detail != "a" {
		t.Fatalf("unexpected limited errors %+v", limited)
	}
	if len(sorted.Limit(0)) != 4 {
		t.Fatalf("non-positive limit must keep every error")
	}
}

func TestJobErrorsFromValidation(t *testing.T) {
	first, _ := NewValidationError("Invalid VRM", 2)
	second, _ := NewMissingFieldError("Missing plate", 5)
	vrms := map[int]string{2: "AB1"}

	errs := JobErrorsFromValidation([]ValidationError{first, second}, func(line int) string { return vrms[line] })
	want := JobErrors{
		{VRM: "AB1", Title: ValueErrorTitle, Detail: "Line 2: Invalid VRM", LineNumber: 2},
		{Title: MissingFieldTitle, Detail: "Line 5: Missing plate", LineNumber: 5},
	}
	if !reflect.DeepEqual(errs, want) {
		t.Fatalf("unexpected conversion %+v", errs)
	}
}
