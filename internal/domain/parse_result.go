package domain

// ParseResult bundles the records accepted from an input file with the row-level errors found in
// it. Both slices keep file order.
type ParseResult[T any] struct {
	Records []T
	Errors  []ValidationError
}

// NewParseResult returns a result with non-nil, empty slices.
func NewParseResult[T any]() ParseResult[T] {
	return ParseResult[T]{Records: []T{}, Errors: []ValidationError{}}
}

// HasRecords reports whether at least one line was accepted.
func (r ParseResult[T]) HasRecords() bool {
	return len(r.Records) > 0
}
