package csvparse

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
)

const (
	DefaultMaxLineLength = 210
	DefaultMaxErrors     = 100000

	blankRowMessage = "Blank row. Please remove or add data."
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// RecordMapper coerces the raw fields of one line into a typed record. Any error it returns
// aborts the whole file.
type RecordMapper[T any] func(fields []string) (T, error)

// RowValidator checks one mapped record. It must be free of side effects; the returned errors
// are attached to the line and the record is dropped.
type RowValidator[T any] func(record T, lineNumber int) []domain.ValidationError

// Parser reads comma separated input line by line.
type Parser[T any] struct {
	mapper         RecordMapper[T]
	maxLineLength  int
	expectedFields int
	header         bool
	maxErrors      int
	logger         *slog.Logger
}

type Option func(*options)

type options struct {
	maxLineLength  int
	expectedFields int
	header         bool
	maxErrors      int
	logger         *slog.Logger
}

// WithMaxLineLength sets the longest accepted line, in characters.
func WithMaxLineLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLineLength = n
		}
	}
}

// WithExpectedFields makes any line with a different field count a structural failure.
func WithExpectedFields(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.expectedFields = n
		}
	}
}

// WithHeader consumes the first line as a header. It still counts as line 1.
func WithHeader() Option {
	return func(o *options) { o.header = true }
}

// WithMaxErrors caps the number of row-level errors kept in a result.
func WithMaxErrors(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxErrors = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds a parser that maps lines with mapper.
func New[T any](mapper RecordMapper[T], opts ...Option) *Parser[T] {
	cfg := options{
		maxLineLength: DefaultMaxLineLength,
		maxErrors:     DefaultMaxErrors,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Parser[T]{
		mapper:         mapper,
		maxLineLength:  cfg.maxLineLength,
		expectedFields: cfg.expectedFields,
		header:         cfg.header,
		maxErrors:      cfg.maxErrors,
		logger:         cfg.logger,
	}
}

// Parse reads the whole stream. Row-level problems found by validate are returned in the result;
// structural problems return a *StructuralError and no result.
func (p *Parser[T]) Parse(r io.Reader, validate RowValidator[T]) (domain.ParseResult[T], error) {
	result := domain.NewParseResult[T]()
	if p.mapper == nil {
		return domain.ParseResult[T]{}, errors.New("csv parser has no record mapper")
	}

	reader := bufio.NewReader(r)
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	scanner := bufio.NewScanner(reader)
	// UTF-8 needs up to four bytes per character, plus room for a CR.
	maxBytes := p.maxLineLength*utf8.UTFMax + 2
	scanner.Buffer(make([]byte, 0, min(maxBytes, 64*1024)), maxBytes)

	lineNumber := 0
	truncated := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if length := utf8.RuneCountInString(line); length > p.maxLineLength {
			return domain.ParseResult[T]{}, structural(lineNumber, ErrLineTooLong,
				fmt.Sprintf("Line is too long (max: %d, current: %d)", p.maxLineLength, length))
		}
		if lineNumber == 1 && p.header {
			continue
		}

		fields, blank, err := p.splitLine(line)
		if err != nil {
			return domain.ParseResult[T]{}, structural(lineNumber, ErrMalformedLine,
				fmt.Sprintf("Line has invalid format: %v", err))
		}
		if blank {
			if !p.addError(&result, blankRowMessage, lineNumber) {
				truncated++
			}
			continue
		}
		if p.expectedFields > 0 && len(fields) != p.expectedFields {
			return domain.ParseResult[T]{}, structural(lineNumber, ErrFieldCount,
				fmt.Sprintf("Line contains %d fields whereas it should %d", len(fields), p.expectedFields))
		}

		record, err := p.mapper(fields)
		if err != nil {
			return domain.ParseResult[T]{}, &StructuralError{
				Line:   lineNumber,
				Reason: err.Error(),
				Err:    fmt.Errorf("%w: %w", ErrMalformedScalar, err),
			}
		}

		var violations []domain.ValidationError
		if validate != nil {
			violations = validate(record, lineNumber)
		}
		if len(violations) > 0 {
			for _, violation := range violations {
				if len(result.Errors) >= p.maxErrors {
					truncated++
					continue
				}
				result.Errors = append(result.Errors, violation)
			}
			continue
		}
		result.Records = append(result.Records, record)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return domain.ParseResult[T]{}, structural(lineNumber+1, ErrLineTooLong,
				fmt.Sprintf("Line is too long (max: %d)", p.maxLineLength))
		}
		return domain.ParseResult[T]{}, fmt.Errorf("failed to read csv input: %w", err)
	}

	if truncated > 0 {
		p.logger.Warn("csv validation errors exceeded limit, extra errors dropped",
			"limit", p.maxErrors, "dropped", truncated)
	}
	return result, nil
}

func (p *Parser[T]) addError(result *domain.ParseResult[T], detail string, lineNumber int) bool {
	if len(result.Errors) >= p.maxErrors {
		return false
	}
	verr, err := domain.NewValidationError(detail, lineNumber)
	if err != nil {
		return false
	}
	result.Errors = append(result.Errors, verr)
	return true
}

// splitLine splits a single physical line. A line whose fields are all empty is blank.
func (p *Parser[T]) splitLine(line string) ([]string, bool, error) {
	if strings.TrimSpace(line) == "" {
		return nil, true, nil
	}
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	fields, err := reader.Read()
	if err != nil {
		return nil, false, err
	}
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			return fields, false, nil
		}
	}
	return fields, true, nil
}
