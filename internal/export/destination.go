package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	ErrSinkNotOpened     = errors.New("export destination output sink not opened")
	ErrSinkAlreadyOpened = errors.New("export destination output sink already opened")
	ErrNotClosed         = errors.New("export destination not closed")
	ErrAlreadyClosed     = errors.New("export destination already closed")

	// ErrAborted is returned by Location when the export was aborted before Close.
	ErrAborted = errors.New("export destination aborted")

	// ErrExportFailed matches every *Error.
	ErrExportFailed = errors.New("export failed")
)

// Destination receives one export. A destination is used once: OutputSink is called first and
// once, Flush any number of times, Close exactly once, and Location only after Close. Abort marks
// the export as failed; the following Close releases resources without publishing anything.
type Destination interface {
	OutputSink() (io.Writer, error)
	Flush() error
	Abort()
	Close() error
	Location() (string, error)
}

// Error describes which step of an export failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrExportFailed }

const spoolBufferSize = 1 << 20

// spool buffers the export in a temporary file. It implements the sink half of Destination.
type spool struct {
	dir     string
	pattern string

	file     *os.File
	writer   *bufio.Writer
	opened   bool
	aborted  bool
	closed   bool
	closeErr error
}

func (s *spool) OutputSink() (io.Writer, error) {
	switch {
	case s.closed:
		return nil, ErrAlreadyClosed
	case s.opened:
		return nil, ErrSinkAlreadyOpened
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	file, err := os.CreateTemp(s.dir, s.pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp export file: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriterSize(file, spoolBufferSize)
	s.opened = true
	return s.writer, nil
}

func (s *spool) Flush() error {
	switch {
	case s.closed:
		return ErrAlreadyClosed
	case !s.opened:
		return ErrSinkNotOpened
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}

func (s *spool) Abort() {
	if !s.closed {
		s.aborted = true
	}
}

// closeAborted discards an aborted spool. It reports whether the spool was aborted.
func (s *spool) closeAborted() bool {
	if !s.aborted || s.closed {
		return false
	}
	s.closed = true
	s.closeErr = ErrAborted
	s.discard()
	return true
}

// finish marks the spool closed and leaves the flushed file open at offset zero.
func (s *spool) finish() error {
	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true
	if !s.opened {
		return ErrSinkNotOpened
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync export file: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind export file: %w", err)
	}
	return nil
}

func (s *spool) size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat export file: %w", err)
	}
	return info.Size(), nil
}

func (s *spool) discard() {
	if s.file == nil {
		return
	}
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
}

func defaultSpoolDir() string {
	return filepath.Join(os.TempDir(), "caz-exports")
}
