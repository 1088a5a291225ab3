package export

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCopier struct {
	output string
	chunk  int
	err    error
	sql    string
}

func (c *stubCopier) CopyTo(_ context.Context, w io.Writer, sql string) (pgconn.CommandTag, error) {
	c.sql = sql
	data := c.output
	for len(data) > 0 {
		n := c.chunk
		if n <= 0 || n > len(data) {
			n = len(data)
		}
		if _, err := io.WriteString(w, data[:n]); err != nil {
			return pgconn.CommandTag{}, err
		}
		data = data[n:]
	}
	if c.err != nil {
		return pgconn.CommandTag{}, c.err
	}
	return pgconn.NewCommandTag("COPY 2"), nil
}

type recordingDestination struct {
	buf      strings.Builder
	sinkErr  error
	flushErr error
	closeErr error
	flushes  int
	closes   int
	aborted  bool
	closed   bool
}

func (d *recordingDestination) OutputSink() (io.Writer, error) {
	if d.sinkErr != nil {
		return nil, d.sinkErr
	}
	return &d.buf, nil
}

func (d *recordingDestination) Flush() error {
	d.flushes++
	return d.flushErr
}

func (d *recordingDestination) Abort() {
	d.aborted = true
}

func (d *recordingDestination) Close() error {
	d.closes++
	d.closed = true
	return d.closeErr
}

func (d *recordingDestination) Location() (string, error) {
	if !d.closed {
		return "", ErrNotClosed
	}
	return "mem://export.csv", nil
}

func TestExportToStreamsIntoDestination(t *testing.T) {
	copier := &stubCopier{output: "vrm,start\nAB12CDE,2019-01-01\nXY99ZZZ,2019-01-01\n", chunk: 8}
	dest := &recordingDestination{}
	exporter := NewPostgresExporter(copier, "SELECT vrm, start FROM licences;", WithFlushBytes(16))

	stats, err := exporter.ExportTo(context.Background(), dest)
	require.NoError(t, err)

	assert.Equal(t, "COPY (SELECT vrm, start FROM licences) TO STDOUT WITH (FORMAT csv, HEADER true)", copier.sql)
	assert.Equal(t, copier.output, dest.buf.String())
	assert.Equal(t, "mem://export.csv", stats.Location)
	assert.Equal(t, int64(2), stats.Rows)
	assert.Equal(t, int64(len(copier.output)), stats.Bytes)
	assert.Greater(t, dest.flushes, 1, "periodic flushes plus the final one")
	assert.Equal(t, 1, dest.closes)
}

func TestExportToClosesAfterCopyFailure(t *testing.T) {
	cause := errors.New("connection reset by peer")
	copier := &stubCopier{output: "vrm\n", err: cause}
	dest := &recordingDestination{}

	_, err := NewPostgresExporter(copier, "SELECT 1").ExportTo(context.Background(), dest)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrExportFailed)
	assert.ErrorIs(t, err, cause)
	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "copy", exportErr.Op)
	assert.Equal(t, 1, dest.flushes)
	assert.Equal(t, 1, dest.closes)
	assert.True(t, dest.aborted)
}

func TestExportToAbortsAfterFlushFailure(t *testing.T) {
	cause := errors.New("disk full")
	dest := &recordingDestination{flushErr: cause}

	_, err := NewPostgresExporter(&stubCopier{output: "vrm\n"}, "SELECT 1", WithFlushBytes(1<<20)).ExportTo(context.Background(), dest)
	require.ErrorIs(t, err, cause)
	assert.True(t, dest.aborted)
	assert.Equal(t, 1, dest.closes)
}

func TestExportToPublishesNothingAfterCopyFailure(t *testing.T) {
	dir := t.TempDir()
	dest, err := NewFileDestination(dir, "licences.csv")
	require.NoError(t, err)
	copier := &stubCopier{output: "vrm,start\nAB12CDE,2019-01-01\n", err: errors.New("connection reset mid-copy")}

	_, err = NewPostgresExporter(copier, "SELECT 1").ExportTo(context.Background(), dest)
	require.ErrorIs(t, err, ErrExportFailed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither the final file nor the temp file may remain")
	_, err = dest.Location()
	assert.ErrorIs(t, err, ErrAborted)
}

func TestExportToReportsCloseFailure(t *testing.T) {
	cause := errors.New("upload failed")
	dest := &recordingDestination{closeErr: cause}

	_, err := NewPostgresExporter(&stubCopier{output: "vrm\n"}, "SELECT 1").ExportTo(context.Background(), dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestExportToSinkFailure(t *testing.T) {
	cause := errors.New("disk full")
	dest := &recordingDestination{sinkErr: cause}

	_, err := NewPostgresExporter(&stubCopier{}, "SELECT 1").ExportTo(context.Background(), dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, dest.closes)
	assert.True(t, dest.aborted)
}
