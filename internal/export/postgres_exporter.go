package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultFlushBytes = 1 << 20

// Copier streams the output of a COPY ... TO STDOUT statement into w.
type Copier interface {
	CopyTo(ctx context.Context, w io.Writer, sql string) (pgconn.CommandTag, error)
}

// PoolCopier runs COPY on a connection borrowed from the pool.
type PoolCopier struct {
	Pool *pgxpool.Pool
}

func (c PoolCopier) CopyTo(ctx context.Context, w io.Writer, sql string) (pgconn.CommandTag, error) {
	conn, err := c.Pool.Acquire(ctx)
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return conn.Conn().PgConn().CopyTo(ctx, w, sql)
}

// PostgresExporter writes the result of a query as CSV with a header row.
type PostgresExporter struct {
	copier     Copier
	query      string
	flushBytes int64
}

type ExporterOption func(*PostgresExporter)

// WithFlushBytes flushes the destination every n bytes.
func WithFlushBytes(n int) ExporterOption {
	return func(e *PostgresExporter) {
		if n > 0 {
			e.flushBytes = int64(n)
		}
	}
}

func NewPostgresExporter(copier Copier, query string, opts ...ExporterOption) *PostgresExporter {
	e := &PostgresExporter{
		copier:     copier,
		query:      strings.TrimRight(strings.TrimSpace(query), ";"),
		flushBytes: DefaultFlushBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Statement returns the COPY statement the exporter runs.
func (e *PostgresExporter) Statement() string {
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH (FORMAT csv, HEADER true)", e.query)
}

// Stats describes a finished export.
type Stats struct {
	Location string
	Rows     int64
	Bytes    int64
}

// ExportTo streams the query into dest and returns its location. Flush and Close are always
// attempted, also after a failed copy; a failed export is aborted first so Close publishes
// nothing.
func (e *PostgresExporter) ExportTo(ctx context.Context, dest Destination) (Stats, error) {
	sink, err := dest.OutputSink()
	if err != nil {
		dest.Abort()
		return Stats{}, &Error{Op: "open output sink", Err: errors.Join(err, closeIgnoringUnopened(dest))}
	}

	counter := &countingWriter{writer: sink, flush: dest.Flush, every: e.flushBytes}
	tag, copyErr := e.copier.CopyTo(ctx, counter, e.Statement())
	flushErr := dest.Flush()
	if copyErr != nil || flushErr != nil {
		dest.Abort()
	}
	closeErr := dest.Close()

	switch {
	case copyErr != nil:
		return Stats{Bytes: counter.count}, &Error{Op: "copy", Err: errors.Join(copyErr, flushErr, closeErr)}
	case flushErr != nil:
		return Stats{Bytes: counter.count}, &Error{Op: "flush", Err: errors.Join(flushErr, closeErr)}
	case closeErr != nil:
		return Stats{Bytes: counter.count}, &Error{Op: "close", Err: closeErr}
	}

	location, err := dest.Location()
	if err != nil {
		return Stats{Bytes: counter.count}, &Error{Op: "location", Err: err}
	}
	return Stats{Location: location, Rows: tag.RowsAffected(), Bytes: counter.count}, nil
}

func closeIgnoringUnopened(dest Destination) error {
	if err := dest.Close(); err != nil && !errors.Is(err, ErrSinkNotOpened) && !errors.Is(err, ErrAlreadyClosed) {
		return err
	}
	return nil
}

// countingWriter flushes the destination every `every` bytes.
type countingWriter struct {
	writer    io.Writer
	flush     func() error
	every     int64
	count     int64
	sinceLast int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	c.sinceLast += int64(n)
	if err != nil {
		return n, err
	}
	if c.every > 0 && c.sinceLast >= c.every {
		c.sinceLast = 0
		if err := c.flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}
