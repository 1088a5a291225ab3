package register

import (
	"bytes"
	"context"
	"io"
)

// PayloadSource opens the content a job registers. It is opened once, by the worker.
type PayloadSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// InlinePayload is a payload received in the request body.
type InlinePayload []byte

func (p InlinePayload) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p)), nil
}

// PayloadSourceFunc adapts a function to PayloadSource.
type PayloadSourceFunc func(ctx context.Context) (io.ReadCloser, error)

func (f PayloadSourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}
