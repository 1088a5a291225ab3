// Package auth resolves which uploader a request acts for.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// APIKeyHeader carries the uploader id on direct API calls.
const APIKeyHeader = "x-api-key"

type contextKey string

const uploaderIDKey contextKey = "uploaderID"

// ContextWithUploaderID returns a new context that carries the authenticated uploader.
func ContextWithUploaderID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, uploaderIDKey, id)
}

// UploaderIDFromContext retrieves the authenticated uploader from the context, if any.
func UploaderIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(uploaderIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// APIKey stores the uploader named by the x-api-key header in the request context. Requests
// without a parseable key pass through unauthenticated.
func APIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(APIKeyHeader))); err == nil {
			r = r.WithContext(ContextWithUploaderID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
