package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestUploaderIDFromContext(t *testing.T) {
	if _, ok := UploaderIDFromContext(context.Background()); ok {
		t.Fatalf("expected no uploader on empty context")
	}
	if _, ok := UploaderIDFromContext(ContextWithUploaderID(context.Background(), uuid.Nil)); ok {
		t.Fatalf("nil uploader id must not authenticate")
	}
	id := uuid.New()
	got, ok := UploaderIDFromContext(ContextWithUploaderID(context.Background(), id))
	if !ok || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, ok)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		header string
		wantOK bool
	}{
		{name: "valid key", header: id.String(), wantOK: true},
		{name: "padded key", header: "  " + id.String() + " ", wantOK: true},
		{name: "missing key", header: ""},
		{name: "malformed key", header: "not-a-uuid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotOK bool
			var got uuid.UUID
			handler := APIKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, gotOK = UploaderIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set(APIKeyHeader, tc.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if gotOK != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, gotOK)
			}
			if tc.wantOK && got != id {
				t.Fatalf("expected %s, got %s", id, got)
			}
		})
	}
}
