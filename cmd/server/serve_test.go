package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/logging"
)

type stubRoutes struct{}

func (stubRoutes) Register(r chi.Router) {
	r.Get("/register-csv-from-s3/jobs/{jobName}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chi.URLParam(r, "jobName")))
	})
}

func testRouter(health func(context.Context) error) http.Handler {
	return newRouter(routerDeps{
		logger:   logging.Discard(),
		register: stubRoutes{},
		export: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
		health:        health,
		origins:       []string{"*"},
		healthTimeout: time.Second,
	})
}

func TestRouterMountsRoutesUnderPrefix(t *testing.T) {
	router := testRouter(func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, apiPrefix+"/register-csv-from-s3/jobs/abc", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "abc" {
		t.Fatalf("unexpected job route response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, apiPrefix+"/export-csv", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected export handler to be mounted, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, apiPrefix+"/export-csv", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET export, got %d", rec.Code)
	}
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(func(context.Context) error { return nil }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	testRouter(func(context.Context) error { return errors.New("db down") }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(func(context.Context) error { return nil }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rec.Code)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "export"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v (%v)", name, cmd, err)
		}
	}
}
