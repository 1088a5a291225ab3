package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/db"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/export"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/middleware"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/register"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/storage"
)

const apiPrefix = "/v1/scheme-management"

func newServeCmd(configPath *string) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !skipMigrations {
				if err := db.RunMigrations(a.conn.Pool, a.logger); err != nil {
					return err
				}
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	jobs, err := a.registerService(ctx)
	if err != nil {
		return err
	}
	client, err := a.s3Client(ctx)
	if err != nil {
		return err
	}
	exports, err := a.exportService(ctx)
	if err != nil {
		return err
	}

	handler := newRouter(routerDeps{
		logger:        a.logger,
		register:      register.NewHTTPHandler(jobs, storage.NewUploads(client), a.logger),
		export:        export.NewHTTPHandler(exports, a.logger),
		health:        a.conn.Ping,
		origins:       a.cfg.HTTP.AllowedOrigins,
		healthTimeout: 5 * time.Second,
	})

	server := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting register api", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		// Running jobs write their final status before the pool closes.
		jobs.Wait()
		a.logger.Info("server exited")
		return nil
	})
	return g.Wait()
}

type routes interface {
	Register(r chi.Router)
}

type routerDeps struct {
	logger        *slog.Logger
	register      routes
	export        http.Handler
	health        func(ctx context.Context) error
	origins       []string
	healthTimeout time.Duration
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(deps.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), deps.healthTimeout)
		defer cancel()
		if err := deps.health(ctx); err != nil {
			deps.logger.WarnContext(ctx, "health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route(apiPrefix, func(r chi.Router) {
		deps.register.Register(r)
		r.Method(http.MethodPost, "/export-csv", deps.export)
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return corsHandler.Handler(r)
}
