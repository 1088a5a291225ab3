// Package register runs asynchronous register jobs: a payload is parsed and validated row by row,
// accepted records are stored and the outcome is written once onto the job.
package register

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/metrics"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultMaxErrors  = 10
	DefaultJobTimeout = 30 * time.Minute

	DefaultFinishRetries = 5
	DefaultFinishBackoff = 200 * time.Millisecond
)

// ErrMissingPayload is returned by Start when no payload source is given.
var ErrMissingPayload = errors.New("register job payload is required")

// Parsed is the outcome of reading one payload. Identifiers maps a line number to the natural key
// (the VRM for licences) of the rejected row found there, when one could be read.
type Parsed[T any] struct {
	Result      domain.ParseResult[T]
	Identifiers map[int]string
}

// ParseFunc reads a payload of the given content type. An error means the payload as a whole is
// unusable and nothing is stored.
type ParseFunc[T any] func(ctx context.Context, contentType string, r io.Reader) (Parsed[T], error)

// RecordSink stores the records accepted by a job.
type RecordSink[T any] interface {
	Store(ctx context.Context, job domain.RegisterJob, records []T) (int64, error)
}

// Completion is delivered to listeners once a job reached its terminal status.
type Completion[T any] struct {
	Job     domain.RegisterJob
	Records []T
}

// Listener observes finished jobs.
type Listener[T any] interface {
	JobFinished(ctx context.Context, completion Completion[T]) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc[T any] func(ctx context.Context, completion Completion[T]) error

func (f ListenerFunc[T]) JobFinished(ctx context.Context, completion Completion[T]) error {
	return f(ctx, completion)
}

// StartParams describes a job to start.
type StartParams struct {
	// Scope is the unit of the single running job rule. Defaults to the uploader id.
	Scope         string
	Source        PayloadSource
	ContentType   string
	NameSuffix    string
	CorrelationID string
	UploaderID    uuid.UUID
}

type Service[T any] struct {
	jobs  repository.RegisterJobRepository
	parse ParseFunc[T]
	sink  RecordSink[T]

	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxErrors  int
	jobTimeout time.Duration
	now        func() time.Time

	finishRetries uint64
	finishBackoff time.Duration

	mu        sync.RWMutex
	listeners []Listener[T]
	workers   sync.WaitGroup
}

type settings struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	maxErrors     int
	jobTimeout    time.Duration
	now           func() time.Time
	finishRetries uint64
	finishBackoff time.Duration
}

type Option func(*settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithMaxErrors caps the number of errors stored on a job.
func WithMaxErrors(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxErrors = n
		}
	}
}

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithFinishRetry sets how often writing a job's terminal status is retried and the first delay
// between attempts.
func WithFinishRetry(retries int, initial time.Duration) Option {
	return func(s *settings) {
		if retries >= 0 {
			s.finishRetries = uint64(retries)
		}
		if initial > 0 {
			s.finishBackoff = initial
		}
	}
}

// WithClock replaces time.Now, used for job names.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService[T any](jobs repository.RegisterJobRepository, parse ParseFunc[T], sink RecordSink[T], opts ...Option) *Service[T] {
	cfg := settings{
		logger:        slog.Default(),
		maxErrors:     DefaultMaxErrors,
		jobTimeout:    DefaultJobTimeout,
		now:           time.Now,
		finishRetries: DefaultFinishRetries,
		finishBackoff: DefaultFinishBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service[T]{
		jobs:          jobs,
		parse:         parse,
		sink:          sink,
		logger:        cfg.logger.With("component", "register"),
		metrics:       cfg.metrics,
		maxErrors:     cfg.maxErrors,
		jobTimeout:    cfg.jobTimeout,
		now:           cfg.now,
		finishRetries: cfg.finishRetries,
		finishBackoff: cfg.finishBackoff,
	}
}

// Subscribe registers a listener for finished jobs.
func (s *Service[T]) Subscribe(listener Listener[T]) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

// Start records a RUNNING job and processes the payload in the background. The returned job is
// still RUNNING; poll Status or FindByName for the outcome.
func (s *Service[T]) Start(ctx context.Context, params StartParams) (domain.RegisterJob, error) {
	if params.Source == nil {
		return domain.RegisterJob{}, ErrMissingPayload
	}
	trigger, err := domain.TriggerForContentType(params.ContentType)
	if err != nil {
		return domain.RegisterJob{}, err
	}
	scope := strings.TrimSpace(params.Scope)
	if scope == "" {
		scope = params.UploaderID.String()
	}

	job := domain.RegisterJob{
		ID:            uuid.New(),
		Name:          domain.NewRegisterJobName(s.now(), params.NameSuffix, trigger),
		Scope:         scope,
		Trigger:       trigger,
		Status:        domain.RegisterJobStatusRunning,
		CorrelationID: params.CorrelationID,
		UploaderID:    params.UploaderID,
	}
	created, err := s.jobs.Insert(ctx, job)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrActiveJobExists):
			s.metrics.IncrementJobRejected("active_job")
		case errors.Is(err, repository.ErrJobNameDuplicate):
			s.metrics.IncrementJobRejected("duplicate_name")
		}
		return domain.RegisterJob{}, fmt.Errorf("failed to create register job: %w", err)
	}

	s.metrics.IncrementJobStarted(string(created.Trigger))
	s.logger.Info("register job started",
		"job_id", created.ID,
		"job_name", created.Name,
		"scope", created.Scope,
		"trigger", created.Trigger,
		"correlation_id", created.CorrelationID,
	)
	s.launchWorker(created, params)
	return created, nil
}

func (s *Service[T]) Status(ctx context.Context, id uuid.UUID) (domain.RegisterJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *Service[T]) FindByName(ctx context.Context, name string) (domain.RegisterJob, error) {
	return s.jobs.GetByName(ctx, strings.TrimSpace(name))
}

// HasActiveJobs reports whether the scope has a RUNNING job.
func (s *Service[T]) HasActiveJobs(ctx context.Context, scope string) (bool, error) {
	return s.jobs.HasActiveJobs(ctx, scope)
}

// Wait blocks until every started job has finished.
func (s *Service[T]) Wait() {
	s.workers.Wait()
}
