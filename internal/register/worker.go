package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/csvparse"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/repository"
)

const (
	unreadablePayloadDetail = "Unable to read the uploaded data"
	storageFailureDetail    = "Unable to store the register, please try again"
	internalFailureDetail   = "Unexpected error while processing the register"
	unrecordedResultDetail  = "Unable to record the register result, please try again"

	finishTimeout = 30 * time.Second
)

type outcome[T any] struct {
	status   domain.RegisterJobStatus
	errors   domain.JobErrors
	records  []T
	stored   int64
	rejected int
}

func failed[T any](errs ...domain.JobError) outcome[T] {
	return outcome[T]{status: domain.RegisterJobStatusFinishedFailure, errors: errs}
}

func (s *Service[T]) launchWorker(job domain.RegisterJob, params StartParams) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer cancel()
		started := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic while processing register job", "job_id", job.ID, "panic", rec)
				s.complete(job, failed[T](domain.NewJobError(domain.ValueErrorTitle, internalFailureDetail)), started)
			}
		}()
		result, err := s.process(ctx, job, params)
		if err != nil {
			s.logger.Error("register job failed", "job_id", job.ID, "job_name", job.Name, "error", err)
		}
		s.complete(job, result, started)
	}()
}

// process never stores anything unless the whole payload could be read. A returned error is
// already reflected in the outcome.
func (s *Service[T]) process(ctx context.Context, job domain.RegisterJob, params StartParams) (outcome[T], error) {
	reader, err := params.Source.Open(ctx)
	if err != nil {
		return failed[T](domain.NewJobError(domain.ValueErrorTitle, unreadablePayloadDetail)), fmt.Errorf("failed to open payload: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			s.logger.Warn("failed to close payload", "job_id", job.ID, "error", closeErr)
		}
	}()

	parsed, err := s.parse(ctx, params.ContentType, reader)
	if err != nil {
		return failed[T](payloadJobError(err)), fmt.Errorf("failed to parse payload: %w", err)
	}

	errs := domain.JobErrorsFromValidation(parsed.Result.Errors, func(line int) string {
		return parsed.Identifiers[line]
	}).SortedByLine().Limit(s.maxErrors)
	rejected := len(parsed.Result.Errors)

	if !parsed.Result.HasRecords() {
		result := failed[T](errs...)
		result.rejected = rejected
		return result, nil
	}

	stored, err := s.sink.Store(ctx, job, parsed.Result.Records)
	if err != nil {
		withStorage := append(domain.JobErrors{domain.NewJobError(domain.ValueErrorTitle, storageFailureDetail)}, errs...)
		result := failed[T](withStorage.Limit(s.maxErrors)...)
		result.rejected = rejected
		return result, fmt.Errorf("failed to store records: %w", err)
	}

	return outcome[T]{
		status:   domain.RegisterJobStatusFinishedSuccess,
		errors:   errs,
		records:  parsed.Result.Records,
		stored:   stored,
		rejected: rejected,
	}, nil
}

// payloadJobError turns a whole-payload failure into the single error stored on the job.
func payloadJobError(err error) domain.JobError {
	var structuralErr *csvparse.StructuralError
	if errors.As(err, &structuralErr) {
		jobErr := domain.NewJobError(domain.ValueErrorTitle, structuralErr.Reason)
		if structuralErr.Line > 0 {
			jobErr.Detail = fmt.Sprintf("Line %d: %s", structuralErr.Line, structuralErr.Reason)
			jobErr.LineNumber = structuralErr.Line
		}
		return jobErr
	}
	return domain.NewJobError(domain.ValueErrorTitle, err.Error())
}

// complete writes the terminal status once and then notifies listeners. When the outcome cannot
// be recorded the job is finished as a failure instead, so its scope is not blocked.
func (s *Service[T]) complete(job domain.RegisterJob, result outcome[T], started time.Time) {
	if err := s.finish(job.ID, result.status, result.errors); err != nil {
		if errors.Is(err, repository.ErrJobNotRunning) {
			s.logger.Warn("register job already finished", "job_id", job.ID)
			return
		}
		s.logger.Error("failed to finish register job", "job_id", job.ID, "status", result.status, "error", err)

		fallback := failed[T](domain.NewJobError(domain.ValueErrorTitle, unrecordedResultDetail))
		fallback.rejected = result.rejected
		if err := s.finish(job.ID, fallback.status, fallback.errors); err != nil {
			if !errors.Is(err, repository.ErrJobNotRunning) {
				s.logger.Error("register job left running", "job_id", job.ID, "job_name", job.Name, "error", err)
			}
			return
		}
		result = fallback
	}

	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	s.metrics.ObserveJob(string(result.status), started, result.rejected, int(result.stored))
	s.logger.Info("register job finished",
		"job_id", job.ID,
		"job_name", job.Name,
		"status", result.status,
		"errors", len(result.errors),
		"stored", result.stored,
		"duration", time.Since(started),
	)

	job.Status = result.status
	job.Errors = result.errors
	s.notify(ctx, Completion[T]{Job: job, Records: result.records})
}

// finish retries transient failures with exponential backoff. ErrJobNotRunning is final.
func (s *Service[T]) finish(id uuid.UUID, status domain.RegisterJobStatus, errs domain.JobErrors) error {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.finishBackoff
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.finishRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := s.jobs.Finish(ctx, id, status, errs)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrJobNotRunning):
			return backoff.Permanent(err)
		}
		s.logger.Warn("finishing register job failed", "job_id", id, "attempt", attempt, "error", err)
		return err
	}, retry)
}

func (s *Service[T]) notify(ctx context.Context, completion Completion[T]) {
	s.mu.RLock()
	listeners := append([]Listener[T](nil), s.listeners...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		if err := listener.JobFinished(ctx, completion); err != nil {
			s.metrics.IncrementListenerFailure()
			s.logger.Warn("register job listener failed", "job_id", completion.Job.ID, "error", err)
		}
	}
}
