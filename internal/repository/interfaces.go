package repository

import (
	"context"
	"errors"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrActiveJobExists indicates that the scope already has a RUNNING register job.
	ErrActiveJobExists = errors.New("register job already running for scope")
	// ErrJobNameDuplicate indicates that a register job with the same name exists.
	ErrJobNameDuplicate = errors.New("register job name already exists")
	// ErrJobNotRunning indicates that a job has already reached a terminal status.
	ErrJobNotRunning = errors.New("register job is not running")
	// ErrJobNotFound is returned when no register job matches the lookup.
	ErrJobNotFound = errors.New("register job not found")
)

// RegisterJobRepository persists register jobs and enforces the single running job per scope.
type RegisterJobRepository interface {
	// Insert creates a RUNNING job in one statement. It returns ErrActiveJobExists or
	// ErrJobNameDuplicate without creating anything when the guard rejects the job.
	Insert(ctx context.Context, job domain.RegisterJob) (domain.RegisterJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.RegisterJob, error)
	GetByName(ctx context.Context, name string) (domain.RegisterJob, error)
	HasActiveJobs(ctx context.Context, scope string) (bool, error)
	// Finish moves a RUNNING job to a terminal status and stores its errors. Jobs that already
	// finished are left untouched and ErrJobNotRunning is returned.
	Finish(ctx context.Context, id uuid.UUID, status domain.RegisterJobStatus, errs domain.JobErrors) error
}

// LicenceRepository stores the licences accepted by a register job.
type LicenceRepository interface {
	// ReplaceForUploader swaps every licence previously registered by the uploader for the given
	// set, atomically.
	ReplaceForUploader(ctx context.Context, jobID, uploaderID uuid.UUID, licences []domain.Licence) (int64, error)
}
