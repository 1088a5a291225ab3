package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolationCode = "23505"

	constraintOneRunningPerScope = "register_jobs_one_running_per_scope"
	constraintJobNameUnique      = "register_jobs_job_name_key"

	registerJobColumns = `id, job_name, scope, trigger, status, errors, correlation_id, uploader_id, inserted_at, updated_at`
)

type registerJobRepository struct {
	pool *pgxpool.Pool
}

// NewRegisterJobRepository wires a repository backed by pgxpool.
func NewRegisterJobRepository(pool *pgxpool.Pool) RegisterJobRepository {
	return &registerJobRepository{pool: pool}
}

func (r *registerJobRepository) Insert(ctx context.Context, job domain.RegisterJob) (domain.RegisterJob, error) {
	if r.pool == nil {
		return domain.RegisterJob{}, fmt.Errorf("register job repository not initialized")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	// The NOT EXISTS check and the partial unique index together make the guard one atomic step:
	// concurrent inserts that both pass the check collide on the index.
	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO register_jobs (id, job_name, scope, trigger, status, correlation_id, uploader_id)
		 SELECT $1::uuid, $2::text, $3::text, $4::text, 'RUNNING', $5::text, $6::uuid
		 WHERE NOT EXISTS (
		     SELECT 1 FROM register_jobs WHERE scope = $3::text AND status = 'RUNNING'
		 )
		 RETURNING `+registerJobColumns,
		job.ID,
		job.Name,
		job.Scope,
		string(job.Trigger),
		job.CorrelationID,
		job.UploaderID,
	)
	inserted, err := scanRegisterJob(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.RegisterJob{}, ErrActiveJobExists
		case errors.Is(err, ErrActiveJobExists), errors.Is(err, ErrJobNameDuplicate):
			return domain.RegisterJob{}, err
		}
		return domain.RegisterJob{}, fmt.Errorf("failed to insert register job: %w", err)
	}
	return inserted, nil
}

func (r *registerJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.RegisterJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+registerJobColumns+` FROM register_jobs WHERE id = $1`, id)
	job, err := scanRegisterJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RegisterJob{}, ErrJobNotFound
		}
		return domain.RegisterJob{}, fmt.Errorf("failed to get register job: %w", err)
	}
	return job, nil
}

func (r *registerJobRepository) GetByName(ctx context.Context, name string) (domain.RegisterJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+registerJobColumns+` FROM register_jobs WHERE job_name = $1`, name)
	job, err := scanRegisterJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RegisterJob{}, ErrJobNotFound
		}
		return domain.RegisterJob{}, fmt.Errorf("failed to get register job by name: %w", err)
	}
	return job, nil
}

func (r *registerJobRepository) HasActiveJobs(ctx context.Context, scope string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM register_jobs WHERE scope = $1 AND status = 'RUNNING')`,
		scope,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active register jobs: %w", err)
	}
	return exists, nil
}

func (r *registerJobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.RegisterJobStatus, errs domain.JobErrors) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish register job with status %s", status)
	}
	encoded, err := domain.EncodeJobErrors(errs)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE register_jobs
		 SET status = $2, errors = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'RUNNING'`,
		id,
		string(status),
		encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to finish register job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotRunning
	}
	return nil
}

func scanRegisterJob(row pgx.Row) (domain.RegisterJob, error) {
	var (
		job        domain.RegisterJob
		trigger    string
		status     string
		errorsBlob []byte
		insertedAt pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Scope,
		&trigger,
		&status,
		&errorsBlob,
		&job.CorrelationID,
		&job.UploaderID,
		&insertedAt,
		&updatedAt,
	); err != nil {
		return domain.RegisterJob{}, translateConstraintError(err)
	}

	var err error
	if job.Trigger, err = domain.ParseRegisterJobTrigger(trigger); err != nil {
		return domain.RegisterJob{}, err
	}
	if job.Status, err = domain.ParseRegisterJobStatus(status); err != nil {
		return domain.RegisterJob{}, err
	}
	if job.Errors, err = domain.DecodeJobErrors(errorsBlob); err != nil {
		return domain.RegisterJob{}, err
	}
	if insertedAt.Valid {
		job.InsertedAt = insertedAt.Time
	}
	if updatedAt.Valid {
		job.UpdatedAt = updatedAt.Time
	}
	return job, nil
}

func translateConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintOneRunningPerScope:
		return ErrActiveJobExists
	case constraintJobNameUnique:
		return ErrJobNameDuplicate
	}
	return err
}
