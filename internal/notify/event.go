// Package notify publishes register job completions to external brokers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/register"
)

// JobFinishedEvent is the message published when a register job completes.
type JobFinishedEvent struct {
	JobID         uuid.UUID                 `json:"jobId"`
	JobName       string                    `json:"jobName"`
	Trigger       domain.RegisterJobTrigger `json:"trigger"`
	Status        domain.RegisterJobStatus  `json:"status"`
	ErrorCount    int                       `json:"errorCount"`
	RecordCount   int                       `json:"recordCount"`
	CorrelationID string                    `json:"correlationId"`
	UploaderID    uuid.UUID                 `json:"uploaderId"`
	FinishedAt    time.Time                 `json:"finishedAt"`
}

func newEvent(job domain.RegisterJob, records int, now time.Time) JobFinishedEvent {
	return JobFinishedEvent{
		JobID:         job.ID,
		JobName:       job.Name,
		Trigger:       job.Trigger,
		Status:        job.Status,
		ErrorCount:    len(job.Errors),
		RecordCount:   records,
		CorrelationID: job.CorrelationID,
		UploaderID:    job.UploaderID,
		FinishedAt:    now.UTC(),
	}
}

func (e JobFinishedEvent) encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal job finished event: %w", err)
	}
	return payload, nil
}

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, event JobFinishedEvent) error
}

// Listener adapts a publisher to register job completions.
func Listener[T any](p Publisher) register.Listener[T] {
	return register.ListenerFunc[T](func(ctx context.Context, c register.Completion[T]) error {
		return p.Publish(ctx, newEvent(c.Job, len(c.Records), time.Now()))
	})
}
