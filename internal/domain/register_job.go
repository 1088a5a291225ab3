package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisterJobTrigger records how a register job was started.
type RegisterJobTrigger string

const (
	RegisterJobTriggerCSVFromSource RegisterJobTrigger = "CSV_FROM_SOURCE"
	RegisterJobTriggerAPICall       RegisterJobTrigger = "API_CALL"
)

// RegisterJobStatus captures lifecycle state for a register job.
type RegisterJobStatus string

const (
	RegisterJobStatusRunning         RegisterJobStatus = "RUNNING"
	RegisterJobStatusFinishedSuccess RegisterJobStatus = "FINISHED_SUCCESS"
	RegisterJobStatusFinishedFailure RegisterJobStatus = "FINISHED_FAILURE"
)

// Terminal reports whether no further transition is allowed.
func (s RegisterJobStatus) Terminal() bool {
	return s == RegisterJobStatusFinishedSuccess || s == RegisterJobStatusFinishedFailure
}

// ParseRegisterJobStatus validates a persisted status value.
func ParseRegisterJobStatus(value string) (RegisterJobStatus, error) {
	switch status := RegisterJobStatus(value); status {
	case RegisterJobStatusRunning, RegisterJobStatusFinishedSuccess, RegisterJobStatusFinishedFailure:
		return status, nil
	}
	return "", fmt.Errorf("unknown register job status %q", value)
}

// ParseRegisterJobTrigger validates a persisted trigger value.
func ParseRegisterJobTrigger(value string) (RegisterJobTrigger, error) {
	switch trigger := RegisterJobTrigger(value); trigger {
	case RegisterJobTriggerCSVFromSource, RegisterJobTriggerAPICall:
		return trigger, nil
	}
	return "", fmt.Errorf("unknown register job trigger %q", value)
}

// Content types accepted by the register pipeline.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

// ErrUnmappedContentType is returned when a payload content type has no trigger. It is a
// configuration fault, never defaulted.
var ErrUnmappedContentType = errors.New("no register job trigger for content type")

var triggersByContentType = map[string]RegisterJobTrigger{
	ContentTypeCSV:  RegisterJobTriggerCSVFromSource,
	ContentTypeXLSX: RegisterJobTriggerCSVFromSource,
	ContentTypeJSON: RegisterJobTriggerAPICall,
}

// KnownContentTypes lists every content type the pipeline accepts.
func KnownContentTypes() []string {
	return []string{ContentTypeCSV, ContentTypeXLSX, ContentTypeJSON}
}

// TriggerForContentType maps a payload content type onto the trigger that records it. Parameters
// such as "; charset=utf-8" are ignored.
func TriggerForContentType(contentType string) (RegisterJobTrigger, error) {
	trigger, ok := triggersByContentType[MediaType(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedContentType, contentType)
	}
	return trigger, nil
}

// MediaType lowercases a content type and drops its parameters.
func MediaType(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType
}

// RegisterJob mirrors one persisted ingestion attempt.
type RegisterJob struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"jobName"`
	Scope         string             `json:"scope"`
	Trigger       RegisterJobTrigger `json:"trigger"`
	Status        RegisterJobStatus  `json:"status"`
	Errors        JobErrors          `json:"errors,omitempty"`
	CorrelationID string             `json:"correlationId"`
	UploaderID    uuid.UUID          `json:"uploaderId"`
	InsertedAt    time.Time          `json:"insertedAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

const jobNameTimestampLayout = "20060102_150405"

// NewRegisterJobName builds "<yyyyMMdd_HHmmss>_<suffix>_<TRIGGER>".
func NewRegisterJobName(now time.Time, suffix string, trigger RegisterJobTrigger) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		suffix = strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format(jobNameTimestampLayout), suffix, trigger)
}
