package register

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/auth"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/repository"
)

const (
	correlationIDHeader = "X-Correlation-ID"
	maxAPIPayloadBytes  = 10 << 20
)

var (
	// ErrUploadNotFound is returned when the referenced upload does not exist.
	ErrUploadNotFound = errors.New("uploaded file not found")
	// ErrUploaderUnknown is returned when an upload carries no usable uploader id.
	ErrUploaderUnknown = errors.New("uploaded file has no uploader id")
)

// UploadedObject is a file waiting in object storage to be registered.
type UploadedObject struct {
	ContentType string
	UploaderID  uuid.UUID
	Source      PayloadSource
}

// ObjectStore resolves uploads by bucket and key.
type ObjectStore interface {
	Describe(ctx context.Context, bucket, key string) (UploadedObject, error)
}

// Jobs is the part of Service the handler needs.
type Jobs interface {
	Start(ctx context.Context, params StartParams) (domain.RegisterJob, error)
	FindByName(ctx context.Context, name string) (domain.RegisterJob, error)
}

type Handler struct {
	jobs    Jobs
	objects ObjectStore
	logger  *slog.Logger
}

func NewHTTPHandler(jobs Jobs, objects ObjectStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{jobs: jobs, objects: objects, logger: logger}
}

// Register mounts the register endpoints relative to the scheme management prefix.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register-csv-from-s3/jobs", h.handleStartFromS3)
	r.Get("/register-csv-from-s3/jobs/{jobName}", h.handleStatus)
	r.Get("/register-csv-from-s3/jobs/{jobName}/errors", h.handleErrors)
	r.With(auth.APIKey).Post("/taxiphvdatabase", h.handleRegisterFromAPI)
}

type startFromS3Payload struct {
	S3Bucket string `json:"s3Bucket"`
	Filename string `json:"filename"`
}

type jobNameResponse struct {
	JobName string `json:"jobName"`
}

type jobStatusResponse struct {
	ID         uuid.UUID                 `json:"id"`
	JobName    string                    `json:"jobName"`
	Trigger    domain.RegisterJobTrigger `json:"trigger"`
	Status     domain.RegisterJobStatus  `json:"status"`
	ErrorCount int                       `json:"errorCount"`
}

type jobErrorsResponse struct {
	Errors domain.JobErrors `json:"errors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) handleStartFromS3(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	correlationID, ok := requireCorrelationID(w, r)
	if !ok {
		return
	}
	var payload startFromS3Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	payload.S3Bucket = strings.TrimSpace(payload.S3Bucket)
	payload.Filename = strings.TrimSpace(payload.Filename)
	if payload.S3Bucket == "" || payload.Filename == "" {
		writeMessage(w, http.StatusBadRequest, "s3Bucket and filename are required")
		return
	}

	object, err := h.objects.Describe(r.Context(), payload.S3Bucket, payload.Filename)
	if err != nil {
		h.fail(w, r, "failed to resolve upload", err)
		return
	}
	job, err := h.jobs.Start(r.Context(), StartParams{
		Source:        object.Source,
		ContentType:   object.ContentType,
		NameSuffix:    fileStem(payload.Filename),
		CorrelationID: correlationID,
		UploaderID:    object.UploaderID,
	})
	if err != nil {
		h.fail(w, r, "failed to start register job", err)
		return
	}
	writeJSON(w, http.StatusCreated, jobNameResponse{JobName: job.Name})
}

func (h *Handler) handleRegisterFromAPI(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	correlationID, ok := requireCorrelationID(w, r)
	if !ok {
		return
	}
	uploaderID, ok := auth.UploaderIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid "+auth.APIKeyHeader+" header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAPIPayloadBytes+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read payload: "+err.Error())
		return
	}
	if len(body) > maxAPIPayloadBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	var payload VehicleDetailsRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if payload.VehicleDetails == nil {
		writeMessage(w, http.StatusBadRequest, "vehicleDetails is required")
		return
	}

	job, err := h.jobs.Start(r.Context(), StartParams{
		Source:        InlinePayload(body),
		ContentType:   domain.ContentTypeJSON,
		CorrelationID: correlationID,
		UploaderID:    uploaderID,
	})
	if err != nil {
		h.fail(w, r, "failed to start register job", err)
		return
	}
	writeJSON(w, http.StatusCreated, jobNameResponse{JobName: job.Name})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.FindByName(r.Context(), chi.URLParam(r, "jobName"))
	if err != nil {
		h.fail(w, r, "failed to load register job", err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		ID:         job.ID,
		JobName:    job.Name,
		Trigger:    job.Trigger,
		Status:     job.Status,
		ErrorCount: len(job.Errors),
	})
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.FindByName(r.Context(), chi.URLParam(r, "jobName"))
	if err != nil {
		h.fail(w, r, "failed to load register job", err)
		return
	}
	errs := job.Errors
	if errs == nil {
		errs = domain.JobErrors{}
	}
	writeJSON(w, http.StatusOK, jobErrorsResponse{Errors: errs})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err, "request_id", middleware.GetReqID(r.Context()))
	} else {
		h.logger.InfoContext(r.Context(), msg, "error", err, "status", status, "request_id", middleware.GetReqID(r.Context()))
	}
	writeMessage(w, status, err.Error())
}

// StatusForError maps register failures onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, repository.ErrActiveJobExists):
		return http.StatusNotAcceptable
	case errors.Is(err, repository.ErrJobNameDuplicate):
		return http.StatusConflict
	case errors.Is(err, repository.ErrJobNotFound), errors.Is(err, ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUploaderUnknown), errors.Is(err, ErrMissingPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requireCorrelationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	correlationID := strings.TrimSpace(r.Header.Get(correlationIDHeader))
	if correlationID == "" {
		writeMessage(w, http.StatusBadRequest, "missing "+correlationIDHeader+" header")
		return "", false
	}
	w.Header().Set(correlationIDHeader, correlationID)
	return correlationID, true
}

func fileStem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
