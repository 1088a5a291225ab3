package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// LicenceExporter is the part of Service the handler needs.
type LicenceExporter interface {
	ExportLicences(ctx context.Context) (Result, error)
}

type Handler struct {
	service LicenceExporter
	logger  *slog.Logger
}

func NewHTTPHandler(service LicenceExporter, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type exportResponse struct {
	FileURL    string `json:"fileUrl"`
	BucketName string `json:"bucketName"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
		return
	}
	result, err := h.service.ExportLicences(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export request failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{FileURL: result.FileURL, BucketName: result.BucketName})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
