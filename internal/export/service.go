package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/metrics"
)

const (
	DefaultPresignExpiry = 24 * time.Hour

	licenceFilePrefix = "taxi_phv_licences_"
	fileTimeLayout    = "2006-01-02_150405"
)

// DestinationFactory returns a fresh destination for each export.
type DestinationFactory func(ctx context.Context, fileName string) (Destination, error)

// S3Destinations creates destinations uploading into bucket.
func S3Destinations(client S3API, bucket, spoolDir string) DestinationFactory {
	return func(ctx context.Context, fileName string) (Destination, error) {
		return NewS3Destination(ctx, client, bucket, fileName, spoolDir)
	}
}

// FileDestinations creates destinations in dir.
func FileDestinations(dir string) DestinationFactory {
	return func(_ context.Context, fileName string) (Destination, error) {
		return NewFileDestination(dir, fileName)
	}
}

// Presigner issues temporary download links. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Exporter streams data into a destination.
type Exporter interface {
	ExportTo(ctx context.Context, dest Destination) (Stats, error)
}

type Service struct {
	exporter      Exporter
	destinations  DestinationFactory
	presigner     Presigner
	presignExpiry time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithPresigner(p Presigner) Option {
	return func(s *Service) {
		s.presigner = p
	}
}

func WithPresignExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		if expiry > 0 {
			s.presignExpiry = expiry
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(exporter Exporter, destinations DestinationFactory, opts ...Option) *Service {
	service := &Service{
		exporter:      exporter,
		destinations:  destinations,
		presignExpiry: DefaultPresignExpiry,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	service.logger = service.logger.With("component", "export")
	return service
}

// Result describes a completed licence export.
type Result struct {
	FileName   string `json:"fileName"`
	Location   string `json:"location"`
	FileURL    string `json:"fileUrl"`
	BucketName string `json:"bucketName,omitempty"`
	Rows       int64  `json:"rows"`
	Bytes      int64  `json:"bytes"`
}

// LicenceExportFileName names an export taken at t.
func LicenceExportFileName(t time.Time) string {
	return licenceFilePrefix + t.UTC().Format(fileTimeLayout) + ".csv"
}

// ExportLicences writes the whole licence register to a new file.
func (s *Service) ExportLicences(ctx context.Context) (Result, error) {
	started := time.Now()
	fileName := LicenceExportFileName(s.now())

	dest, err := s.destinations(ctx, fileName)
	if err != nil {
		err = &Error{Op: "create destination", Err: err}
		s.metrics.ObserveExport(started, 0, err)
		return Result{}, err
	}
	stats, err := s.exporter.ExportTo(ctx, dest)
	s.metrics.ObserveExport(started, stats.Bytes, err)
	if err != nil {
		s.logger.Error("licence export failed", "file", fileName, "error", err)
		return Result{}, err
	}

	result := Result{
		FileName: fileName,
		Location: stats.Location,
		FileURL:  stats.Location,
		Rows:     stats.Rows,
		Bytes:    stats.Bytes,
	}
	if bucket, key, ok := ParseS3Location(stats.Location); ok {
		result.BucketName = bucket
		if s.presigner != nil {
			req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(s.presignExpiry))
			if err != nil {
				return Result{}, &Error{Op: "presign", Err: fmt.Errorf("presign %s: %w", stats.Location, err)}
			}
			result.FileURL = req.URL
		}
	}
	s.logger.Info("licence export completed",
		"location", result.Location,
		"rows", result.Rows,
		"bytes", result.Bytes,
		"duration", time.Since(started),
	)
	return result, nil
}
