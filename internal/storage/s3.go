// Package storage connects the service to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/register"
)

// UploaderIDMetadataKey is the object metadata entry naming the uploader of a register file.
const UploaderIDMetadataKey = "uploader-id"

// Config selects the region and, for local stacks, a custom endpoint.
type Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client builds an s3 client from the default credential chain.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// ObjectAPI is the part of the s3 client used to read uploads.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Uploads resolves register files uploaded to S3.
type Uploads struct {
	client ObjectAPI
}

func NewUploads(client ObjectAPI) *Uploads {
	return &Uploads{client: client}
}

// Describe reads the object metadata. The body is only fetched when the returned source is opened.
func (u *Uploads) Describe(ctx context.Context, bucket, key string) (register.UploadedObject, error) {
	head, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return register.UploadedObject{}, fmt.Errorf("%w: s3://%s/%s", register.ErrUploadNotFound, bucket, key)
		}
		return register.UploadedObject{}, fmt.Errorf("failed to read s3://%s/%s metadata: %w", bucket, key, err)
	}

	rawUploader := strings.TrimSpace(lookupMetadata(head.Metadata, UploaderIDMetadataKey))
	uploaderID, err := uuid.Parse(rawUploader)
	if err != nil {
		return register.UploadedObject{}, fmt.Errorf("%w: s3://%s/%s has %s %q", register.ErrUploaderUnknown, bucket, key, UploaderIDMetadataKey, rawUploader)
	}

	return register.UploadedObject{
		ContentType: contentTypeFor(aws.ToString(head.ContentType), key),
		UploaderID:  uploaderID,
		Source: register.PayloadSourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
			out, err := u.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
			}
			return out.Body, nil
		}),
	}, nil
}

func lookupMetadata(metadata map[string]string, key string) string {
	if value, ok := metadata[key]; ok {
		return value
	}
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// contentTypeFor trusts the stored content type when the pipeline knows it and otherwise falls back
// to the file extension. Uploads often arrive as binary/octet-stream.
func contentTypeFor(stored, key string) string {
	if _, err := domain.TriggerForContentType(stored); err == nil {
		return stored
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return domain.ContentTypeCSV
	case ".xlsx":
		return domain.ContentTypeXLSX
	}
	return stored
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
