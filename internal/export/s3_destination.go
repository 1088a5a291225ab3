package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const csvContentType = "text/csv"

// S3API is the part of the s3 client used by S3Destination. *s3.Client satisfies it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Destination spools the export locally and uploads it as one object on Close. An object that
// cannot be verified after upload is deleted.
type S3Destination struct {
	spool
	ctx    context.Context
	client S3API
	bucket string
	key    string
}

func NewS3Destination(ctx context.Context, client S3API, bucket, key, spoolDir string) (*S3Destination, error) {
	bucket = strings.TrimSpace(bucket)
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 destination requires bucket and key, got %q/%q", bucket, key)
	}
	if spoolDir == "" {
		spoolDir = defaultSpoolDir()
	}
	return &S3Destination{
		spool:  spool{dir: spoolDir, pattern: "s3-export-*.csv"},
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
	}, nil
}

func (d *S3Destination) Close() error {
	if d.closeAborted() {
		return nil
	}
	if err := d.finish(); err != nil {
		if !errors.Is(err, ErrAlreadyClosed) {
			d.closeErr = err
			d.discard()
		}
		return err
	}
	defer d.discard()
	d.closeErr = d.upload()
	return d.closeErr
}

func (d *S3Destination) upload() error {
	size, err := d.size()
	if err != nil {
		return err
	}
	if _, err := d.client.PutObject(d.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key),
		Body:          d.file,
		ContentType:   aws.String(csvContentType),
		ContentLength: aws.Int64(size),
	}); err != nil {
		return fmt.Errorf("upload export to s3://%s/%s: %w", d.bucket, d.key, err)
	}
	if _, err := d.client.HeadObject(d.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key),
	}); err != nil {
		verifyErr := fmt.Errorf("verify export s3://%s/%s: %w", d.bucket, d.key, err)
		if _, delErr := d.client.DeleteObject(d.ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(d.key),
		}); delErr != nil {
			return errors.Join(verifyErr, fmt.Errorf("delete unverified export: %w", delErr))
		}
		return verifyErr
	}
	return nil
}

func (d *S3Destination) Location() (string, error) {
	if !d.closed {
		return "", ErrNotClosed
	}
	if d.closeErr != nil {
		return "", d.closeErr
	}
	return S3Location(d.bucket, d.key), nil
}

// S3Location renders s3://bucket/key.
func S3Location(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimLeft(key, "/")
}

// ParseS3Location splits an s3://bucket/key location.
func ParseS3Location(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
