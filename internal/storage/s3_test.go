package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/register"
)

type stubObjectAPI struct {
	head    *s3.HeadObjectOutput
	headErr error
	body    string
	gets    int
}

func (s *stubObjectAPI) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return s.head, s.headErr
}

func (s *stubObjectAPI) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.gets++
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestDescribeReadsUploaderMetadata(t *testing.T) {
	uploader := uuid.New()
	api := &stubObjectAPI{
		head: &s3.HeadObjectOutput{
			ContentType: aws.String("binary/octet-stream"),
			Metadata:    map[string]string{"uploader-id": uploader.String()},
		},
		body: "AB12CDE,2019-01-01,2025-01-01,taxi,Leeds,PL001,true\n",
	}

	object, err := NewUploads(api).Describe(context.Background(), "uploads", "licences.csv")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if object.UploaderID != uploader {
		t.Fatalf("unexpected uploader %s", object.UploaderID)
	}
	if object.ContentType != domain.ContentTypeCSV {
		t.Fatalf("expected csv content type from extension, got %q", object.ContentType)
	}
	if api.gets != 0 {
		t.Fatalf("body must not be fetched before the source is opened")
	}

	rc, err := object.Source.Open(context.Background())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != api.body {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDescribeErrors(t *testing.T) {
	cases := []struct {
		name string
		api  *stubObjectAPI
		want error
	}{
		{
			name: "missing object",
			api:  &stubObjectAPI{headErr: &types.NotFound{}},
			want: register.ErrUploadNotFound,
		},
		{
			name: "missing uploader",
			api:  &stubObjectAPI{head: &s3.HeadObjectOutput{Metadata: map[string]string{}}},
			want: register.ErrUploaderUnknown,
		},
		{
			name: "invalid uploader",
			api:  &stubObjectAPI{head: &s3.HeadObjectOutput{Metadata: map[string]string{"Uploader-Id": "nope"}}},
			want: register.ErrUploaderUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewUploads(tc.api).Describe(context.Background(), "uploads", "licences.csv")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := []struct {
		stored, key, want string
	}{
		{"text/csv; charset=utf-8", "a.bin", "text/csv; charset=utf-8"},
		{"", "licences.XLSX", domain.ContentTypeXLSX},
		{"application/pdf", "licences.pdf", "application/pdf"},
	}
	for _, tc := range cases {
		if got := contentTypeFor(tc.stored, tc.key); got != tc.want {
			t.Fatalf("contentTypeFor(%q, %q) = %q, want %q", tc.stored, tc.key, got, tc.want)
		}
	}
}
