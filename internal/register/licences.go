package register

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/csvparse"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/licence"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/repository"
)

// VehicleDetailsRequest is the body of a register request made through the API.
type VehicleDetailsRequest struct {
	VehicleDetails []domain.Licence `json:"vehicleDetails"`
}

// LicenceParser reads CSV, XLSX and JSON licence payloads.
func LicenceParser(parser *csvparse.Parser[domain.Licence]) ParseFunc[domain.Licence] {
	if parser == nil {
		parser = licence.NewParser()
	}
	return func(ctx context.Context, contentType string, r io.Reader) (Parsed[domain.Licence], error) {
		r = contextReader{ctx: ctx, r: r}
		switch domain.MediaType(contentType) {
		case domain.ContentTypeCSV:
			return parseLicenceCSV(parser, r)
		case domain.ContentTypeXLSX:
			converted, err := XLSXToCSV(r)
			if err != nil {
				return Parsed[domain.Licence]{}, err
			}
			return parseLicenceCSV(parser, contextReader{ctx: ctx, r: converted})
		case domain.ContentTypeJSON:
			var req VehicleDetailsRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return Parsed[domain.Licence]{}, fmt.Errorf("invalid vehicle details payload: %w", err)
			}
			result, rejected := licence.ValidateAll(req.VehicleDetails)
			return Parsed[domain.Licence]{Result: result, Identifiers: rejected}, nil
		default:
			return Parsed[domain.Licence]{}, fmt.Errorf("%w: %q", domain.ErrUnmappedContentType, contentType)
		}
	}
}

// contextReader stops returning data once ctx is done, so a timed out job stops parsing.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func parseLicenceCSV(parser *csvparse.Parser[domain.Licence], r io.Reader) (Parsed[domain.Licence], error) {
	result, rejected, err := licence.ParseCSV(parser, r)
	if err != nil {
		return Parsed[domain.Licence]{}, err
	}
	return Parsed[domain.Licence]{Result: result, Identifiers: rejected}, nil
}

// LicenceSink replaces the uploader's licences with the ones a job accepted.
type LicenceSink struct {
	licences repository.LicenceRepository
}

func NewLicenceSink(licences repository.LicenceRepository) *LicenceSink {
	return &LicenceSink{licences: licences}
}

func (s *LicenceSink) Store(ctx context.Context, job domain.RegisterJob, records []domain.Licence) (int64, error) {
	return s.licences.ReplaceForUploader(ctx, job.ID, job.UploaderID, records)
}
