package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside a transaction. *db.Connection satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

var licenceCopyColumns = []string{
	"vrm",
	"licence_start_date",
	"licence_end_date",
	"description",
	"licensing_authority_name",
	"licence_plate_number",
	"wheelchair_accessible",
	"uploader_id",
	"register_job_id",
}

// LicenceExportQuery selects the register in the column order used for CSV exports.
const LicenceExportQuery = `SELECT vrm, licence_start_date AS start, licence_end_date AS "end",
       description AS "taxiOrPHV", licensing_authority_name AS "licensingAuthorityName",
       licence_plate_number AS "licensePlateNumber",
       wheelchair_accessible AS "wheelchairAccessibleVehicle"
FROM taxi_phv_licences
ORDER BY vrm, licence_start_date`

type licenceRepository struct {
	tx TxRunner
}

// NewLicenceRepository wires a repository that writes licences with COPY.
func NewLicenceRepository(tx TxRunner) LicenceRepository {
	return &licenceRepository{tx: tx}
}

func (r *licenceRepository) ReplaceForUploader(ctx context.Context, jobID, uploaderID uuid.UUID, licences []domain.Licence) (int64, error) {
	if r.tx == nil {
		return 0, fmt.Errorf("licence repository not initialized")
	}
	rows, err := licenceRows(jobID, uploaderID, licences)
	if err != nil {
		return 0, err
	}

	var copied int64
	err = r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM taxi_phv_licences WHERE uploader_id = $1`, uploaderID); err != nil {
			return fmt.Errorf("failed to delete previous licences: %w", err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"taxi_phv_licences"}, licenceCopyColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy licences: %w", err)
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

func licenceRows(jobID, uploaderID uuid.UUID, licences []domain.Licence) ([][]any, error) {
	rows := make([][]any, 0, len(licences))
	for i, l := range licences {
		start, err := time.Parse("2006-01-02", l.Start)
		if err != nil {
			return nil, fmt.Errorf("licence %d: invalid start date: %w", i+1, err)
		}
		end, err := time.Parse("2006-01-02", l.End)
		if err != nil {
			return nil, fmt.Errorf("licence %d: invalid end date: %w", i+1, err)
		}
		var wheelchair any
		if l.WheelchairAccessible != nil {
			wheelchair = *l.WheelchairAccessible
		}
		rows = append(rows, []any{
			l.VRM,
			start,
			end,
			domain.CanonicalDescription(l.Description),
			l.LicensingAuthorityName,
			l.LicensePlateNumber,
			wheelchair,
			uploaderID,
			jobID,
		})
	}
	return rows, nil
}
