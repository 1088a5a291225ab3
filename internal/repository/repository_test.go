package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateConstraintError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "running job", err: &pgconn.PgError{Code: "23505", ConstraintName: constraintOneRunningPerScope}, want: ErrActiveJobExists},
		{name: "duplicate name", err: &pgconn.PgError{Code: "23505", ConstraintName: constraintJobNameUnique}, want: ErrJobNameDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := translateConstraintError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	other := &pgconn.PgError{Code: "23503", ConstraintName: constraintJobNameUnique}
	if got := translateConstraintError(other); got != other {
		t.Fatalf("non unique violations must pass through, got %v", got)
	}
	if errors.Is(ErrActiveJobExists, ErrJobNameDuplicate) {
		t.Fatalf("active job and duplicate name must stay distinct")
	}
}

func TestLicenceRows(t *testing.T) {
	jobID, uploaderID := uuid.New(), uuid.New()
	accessible := true
	rows, err := licenceRows(jobID, uploaderID, []domain.Licence{{
		VRM:                    "AB12CDE",
		Start:                  "2024-01-01",
		End:                    "2025-06-30",
		Description:            "phv",
		LicensingAuthorityName: "Leeds",
		LicensePlateNumber:     "P1",
		WheelchairAccessible:   &accessible,
	}, {
		VRM:         "CD34EFG",
		Start:       "2024-01-01",
		End:         "2024-12-31",
		Description: "TAXI",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || len(rows[0]) != len(licenceCopyColumns) {
		t.Fatalf("unexpected rows %v", rows)
	}
	if end, ok := rows[0][2].(time.Time); !ok || !end.Equal(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end date %v", rows[0][2])
	}
	if rows[0][3] != "PHV" || rows[1][3] != "taxi" || rows[0][6] != true {
		t.Fatalf("unexpected description or wheelchair flag %v", rows[0])
	}
	if rows[1][6] != nil {
		t.Fatalf("absent wheelchair flag must be NULL, got %v", rows[1][6])
	}

	if _, err := licenceRows(jobID, uploaderID, []domain.Licence{{Start: "bad", End: "2024-01-01"}}); err == nil {
		t.Fatalf("expected invalid date to be rejected")
	}
}
