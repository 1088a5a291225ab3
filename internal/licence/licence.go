// Package licence maps and validates taxi and private hire vehicle licence rows.
package licence

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/DEFRA/clean-air-zones-api-sub008/internal/csvparse"
	"github.com/DEFRA/clean-air-zones-api-sub008/internal/domain"
)

const (
	// FieldCount is the number of columns in a licence CSV line.
	FieldCount = 7
	// MaxLineLength is the longest accepted licence CSV line.
	MaxLineLength = 210

	dateLayout = "2006-01-02"

	maxAuthorityNameLength = 50
	maxPlateNumberLength   = 15
)

var vrmPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,7}$`)

// MapFields turns the seven CSV columns into a licence. Only the wheelchair flag is coerced here;
// everything else is checked by Validate so that it is reported per row.
func MapFields(fields []string) (domain.Licence, error) {
	if len(fields) != FieldCount {
		return domain.Licence{}, fmt.Errorf("expected %d fields, got %d", FieldCount, len(fields))
	}
	wheelchair, err := csvparse.ParseOptionalBool("wheelchair accessible", fields[6])
	if err != nil {
		return domain.Licence{}, err
	}
	return domain.Licence{
		VRM:                    normaliseVRM(fields[0]),
		Start:                  strings.TrimSpace(fields[1]),
		End:                    strings.TrimSpace(fields[2]),
		Description:            strings.TrimSpace(fields[3]),
		LicensingAuthorityName: strings.TrimSpace(fields[4]),
		LicensePlateNumber:     strings.TrimSpace(fields[5]),
		WheelchairAccessible:   wheelchair,
	}, nil
}

// NewParser returns the CSV parser configured for licence files.
func NewParser(opts ...csvparse.Option) *csvparse.Parser[domain.Licence] {
	base := []csvparse.Option{
		csvparse.WithExpectedFields(FieldCount),
		csvparse.WithMaxLineLength(MaxLineLength),
	}
	return csvparse.New(MapFields, append(base, opts...)...)
}

func normaliseVRM(vrm string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vrm), " ", ""))
}

// Validate checks one licence. It never touches shared state.
func Validate(l domain.Licence, lineNumber int) []domain.ValidationError {
	var errs []domain.ValidationError
	missing := func(detail string) {
		if verr, err := domain.NewMissingFieldError(detail, lineNumber); err == nil {
			errs = append(errs, verr)
		}
	}
	invalid := func(detail string) {
		if verr, err := domain.NewValidationError(detail, lineNumber); err == nil {
			errs = append(errs, verr)
		}
	}

	switch {
	case l.VRM == "":
		missing("Missing VRM")
	case !vrmPattern.MatchString(l.VRM):
		invalid("Invalid format of VRM")
	}

	start, startOK := checkDate(l.Start, "start date", missing, invalid)
	end, endOK := checkDate(l.End, "end date", missing, invalid)
	if startOK && endOK && start.After(end) {
		invalid("Start date must be before end date")
	}

	switch desc := strings.ToLower(l.Description); {
	case desc == "":
		missing("Missing taxi/PHV value")
	case desc != "taxi" && desc != "phv":
		invalid("Invalid taxi/PHV value, can only be taxi or PHV")
	}

	switch n := len([]rune(l.LicensingAuthorityName)); {
	case n == 0:
		missing("Missing licensing authority name")
	case n > maxAuthorityNameLength:
		invalid(fmt.Sprintf("Licensing authority name is too long (max: %d)", maxAuthorityNameLength))
	}

	switch n := len([]rune(l.LicensePlateNumber)); {
	case n == 0:
		missing("Missing licence plate number")
	case n > maxPlateNumberLength:
		invalid(fmt.Sprintf("Licence plate number is too long (max: %d)", maxPlateNumberLength))
	}

	return errs
}

func checkDate(value, name string, missing, invalid func(string)) (time.Time, bool) {
	if value == "" {
		missing("Missing " + name)
		return time.Time{}, false
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		invalid(fmt.Sprintf("Invalid %s format, expected YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return parsed, true
}

// ParseCSV parses a licence file and records the VRM found on every rejected line.
func ParseCSV(parser *csvparse.Parser[domain.Licence], r io.Reader) (domain.ParseResult[domain.Licence], map[int]string, error) {
	rejected := map[int]string{}
	result, err := parser.Parse(r, func(l domain.Licence, line int) []domain.ValidationError {
		errs := Validate(l, line)
		if len(errs) > 0 && l.VRM != "" {
			rejected[line] = l.VRM
		}
		return errs
	})
	if err != nil {
		return domain.ParseResult[domain.Licence]{}, nil, err
	}
	return result, rejected, nil
}

// ValidateAll validates licences submitted as a list. Positions are 1-based and play the role of
// line numbers.
func ValidateAll(licences []domain.Licence) (domain.ParseResult[domain.Licence], map[int]string) {
	result := domain.NewParseResult[domain.Licence]()
	rejected := map[int]string{}
	for i, l := range licences {
		l.VRM = normaliseVRM(l.VRM)
		l.Start = strings.TrimSpace(l.Start)
		l.End = strings.TrimSpace(l.End)
		l.Description = strings.TrimSpace(l.Description)
		l.LicensingAuthorityName = strings.TrimSpace(l.LicensingAuthorityName)
		l.LicensePlateNumber = strings.TrimSpace(l.LicensePlateNumber)
		if errs := Validate(l, i+1); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			if l.VRM != "" {
				rejected[i+1] = l.VRM
			}
			continue
		}
		result.Records = append(result.Records, l)
	}
	return result, rejected
}
