package domain

import "strings"

// Licence is one taxi or private hire vehicle licence row of the register.
type Licence struct {
	VRM                    string `json:"vrm"`
	Start                  string `json:"start"`
	End                    string `json:"end"`
	Description            string `json:"taxiOrPHV"`
	LicensingAuthorityName string `json:"licensingAuthorityName"`
	LicensePlateNumber     string `json:"licensePlateNumber"`
	WheelchairAccessible   *bool  `json:"wheelchairAccessibleVehicle,omitempty"`
}

// CanonicalDescription normalises a taxi/PHV value to "taxi" or "PHV". Other values are returned unchanged.
func CanonicalDescription(description string) string {
	switch {
	case strings.EqualFold(description, "taxi"):
		return "taxi"
	case strings.EqualFold(description, "phv"):
		return "PHV"
	default:
		return description
	}
}
