package domain

import "testing"

func TestCanonicalDescription(t *testing.T) {
	cases := map[string]string{
		"taxi":  "taxi",
		"Taxi":  "taxi",
		"TAXI":  "taxi",
		"phv":   "PHV",
		"Phv":   "PHV",
		"PHV":   "PHV",
		"coach": "coach",
	}
	for in, want := range cases {
		if got := CanonicalDescription(in); got != want {
			t.Errorf("CanonicalDescription(%q) = %q, want %q", in, got, want)
		}
	}
}
