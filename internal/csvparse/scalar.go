package csvparse

import (
	"fmt"
	"strings"
)

// ParseOptionalBool accepts "true" or "false" in any case. An empty value is absent; any other
// token is rejected.
func ParseOptionalBool(field, value string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("invalid %s value %q, can only be true or false", field, value)
}
