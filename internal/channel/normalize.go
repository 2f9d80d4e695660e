package channel

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone converts a stored phone number (often "(555) 123-4567") into E.164.
// Numbers without a leading + are parsed in defaultRegion.
func NormalizePhone(num, defaultRegion string) (string, error) {
	num = strings.TrimSpace(num)
	if num == "" {
		return "", fmt.Errorf("missing phone number")
	}

	parsed, err := phonenumbers.Parse(num, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", num, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number %q", num)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
