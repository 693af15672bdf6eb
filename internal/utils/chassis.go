package utils

import (
	"regexp"
	"strings"
)

// Chassis numbers follow the VIN alphabet: digits and uppercase letters
// excluding I, O and Q. Older vehicles carry shorter numbers, so anything
// from 11 to the standard 17 characters is accepted.
var chassisPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{11,17}$`)

// IsValidChassis reports whether s is a plausible chassis number.
func IsValidChassis(s string) bool {
	return chassisPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}
