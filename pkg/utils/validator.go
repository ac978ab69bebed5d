package utils

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/currency"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCurrencyCode checks that code is a recognised ISO 4217 code and
// returns it upper-cased
func ValidateCurrencyCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("invalid currency code: %q", code)
	}
	return unit.String(), nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return strings.TrimSpace(regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, ""))
}
