package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlPattern = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SanitizeString strips control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlPattern.ReplaceAllString(s, ""))
}
