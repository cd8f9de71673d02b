// Package validation holds shared input validation rules.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{1,30}$`)

// reservedUsernames are names that collide with route segments or are
// otherwise off-limits for self-service registration.
var reservedUsernames = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"bookmark": {},
	"delete":   {},
	"find":     {},
	"findbyid": {},
	"health":   {},
	"like":     {},
	"metrics":  {},
	"sit":      {},
	"sits":     {},
	"users":    {},
}

// ValidateUsername checks a username against the allowed character set,
// length limit and reserved-name list.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 1-30 letters, digits or underscores")
	}
	if _, exists := reservedUsernames[strings.ToLower(username)]; exists {
		return fmt.Errorf("username is reserved")
	}
	return nil
}
