package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidateZoneName checks if the provided zone name is a valid FQDN.
func ValidateZoneName(name string) error {
	if name == "" {
		return fmt.Errorf("zone name cannot be empty")
	}
	if !strings.HasSuffix(name, ".") {
		return fmt.Errorf("zone name must end with a dot (FQDN)")
	}
	if len(name) > 254 {
		return fmt.Errorf("zone name exceeds 253 characters")
	}
	return validateLabels(strings.TrimSuffix(name, "."))
}

// NormalizeHostname lowercases a hostname, strips a trailing dot and checks
// every label. It is applied to anything a human claims or a device requests.
func NormalizeHostname(name string) (string, error) {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if name == "" {
		return "", fmt.Errorf("%w: empty hostname", ErrInvalidHostname)
	}
	if len(name) > 253 {
		return "", fmt.Errorf("%w: hostname exceeds 253 characters", ErrInvalidHostname)
	}
	if err := validateLabels(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHostname, err)
	}
	return name, nil
}

func validateLabels(name string) error {
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("name contains empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if !validLabelRegex.MatchString(label) {
			return fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return nil
}
