package device

import (
	"fmt"
	"strings"
)

// Validation limits for device identity fields.
const (
	// maxIDLength bounds device IDs; they appear in topics, URLs, and logs.
	maxIDLength = 64

	// maxNameLength bounds human-readable device names.
	maxNameLength = 128
)

// ValidateID checks that a device ID is safe to use as a stable identifier.
//
// Rules:
//   - Must not be empty
//   - Must not exceed 64 characters
//   - May contain only letters, digits, dots, underscores, and hyphens
//
// The character restriction keeps IDs usable in MQTT topics and log lines
// without escaping.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDeviceID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDeviceID, maxIDLength)
	}
	for _, r := range id {
		if !isIDRune(r) {
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidDeviceID, r)
		}
	}
	return nil
}

// isIDRune reports whether r is allowed in a device ID.
func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

// ValidateRegistration checks a registration payload and applies defaults.
//
// Returns the normalised registration or an error describing the first
// problem found. Whitespace-only names are rejected.
func ValidateRegistration(reg Registration) (Registration, error) {
	if err := ValidateID(reg.DeviceID); err != nil {
		return Registration{}, err
	}

	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Name == "" {
		return Registration{}, fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(reg.Name) > maxNameLength {
		return Registration{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	if strings.TrimSpace(reg.Location) == "" {
		reg.Location = DefaultLocation
	}
	if strings.TrimSpace(reg.Type) == "" {
		reg.Type = DefaultType
	}

	return reg, nil
}
