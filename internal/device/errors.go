package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrInvalidDeviceID is returned when a device ID fails validation.
	ErrInvalidDeviceID = errors.New("invalid device id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("invalid device name")
)
