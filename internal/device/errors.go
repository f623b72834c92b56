package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrAccessDenied) {
//	    // handle denial
//	}
var (
	// ErrDeviceNotFound is returned when a serial number does not exist.
	// Internal to the registry; tenant-scoped lookups surface
	// ErrAccessDenied instead so existence cannot be tested from outside.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrSerialBoundElsewhere is returned when registering a serial number
	// already bound to a different tenant. The existing binding is never
	// mutated.
	ErrSerialBoundElsewhere = errors.New("device: serial number belongs to another tenant")

	// ErrAccessDenied is the single denial for tenant-scoped lookups. It
	// deliberately conflates "no such device" with "device belongs to
	// another tenant" to prevent cross-tenant device enumeration.
	ErrAccessDenied = errors.New("device: access denied")

	// ErrInvalidDevice is returned when registration validation fails.
	ErrInvalidDevice = errors.New("device: invalid")
)
