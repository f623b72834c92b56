// Package device provides the device registry: gate/door controllers bound
// to exactly one tenant each, keyed by globally unique serial number.
package device

import "time"

// Well-known defaults for newly registered devices.
const (
	// DefaultStatus is the status sentinel for a controller that has never
	// reported. Status is a free-text token owned by the controller; the
	// registry stores it opaquely.
	DefaultStatus = "OFFLINE"

	// DefaultSecurityCode is the fallback shared secret embedded in command
	// payloads when registration supplies none. A documented weak default
	// for demo and test setups; production registrations must supply a
	// real code.
	DefaultSecurityCode = "1234"
)

// Device represents a physical gate/door controller.
//
// The serial number is the global primary identity, unique across all
// tenants. Once a serial is bound to a tenant it stays bound: re-registration
// by the same tenant is an idempotent upsert, by any other tenant a conflict.
type Device struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`

	// Status is the last token the controller reported, updated only from
	// the inbound telemetry path.
	Status string `json:"status"`

	// SecurityCode is the shared secret embedded in outbound command
	// payloads. Never serialised to API clients.
	SecurityCode string `json:"-"`

	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
