// Package tenant provides the tenant directory: condominiums and the
// enrollment access codes residents use to join them.
//
// A tenant is the isolation boundary for devices, principals, and audit
// history. Everything device- or log-scoped in GateOS resolves back to a
// tenant id from this package.
package tenant

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

// Tenant represents an independently managed residential complex.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// AccessCode is the shared enrollment secret residents present at
	// registration to join this tenant. Globally unique; regenerated only
	// by explicit administrative action.
	AccessCode string `json:"access_code"`

	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for tenant operations.
var (
	ErrTenantNotFound    = errors.New("tenant: not found")
	ErrInvalidAccessCode = errors.New("tenant: invalid access code")
	ErrAccessCodeTaken   = errors.New("tenant: access code already in use")
)

// accessCodeLength is the number of characters in a generated access code.
const accessCodeLength = 6

// accessCodeAlphabet is the character set for access codes: uppercase base36.
// Unambiguous enough to read over an intercom, large enough that collisions
// are caught by the unique constraint rather than tolerated.
const accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewAccessCode generates a random 6-character enrollment code.
func NewAccessCode() (string, error) {
	b := make([]byte, accessCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating access code: %w", err)
	}
	for i := range b {
		b[i] = accessCodeAlphabet[int(b[i])%len(accessCodeAlphabet)]
	}
	return string(b), nil
}
