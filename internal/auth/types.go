// Package auth provides the credential service and authorization guard:
// principal accounts, password hashing, signed session tokens, and the
// role/tenant checks that gate every device- and log-scoped operation.
package auth

import (
	"errors"
	"regexp"
	"time"
)

// emailPattern is a pragmatic format check, not full RFC 5322 validation.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail checks if an email address meets basic format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// Role represents an authorisation tier within a tenant.
type Role string

const (
	// RoleAdmin manages the tenant: registers devices, reads audit logs,
	// and holds the enrollment access code. The first account of a new
	// tenant is always an admin.
	RoleAdmin Role = "admin"

	// RoleResident is a household member. Residents can list their tenant's
	// devices and trigger them, nothing more.
	RoleResident Role = "resident"
)

// IsValidRole returns true if the role is a recognised principal role.
func IsValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleResident
}

// UnitKind classifies a residential unit.
type UnitKind string

const (
	UnitHouse     UnitKind = "house"
	UnitApartment UnitKind = "apartment"
)

// IsValidUnitKind returns true for a recognised unit kind.
func IsValidUnitKind(k UnitKind) bool {
	return k == UnitHouse || k == UnitApartment
}

// Unit is the descriptive address of a principal within the complex.
// Descriptive only; no invariant is enforced beyond presence for residents.
type Unit struct {
	Kind   UnitKind `json:"kind,omitempty"`
	Number string   `json:"number,omitempty"`
	Block  string   `json:"block,omitempty"`
}

// Principal represents an authenticated account bound to exactly one tenant
// for its lifetime.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenant_id"`
	Unit         Unit      `json:"unit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	// ErrInvalidCredentials is deliberately undifferentiated: login never
	// reveals whether the email was unknown or the password wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrPrincipalNotFound = errors.New("auth: principal not found")
	ErrEmailExists       = errors.New("auth: email already registered")
	ErrTokenInvalid      = errors.New("auth: invalid token")
	ErrTokenMissing      = errors.New("auth: missing token")
	ErrForbidden         = errors.New("auth: insufficient permissions")
	ErrValidation        = errors.New("auth: validation failed")
)
