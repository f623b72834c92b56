package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/LGEEEEEE/GateOS/internal/tenant"
)

// RegistrationKind selects between the two registration flows.
type RegistrationKind string

const (
	// RegisterCreateTenant creates a new tenant and its first admin.
	RegisterCreateTenant RegistrationKind = "create"

	// RegisterJoinTenant joins an existing tenant via its access code.
	RegisterJoinTenant RegistrationKind = "join"
)

// RegisterRequest carries the inputs for Register.
type RegisterRequest struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Kind     RegistrationKind `json:"kind"`

	// TenantName is the display name for a new tenant (create only).
	TenantName string `json:"tenant_name,omitempty"`

	// AccessCode is the enrollment code of the tenant to join (join only).
	AccessCode string `json:"access_code,omitempty"`

	// Unit is the resident's unit descriptor. Required for join; optional
	// for create (an admin may also live on site).
	Unit Unit `json:"unit"`
}

// Service implements registration and login on top of the tenant directory
// and the principal repository. The JWT signing secret is injected once at
// construction; it is process-wide state, never mutated afterwards.
type Service struct {
	tenants    tenant.Repository
	principals Repository
	secret     string
	tokenTTL   int // minutes; <= 0 means no expiry claim
}

// NewService creates a credential service.
func NewService(tenants tenant.Repository, principals Repository, secret string, tokenTTLMinutes int) *Service {
	return &Service{
		tenants:    tenants,
		principals: principals,
		secret:     secret,
		tokenTTL:   tokenTTLMinutes,
	}
}

// Register creates a new principal, either founding a new tenant (first
// admin) or joining an existing one as a resident.
//
// Founding a tenant is two single-row inserts, not one transaction: if the
// admin insert fails after the tenant insert, the orphaned tenant is an
// accepted inconsistency (nothing references it, and the name stays
// claimable because tenant names are not unique).
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Principal, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p := &Principal{
		Email:        req.Email,
		PasswordHash: hash,
		Unit:         req.Unit,
	}

	switch req.Kind {
	case RegisterCreateTenant:
		t := &tenant.Tenant{Name: req.TenantName}
		if err := s.tenants.Create(ctx, t); err != nil {
			return nil, fmt.Errorf("creating tenant: %w", err)
		}
		p.Role = RoleAdmin
		p.TenantID = t.ID

	case RegisterJoinTenant:
		t, err := s.tenants.GetByAccessCode(ctx, req.AccessCode)
		if err != nil {
			return nil, err
		}
		p.Role = RoleResident
		p.TenantID = t.ID
	}

	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token      string `json:"token"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	TenantName string `json:"tenant_name"`

	// AccessCode is the tenant enrollment code, present for admins only.
	AccessCode string `json:"access_code,omitempty"`
}

// Login verifies credentials and issues a session token.
//
// Unknown email and wrong password both return ErrInvalidCredentials; the
// caller can never distinguish them (account enumeration resistance).
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	p, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, p.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	token, err := IssueToken(p, s.secret, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	t, err := s.tenants.GetByID(ctx, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("resolving tenant: %w", err)
	}

	result := &LoginResult{
		Token:      token,
		Email:      p.Email,
		Role:       p.Role,
		TenantName: t.Name,
	}
	if p.Role == RoleAdmin {
		result.AccessCode = t.AccessCode
	}

	return result, nil
}

// validateRegistration checks required fields per registration kind.
func validateRegistration(req RegisterRequest) error {
	if req.Email == "" || req.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !IsValidEmail(req.Email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	switch req.Kind {
	case RegisterCreateTenant:
		if req.TenantName == "" {
			return fmt.Errorf("%w: tenant name is required", ErrValidation)
		}
	case RegisterJoinTenant:
		if req.AccessCode == "" {
			return fmt.Errorf("%w: access code is required", ErrValidation)
		}
		if req.Unit.Kind == "" || req.Unit.Number == "" {
			return fmt.Errorf("%w: unit kind and number are required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown registration kind %q", ErrValidation, req.Kind)
	}

	if req.Unit.Kind != "" && !IsValidUnitKind(req.Unit.Kind) {
		return fmt.Errorf("%w: unit kind must be house or apartment", ErrValidation)
	}

	return nil
}
