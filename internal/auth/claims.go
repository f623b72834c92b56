package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends JWT standard claims with GateOS-specific fields.
// The subject is the principal id; every device- and log-scoped operation
// authorises against the tenant id carried here.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
}

// IssueToken creates a signed HS256 session token for a principal.
//
// ttlMinutes <= 0 issues a token without an expiry claim; expiry policy is
// a deployment concern, not enforced by the core.
func IssueToken(p *Principal, secret string, ttlMinutes int) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.ID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Email:    p.Email,
		Role:     p.Role,
		TenantID: p.TenantID,
	}
	if ttlMinutes > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a session token, returning the claims.
// It checks the signature, the signing method, and required fields.
// Verification is pure: no storage lookup, no side effects.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	if claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant id", ErrTokenInvalid)
	}

	return claims, nil
}

// RequireRole returns ErrForbidden unless the claims carry the given role.
func (c *Claims) RequireRole(role Role) error {
	if c.Role != role {
		return ErrForbidden
	}
	return nil
}

// RequireTenant returns ErrForbidden unless the claims belong to the given
// tenant. Role checks compose with this, never replace it: an admin of
// tenant A has no authority over tenant B's resources.
func (c *Claims) RequireTenant(tenantID string) error {
	if tenantID == "" || c.TenantID != tenantID {
		return ErrForbidden
	}
	return nil
}
