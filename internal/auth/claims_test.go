package auth

import (
	"errors"
	"testing"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func testPrincipal() *Principal {
	return &Principal{
		ID:       "prn-abc12345",
		Email:    "alice@example.com",
		Role:     RoleAdmin,
		TenantID: "ten-def67890",
	}
}

func TestIssueAndParseToken(t *testing.T) {
	p := testPrincipal()

	token, err := IssueToken(p, testSecret, 15)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}

	if claims.Subject != p.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, p.ID)
	}
	if claims.Email != p.Email {
		t.Errorf("email = %q, want %q", claims.Email, p.Email)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.TenantID != p.TenantID {
		t.Errorf("tenant = %q, want %q", claims.TenantID, p.TenantID)
	}
	if claims.ExpiresAt == nil {
		t.Error("expected expiry claim with positive TTL")
	}
}

func TestIssueTokenNoExpiry(t *testing.T) {
	token, err := IssueToken(testPrincipal(), testSecret, 0)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Error("expected no expiry claim with zero TTL")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := IssueToken(testPrincipal(), testSecret, 15)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	if _, err := ParseToken(token, "another-secret-also-32-characters-long!!"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestRequireRole(t *testing.T) {
	token, err := IssueToken(testPrincipal(), testSecret, 15)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}

	if err := claims.RequireRole(RoleAdmin); err != nil {
		t.Errorf("RequireRole(admin) = %v, want nil", err)
	}
	if err := claims.RequireRole(RoleResident); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequireRole(resident) = %v, want ErrForbidden", err)
	}
}

func TestRequireTenant(t *testing.T) {
	token, err := IssueToken(testPrincipal(), testSecret, 15)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}

	if err := claims.RequireTenant("ten-def67890"); err != nil {
		t.Errorf("RequireTenant(own) = %v, want nil", err)
	}
	if err := claims.RequireTenant("ten-other"); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequireTenant(other) = %v, want ErrForbidden", err)
	}
	if err := claims.RequireTenant(""); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequireTenant(empty) = %v, want ErrForbidden", err)
	}
}
