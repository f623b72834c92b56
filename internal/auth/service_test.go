package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LGEEEEEE/GateOS/internal/tenant"
)

// setupAuthDB creates an in-memory SQLite database with tenants and
// principals tables.
func setupAuthDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE tenants (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			access_code TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		) STRICT;

		CREATE TABLE principals (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'resident',
			tenant_id     TEXT NOT NULL,
			unit_kind     TEXT,
			unit_number   TEXT,
			unit_block    TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupService(t *testing.T) (*Service, tenant.Repository) {
	t.Helper()
	db := setupAuthDB(t)
	tenants := tenant.NewSQLiteRepository(db)
	principals := NewSQLiteRepository(db)
	return NewService(tenants, principals, testSecret, 15), tenants
}

func TestRegisterCreateTenantFlow(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if p.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", p.Role)
	}
	if p.TenantID == "" {
		t.Error("expected tenant binding")
	}
	if p.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterJoinTenantFlow(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	})
	if err != nil {
		t.Fatalf("Register admin error: %v", err)
	}

	// Fetch the access code via the admin's login
	login, err := svc.Login(ctx, "admin@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if login.AccessCode == "" {
		t.Fatal("admin login did not return access code")
	}

	resident, err := svc.Register(ctx, RegisterRequest{
		Email:      "bob@example.com",
		Password:   "anotherpassword",
		Kind:       RegisterJoinTenant,
		AccessCode: login.AccessCode,
		Unit:       Unit{Kind: UnitApartment, Number: "42", Block: "B"},
	})
	if err != nil {
		t.Fatalf("Register resident error: %v", err)
	}

	if resident.Role != RoleResident {
		t.Errorf("role = %q, want resident", resident.Role)
	}
	if resident.TenantID != admin.TenantID {
		t.Errorf("tenant = %q, want %q", resident.TenantID, admin.TenantID)
	}
}

func TestRegisterJoinInvalidAccessCode(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:      "bob@example.com",
		Password:   "anotherpassword",
		Kind:       RegisterJoinTenant,
		AccessCode: "ZZZZZZ",
		Unit:       Unit{Kind: UnitHouse, Number: "7"},
	})
	if !errors.Is(err, tenant.ErrInvalidAccessCode) {
		t.Errorf("error = %v, want ErrInvalidAccessCode", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register error: %v", err)
	}

	req.TenantName = "Another Complex"
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists", err)
	}

	// Email uniqueness is case-insensitive
	req.Email = "ADMIN@example.com"
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists for case variant", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "missing email", req: RegisterRequest{Password: "p", Kind: RegisterCreateTenant, TenantName: "T"}},
		{name: "missing password", req: RegisterRequest{Email: "a@b.com", Kind: RegisterCreateTenant, TenantName: "T"}},
		{name: "bad email", req: RegisterRequest{Email: "nope", Password: "p", Kind: RegisterCreateTenant, TenantName: "T"}},
		{name: "create without tenant name", req: RegisterRequest{Email: "a@b.com", Password: "p", Kind: RegisterCreateTenant}},
		{name: "join without access code", req: RegisterRequest{Email: "a@b.com", Password: "p", Kind: RegisterJoinTenant, Unit: Unit{Kind: UnitHouse, Number: "1"}}},
		{name: "join without unit", req: RegisterRequest{Email: "a@b.com", Password: "p", Kind: RegisterJoinTenant, AccessCode: "ABC123"}},
		{name: "bad unit kind", req: RegisterRequest{Email: "a@b.com", Password: "p", Kind: RegisterJoinTenant, AccessCode: "ABC123", Unit: Unit{Kind: "boat", Number: "1"}}},
		{name: "unknown kind", req: RegisterRequest{Email: "a@b.com", Password: "p", Kind: "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.req); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	result, err := svc.Login(ctx, "admin@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if result.Token == "" {
		t.Error("expected token")
	}
	if result.TenantName != "Sunset Towers" {
		t.Errorf("tenant name = %q, want Sunset Towers", result.TenantName)
	}
	if result.AccessCode == "" {
		t.Error("admin login should include access code")
	}

	claims, err := ParseToken(result.Token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("token role = %q, want admin", claims.Role)
	}
}

func TestLoginResidentOmitsAccessCode(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	adminLogin, err := svc.Login(ctx, "admin@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:      "bob@example.com",
		Password:   "anotherpassword",
		Kind:       RegisterJoinTenant,
		AccessCode: adminLogin.AccessCode,
		Unit:       Unit{Kind: UnitApartment, Number: "42"},
	}); err != nil {
		t.Fatalf("Register resident error: %v", err)
	}

	result, err := svc.Login(ctx, "bob@example.com", "anotherpassword")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.AccessCode != "" {
		t.Error("resident login must not include access code")
	}
}

func TestLoginUndifferentiatedFailures(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Email:      "admin@example.com",
		Password:   "hunter2hunter2",
		Kind:       RegisterCreateTenant,
		TenantName: "Sunset Towers",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	// Unknown email and wrong password fail identically.
	_, unknownErr := svc.Login(ctx, "ghost@example.com", "whatever")
	_, wrongErr := svc.Login(ctx, "admin@example.com", "wrong password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("failure messages differ: %q vs %q", unknownErr, wrongErr)
	}
}
