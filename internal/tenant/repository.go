package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for tenant persistence.
type Repository interface {
	// Create inserts a new tenant. The ID and access code are generated if
	// empty. Returns ErrAccessCodeTaken on an access code collision.
	Create(ctx context.Context, t *Tenant) error

	// GetByID retrieves a tenant by its unique identifier.
	// Returns ErrTenantNotFound if the tenant does not exist.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// GetByAccessCode retrieves a tenant by its enrollment access code.
	// Returns ErrInvalidAccessCode if no tenant carries the code.
	GetByAccessCode(ctx context.Context, code string) (*Tenant, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed tenant repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new tenant.
func (r *SQLiteRepository) Create(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		t.ID = "ten-" + uuid.NewString()[:8]
	}
	if t.AccessCode == "" {
		code, err := NewAccessCode()
		if err != nil {
			return err
		}
		t.AccessCode = code
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, access_code, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.AccessCode, t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccessCodeTaken
		}
		return fmt.Errorf("creating tenant: %w", err)
	}

	return nil
}

// GetByID retrieves a tenant by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Tenant, error) {
	t, err := r.getTenant(ctx, "SELECT id, name, access_code, created_at FROM tenants WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return t, err
}

// GetByAccessCode retrieves a tenant by its enrollment access code.
func (r *SQLiteRepository) GetByAccessCode(ctx context.Context, code string) (*Tenant, error) {
	t, err := r.getTenant(ctx, "SELECT id, name, access_code, created_at FROM tenants WHERE access_code = ?", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidAccessCode
	}
	return t, err
}

// getTenant executes a query and scans a single tenant result.
func (r *SQLiteRepository) getTenant(ctx context.Context, query string, args ...any) (*Tenant, error) {
	var t Tenant
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Name, &t.AccessCode, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &t, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
