package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for principal persistence.
type Repository interface {
	// Create inserts a new principal. The ID is generated if empty.
	// Returns ErrEmailExists on a duplicate email (case-insensitive).
	Create(ctx context.Context, p *Principal) error

	// GetByID retrieves a principal by its unique identifier.
	GetByID(ctx context.Context, id string) (*Principal, error)

	// GetByEmail retrieves a principal by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// UpdatePassword rotates a principal's password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// Delete removes a principal. Tenant devices are shared property and
	// survive; audit rows keep their history with the principal id nulled
	// (enforced by the schema's ON DELETE SET NULL).
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed principal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const principalColumns = `id, email, password_hash, role, tenant_id, unit_kind, unit_number, unit_block, created_at, updated_at`

// Create inserts a new principal.
func (r *SQLiteRepository) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = "prn-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO principals (`+principalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.PasswordHash, string(p.Role), p.TenantID,
		nullString(string(p.Unit.Kind)), nullString(p.Unit.Number), nullString(p.Unit.Block),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating principal: %w", err)
	}

	return nil
}

// GetByID retrieves a principal by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Principal, error) {
	return r.getPrincipal(ctx, "SELECT "+principalColumns+" FROM principals WHERE id = ?", id)
}

// GetByEmail retrieves a principal by email. The email column is declared
// COLLATE NOCASE, so the comparison is case-insensitive.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.getPrincipal(ctx, "SELECT "+principalColumns+" FROM principals WHERE email = ?", email)
}

// UpdatePassword rotates a principal's password hash.
func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE principals SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// Delete removes a principal account by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM principals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting principal: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// getPrincipal executes a query and scans a single principal result.
func (r *SQLiteRepository) getPrincipal(ctx context.Context, query string, args ...any) (*Principal, error) {
	var p Principal
	var unitKind, unitNumber, unitBlock sql.NullString
	var role, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &role, &p.TenantID,
		&unitKind, &unitNumber, &unitBlock, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("scanning principal: %w", err)
	}

	p.Role = Role(role)
	if unitKind.Valid {
		p.Unit.Kind = UnitKind(unitKind.String)
	}
	if unitNumber.Valid {
		p.Unit.Number = unitNumber.String
	}
	if unitBlock.Valid {
		p.Unit.Block = unitBlock.String
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

// nullString returns nil for empty strings, for nullable TEXT columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
