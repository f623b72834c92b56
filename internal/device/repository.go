package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetBySerial retrieves a device by serial number.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetBySerial(ctx context.Context, serial string) (*Device, error)

	// ListByTenant retrieves all devices of a tenant, ordered by serial
	// number for deterministic pagination and tests.
	ListByTenant(ctx context.Context, tenantID string) ([]Device, error)

	// Create inserts a new device.
	Create(ctx context.Context, d *Device) error

	// Update modifies a device's name and security code. Serial number and
	// tenant binding are immutable.
	Update(ctx context.Context, d *Device) error

	// UpdateStatus overwrites the status token for a serial number.
	// Last-write-wins; each controller is the sole writer of its own status.
	UpdateStatus(ctx context.Context, serial, status string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `serial_number, name, status, security_code, tenant_id, created_at, updated_at`

// GetBySerial retrieves a device by serial number.
func (r *SQLiteRepository) GetBySerial(ctx context.Context, serial string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE serial_number = ?", serial)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by serial: %w", err)
	}
	return d, nil
}

// ListByTenant retrieves all devices of a tenant, serial order.
func (r *SQLiteRepository) ListByTenant(ctx context.Context, tenantID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE tenant_id = ? ORDER BY serial_number ASC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC().Truncate(time.Second)
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.SerialNumber, d.Name, d.Status, d.SecurityCode, d.TenantID,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSerialBoundElsewhere
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. The driver does not export a typed error for this, so match
// on the message like the tenant repository does.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Update modifies a device's name and security code.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	now := time.Now().UTC().Truncate(time.Second)
	d.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, security_code = ?, updated_at = ? WHERE serial_number = ?`,
		d.Name, d.SecurityCode, now.Format(time.RFC3339), d.SerialNumber,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateStatus overwrites the status token for a serial number.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, serial, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, updated_at = ? WHERE serial_number = ?`,
		status, time.Now().UTC().Format(time.RFC3339), serial,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device from a row or rows cursor.
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var createdAt, updatedAt string

	err := s.Scan(&d.SerialNumber, &d.Name, &d.Status, &d.SecurityCode,
		&d.TenantID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &d, nil
}
