// Package audit provides an append-only record of who triggered what on
// which device. Entries are written only after the corresponding command
// actually left for the broker, so the trail reflects dispatched
// commands rather than attempts.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionTriggeredOpen is recorded when an open command was published to
// a device's command topic.
const ActionTriggeredOpen = "TRIGGERED_OPEN"

// MaxListLimit caps how many entries a single log query returns.
const MaxListLimit = 50

// Entry is one audit record. PrincipalID is a pointer because the
// principal may have been deleted since the entry was written; the
// entry itself survives.
type Entry struct {
	ID           string    `json:"id"`
	PrincipalID  *string   `json:"principal_id,omitempty"`
	DeviceSerial string    `json:"device_serial"`
	Action       string    `json:"action"`
	CreatedAt    time.Time `json:"created_at"`

	// Enrichment fields, populated on reads by joining the principals
	// table. Empty when the principal no longer exists.
	PrincipalEmail string `json:"principal_email,omitempty"`
	UnitKind       string `json:"unit_kind,omitempty"`
	UnitNumber     string `json:"unit_number,omitempty"`
	UnitBlock      string `json:"unit_block,omitempty"`
}

// Log persists and queries audit entries in SQLite.
type Log struct {
	db *sql.DB
}

// NewLog creates an audit log backed by the given database.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append writes one entry. There is no update or delete path.
func (l *Log) Append(ctx context.Context, principalID, deviceSerial, action string) (*Entry, error) {
	e := &Entry{
		ID:           "aud-" + uuid.NewString()[:8],
		DeviceSerial: deviceSerial,
		Action:       action,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if principalID != "" {
		e.PrincipalID = &principalID
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, principal_id, device_serial, action, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.PrincipalID, e.DeviceSerial, e.Action, e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}
	return e, nil
}

// ListForDevice returns the newest entries for a device, enriched with
// the acting principal's email and unit where the principal still
// exists. Timestamps are second-granular, so ties are broken by rowid:
// the table is append-only, making rowid the insertion order.
//
// Tenant ownership is enforced here a second time by joining through
// the devices table: even if a caller slips past the registry check, a
// device outside the tenant yields zero rows rather than another
// tenant's history.
func (l *Log) ListForDevice(ctx context.Context, tenantID, deviceSerial string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT a.id, a.principal_id, a.device_serial, a.action, a.created_at,
		        COALESCE(p.email, ''), COALESCE(p.unit_kind, ''),
		        COALESCE(p.unit_number, ''), COALESCE(p.unit_block, '')
		 FROM audit_logs a
		 JOIN devices d ON d.serial_number = a.device_serial AND d.tenant_id = ?
		 LEFT JOIN principals p ON p.id = a.principal_id
		 WHERE a.device_serial = ?
		 ORDER BY a.created_at DESC, a.rowid DESC
		 LIMIT ?`,
		tenantID, deviceSerial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var principalID sql.NullString
		var createdAt string

		err := rows.Scan(&e.ID, &principalID, &e.DeviceSerial, &e.Action, &createdAt,
			&e.PrincipalEmail, &e.UnitKind, &e.UnitNumber, &e.UnitBlock)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if principalID.Valid {
			e.PrincipalID = &principalID.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
