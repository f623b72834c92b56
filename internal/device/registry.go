package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Registry is the domain service in front of the device repository. It
// enforces the one-tenant-per-serial rule and the tenant-scoped lookup
// used by every command and query path.
type Registry struct {
	repo Repository
}

// NewRegistry creates a device registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// RegisterRequest carries the caller-supplied fields of a registration.
// Status and timestamps are never caller-controlled.
type RegisterRequest struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
	SecurityCode string `json:"security_code"`
}

// Register binds a serial number to a tenant, or updates the binding's
// mutable fields when the serial is already owned by that tenant.
//
// A serial bound to a different tenant is rejected with
// ErrSerialBoundElsewhere and nothing is mutated. Re-registering within
// the owning tenant is an idempotent upsert: name and security code are
// replaced, status and tenant binding are untouched.
func (g *Registry) Register(ctx context.Context, tenantID string, req RegisterRequest) (*Device, error) {
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial number is required", ErrInvalidDevice)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidDevice)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = serial
	}
	code := req.SecurityCode
	if code == "" {
		code = DefaultSecurityCode
	}

	existing, err := g.repo.GetBySerial(ctx, serial)
	switch {
	case err == nil:
		if existing.TenantID != tenantID {
			return nil, ErrSerialBoundElsewhere
		}
		existing.Name = name
		existing.SecurityCode = code
		if err := g.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("updating device %s: %w", serial, err)
		}
		return existing, nil

	case errors.Is(err, ErrDeviceNotFound):
		d := &Device{
			SerialNumber: serial,
			Name:         name,
			Status:       DefaultStatus,
			SecurityCode: code,
			TenantID:     tenantID,
		}
		if err := g.repo.Create(ctx, d); err != nil {
			// A concurrent first registration can win between the
			// lookup above and the insert. The UNIQUE constraint is
			// the real arbiter, so its loss is the same conflict.
			if errors.Is(err, ErrSerialBoundElsewhere) {
				return nil, ErrSerialBoundElsewhere
			}
			return nil, fmt.Errorf("registering device %s: %w", serial, err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("checking serial %s: %w", serial, err)
	}
}

// FindForTenant retrieves a device only if it belongs to the tenant.
// An absent serial and a serial owned by another tenant both come back
// as ErrAccessDenied so callers cannot enumerate serials outside their
// own tenant.
func (g *Registry) FindForTenant(ctx context.Context, tenantID, serial string) (*Device, error) {
	d, err := g.repo.GetBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("finding device %s: %w", serial, err)
	}
	if d.TenantID != tenantID {
		return nil, ErrAccessDenied
	}
	return d, nil
}

// Lookup retrieves a device by serial without tenant scoping. Callers
// on a request path must pair it with an ownership check against the
// caller's claims; FindForTenant bundles both for the command path.
func (g *Registry) Lookup(ctx context.Context, serial string) (*Device, error) {
	return g.repo.GetBySerial(ctx, serial)
}

// ListByTenant returns the tenant's devices in serial order.
func (g *Registry) ListByTenant(ctx context.Context, tenantID string) ([]Device, error) {
	return g.repo.ListByTenant(ctx, tenantID)
}

// UpdateStatus records the latest status token reported by a controller.
// The token is stored verbatim; the physical device owns its vocabulary.
func (g *Registry) UpdateStatus(ctx context.Context, serial, status string) error {
	return g.repo.UpdateStatus(ctx, serial, status)
}
