package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/LGEEEEEE/GateOS/internal/device"
	"github.com/LGEEEEEE/GateOS/internal/infrastructure/mqtt"
)

// handleListDevices returns the caller's tenant's devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	devices, err := s.registry.ListByTenant(r.Context(), claims.TenantID)
	if err != nil {
		s.logger.Error("listing devices failed", "tenant", claims.TenantID, "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleRegisterDevice binds a serial number to the caller's tenant, or
// updates it when already bound there.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req device.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.SecurityCode == "" && !s.secCfg.AllowDefaultSecurityCode {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "security_code is required")
		return
	}

	d, err := s.registry.Register(r.Context(), claims.TenantID, req)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidDevice):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, device.ErrSerialBoundElsewhere):
			writeError(w, http.StatusBadRequest, ErrCodeConflict, "serial number is registered to another tenant")
		default:
			s.logger.Error("device registration failed", "error", err)
			writeInternalError(w, "device registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDevice returns one device of the caller's tenant. Absent
// and foreign serials answer identically: the ownership check maps to
// the same opaque 404 as a missing device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	serial := chi.URLParam(r, "serial")

	d, err := s.registry.Lookup(r.Context(), serial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "serial", serial, "error", err)
		writeInternalError(w, "device lookup failed")
		return
	}
	if err := claims.RequireTenant(d.TenantID); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleOpenDevice dispatches an open command to the device's
// controller and records the dispatch in the audit trail.
func (s *Server) handleOpenDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	serial := chi.URLParam(r, "serial")

	entry, err := s.relay.Open(r.Context(), claims.TenantID, claims.Subject, serial)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrAccessDenied):
			// Absent and cross-tenant serials are indistinguishable here.
			writeNotFound(w, "device not found")
		case errors.Is(err, mqtt.ErrNotConnected):
			writeError(w, http.StatusInternalServerError, ErrCodeUnavailable, "command broker unavailable")
		default:
			s.logger.Error("open command failed", "serial", serial, "error", err)
			writeInternalError(w, "open command failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dispatched": true,
		"audit_id":   entry.ID,
		"device":     serial,
	})
}

// handleDeviceLogs returns the device's audit trail, newest first.
// Admin-only; enforced by adminMiddleware on the route.
func (s *Server) handleDeviceLogs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	serial := chi.URLParam(r, "serial")

	// Confirm the device belongs to the caller's tenant before touching
	// the trail, so absent and foreign serials answer identically.
	d, err := s.registry.Lookup(r.Context(), serial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "serial", serial, "error", err)
		writeInternalError(w, "device lookup failed")
		return
	}
	if err := claims.RequireTenant(d.TenantID); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.auditLog.ListForDevice(r.Context(), claims.TenantID, serial, limit)
	if err != nil {
		s.logger.Error("listing audit entries failed", "serial", serial, "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}
