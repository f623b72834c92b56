package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LGEEEEEE/GateOS/internal/auth"
	"github.com/LGEEEEEE/GateOS/internal/tenant"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a principal, either founding a new tenant or
// joining an existing one by access code.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := s.auth.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, auth.ErrEmailExists):
			writeError(w, http.StatusBadRequest, ErrCodeConflict, "email is already registered")
		case errors.Is(err, tenant.ErrInvalidAccessCode):
			writeBadRequest(w, "invalid access code")
		default:
			s.logger.Error("registration failed", "error", err)
			writeInternalError(w, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        p.ID,
		"email":     p.Email,
		"role":      p.Role,
		"tenant_id": p.TenantID,
	})
}

// handleLogin authenticates a principal and returns a JWT token plus
// the tenant context the client UI needs.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// 400, not 401: bearer-token failures are the 401 path, a bad
			// login is a rejected form submission.
			writeBadRequest(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
