package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/overlay-core/internal/auth"
)

// minPasswordLength applies to every password set over the API.
const minPasswordLength = 8

type createOperatorRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

type updateOperatorRequest struct {
	DisplayName *string    `json:"display_name,omitempty"`
	Role        *auth.Role `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// handleListOperators returns all operator accounts.
func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.operators.List(r.Context())
	if err != nil {
		s.logger.Error("list operators failed", "error", err)
		writeInternalError(w, "failed to list operators")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"operators": ops,
		"count":     len(ops),
	})
}

// handleCreateOperator creates an operator account. The role defaults to
// operator.
func (s *Server) handleCreateOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleOperator
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create operator")
		return
	}

	op := &auth.Operator{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.operators.Create(r.Context(), op); err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("create operator failed", "error", err)
			writeInternalError(w, "failed to create operator")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("operator created", "operator_id", op.ID, "username", op.Username, "role", op.Role, "created_by", claims.Subject)
	s.auditLog(r, "operator_create", map[string]any{"username": op.Username, "role": op.Role})

	writeJSON(w, http.StatusCreated, op)
}

// handleUpdateOperator changes display name, role or active flag. Admins
// cannot demote or deactivate themselves.
func (s *Server) handleUpdateOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	var req updateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	op, ok := s.loadOperator(w, r, id)
	if !ok {
		return
	}

	if id == claims.Subject {
		if req.IsActive != nil && !*req.IsActive {
			writeForbidden(w, "cannot deactivate your own account")
			return
		}
		if req.Role != nil && *req.Role != claims.Role {
			writeForbidden(w, "cannot change your own role")
			return
		}
	}

	if req.DisplayName != nil {
		op.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		op.Role = *req.Role
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
	}

	if err := s.operators.Update(r.Context(), op); err != nil {
		if errors.Is(err, auth.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("update operator failed", "error", err)
		writeInternalError(w, "failed to update operator")
		return
	}

	s.logger.Info("operator updated", "operator_id", id, "updated_by", claims.Subject)
	s.auditLog(r, "operator_update", map[string]any{"username": op.Username, "role": op.Role, "is_active": op.IsActive})

	writeJSON(w, http.StatusOK, op)
}

// handleSetOperatorPassword replaces an operator's password.
func (s *Server) handleSetOperatorPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	op, ok := s.loadOperator(w, r, id)
	if !ok {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to set password")
		return
	}
	if err := s.operators.UpdatePassword(r.Context(), id, hash); err != nil {
		s.logger.Error("update password failed", "error", err)
		writeInternalError(w, "failed to set password")
		return
	}

	s.auditLog(r, "operator_password", map[string]any{"username": op.Username})
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteOperator removes an operator account.
func (s *Server) handleDeleteOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if id == claims.Subject {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	op, ok := s.loadOperator(w, r, id)
	if !ok {
		return
	}

	if err := s.operators.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete operator failed", "error", err)
		writeInternalError(w, "failed to delete operator")
		return
	}

	s.logger.Info("operator deleted", "operator_id", id, "deleted_by", claims.Subject)
	s.auditLog(r, "operator_delete", map[string]any{"username": op.Username})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadOperator(w http.ResponseWriter, r *http.Request, id string) (*auth.Operator, bool) {
	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			writeNotFound(w, "operator not found")
			return nil, false
		}
		s.logger.Error("get operator failed", "error", err)
		writeInternalError(w, "failed to load operator")
		return nil, false
	}
	return op, true
}
