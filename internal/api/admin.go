package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/models"
	"github.com/digkill/ImageForge/internal/service"
)

type setRoleRequest struct {
	ID   string `json:"id" validate:"required"`
	Role string `json:"role" validate:"required"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Missing required parameters: id and role")
		return
	}

	role := models.Role(req.Role)
	err := s.accounts.SetRole(r.Context(), req.ID, role)
	switch {
	case errors.Is(err, service.ErrInvalidRole):
		s.writeError(w, http.StatusBadRequest, `Invalid role. Must be "user" or "admin"`)
		return
	case errors.Is(err, service.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, service.ErrRoleUnchanged):
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("User is already a %s", role))
		return
	case errors.Is(err, service.ErrUserLookup):
		s.internalError(w, "Failed to fetch user", err)
		return
	case err != nil:
		s.internalError(w, "Failed to update user role", err)
		return
	}

	if admin, ok := r.Context().Value(userKey).(*identity.User); ok {
		s.log.Info("role changed by admin", "admin_id", admin.ID, "user_id", req.ID, "role", role)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User successfully set as %s", role),
		"role":    role,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.orders.List(r.Context(), req)
	if err != nil {
		s.internalError(w, "Failed to fetch orders", err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}
