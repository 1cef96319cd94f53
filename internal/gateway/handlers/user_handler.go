package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/gateway/util"
	"schooladmin/internal/user"
)

// UserHandler exposes account management routes. Role gating happens in the
// router; the handlers only translate HTTP to service calls.
type UserHandler struct {
	Users *user.Service
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req user.CreateInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	created, err := h.Users.Create(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, created)
}

// ListUsers handles GET /users
// Query Params: role (optional), active (optional)
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := user.Filter{
		Role:       r.URL.Query().Get("role"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	users, err := h.Users.List(r.Context(), filter)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, users)
}

// GetUser handles GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	found, err := h.Users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, found)
}

// UpdateUser handles PUT /users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.Users.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// SetUserStatus handles PATCH /users/{id}/status
func (h *UserHandler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	if err := h.Users.SetActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"active": req.Active})
}

// ResetPassword handles POST /users/{id}/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	if err := h.Users.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Password reset"})
}
