package handlers

import (
	"net/http"

	"schooladmin/internal/auth"
	"schooladmin/internal/gateway/util"
	"schooladmin/internal/shared"
)

// AuthHandler exposes login, logout and password routes.
type AuthHandler struct {
	Auth *auth.Service
}

// LoginRequest mirrors the JSON input for POST /auth/login. Identifier may be
// an email, DNI or file number.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ChangePasswordRequest mirrors the JSON input for POST /auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	token, user, err := h.Auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		// Credential and account-state rejections all surface as 401; the
		// response does not distinguish a wrong password from a missing user.
		if shared.IsPolicy(err) {
			util.WriteJSONError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	if err := h.Auth.Logout(r.Context(), token); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Logged out"})
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	actor := util.ActorFromContext(r)
	if err := h.Auth.ChangePassword(r.Context(), actor.ID, req.OldPassword, req.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Password changed; all sessions revoked"})
}
