package handlers

import (
	"net/http"

	"citylink/internal/middleware"
	"citylink/internal/service"
	"citylink/internal/utils"
)

type AuthHTTP struct {
	svc *service.AuthService
}

func NewAuthHTTP(s *service.AuthService) *AuthHTTP {
	return &AuthHTTP{svc: s}
}

// POST /api/auth/register
func (h *AuthHTTP) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.RegisterInput
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		res, err := h.svc.Register(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusCreated, "User registered successfully", res)
	}
}

// POST /api/auth/login
func (h *AuthHTTP) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		res, err := h.svc.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Login successful", res)
	}
}

// POST /api/auth/refresh
func (h *AuthHTTP) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(r, &in); err != nil || in.RefreshToken == "" {
			utils.Error(w, http.StatusBadRequest, "refreshToken is required")
			return
		}
		res, err := h.svc.Refresh(r.Context(), in.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Token refreshed", res)
	}
}

// GET /api/auth/profile
func (h *AuthHTTP) Profile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _, _ := middleware.Identity(r.Context())
		u, err := h.svc.Profile(r.Context(), uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", map[string]any{"user": u})
	}
}

// PUT /api/auth/profile
func (h *AuthHTTP) UpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProfileInput
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		uid, _, _ := middleware.Identity(r.Context())
		u, err := h.svc.UpdateProfile(r.Context(), uid, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": u})
	}
}

// PUT /api/auth/change-password
func (h *AuthHTTP) ChangePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		uid, _, _ := middleware.Identity(r.Context())
		if err := h.svc.ChangePassword(r.Context(), uid, in.CurrentPassword, in.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Password changed successfully", nil)
	}
}
