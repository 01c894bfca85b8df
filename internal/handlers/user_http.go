package handlers

import (
	"net/http"

	"citylink/internal/service"
	"citylink/internal/utils"

	"github.com/go-chi/chi/v5"
)

type UserHTTP struct {
	svc *service.UserService
}

func NewUserHTTP(s *service.UserService) *UserHTTP {
	return &UserHTTP{svc: s}
}

// GET /api/users/{userId} (admin or self)
func (h *UserHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.svc.Get(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", map[string]any{"user": u})
	}
}
