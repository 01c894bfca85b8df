package handlers

import (
	"net/http"

	"citylink/internal/middleware"
	"citylink/internal/service"
	"citylink/internal/utils"

	"github.com/go-chi/chi/v5"
)

// AdminHTTP serves the /api/admin routes. Every route sits behind
// RequireAuth + RequireRoles("admin").
type AdminHTTP struct {
	reports   *service.ReportService
	analytics *service.AnalyticsService
	users     *service.UserService
}

func NewAdminHTTP(reports *service.ReportService, analytics *service.AnalyticsService, users *service.UserService) *AdminHTTP {
	return &AdminHTTP{reports: reports, analytics: analytics, users: users}
}

// PUT /api/admin/reports/{id}/status
func (h *AdminHTTP) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.StatusUpdate
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		rep, err := h.reports.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Report status updated successfully", map[string]any{"report": rep})
	}
}

// PUT /api/admin/reports/{reportId}/assign
func (h *AdminHTTP) Assign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			UserID string `json:"userId"`
		}
		if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		rep, err := h.reports.Assign(r.Context(), chi.URLParam(r, "reportId"), in.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "Report assigned successfully", map[string]any{"report": rep})
	}
}

// GET /api/admin/dashboard/stats
func (h *AdminHTTP) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := h.analytics.DashboardStats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", d)
	}
}

// GET /api/admin/analytics?timeframe=24h|7d|30d|90d
func (h *AdminHTTP) Analytics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := h.analytics.ReportsAnalytics(r.Context(), r.URL.Query().Get("timeframe"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", a)
	}
}

// GET /api/admin/users?page=&limit=&role=&isActive=
func (h *AdminHTTP) ListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		page, err := h.users.List(r.Context(), service.UserListParams{
			Page:   utils.QueryInt(qv, "page", 1),
			Limit:  utils.QueryInt(qv, "limit", 10),
			Role:   qv.Get("role"),
			Active: utils.QueryBool(qv, "isActive"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", page)
	}
}

// PUT /api/admin/users/{userId}/status
func (h *AdminHTTP) SetUserStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			IsActive *bool `json:"isActive"`
		}
		if err := decodeJSON(r, &in); err != nil || in.IsActive == nil {
			utils.Error(w, http.StatusBadRequest, "isActive must be a boolean value")
			return
		}
		actor, _, _ := middleware.Identity(r.Context())
		u, err := h.users.SetActive(r.Context(), actor, chi.URLParam(r, "userId"), *in.IsActive)
		if err != nil {
			writeError(w, r, err)
			return
		}
		msg := "User deactivated successfully"
		if u.Active {
			msg = "User activated successfully"
		}
		utils.Success(w, http.StatusOK, msg, map[string]any{"user": u})
	}
}
