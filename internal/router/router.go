package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"citylink/internal/config"
	"citylink/internal/handlers"
	"citylink/internal/middleware"
	"citylink/internal/models"
	"citylink/internal/service"
	"citylink/internal/storage"
	"citylink/internal/utils"
)

// authPerMinute caps login/register/refresh attempts per client IP.
const authPerMinute = 20

type Deps struct {
	Log    zerolog.Logger
	Config config.Config
	Tokens *utils.Tokens

	// Accounts reloads the token's user on every authenticated request.
	Accounts middleware.UserLookup

	Reports   *service.ReportService
	Analytics *service.AnalyticsService
	Auth      *service.AuthService
	Users     *service.UserService
	Policy    storage.Policy

	// UploadDir is served under /uploads/ when set (local storage only).
	UploadDir string
	Ping      func(context.Context) error
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.Origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if d.Config.RateLimitMin > 0 {
		r.Use(httprate.LimitByIP(d.Config.RateLimitMin, time.Minute))
	}
	r.Use(middleware.WithAuth(d.Log, d.Tokens))
	r.Use(middleware.LoadAccount(d.Log, d.Accounts))

	// Health
	health := handlers.Health(d.Ping)
	r.Get("/healthz", health)
	r.Get("/api/health", health)

	rh := handlers.NewReportsHTTP(d.Reports, d.Policy)
	ah := handlers.NewAdminHTTP(d.Reports, d.Analytics, d.Users)
	auth := handlers.NewAuthHTTP(d.Auth)
	uh := handlers.NewUserHTTP(d.Users)

	r.Route("/api", func(r chi.Router) {
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", rh.Create())
			r.Get("/", rh.List())
			r.Get("/stats", rh.Stats())
			r.Get("/search", rh.Search())
			r.Get("/category/{category}", rh.ByCategory())
			r.Get("/{id}", rh.Get())
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(authPerMinute, time.Minute))
				r.Post("/register", auth.Register())
				r.Post("/login", auth.Login())
				r.Post("/refresh", auth.Refresh())
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/profile", auth.Profile())
				r.Put("/profile", auth.UpdateProfile())
				r.Put("/change-password", auth.ChangePassword())
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireRoles(models.RoleAdmin))
			r.Put("/reports/{id}/status", ah.UpdateStatus())
			r.Put("/reports/{reportId}/assign", ah.Assign())
			r.Get("/dashboard/stats", ah.Dashboard())
			r.Get("/analytics", ah.Analytics())
			r.Get("/users", ah.ListUsers())
			r.Put("/users/{userId}/status", ah.SetUserStatus())
		})

		r.With(middleware.RequireSelfOrRoles(models.RoleAdmin)).Get("/users/{userId}", uh.Get())
	})

	if d.UploadDir != "" {
		fs := http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(d.UploadDir)))
		r.Handle(storage.URLPrefix+"*", fs)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.Error(w, http.StatusNotFound, "Route not found")
	})

	return r
}
