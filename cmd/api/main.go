package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"citylink/internal/config"
	"citylink/internal/database"
	"citylink/internal/repository"
	"citylink/internal/repository/memory"
	"citylink/internal/repository/mongodb"
	"citylink/internal/repository/postgres"
	"citylink/internal/router"
	"citylink/internal/service"
	"citylink/internal/storage"
	"citylink/internal/utils"
	"citylink/pkg/logger"
)

func main() {
	// config + logger
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("", "", "")
		l.Fatal().Err(err).Msg("config load failed")
	}
	l := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	dbLog := l.With().Str("component", "database").Logger()

	// db
	var (
		reports repository.ReportRepository
		users   repository.UserRepository
		ping    func(context.Context) error
		closeDB = func() {}
	)
	switch cfg.DBDriver {
	case "mongo", "mongodb":
		client, db, err := database.ConnectMongo(ctx, cfg, dbLog)
		if err != nil {
			l.Fatal().Err(err).Msg("db connect failed")
		}
		reports, users = mongodb.NewReportRepo(db), mongodb.NewUserRepo(db)
		ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		closeDB = func() { _ = client.Disconnect(context.Background()) }
	case "postgres":
		pool, err := database.Open(ctx, cfg)
		if err != nil {
			l.Fatal().Err(err).Msg("db connect failed")
		}
		dbLog.Info().Msg("postgres: connected")
		reports, users = postgres.NewReportRepo(pool), postgres.NewUserRepo(pool)
		ping = pool.Ping
		closeDB = pool.Close
	case "memory":
		dbLog.Warn().Msg("using in-memory storage; data is lost on restart")
		reports, users = memory.NewReportRepo(), memory.NewUserRepo()
	default:
		l.Fatal().Str("driver", cfg.DBDriver).Msg("unknown DB_DRIVER")
	}
	defer closeDB()

	// uploads
	store, err := storage.New(ctx, cfg.Upload)
	if err != nil {
		l.Fatal().Err(err).Msg("storage init failed")
	}
	var uploadDir string
	if ls, ok := store.(*storage.LocalStore); ok {
		uploadDir = ls.Dir()
	}
	policy := storage.Policy{MaxFiles: cfg.Upload.MaxFiles, MaxBytes: cfg.Upload.MaxBytes}

	// services
	tokens := utils.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	auth := service.NewAuthService(users, tokens)
	seedAdmin(ctx, l.With().Str("component", "seed").Logger(), auth, cfg)

	// http
	r := router.New(router.Deps{
		Log:       l,
		Config:    cfg,
		Tokens:    tokens,
		Accounts:  users,
		Reports:   service.NewReportService(reports, users, store, policy),
		Analytics: service.NewAnalyticsService(reports, users),
		Auth:      auth,
		Users:     service.NewUserService(users),
		Policy:    policy,
		UploadDir: uploadDir,
		Ping:      ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("db", cfg.DBDriver).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	l.Info().Msg("shutdown complete")
}

func seedAdmin(ctx context.Context, l zerolog.Logger, auth *service.AuthService, cfg config.Config) {
	if cfg.AdminEmail == "" {
		return
	}
	u, err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
	if err != nil {
		l.Error().Err(err).Msg("admin seed failed")
		return
	}
	if u != nil {
		l.Info().Str("email", u.Email).Msg("admin account ready")
	}
}
