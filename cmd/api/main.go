package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"placement/internal/auth"
	"placement/internal/config"
	"placement/internal/directory"
	"placement/internal/gate"
	transporthttp "placement/internal/http"
	"placement/internal/platform/cache"
	"placement/internal/platform/database"
	"placement/internal/platform/logging"
	"placement/internal/platform/migrate"
	"placement/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	issuer, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	if err != nil {
		logger.Error("failed to initialize session issuer", "error", err)
		os.Exit(1)
	}

	policy := auth.NewPolicy(cfg.AllowedDomain, cfg.AdminEmails)
	logger.Info("access policy loaded", "domain", policy.Domain(), "admins", policy.AdminCount())

	directorySvc := directory.NewService(repo)
	g := gate.New(policy, directorySvc, issuer, logger)

	deps := transporthttp.Dependencies{Gate: g, Directory: directorySvc}
	if cfg.OAuthConfigured() {
		google, err := auth.NewGoogleAuthenticator(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			logger.Error("failed to initialize Google sign-in", "error", err)
			os.Exit(1)
		}
		deps.Google = google
	}

	router := transporthttp.NewRouter(cfg, deps, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("placement portal listening", "addr", srv.Addr, "store", cfg.DataStore, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (directory.Repository, func(), error) {
	switch cfg.DataStore {
	case "memory":
		logger.Info("using in-memory repository")
		return directory.NewInMemoryRepository(seedLocalStudents(cfg.AllowedDomain)), nil, nil

	case "redis":
		client, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return directory.NewRedisRepository(client), func() { _ = client.Close() }, nil

	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		cleanup := func() {
			_ = db.Close()
		}

		if err := migrate.Apply(ctx, db, logger); err != nil {
			cleanup()
			return nil, nil, err
		}

		logger.Info("connected to postgres")
		return directory.NewPostgresRepository(db), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported data store %q", cfg.DataStore)
	}
}
