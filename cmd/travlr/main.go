// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the Travlr session service.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travlr/internal/auth"
	"travlr/internal/cache"
	"travlr/internal/config"
	"travlr/internal/database"
	"travlr/internal/handlers"
	"travlr/internal/middleware"
	"travlr/internal/render"
	"travlr/internal/router"
	"travlr/internal/session"
	"travlr/internal/store"
	"travlr/internal/token"
)

func main() {
	// Text logs until the environment is known.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON outside development.
	if !cfg.IsDev() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})))
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"secure_cookies", cfg.CookieSecure,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey, which remembers accepted TOTP codes.
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	tokens, err := token.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(session.Options{
		Secure:        cfg.CookieSecure,
		TTL:           cfg.SessionTTL,
		GuestTTL:      cfg.GuestSessionTTL,
		EnrollmentTTL: cfg.EnrollmentTTL,
	})

	// Initialize data stores and the auth service.
	identityStore := store.NewIdentityStore(db)
	cartStore := store.NewCartStore(db)
	svc := auth.NewService(identityStore, tokens,
		auth.WithReplayGuard(cache.NewOTPGuard(valkeyClient, cache.DefaultOTPTTL)),
		auth.WithTOTPIssuer(cfg.TOTPIssuer),
	)

	// Initialize the HTML template renderer for the login pages.
	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow,
		middleware.WithTrustedProxies(cfg.TrustedProxies))
	defer limiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Deps{
		Sessions:    sessions,
		Tokens:      tokens,
		Auth:        handlers.NewAuth(svc, sessions),
		Cart:        handlers.NewCart(svc, sessions, tokens, cartStore),
		Pages:       handlers.NewPages(renderer),
		Limiter:     limiter,
		CORSOrigins: cfg.CORSAllowedOrigins,
		HSTS:        cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
