// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for Travlr.
// It organizes routes into the login pages and the /api group, each route
// behind the gate its caller must pass.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"travlr/internal/handlers"
	"travlr/internal/middleware"
	"travlr/internal/session"
	"travlr/internal/token"
)

// Deps is everything the routes are built from.
type Deps struct {
	Sessions *session.Manager
	Tokens   *token.Issuer
	Auth     *handlers.Auth
	Cart     *handlers.Cart
	Pages    *handlers.Pages

	// Limiter throttles credential and code submissions. Nil disables it.
	Limiter *middleware.RateLimiter

	CORSOrigins []string
	HSTS        bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders(d.HSTS))
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.LoadSessionStatus(d.Sessions))

	limit := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(h)
	}

	r.Get("/health", handlers.Health)

	// Pages.
	r.Get("/login", d.Pages.LoginPage)
	r.With(middleware.RequireEnrollment(d.Sessions, d.Tokens, d.Pages.LoginExpired)).
		Get(d.Sessions.EnrollmentPath(), d.Pages.TwoFASetupPage)

	r.Route("/api", func(r chi.Router) {
		// Open endpoints.
		r.Method(http.MethodPost, "/register", limit(d.Auth.Register))
		r.Method(http.MethodPost, "/login", limit(d.Auth.Login))
		r.Post("/logout", d.Auth.Logout)
		r.Post("/guest", d.Auth.Guest)
		r.Get("/checkSession", d.Auth.CheckSession)
		r.Post("/cart", d.Cart.Add)

		// Session cookie holders.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(d.Sessions, d.Tokens))
			r.Post("/2fa/setup", d.Auth.Setup2FA)
			r.Method(http.MethodPost, "/2fa/verify", limit(d.Auth.Verify2FA))
			r.Get("/cart", d.Cart.List)
		})

		// Bearer token holders: the admin SPA and API clients.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireBearer(d.Tokens))
			r.Get("/me", d.Auth.Me)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/session", d.Auth.Me)
				r.Post("/identities/{id}/reset-2fa", d.Auth.ResetTwoFactor)
			})
		})
	})

	return r
}
