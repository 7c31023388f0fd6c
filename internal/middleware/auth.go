// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"travlr/internal/session"
	"travlr/internal/token"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// SessionKey is the context key for the session descriptor.
	SessionKey contextKey = "session"
	// ClaimsKey is the context key for verified token claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for the raw token the claims came from.
	TokenKey contextKey = "token"
	// EnrollmentKey is the context key for the 2FA enrollment descriptor.
	EnrollmentKey contextKey = "enrollment"
)

// Messages returned by the gates.
const (
	MsgNoSession      = "No cookie exist"
	MsgNoToken        = "No token provided"
	MsgBadToken       = "Invalid or expired token"
	MsgMissingToken   = "Missing token"
	MsgSessionExpired = "Session expired, please log in again."
	MsgForbidden      = "Forbidden"
)

// LoadSessionStatus reads the session cookie, if any, so pages can show
// the right login/logout controls. It never authorizes anything.
func LoadSessionStatus(mgr *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := mgr.Read(r); d != nil {
				r = r.WithContext(context.WithValue(r.Context(), SessionKey, d))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession admits requests whose session cookie carries a token that
// verifies. The descriptor, raw token and claims are placed in the context.
func RequireSession(mgr *session.Manager, tokens *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := mgr.Read(r)
			if d == nil {
				writeError(w, http.StatusUnauthorized, MsgNoSession)
				return
			}

			claims, err := tokens.Verify(d.Token)
			if err != nil {
				slog.Debug("session gate rejected token", "error", err)
				writeError(w, http.StatusUnauthorized, tokenMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, d)
			ctx = context.WithValue(ctx, TokenKey, d.Token)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireEnrollment guards the human-facing 2FA setup page. Failures are
// handed to onFail, which renders a page instead of a bare status.
func RequireEnrollment(mgr *session.Manager, tokens *token.Issuer, onFail func(w http.ResponseWriter, r *http.Request, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			e := mgr.ReadEnrollment(r)
			if e == nil || e.Token == "" {
				onFail(w, r, MsgMissingToken)
				return
			}

			claims, err := tokens.Verify(e.Token)
			if err != nil {
				slog.Debug("enrollment gate rejected token", "error", err)
				onFail(w, r, MsgSessionExpired)
				return
			}

			ctx := context.WithValue(r.Context(), EnrollmentKey, e)
			ctx = context.WithValue(ctx, TokenKey, e.Token)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireBearer admits requests with a valid "Authorization: Bearer" token.
func RequireBearer(tokens *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			claims, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, tokenMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), TokenKey, raw)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns 403 unless the verified claims carry the admin flag.
// Must be applied after RequireSession or RequireBearer.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromCtx(r.Context())
		if claims == nil || !claims.IsAdmin {
			writeError(w, http.StatusForbidden, MsgForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionFromCtx returns the session descriptor loaded for the request, or
// nil. Its flags are display hints, not proof of identity.
func SessionFromCtx(ctx context.Context) *session.Descriptor {
	d, _ := ctx.Value(SessionKey).(*session.Descriptor)
	return d
}

// IsLoggedIn reports whether the request's session says the user finished
// logging in.
func IsLoggedIn(ctx context.Context) bool {
	d := SessionFromCtx(ctx)
	return d != nil && d.State.Flags().IsLoggedIn
}

// ClaimsFromCtx returns the verified token claims, or nil outside a gate.
func ClaimsFromCtx(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(ClaimsKey).(*token.Claims)
	return c
}

// TokenFromCtx returns the raw token the gate verified.
func TokenFromCtx(ctx context.Context) string {
	t, _ := ctx.Value(TokenKey).(string)
	return t
}

// EnrollmentFromCtx returns the enrollment descriptor admitted by
// RequireEnrollment, or nil.
func EnrollmentFromCtx(ctx context.Context) *session.Enrollment {
	e, _ := ctx.Value(EnrollmentKey).(*session.Enrollment)
	return e
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(raw)
}

func tokenMessage(err error) string {
	if errors.Is(err, token.ErrMissingToken) {
		return MsgNoToken
	}
	return MsgBadToken
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
