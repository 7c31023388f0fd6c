// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the HTTP surface of the session service: the
// JSON API under /api, the cart hooks, and the login and 2FA setup pages.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"travlr/internal/auth"
	"travlr/internal/middleware"
	"travlr/internal/session"
)

// Client-facing messages.
const (
	msgFieldsRequired     = "All fields required"
	msgDuplicateEmail     = "A user with this email already exists."
	msgPromotionFailed    = "Failed to update cart owner."
	msgInvalidCredentials = "Invalid credentials. Check your username/password or register!"
	msgSetupFailed        = "Error creating 2FA setup"
	msgBadCode            = "Not quiet! Check your authentication app and try again..."
	msgVerified           = "2FA verified successfully!"
	msgUnauthorized       = "Unauthorized"
	msgLoggedOut          = "Logged out"
	msgServerError        = "Server error"
	msgTwoFactorEnabled   = "2FA is already enabled for this account."
	msgInvalidID          = "Invalid ID"
	msgNotFound           = "Identity not found"
	msgSelfReset          = "Cannot reset your own 2FA"
	msgReset              = "2FA reset"
)

// Auth groups the session lifecycle endpoints.
type Auth struct {
	svc      *auth.Service
	sessions *session.Manager
}

// NewAuth creates a new Auth handler group.
func NewAuth(svc *auth.Service, sessions *session.Manager) *Auth {
	return &Auth{svc: svc, sessions: sessions}
}

// Register creates a registered identity, adopting the caller's guest cart
// when the request carries a valid guest session.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if msg := decodeJSON(w, r, &req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	sess, err := a.svc.Register(r.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, a.sessions.Read(r))
	if err != nil {
		a.fail(w, "register", err)
		return
	}

	if !a.writeSession(w, sess) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": sess.Descriptor.Token,
		"message": fmt.Sprintf("Welcome %s!\nYou will be redirected to set up a Two Step Authentication login!",
			sess.Identity.DisplayName()),
	})
}

// Login checks credentials. A failed attempt leaves the cookies untouched.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if msg := decodeJSON(w, r, &req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	sess, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, "login", err)
		return
	}

	if !a.writeSession(w, sess) {
		return
	}

	id := sess.Identity
	writeJSON(w, http.StatusOK, map[string]any{
		"token":            sess.Descriptor.Token,
		"twoFactorEnabled": id.TwoFactorEnabled,
		"message":          fmt.Sprintf("Welcome %s!", id.DisplayName()),
	})
}

// Logout clears the session and enrollment cookies.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Clear(w)
	a.sessions.ClearEnrollment(w)
	writeMessage(w, http.StatusOK, msgLoggedOut)
}

// Guest provisions an anonymous identity and starts its session.
func (a *Auth) Guest(w http.ResponseWriter, r *http.Request) {
	sess, err := a.svc.CreateGuest(r.Context())
	if err != nil {
		a.fail(w, "guest", err)
		return
	}

	if !a.writeSession(w, sess) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guestIdentity": sess.Identity})
}

// CheckSession reports what the session cookie says, without its token.
func (a *Auth) CheckSession(w http.ResponseWriter, r *http.Request) {
	d := a.sessions.Read(r)
	if d == nil {
		writeJSON(w, http.StatusOK, map[string]any{"hasSession": false})
		return
	}

	f := d.State.Flags()
	writeJSON(w, http.StatusOK, map[string]any{
		"hasSession":      true,
		"user_id":         d.UserID,
		"isGuest":         f.IsGuest,
		"isRegistered":    f.IsRegistered,
		"isAuthenticated": f.IsAuthenticated,
	})
}

// Setup2FA starts TOTP enrollment for the session's identity. Must be
// mounted behind middleware.RequireSession.
func (a *Auth) Setup2FA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := a.svc.SetupTwoFactor(ctx, middleware.ClaimsFromCtx(ctx), middleware.TokenFromCtx(ctx))
	if err != nil {
		if status, msg := errorResponse(err); status != http.StatusInternalServerError {
			writeMessage(w, status, msg)
			return
		}
		slog.Error("2fa setup failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgSetupFailed)
		return
	}

	if err := a.sessions.WriteEnrollment(w, e); err != nil {
		slog.Error("write enrollment cookie failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgSetupFailed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   e.Token,
		"message": e.Message,
		"qrCode":  e.QRCode,
		"secret":  e.Secret,
	})
}

// Verify2FA checks a TOTP code, confirming enrollment on first use, and
// upgrades the session to authenticated. Must be mounted behind
// middleware.RequireSession.
func (a *Auth) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if msg := decodeJSON(w, r, &req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	var enrollmentToken string
	if e := a.sessions.ReadEnrollment(r); e != nil {
		enrollmentToken = e.Token
	}

	ctx := r.Context()
	sess, err := a.svc.VerifyTwoFactor(ctx, middleware.ClaimsFromCtx(ctx), req.AuthCode, enrollmentToken)
	if err != nil {
		a.fail(w, "2fa verify", err)
		return
	}

	if !a.writeSession(w, sess) {
		return
	}
	a.sessions.ClearEnrollment(w)

	writeJSON(w, http.StatusOK, map[string]any{
		"updatedSession": sess.Descriptor,
		"message": map[string]string{
			"status":    msgVerified,
			"userFname": sess.Identity.FirstName,
			"userLname": sess.Identity.LastName,
		},
	})
}

// Me returns the verified bearer claims. Must be mounted behind
// middleware.RequireBearer.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromCtx(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// ResetTwoFactor clears another identity's second factor so it can enroll
// again. Must be mounted behind middleware.RequireAdmin.
func (a *Auth) ResetTwoFactor(w http.ResponseWriter, r *http.Request) {
	target, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	ctx := r.Context()
	if err := a.svc.ResetTwoFactor(ctx, middleware.ClaimsFromCtx(ctx), target); err != nil {
		a.fail(w, "2fa reset", err)
		return
	}
	writeMessage(w, http.StatusOK, msgReset)
}

// writeSession stores the session cookie with the lifetime its state calls
// for. It reports false after answering with a 500.
func (a *Auth) writeSession(w http.ResponseWriter, sess *auth.Session) bool {
	d := sess.Descriptor
	if err := a.sessions.Write(w, d, a.sessions.TTL(d.State)); err != nil {
		slog.Error("write session cookie failed", "user_id", d.UserID, "error", err)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return false
	}
	return true
}

// fail maps a service error to its status and message.
func (a *Auth) fail(w http.ResponseWriter, op string, err error) {
	status, msg := errorResponse(err)
	if status == http.StatusInternalServerError && !errors.Is(err, auth.ErrPromotion) {
		slog.Error(op+" failed", "error", err)
	}
	writeMessage(w, status, msg)
}

func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, msgFieldsRequired
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, msgDuplicateEmail
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, auth.ErrInvalidCode):
		return http.StatusBadRequest, msgBadCode
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, auth.ErrTwoFactorEnabled):
		return http.StatusConflict, msgTwoFactorEnabled
	case errors.Is(err, auth.ErrSelfReset):
		return http.StatusForbidden, msgSelfReset
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, auth.ErrPromotion):
		return http.StatusInternalServerError, msgPromotionFailed
	default:
		return http.StatusInternalServerError, msgServerError
	}
}
