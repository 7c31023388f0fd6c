// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"travlr/internal/middleware"
	"travlr/internal/render"
)

// Pages groups the server-rendered pages of the login flow.
type Pages struct {
	renderer *render.Renderer
}

// NewPages creates a new Pages handler group.
func NewPages(renderer *render.Renderer) *Pages {
	return &Pages{renderer: renderer}
}

// LoginPage renders the register and login forms.
func (p *Pages) LoginPage(w http.ResponseWriter, r *http.Request) {
	p.renderer.Page(w, r, "login", &render.PageData{Title: "Login"})
}

// TwoFASetupPage shows the QR code and secret held by the enrollment
// cookie. Must be mounted behind middleware.RequireEnrollment.
func (p *Pages) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	e := middleware.EnrollmentFromCtx(r.Context())
	if e == nil {
		p.LoginExpired(w, r, middleware.MsgMissingToken)
		return
	}

	p.renderer.Page(w, r, "2fa_setup", &render.PageData{
		Title: "Setup 2FA",
		Data: map[string]any{
			"Message": e.Message,
			"QRCode":  e.QRCode,
			"Secret":  e.Secret,
		},
	})
}

// LoginExpired answers 401 with the login page and a notice. It is the
// failure hook for middleware.RequireEnrollment.
func (p *Pages) LoginExpired(w http.ResponseWriter, r *http.Request, message string) {
	p.renderer.PageStatus(w, r, http.StatusUnauthorized, "login", &render.PageData{
		Title:   "Login",
		Message: message,
	})
}

// Health returns a simple JSON health check response.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
