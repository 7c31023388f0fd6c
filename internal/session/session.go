// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session manages the browser-held session cookies. Nothing is
// stored server-side: the session cookie carries a JSON descriptor with the
// bearer token and UI state, and a short-lived enrollment cookie carries the
// TOTP setup payload. Cookie contents are hints for rendering only; the
// embedded bearer token is the credential.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the name of the session descriptor cookie.
	CookieName = "sessionData"

	// EnrollmentCookieName is the name of the short-lived 2FA setup cookie.
	EnrollmentCookieName = "session2FA"

	// DefaultTTL is how long a registered session cookie lives.
	DefaultTTL = 24 * time.Hour

	// DefaultGuestTTL matches the lifetime of the guest's bearer token.
	DefaultGuestTTL = time.Hour

	// DefaultEnrollmentTTL bounds the 2FA setup window.
	DefaultEnrollmentTTL = 60 * time.Second

	// DefaultEnrollmentPath scopes the enrollment cookie to the setup page.
	DefaultEnrollmentPath = "/2fa/setup"
)

// State is where an identity stands in the authentication lifecycle.
type State int

const (
	// StateGuest is an anonymous, auto-provisioned identity.
	StateGuest State = iota
	// StatePending is a registered identity with a step still outstanding:
	// freshly registered, or password accepted while a TOTP code is due.
	StatePending
	// StateLoggedIn is a registered identity without 2FA past the password step.
	StateLoggedIn
	// StateAuthenticated is a registered identity that passed the TOTP step.
	StateAuthenticated
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StatePending:
		return "pending"
	case StateLoggedIn:
		return "logged_in"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Flags is the boolean view of a State written to the cookie.
type Flags struct {
	IsGuest         bool
	IsRegistered    bool
	IsLoggedIn      bool
	IsAuthenticated bool
}

// Flags expands the state into the four independent booleans.
func (s State) Flags() Flags {
	switch s {
	case StateGuest:
		return Flags{IsGuest: true}
	case StatePending:
		return Flags{IsRegistered: true}
	case StateLoggedIn:
		return Flags{IsRegistered: true, IsLoggedIn: true}
	case StateAuthenticated:
		return Flags{IsRegistered: true, IsLoggedIn: true, IsAuthenticated: true}
	default:
		return Flags{}
	}
}

// ErrIllegalState is returned when cookie flags describe an impossible state.
var ErrIllegalState = errors.New("session: illegal state flags")

// stateFromFlags is the inverse of State.Flags.
func stateFromFlags(f Flags) (State, error) {
	switch f {
	case StateGuest.Flags():
		return StateGuest, nil
	case StatePending.Flags():
		return StatePending, nil
	case StateLoggedIn.Flags():
		return StateLoggedIn, nil
	case StateAuthenticated.Flags():
		return StateAuthenticated, nil
	default:
		return 0, ErrIllegalState
	}
}

// Descriptor is the session payload held in the session cookie.
type Descriptor struct {
	Token  string
	UserID uuid.UUID
	State  State
}

// wireDescriptor is the cookie JSON layout shared with browser scripts.
type wireDescriptor struct {
	Token           string `json:"token"`
	HasSession      bool   `json:"hasSession"`
	UserID          string `json:"user_id"`
	IsGuest         bool   `json:"isGuest"`
	IsRegistered    bool   `json:"isRegistered"`
	IsLoggedIn      bool   `json:"isLoggedIn"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// MarshalJSON writes the descriptor in its cookie layout.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	f := d.State.Flags()
	return json.Marshal(wireDescriptor{
		Token:           d.Token,
		HasSession:      true,
		UserID:          d.UserID.String(),
		IsGuest:         f.IsGuest,
		IsRegistered:    f.IsRegistered,
		IsLoggedIn:      f.IsLoggedIn,
		IsAuthenticated: f.IsAuthenticated,
	})
}

// UnmarshalJSON parses the cookie layout, rejecting impossible flag sets.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id, err := uuid.Parse(w.UserID)
	if err != nil {
		return fmt.Errorf("session: user_id: %w", err)
	}

	state, err := stateFromFlags(Flags{
		IsGuest:         w.IsGuest,
		IsRegistered:    w.IsRegistered,
		IsLoggedIn:      w.IsLoggedIn,
		IsAuthenticated: w.IsAuthenticated,
	})
	if err != nil {
		return err
	}

	*d = Descriptor{Token: w.Token, UserID: id, State: state}
	return nil
}

// Enrollment is the payload of the short-lived 2FA setup cookie.
type Enrollment struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	QRCode  string `json:"qrCode"`
	Secret  string `json:"secret"`
}

// Options configures a Manager. Zero durations and paths take defaults.
type Options struct {
	Secure         bool
	TTL            time.Duration
	GuestTTL       time.Duration
	EnrollmentTTL  time.Duration
	EnrollmentPath string
}

// Manager reads and writes the session and enrollment cookies.
type Manager struct {
	opts Options
}

// NewManager creates a cookie manager, filling unset options with defaults.
func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.GuestTTL <= 0 {
		opts.GuestTTL = DefaultGuestTTL
	}
	if opts.EnrollmentTTL <= 0 {
		opts.EnrollmentTTL = DefaultEnrollmentTTL
	}
	if opts.EnrollmentPath == "" {
		opts.EnrollmentPath = DefaultEnrollmentPath
	}
	return &Manager{opts: opts}
}

// TTL returns the lifetime for a session cookie in the given state.
func (m *Manager) TTL(state State) time.Duration {
	if state == StateGuest {
		return m.opts.GuestTTL
	}
	return m.opts.TTL
}

// EnrollmentPath returns the path the enrollment cookie is scoped to.
func (m *Manager) EnrollmentPath() string {
	return m.opts.EnrollmentPath
}

// Write stores the descriptor in the session cookie for ttl.
func (m *Manager) Write(w http.ResponseWriter, d *Descriptor, ttl time.Duration) error {
	value, err := encode(d)
	if err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	http.SetCookie(w, m.cookie(CookieName, "/", value, int(ttl.Seconds())))
	return nil
}

// Read returns the descriptor from the request, or nil when the cookie is
// absent or cannot be parsed.
func (m *Manager) Read(r *http.Request) *Descriptor {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	var d Descriptor
	if err := decode(c.Value, &d); err != nil {
		return nil
	}
	return &d
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(CookieName, "/", "", -1))
}

// WriteEnrollment stores the 2FA setup payload in the enrollment cookie.
func (m *Manager) WriteEnrollment(w http.ResponseWriter, e *Enrollment) error {
	value, err := encode(e)
	if err != nil {
		return fmt.Errorf("enrollment write: %w", err)
	}
	http.SetCookie(w, m.cookie(EnrollmentCookieName, m.opts.EnrollmentPath, value, int(m.opts.EnrollmentTTL.Seconds())))
	return nil
}

// ReadEnrollment returns the enrollment payload, or nil when absent or
// malformed.
func (m *Manager) ReadEnrollment(r *http.Request) *Enrollment {
	c, err := r.Cookie(EnrollmentCookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	var e Enrollment
	if err := decode(c.Value, &e); err != nil {
		return nil
	}
	return &e
}

// ClearEnrollment expires the enrollment cookie.
func (m *Manager) ClearEnrollment(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(EnrollmentCookieName, m.opts.EnrollmentPath, "", -1))
}

func (m *Manager) cookie(name, path, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// encode serializes v as URL-escaped JSON. Raw JSON quotes are not valid
// cookie octets.
func encode(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(payload)), nil
}

func decode(value string, v any) error {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}
