// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package auth implements the identity lifecycle behind Travlr sessions:
// guest provisioning, registration with guest promotion, password login
// and the TOTP second factor. It is transport agnostic; HTTP handlers turn
// its results into cookies and JSON.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"travlr/internal/models"
	"travlr/internal/session"
	"travlr/internal/store"
	"travlr/internal/token"
)

var (
	ErrValidation         = errors.New("all fields required")
	ErrDuplicateEmail     = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPromotion          = errors.New("failed to update cart owner")
	ErrTwoFactorEnabled   = errors.New("two-factor authentication already enabled")
	ErrNotFound           = errors.New("identity not found")
	ErrSelfReset          = errors.New("cannot reset your own 2FA")
)

// IdentityStore is the persistence the service needs for identities.
type IdentityStore interface {
	Create(ctx context.Context, id *models.Identity) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, id uuid.UUID) error
	ResetTwoFactor(ctx context.Context, id uuid.UUID) error
	Promote(ctx context.Context, guestID, ownerID uuid.UUID) (int64, error)
}

// ReplayGuard remembers accepted TOTP counters per identity.
type ReplayGuard interface {
	Claim(ctx context.Context, identityID uuid.UUID, counter uint64) (bool, error)
}

// Session is the outcome of an operation that establishes or changes a
// session: the identity it belongs to and the descriptor to hand back.
type Session struct {
	Identity   *models.Identity
	Descriptor *session.Descriptor
}

// Service runs the authentication operations.
type Service struct {
	identities IdentityStore
	tokens     *token.Issuer
	guard      ReplayGuard
	totpIssuer string
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithReplayGuard rejects TOTP codes that were already accepted. Without a
// guard a code stays reusable for its validity window.
func WithReplayGuard(g ReplayGuard) Option {
	return func(s *Service) { s.guard = g }
}

// WithTOTPIssuer sets the issuer label shown by authenticator apps.
func WithTOTPIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.totpIssuer = issuer
		}
	}
}

// WithClock overrides the time source used for TOTP codes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over the given store and token issuer.
func NewService(identities IdentityStore, tokens *token.Issuer, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		tokens:     tokens,
		totpIssuer: DefaultTOTPIssuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGuest provisions an anonymous identity and its session.
func (s *Service) CreateGuest(ctx context.Context) (*Session, error) {
	guest := models.NewGuest()
	if err := s.identities.Create(ctx, guest); err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}

	sess, err := s.newSession(guest, session.StateGuest)
	if err != nil {
		return nil, err
	}
	slog.Debug("guest provisioned", "user_id", guest.ID)
	return sess, nil
}

// RegisterInput is the registration form. Role flags are not part of it:
// every public registration yields a regular, registered identity.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a registered identity. When prior is a session whose
// token still verifies and belongs to a guest, the guest's cart moves to the
// new identity and the guest is retired.
func (s *Service) Register(ctx context.Context, in RegisterInput, prior *session.Descriptor) (*Session, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return nil, ErrValidation
	}

	id := &models.Identity{
		ID:           uuid.New(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		IsRegistered: true,
		IsAdmin:      false,
	}
	if err := id.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.identities.Create(ctx, id); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	if guestID, ok := s.guestOf(prior); ok && guestID != id.ID {
		moved, err := s.identities.Promote(ctx, guestID, id.ID)
		if err != nil {
			slog.Error("guest promotion failed", "guest_id", guestID, "user_id", id.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrPromotion, err)
		}
		slog.Info("guest promoted", "guest_id", guestID, "user_id", id.ID, "cart_items", moved)
	}

	return s.newSession(id, session.StatePending)
}

// guestOf returns the guest identity behind prior, trusting only the
// verified token claims and never the descriptor's own fields.
func (s *Service) guestOf(prior *session.Descriptor) (uuid.UUID, bool) {
	if prior == nil || prior.Token == "" {
		return uuid.Nil, false
	}
	claims, err := s.tokens.Verify(prior.Token)
	if err != nil {
		slog.Debug("ignoring prior session", "error", err)
		return uuid.Nil, false
	}
	if claims.IsRegistered {
		return uuid.Nil, false
	}
	guestID, err := claims.IdentityID()
	if err != nil {
		return uuid.Nil, false
	}
	return guestID, true
}

// Login checks an email and password. Identities with 2FA enabled get a
// pending session that VerifyTwoFactor completes.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	id, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if id == nil || !id.ValidatePassword(password) {
		return nil, ErrInvalidCredentials
	}

	state := session.StateLoggedIn
	if id.TwoFactorEnabled {
		state = session.StatePending
	}
	return s.newSession(id, state)
}

// identityFor loads the registered identity named by verified claims.
func (s *Service) identityFor(ctx context.Context, claims *token.Claims) (*models.Identity, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	uid, err := claims.IdentityID()
	if err != nil {
		return nil, ErrUnauthorized
	}
	id, err := s.identities.FindByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if id == nil || !id.IsRegistered {
		return nil, ErrUnauthorized
	}
	return id, nil
}

func (s *Service) newSession(id *models.Identity, state session.State) (*Session, error) {
	tok, err := s.tokens.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		Identity: id,
		Descriptor: &session.Descriptor{
			Token:  tok,
			UserID: id.ID,
			State:  state,
		},
	}, nil
}
