// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package token mints and verifies the signed bearer tokens that assert an
// identity's id and role claims. Tokens are stateless: validity depends only
// on the HMAC signature and the expiry claim.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"travlr/internal/models"
)

// DefaultTTL is the absolute lifetime of an issued token.
const DefaultTTL = time.Hour

var (
	// ErrMissingToken means no token was presented. Callers treat it as
	// absent authorization rather than a malformed request.
	ErrMissingToken = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the claim set carried by every token. JSON names follow the
// admin SPA's expectations.
type Claims struct {
	UserID       string `json:"_id"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name"`
	IsRegistered bool   `json:"isRegistered"`
	IsAdmin      bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// IdentityID parses the identity id claim.
func (c *Claims) IdentityID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad identity id", ErrInvalidToken)
	}
	return id, nil
}

// Issuer signs and verifies HS256 tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer. A zero ttl falls back to DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	i := &Issuer{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of tokens minted by this issuer.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for the identity, expiring one TTL from now.
func (i *Issuer) Issue(id *models.Identity) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:       id.ID.String(),
		Email:        id.Email,
		Name:         id.FirstName,
		IsRegistered: id.IsRegistered,
		IsAdmin:      id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.IdentityID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Decode extracts the claims of raw without checking signature or expiry.
// Only use it on tokens read from cookies the server set itself.
func (i *Issuer) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
