// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"travlr/internal/session"
	"travlr/internal/token"
)

const (
	// DefaultTOTPIssuer labels the account in authenticator apps.
	DefaultTOTPIssuer = "Travlr"

	// EnrollmentMessage is the guidance shown next to the QR code.
	EnrollmentMessage = "Scan QR code with Google Authenticator"

	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 32
	qrSize         = 256
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// SetupTwoFactor generates and stores a new TOTP secret for the identity
// behind claims. 2FA stays disabled until VerifyTwoFactor accepts a code.
// rawToken is the caller's session token, echoed into the enrollment.
// A confirmed secret is never replaced; ResetTwoFactor has to clear it first.
func (s *Service) SetupTwoFactor(ctx context.Context, claims *token.Claims, rawToken string) (*session.Enrollment, error) {
	id, err := s.identityFor(ctx, claims)
	if err != nil {
		return nil, err
	}
	if id.TwoFactorEnabled {
		slog.Warn("2fa setup refused, already enabled", "user_id", id.ID)
		return nil, ErrTwoFactorEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: id.Email,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}

	if err := s.identities.SetTwoFactorSecret(ctx, id.ID, key.Secret()); err != nil {
		return nil, fmt.Errorf("save totp secret: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	slog.Info("2fa enrollment started", "user_id", id.ID)
	return &session.Enrollment{
		Token:   rawToken,
		Message: EnrollmentMessage,
		QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Secret:  key.Secret(),
	}, nil
}

// VerifyTwoFactor checks code against the stored secret, allowing one
// 30-second step of drift either way. On success 2FA is enabled and the
// returned session is fully authenticated. enrollmentToken, when set, must
// belong to the same identity as claims.
func (s *Service) VerifyTwoFactor(ctx context.Context, claims *token.Claims, code, enrollmentToken string) (*Session, error) {
	id, err := s.identityFor(ctx, claims)
	if err != nil {
		return nil, err
	}

	if enrollmentToken != "" {
		enrolled, err := s.tokens.Decode(enrollmentToken)
		if err != nil || enrolled.Subject != claims.Subject {
			slog.Warn("enrollment token mismatch", "user_id", id.ID)
			return nil, ErrUnauthorized
		}
	}

	if id.TwoFactorSecret == nil {
		return nil, ErrInvalidCode
	}
	counter, ok := matchCode(*id.TwoFactorSecret, code, s.now())
	if !ok {
		return nil, ErrInvalidCode
	}

	if s.guard != nil {
		fresh, err := s.guard.Claim(ctx, id.ID, counter)
		if err != nil {
			return nil, fmt.Errorf("verify 2fa: %w", err)
		}
		if !fresh {
			return nil, ErrInvalidCode
		}
	}

	if !id.TwoFactorEnabled {
		if err := s.identities.EnableTwoFactor(ctx, id.ID); err != nil {
			return nil, fmt.Errorf("enable 2fa: %w", err)
		}
		id.TwoFactorEnabled = true
		slog.Info("2fa enabled", "user_id", id.ID)
	}

	return s.newSession(id, session.StateAuthenticated)
}

// ResetTwoFactor clears the target's TOTP secret and disables 2FA so the
// identity can enroll again. actor is the administrator asking for it and
// may not reset their own second factor.
func (s *Service) ResetTwoFactor(ctx context.Context, actor *token.Claims, target uuid.UUID) error {
	if actor == nil || !actor.IsAdmin {
		return ErrUnauthorized
	}
	actorID, err := actor.IdentityID()
	if err != nil {
		return ErrUnauthorized
	}
	if actorID == target {
		return ErrSelfReset
	}

	id, err := s.identities.FindByID(ctx, target)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if id == nil || !id.IsRegistered {
		return ErrNotFound
	}

	if err := s.identities.ResetTwoFactor(ctx, id.ID); err != nil {
		return fmt.Errorf("reset 2fa: %w", err)
	}
	slog.Info("2fa reset by admin", "admin", actor.Email, "target_user", id.ID)
	return nil
}

// matchCode returns the time step whose code equals code, searching the
// current step and its neighbours.
func matchCode(secret, code string, now time.Time) (uint64, bool) {
	if !isSixDigits(code) {
		return 0, false
	}
	for skew := -totpSkew; skew <= totpSkew; skew++ {
		at := now.Add(time.Duration(skew*totpPeriod) * time.Second)
		want, err := totp.GenerateCodeCustom(secret, at, totpOpts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return uint64(at.Unix()) / totpPeriod, true
		}
	}
	return 0, false
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
