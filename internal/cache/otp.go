// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// otpKeyPrefix is the Valkey key prefix for consumed TOTP counters.
	otpKeyPrefix = "totp:"

	// DefaultOTPTTL covers the widest accepted window: one 30-second step
	// either side of the current one.
	DefaultOTPTTL = 90 * time.Second
)

// OTPGuard records TOTP codes that have already been accepted so the same
// code cannot be replayed within its validity window.
type OTPGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOTPGuard creates a guard backed by the given Valkey client.
func NewOTPGuard(client *redis.Client, ttl time.Duration) *OTPGuard {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPGuard{client: client, ttl: ttl}
}

// Claim marks the (identity, counter) pair as used. It returns false when
// the pair was already claimed.
func (g *OTPGuard) Claim(ctx context.Context, identityID uuid.UUID, counter uint64) (bool, error) {
	key := OTPKey(identityID, counter)
	ok, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim otp: %w", err)
	}
	if !ok {
		slog.Warn("totp code replayed", "user_id", identityID, "counter", counter)
	}
	return ok, nil
}

// OTPKey returns the Valkey key for an identity's TOTP counter.
func OTPKey(identityID uuid.UUID, counter uint64) string {
	return fmt.Sprintf("%s%s:%d", otpKeyPrefix, identityID, counter)
}
