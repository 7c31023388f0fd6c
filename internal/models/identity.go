// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// Password hashing parameters. Stored hashes depend on these values, so
// changing any of them invalidates every existing credential.
const (
	saltBytes     = 16
	kdfIterations = 1000
	kdfKeyLength  = 64
)

// GuestFirstName is the display name given to auto-provisioned identities.
const GuestFirstName = "Guest"

// Credential is the salt and derived hash of an identity's password.
// Both values are hex encoded.
type Credential struct {
	Salt string
	Hash string
}

// Identity represents any actor that can own a cart: an anonymous guest
// or a registered person.
type Identity struct {
	ID               uuid.UUID   `json:"_id"`
	FirstName        string      `json:"fName"`
	LastName         string      `json:"lName"`
	Email            string      `json:"email,omitempty"` // Empty for guests
	Credential       *Credential `json:"-"`               // Nil for guests
	IsRegistered     bool        `json:"isRegistered"`
	IsAdmin          bool        `json:"isAdmin"`
	TwoFactorEnabled bool        `json:"twoFactorEnabled"`
	TwoFactorSecret  *string     `json:"-"` // Set during 2FA enrollment
	CreatedAt        time.Time   `json:"userSince"`
}

// NewGuest returns an unsaved guest identity with default display fields.
func NewGuest() *Identity {
	return &Identity{
		ID:        uuid.New(),
		FirstName: GuestFirstName,
	}
}

// IsGuest reports whether the identity is an unregistered placeholder.
func (i *Identity) IsGuest() bool {
	return !i.IsRegistered && i.Credential == nil
}

// DisplayName joins first and last name for greetings.
func (i *Identity) DisplayName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// SetPassword replaces the identity's credential with a freshly salted
// PBKDF2-SHA512 hash of plaintext. The plaintext is never stored.
func (i *Identity) SetPassword(plaintext string) error {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	saltHex := hex.EncodeToString(salt)
	i.Credential = &Credential{
		Salt: saltHex,
		Hash: deriveHash(plaintext, saltHex),
	}
	return nil
}

// ValidatePassword reports whether plaintext matches the stored credential.
// Identities without a credential (guests) never validate.
func (i *Identity) ValidatePassword(plaintext string) bool {
	if i.Credential == nil || i.Credential.Salt == "" || i.Credential.Hash == "" {
		return false
	}
	got := deriveHash(plaintext, i.Credential.Salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(i.Credential.Hash)) == 1
}

// deriveHash runs the key-derivation function over the hex salt string,
// matching how credentials were originally written to the database.
func deriveHash(plaintext, salt string) string {
	key := pbkdf2.Key([]byte(plaintext), []byte(salt), kdfIterations, kdfKeyLength, sha512.New)
	return hex.EncodeToString(key)
}
