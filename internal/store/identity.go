// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access methods for identities and cart
// items. Each store struct wraps a *sql.DB and exposes typed query methods.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"travlr/internal/models"
)

// ErrDuplicateEmail is returned when a registered identity already uses
// the email address.
var ErrDuplicateEmail = errors.New("store: email already registered")

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const identityColumns = `id, first_name, last_name, email, password_salt, password_hash,
	is_registered, is_admin, two_factor_enabled, two_factor_secret, created_at`

// IdentityStore handles all identity-related database operations.
type IdentityStore struct {
	db *sql.DB
}

// NewIdentityStore creates a new IdentityStore with the given database connection.
func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// Create inserts the identity. A zero ID is replaced with a new UUID and
// CreatedAt is filled from the database.
func (s *IdentityStore) Create(ctx context.Context, id *models.Identity) error {
	if id.ID == uuid.Nil {
		id.ID = uuid.New()
	}

	var salt, hash sql.NullString
	if id.Credential != nil {
		salt = sql.NullString{String: id.Credential.Salt, Valid: true}
		hash = sql.NullString{String: id.Credential.Hash, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO identities (id, first_name, last_name, email, password_salt, password_hash,
			is_registered, is_admin, two_factor_enabled, two_factor_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, id.ID, id.FirstName, id.LastName, nullString(id.Email), salt, hash,
		id.IsRegistered, id.IsAdmin, id.TwoFactorEnabled, id.TwoFactorSecret,
	).Scan(&id.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// FindByID retrieves an identity by its UUID. Returns nil if not found.
func (s *IdentityStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	identity, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return identity, nil
}

// FindByEmail retrieves the identity registered under email, compared
// case-insensitively. Returns nil if not found.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM identities WHERE lower(email) = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	identity, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return identity, nil
}

// SetTwoFactorSecret stores the TOTP secret during enrollment. 2FA stays
// disabled until EnableTwoFactor confirms the secret.
func (s *IdentityStore) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET two_factor_secret = $1 WHERE id = $2
	`, secret, id)
	if err != nil {
		return fmt.Errorf("set two-factor secret: %w", err)
	}
	return nil
}

// EnableTwoFactor marks 2FA as confirmed and the identity as registered.
func (s *IdentityStore) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET two_factor_enabled = TRUE, is_registered = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	return nil
}

// ResetTwoFactor clears the TOTP secret and disables 2FA.
func (s *IdentityStore) ResetTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET two_factor_secret = NULL, two_factor_enabled = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("reset two-factor: %w", err)
	}
	return nil
}

// Promote moves every cart item owned by guestID to ownerID, marks the
// owner registered and deletes the guest identity, all in one transaction.
// It returns the number of cart items moved. Promoting a guest that was
// already retired is a no-op.
func (s *IdentityStore) Promote(ctx context.Context, guestID, ownerID uuid.UUID) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("promote begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE cart_items SET owner_id = $1 WHERE owner_id = $2`, ownerID, guestID)
	if err != nil {
		return 0, fmt.Errorf("promote reassign cart: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote reassign cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE identities SET is_registered = TRUE WHERE id = $1`, ownerID); err != nil {
		return 0, fmt.Errorf("promote mark registered: %w", err)
	}

	// Only guests are ever retired here.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM identities WHERE id = $1 AND is_registered = FALSE
	`, guestID); err != nil {
		return 0, fmt.Errorf("promote delete guest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("promote commit: %w", err)
	}
	return moved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		id         models.Identity
		email      sql.NullString
		salt, hash sql.NullString
		secret     sql.NullString
	)
	if err := row.Scan(
		&id.ID, &id.FirstName, &id.LastName, &email, &salt, &hash,
		&id.IsRegistered, &id.IsAdmin, &id.TwoFactorEnabled, &secret, &id.CreatedAt,
	); err != nil {
		return nil, err
	}

	id.Email = email.String
	if salt.Valid && hash.Valid {
		id.Credential = &models.Credential{Salt: salt.String, Hash: hash.String}
	}
	if secret.Valid {
		id.TwoFactorSecret = &secret.String
	}
	return &id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
