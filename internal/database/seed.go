// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"travlr/internal/models"
)

// Development admin account created by Seed.
const (
	SeedAdminEmail    = "admin@travlr.local"
	SeedAdminPassword = "admin"
)

// Seed populates the database with initial development data.
// It creates a default admin identity if no registered identity exists.
// The admin has 2FA disabled until they enroll from the site.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM identities WHERE is_registered").Scan(&count); err != nil {
		return fmt.Errorf("seed check identities: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	admin := &models.Identity{
		ID:           uuid.New(),
		FirstName:    "Admin",
		LastName:     "Travlr",
		Email:        SeedAdminEmail,
		IsRegistered: true,
		IsAdmin:      true,
	}
	if err := admin.SetPassword(SeedAdminPassword); err != nil {
		return fmt.Errorf("seed password: %w", err)
	}

	_, err := db.Exec(`
		INSERT INTO identities (id, first_name, last_name, email, password_salt, password_hash, is_registered, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE)
		ON CONFLICT DO NOTHING
	`, admin.ID, admin.FirstName, admin.LastName, admin.Email, admin.Credential.Salt, admin.Credential.Hash)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin identity",
		"email", SeedAdminEmail,
		"password", SeedAdminPassword,
	)

	return nil
}
