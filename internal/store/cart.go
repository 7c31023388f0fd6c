// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"travlr/internal/models"
)

// CartStore handles cart item persistence keyed by owning identity.
type CartStore struct {
	db *sql.DB
}

// NewCartStore creates a new CartStore with the given database connection.
func NewCartStore(db *sql.DB) *CartStore {
	return &CartStore{db: db}
}

// Add inserts the item into its owner's cart. It returns false without
// error when the owner already holds the same catalog item.
func (s *CartStore) Add(ctx context.Context, item *models.CartItem) (bool, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, owner_id, item_id, code, name, collection, rate, image, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, item_id) DO NOTHING
		RETURNING added_at
	`, item.ID, item.OwnerID, item.ItemID, item.Code, item.Name, string(item.Collection),
		item.Rate, item.Image, item.Quantity,
	).Scan(&item.AddedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add cart item: %w", err)
	}
	return true, nil
}

// ListByOwner returns the owner's cart ordered trips, rooms, then meals.
func (s *CartStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, item_id, code, name, collection, rate, image, quantity, added_at
		FROM cart_items WHERE owner_id = $1 ORDER BY added_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(
			&it.ID, &it.OwnerID, &it.ItemID, &it.Code, &it.Name, &it.Collection,
			&it.Rate, &it.Image, &it.Quantity, &it.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Collection.Rank() < items[j].Collection.Rank()
	})
	return items, nil
}
