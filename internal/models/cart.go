// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection names a catalog collection an item can be added from.
type Collection string

const (
	CollectionTravel Collection = "travel"
	CollectionRooms  Collection = "rooms"
	CollectionMeals  Collection = "meals"
)

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionTravel, CollectionRooms, CollectionMeals:
		return true
	}
	return false
}

// Rank orders collections for cart listing: trips, then rooms, then meals.
func (c Collection) Rank() int {
	switch c {
	case CollectionTravel:
		return 1
	case CollectionRooms:
		return 2
	case CollectionMeals:
		return 3
	default:
		return 4
	}
}

// CartItem is one catalog entry held in an identity's cart.
type CartItem struct {
	ID         uuid.UUID  `json:"_id"`
	OwnerID    uuid.UUID  `json:"user_id"`
	ItemID     string     `json:"item_id"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Collection Collection `json:"dbCollection"`
	Rate       float64    `json:"rate"`
	Image      string     `json:"image"`
	Quantity   int        `json:"quantity"`
	AddedAt    time.Time  `json:"addToCartDate"`
}
