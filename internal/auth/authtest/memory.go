// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package authtest provides in-memory stand-ins for the stores behind the
// auth service, for use in tests of packages that sit on top of it.
package authtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"travlr/internal/models"
	"travlr/internal/store"
)

// Store keeps identities and cart items in memory. It satisfies the
// identity store used by auth.Service and the cart store used by handlers.
type Store struct {
	mu         sync.Mutex
	identities map[uuid.UUID]models.Identity
	items      []models.CartItem

	// PromoteErr, when set, makes Promote fail without changing anything.
	PromoteErr error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{identities: make(map[uuid.UUID]models.Identity)}
}

func (s *Store) Create(_ context.Context, id *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.ID == uuid.Nil {
		id.ID = uuid.New()
	}
	if id.Email != "" {
		for _, other := range s.identities {
			if strings.EqualFold(other.Email, id.Email) {
				return store.ErrDuplicateEmail
			}
		}
	}
	id.CreatedAt = time.Now()
	s.identities[id.ID] = clone(*id)
	return nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	got, ok := s.identities[id]
	if !ok {
		return nil, nil
	}
	c := clone(got)
	return &c, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(email)
	for _, got := range s.identities {
		if got.Email != "" && strings.EqualFold(got.Email, email) {
			c := clone(got)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) SetTwoFactorSecret(_ context.Context, id uuid.UUID, secret string) error {
	return s.update(id, func(i *models.Identity) { i.TwoFactorSecret = &secret })
}

func (s *Store) EnableTwoFactor(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(i *models.Identity) {
		i.TwoFactorEnabled = true
		i.IsRegistered = true
	})
}

func (s *Store) ResetTwoFactor(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(i *models.Identity) {
		i.TwoFactorSecret = nil
		i.TwoFactorEnabled = false
	})
}

func (s *Store) Promote(_ context.Context, guestID, ownerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PromoteErr != nil {
		return 0, s.PromoteErr
	}

	var moved int64
	for i := range s.items {
		if s.items[i].OwnerID == guestID {
			s.items[i].OwnerID = ownerID
			moved++
		}
	}
	if owner, ok := s.identities[ownerID]; ok {
		owner.IsRegistered = true
		s.identities[ownerID] = owner
	}
	if guest, ok := s.identities[guestID]; ok && !guest.IsRegistered {
		delete(s.identities, guestID)
	}
	return moved, nil
}

func (s *Store) Add(_ context.Context, item *models.CartItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.OwnerID == item.OwnerID && it.ItemID == item.ItemID {
			return false, nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.AddedAt = time.Now()
	s.items = append(s.items, *item)
	return true, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CartItem
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Collection.Rank() < out[j].Collection.Rank()
	})
	return out, nil
}

// CountByOwner returns how many items the owner holds.
func (s *Store) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	items, err := s.ListByOwner(ctx, ownerID)
	return len(items), err
}

func (s *Store) update(id uuid.UUID, fn func(*models.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	got, ok := s.identities[id]
	if !ok {
		return errors.New("authtest: identity not found")
	}
	fn(&got)
	s.identities[id] = got
	return nil
}

// clone copies the identity so callers cannot mutate stored state.
func clone(id models.Identity) models.Identity {
	if id.Credential != nil {
		c := *id.Credential
		id.Credential = &c
	}
	if id.TwoFactorSecret != nil {
		s := *id.TwoFactorSecret
		id.TwoFactorSecret = &s
	}
	return id
}

// Guard is an in-memory replay guard.
type Guard struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]bool)}
}

func (g *Guard) Claim(_ context.Context, identityID uuid.UUID, counter uint64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := fmt.Sprintf("%s:%d", identityID, counter)
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}
