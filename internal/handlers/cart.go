// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"travlr/internal/auth"
	"travlr/internal/middleware"
	"travlr/internal/models"
	"travlr/internal/session"
	"travlr/internal/token"
)

// CartStore is the cart persistence the handlers need.
type CartStore interface {
	Add(ctx context.Context, item *models.CartItem) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error)
}

// Cart groups the cart endpoints that take part in the session lifecycle.
type Cart struct {
	svc      *auth.Service
	sessions *session.Manager
	tokens   *token.Issuer
	items    CartStore
}

// NewCart creates a new Cart handler group.
func NewCart(svc *auth.Service, sessions *session.Manager, tokens *token.Issuer, items CartStore) *Cart {
	return &Cart{svc: svc, sessions: sessions, tokens: tokens, items: items}
}

// List returns the session owner's cart. Must be mounted behind
// middleware.RequireSession.
func (c *Cart) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromCtx(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	owner, err := claims.IdentityID()
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, middleware.MsgBadToken)
		return
	}

	items, err := c.items.ListByOwner(r.Context(), owner)
	if err != nil {
		slog.Error("list cart failed", "user_id", owner, "error", err)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if items == nil {
		items = []models.CartItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Add puts a catalog item in the caller's cart. A caller without a session,
// or with an expired guest session, is given a guest identity first.
func (c *Cart) Add(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if msg := decodeJSON(w, r, &req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	owner, ok := c.owner(w, r)
	if !ok {
		return
	}

	item := &models.CartItem{
		OwnerID:    owner,
		ItemID:     req.ItemID,
		Code:       req.Code,
		Name:       req.Name,
		Collection: models.Collection(req.Collection),
		Rate:       req.Rate,
		Image:      req.Image,
		Quantity:   1,
	}
	if !item.Collection.Valid() {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid collection: %q.", req.Collection))
		return
	}

	added, err := c.items.Add(r.Context(), item)
	if err != nil {
		slog.Error("add cart item failed", "user_id", owner, "item_id", item.ItemID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error adding item to db.")
		return
	}
	if !added {
		writeMessage(w, http.StatusOK, fmt.Sprintf("Item %q is already in your cart.", item.Name))
		return
	}
	writeMessage(w, http.StatusCreated, fmt.Sprintf("Item %s added to your cart", item.Name))
}

// owner resolves the cart owner from a verified session token, provisioning
// a guest when there is none. A registered session whose token no longer
// verifies gets a 401 instead. It reports false after answering with an error.
func (c *Cart) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if d := c.sessions.Read(r); d != nil {
		if claims, err := c.tokens.Verify(d.Token); err == nil {
			if id, err := claims.IdentityID(); err == nil {
				return id, true
			}
		}
		if d.State != session.StateGuest {
			slog.Debug("cart add with expired session", "user_id", d.UserID)
			writeMessage(w, http.StatusUnauthorized, middleware.MsgSessionExpired)
			return uuid.Nil, false
		}
	}

	sess, err := c.svc.CreateGuest(r.Context())
	if err != nil {
		slog.Error("lazy guest provisioning failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return uuid.Nil, false
	}
	d := sess.Descriptor
	if err := c.sessions.Write(w, d, c.sessions.TTL(d.State)); err != nil {
		slog.Error("write session cookie failed", "user_id", d.UserID, "error", err)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return uuid.Nil, false
	}
	return d.UserID, true
}
