// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// registerRequest is the registration form. isRegistered and isAdmin are
// accepted so older clients keep working, but nothing reads them.
type registerRequest struct {
	FirstName    string `json:"fName" validate:"required,max=100"`
	LastName     string `json:"lName" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,max=256"`
	IsRegistered *bool  `json:"isRegistered,omitempty"`
	IsAdmin      *bool  `json:"isAdmin,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type verifyRequest struct {
	AuthCode string `json:"authCode" validate:"required,max=16"`
}

type cartRequest struct {
	Collection string  `json:"collection" validate:"required,max=32"`
	ItemID     string  `json:"item_id" validate:"required,max=64"`
	Code       string  `json:"itemCode" validate:"max=64"`
	Name       string  `json:"itemName" validate:"required,max=200"`
	Rate       float64 `json:"itemRate" validate:"gte=0"`
	Image      string  `json:"itemImage" validate:"max=500"`
}

// trim strips surrounding whitespace from the text fields the forms send.
func (r *registerRequest) trim() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *loginRequest) trim() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *verifyRequest) trim() {
	r.AuthCode = strings.TrimSpace(r.AuthCode)
}

func (r *cartRequest) trim() {
	r.ItemID = strings.TrimSpace(r.ItemID)
	r.Name = strings.TrimSpace(r.Name)
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// It returns a client-facing message, or "" when the body is acceptable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{ trim() }) string {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return "Request body is empty."
		case errors.As(err, &maxErr):
			return "Request body is too large."
		default:
			return "Malformed JSON body."
		}
	}

	dst.trim()
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return ""
}

// validationMessage describes the first failed field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request."
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return msgFieldsRequired
	case "email":
		return "A valid email address is required."
	default:
		return fmt.Sprintf("Invalid %s.", fe.Field())
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

// writeMessage sends the {"message": ...} body every error response uses.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
