package models

import (
	"strings"
	"testing"
)

// TestSetPasswordThenValidate verifies that a freshly set password
// validates and that any other input does not.
func TestSetPasswordThenValidate(t *testing.T) {
	passwords := []string{"x", "correct horse battery staple", "pässwörd", strings.Repeat("a", 200)}

	for _, pw := range passwords {
		t.Run(pw[:1], func(t *testing.T) {
			id := &Identity{FirstName: "A"}
			if err := id.SetPassword(pw); err != nil {
				t.Fatalf("SetPassword: %v", err)
			}
			if !id.ValidatePassword(pw) {
				t.Error("expected password to validate right after SetPassword")
			}
			if id.ValidatePassword(pw + "!") {
				t.Error("expected different password to fail")
			}
			if id.ValidatePassword("") {
				t.Error("expected empty password to fail")
			}
		})
	}
}

// TestSetPasswordStoresNoPlaintext verifies the credential shape: a 16-byte
// hex salt and a 64-byte hex hash, neither equal to the input.
func TestSetPasswordStoresNoPlaintext(t *testing.T) {
	id := &Identity{}
	if err := id.SetPassword("secret"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if id.Credential == nil {
		t.Fatal("expected credential to be set")
	}
	if len(id.Credential.Salt) != 32 {
		t.Errorf("salt length: got %d hex chars, want 32", len(id.Credential.Salt))
	}
	if len(id.Credential.Hash) != 128 {
		t.Errorf("hash length: got %d hex chars, want 128", len(id.Credential.Hash))
	}
	if strings.Contains(id.Credential.Hash, "secret") || id.Credential.Salt == "secret" {
		t.Error("credential must not contain the plaintext")
	}
}

// TestSetPasswordFreshSalt verifies that setting the same password twice
// produces different salts and hashes.
func TestSetPasswordFreshSalt(t *testing.T) {
	a, b := &Identity{}, &Identity{}
	a.SetPassword("same")
	b.SetPassword("same")

	if a.Credential.Salt == b.Credential.Salt {
		t.Error("expected distinct salts")
	}
	if a.Credential.Hash == b.Credential.Hash {
		t.Error("expected distinct hashes")
	}
}

// TestValidatePasswordGuest verifies that an identity without a credential
// never validates and does not panic.
func TestValidatePasswordGuest(t *testing.T) {
	guest := NewGuest()
	if guest.ValidatePassword("") {
		t.Error("guest validated empty password")
	}
	if guest.ValidatePassword("anything") {
		t.Error("guest validated a password")
	}

	partial := &Identity{Credential: &Credential{Salt: "abcd"}}
	if partial.ValidatePassword("anything") {
		t.Error("credential without hash validated")
	}
}

func TestNewGuest(t *testing.T) {
	g := NewGuest()
	if g.FirstName != GuestFirstName {
		t.Errorf("FirstName: got %q, want %q", g.FirstName, GuestFirstName)
	}
	if g.IsRegistered || g.IsAdmin || g.TwoFactorEnabled {
		t.Error("guest must start with all flags false")
	}
	if !g.IsGuest() {
		t.Error("expected IsGuest() = true")
	}
	if g.Email != "" {
		t.Errorf("Email: got %q, want empty", g.Email)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Guest", "", "Guest"},
	}
	for _, tt := range tests {
		id := &Identity{FirstName: tt.first, LastName: tt.last}
		if got := id.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.first, tt.last, got, tt.want)
		}
	}
}

func TestCollectionRank(t *testing.T) {
	if !(CollectionTravel.Rank() < CollectionRooms.Rank() && CollectionRooms.Rank() < CollectionMeals.Rank()) {
		t.Error("expected travel < rooms < meals")
	}
	if Collection("other").Rank() <= CollectionMeals.Rank() {
		t.Error("expected unknown collections to sort last")
	}
}

func TestCollectionValid(t *testing.T) {
	for _, c := range []Collection{CollectionTravel, CollectionRooms, CollectionMeals} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Collection{"", "trips", "Rooms"} {
		if c.Valid() {
			t.Errorf("%q should be invalid", c)
		}
	}
}
