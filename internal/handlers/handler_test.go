// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Most tests run against in-memory stores; the PostgreSQL-backed
// environment is skipped when the database is unavailable.
package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"travlr/internal/auth"
	"travlr/internal/auth/authtest"
	"travlr/internal/database"
	"travlr/internal/render"
	"travlr/internal/session"
	"travlr/internal/token"
)

// t0 sits in the middle of a 30-second TOTP step.
var t0 = time.Unix(1_700_000_025, 0)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "travlr")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "travlr")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Store    *authtest.Store
	Tokens   *token.Issuer
	Sessions *session.Manager
	Service  *auth.Service
	Renderer *render.Renderer
	Auth     *Auth
	Cart     *Cart
	Pages    *Pages
	now      time.Time
}

// newTestEnv wires the handler groups over in-memory stores and a clock
// frozen at t0.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{Store: authtest.NewStore(), now: t0}
	clock := func() time.Time { return env.now }

	tokens, err := token.NewIssuer([]byte("handler-test-secret"), time.Hour, token.WithClock(clock))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	env.Tokens = tokens
	env.Sessions = session.NewManager(session.Options{})
	env.Service = newServiceFor(env, env.Store)
	env.Renderer = renderer
	env.Auth = NewAuth(env.Service, env.Sessions)
	env.Cart = NewCart(env.Service, env.Sessions, tokens, env.Store)
	env.Pages = NewPages(renderer)
	return env
}

// newServiceFor builds an auth service over identities that shares the
// env's clock and token issuer.
func newServiceFor(env *testEnv, identities auth.IdentityStore) *auth.Service {
	return auth.NewService(identities, env.Tokens,
		auth.WithClock(func() time.Time { return env.now }),
		auth.WithReplayGuard(authtest.NewGuard()),
	)
}

// jsonRequest builds a request with a JSON body and the given cookies.
func jsonRequest(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// decodeBody unmarshals a JSON response body into a generic map.
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return m
}

// cookieNamed returns the live cookie with the given name set by rr, or nil.
// Deletion cookies are ignored.
func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name && c.MaxAge >= 0 {
			return c
		}
	}
	return nil
}

// clearedCookie reports whether rr deletes the named cookie.
func clearedCookie(rr *httptest.ResponseRecorder, name string) bool {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

// sessionFrom decodes the session descriptor carried by a cookie.
func sessionFrom(t *testing.T, mgr *session.Manager, c *http.Cookie) *session.Descriptor {
	t.Helper()
	if c == nil {
		t.Fatal("no session cookie")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	d := mgr.Read(req)
	if d == nil {
		v, _ := url.QueryUnescape(c.Value)
		t.Fatalf("session cookie did not decode: %s", v)
	}
	return d
}

// register runs the register handler and returns the session cookie.
func (env *testEnv) register(t *testing.T, email string, cookies ...*http.Cookie) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	env.Auth.Register(rr, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{
		"fName": "Ada", "lName": "Lovelace", "email": email, "password": "s3cret",
	}, cookies...))
	if rr.Code != http.StatusOK {
		t.Fatalf("register: got %d: %s", rr.Code, rr.Body.String())
	}
	return cookieNamed(rr, session.CookieName)
}

// codeAt computes the TOTP code for secret at the given instant.
func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}
