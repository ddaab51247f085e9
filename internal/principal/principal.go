// Package principal resolves the authenticated principal for a request.
// It is the reference implementation of the "auth provider" external
// collaborator spec.md §6 names as out of scope: a bearer-token JWT
// resolver, kept separate from the gateway core so a real issuer can be
// swapped in without touching dispatch logic.
package principal

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// LevelPlatform is the principal level that sees every tenant's data
// unscoped (spec.md §4.13: "an L4 (platform) principal sees everything").
const LevelPlatform = "L4"

// Principal is the resolved identity placed on the request context.
// It satisfies internal/tenant.Principal via Org().
type Principal struct {
	Authenticated bool   `json:"authenticated"`
	Level         string `json:"level,omitempty"`
	ID            string `json:"id,omitempty"`
	Email         string `json:"email,omitempty"`
	OrgID         string `json:"org,omitempty"`
}

// Org satisfies internal/tenant.Principal.
func (p Principal) Org() string { return p.OrgID }

// IsPlatform reports whether the principal is unscoped across tenants.
func (p Principal) IsPlatform() bool { return p.Level == LevelPlatform }

// claims is the JWT payload shape the resolver expects from the auth
// provider: subject, email, org, and level are read if present; unknown
// claims are ignored.
type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Org   string `json:"org"`
	Level string `json:"level"`
}

// Resolver validates a bearer JWT and produces a Principal.
type Resolver struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewResolver builds a Resolver verifying HS256 tokens with secret.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{
		keyFunc: func(t *jwt.Token) (any, error) { return secret, nil },
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// Resolve extracts and validates the bearer token from r's Authorization
// header. A missing header yields the zero Principal (unauthenticated),
// not an error — callers decide whether anonymous access is allowed.
func (res *Resolver) Resolve(r *http.Request) (Principal, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return Principal{}, nil
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth {
		return Principal{}, nil // not a bearer token
	}

	var c claims
	parsed, err := res.parser.ParseWithClaims(token, &c, res.keyFunc)
	if err != nil || !parsed.Valid {
		return Principal{}, err
	}

	return Principal{
		Authenticated: true,
		Level:         c.Level,
		ID:            c.Subject,
		Email:         c.Email,
		OrgID:         c.Org,
	}, nil
}
