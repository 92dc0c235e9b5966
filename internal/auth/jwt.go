package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/protogate/protogate/internal/core"
)

// JWT mints a short-lived HS256 token per call from a static secret and
// injects it as a bearer credential. Minting from fixed inputs keeps
// Inject pure: no state survives between calls.
type JWT struct {
	Secret   []byte
	Issuer   string
	Subject  string
	Lifetime time.Duration // defaults to 5 minutes

	// Now is overridable for tests.
	Now func() time.Time
}

// Name returns "jwt".
func (JWT) Name() string { return "jwt" }

// Inject signs a fresh token and sets it on a copy of the request.
func (j JWT) Inject(_ context.Context, req *core.Request) (*core.Request, error) {
	if len(j.Secret) == 0 {
		return nil, fmt.Errorf("jwt auth: empty signing secret")
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	lifetime := j.Lifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}

	issued := now()
	claims := jwt.RegisteredClaims{
		Issuer:    j.Issuer,
		Subject:   j.Subject,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(lifetime)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	if err != nil {
		return nil, fmt.Errorf("jwt auth: sign: %w", err)
	}

	out := req.Clone()
	out.SetHeader("Authorization", "Bearer "+token)
	return out, nil
}
