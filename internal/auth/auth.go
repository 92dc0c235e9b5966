// Package auth provides the built-in credential providers.
//
// DESIGN: Every provider is a pure per-call transform: no network I/O,
// no mutable state tied to a request instance. That contract is what
// lets one provider be shared by many Façades concurrently without
// locking.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/registry"
)

// Basic injects an HTTP Basic Authorization header.
type Basic struct {
	Username string
	Password string
}

// Name returns "basic".
func (Basic) Name() string { return "basic" }

// Inject sets the Authorization header on a copy of the request.
func (b Basic) Inject(_ context.Context, req *core.Request) (*core.Request, error) {
	out := req.Clone()
	token := base64.StdEncoding.EncodeToString([]byte(b.Username + ":" + b.Password))
	out.SetHeader("Authorization", "Basic "+token)
	return out, nil
}

// Bearer injects a static bearer token.
type Bearer struct {
	Token string
}

// Name returns "bearer".
func (Bearer) Name() string { return "bearer" }

// Inject sets the Authorization header on a copy of the request.
func (b Bearer) Inject(_ context.Context, req *core.Request) (*core.Request, error) {
	if b.Token == "" {
		return nil, fmt.Errorf("bearer auth: empty token")
	}
	out := req.Clone()
	out.SetHeader("Authorization", "Bearer "+b.Token)
	return out, nil
}

// APIKey injects a static key under a configurable header.
type APIKey struct {
	Header string // defaults to "X-Api-Key"
	Key    string
}

// Name returns "apikey".
func (APIKey) Name() string { return "apikey" }

// Inject sets the key header on a copy of the request.
func (a APIKey) Inject(_ context.Context, req *core.Request) (*core.Request, error) {
	header := a.Header
	if header == "" {
		header = "X-Api-Key"
	}
	out := req.Clone()
	out.SetHeader(header, a.Key)
	return out, nil
}

// Plugin registers the static credential providers under their names.
// Credentials come from the environment-expanded config, so the
// registered instances are ready to share.
type Plugin struct {
	Providers []core.AuthProvider
}

// RegisterAuthProviders registers every configured provider.
func (p Plugin) RegisterAuthProviders(providers *registry.Registry[core.AuthProvider]) error {
	for _, provider := range p.Providers {
		if err := providers.Register(provider.Name(), provider); err != nil {
			return err
		}
	}
	return nil
}
