// Package facade composes one adapter, zero-or-one auth provider, and
// the hook pipeline into the single call surface callers use.
//
// DESIGN: The Client owns no extensibility logic, only orchestration.
// It performs no retries, no caching, and no protocol translation:
// all such behavior belongs to hooks or to the adapter itself.
//
// FLOW per call:
//  1. Build the Request envelope, attach the per-call deadline
//  2. Pipeline folds request hooks over it
//  3. AuthProvider injects credentials
//  4. Adapter performs the exchange
//  5. Pipeline folds response hooks (or error hooks on failure)
package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/monitoring"
	"github.com/protogate/protogate/internal/paginate"
	"github.com/protogate/protogate/internal/pipeline"
	"github.com/protogate/protogate/internal/registry"
)

// ErrAdapterNotFound reports a Client construction naming an adapter
// absent from the registry. Fatal to that construction, not to the
// process.
var ErrAdapterNotFound = errors.New("adapter not found")

// Config is the consumed shape of a Client's construction input.
// Exactly one of Adapter / AdapterInstance must be set.
type Config struct {
	// Target is the back-end address or identifier handed to the
	// adapter factory (base URL, DSN, host:port).
	Target string

	// Adapter is the registry name of the adapter to construct.
	Adapter string

	// AdapterInstance short-circuits registry resolution with a ready
	// adapter. The Client takes exclusive ownership either way.
	AdapterInstance core.Adapter

	// Auth optionally names a registered auth provider; AuthInstance
	// passes one directly.
	Auth         string
	AuthInstance core.AuthProvider

	// Timeout, when non-zero, bounds every call made through the
	// Client unless the caller's context is already tighter.
	Timeout time.Duration

	// Insecure disables transport peer verification where the adapter
	// supports it. Off by default.
	Insecure bool
}

// Client is the façade over one adapter.
type Client struct {
	adapter  core.Adapter
	auth     core.AuthProvider
	pipeline *pipeline.Pipeline
	timeout  time.Duration
	insecure bool
}

// New constructs a Client against the given registry set and pipeline.
// It fails fast with ErrAdapterNotFound when the named adapter is not
// registered.
func New(set *registry.Set, pipe *pipeline.Pipeline, cfg Config) (*Client, error) {
	adapter := cfg.AdapterInstance
	if adapter == nil {
		if cfg.Adapter == "" {
			return nil, fmt.Errorf("facade: no adapter configured")
		}
		factory, err := set.Adapters.Get(cfg.Adapter)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return nil, fmt.Errorf("adapter %q: %w", cfg.Adapter, ErrAdapterNotFound)
			}
			return nil, err
		}
		adapter, err = factory(cfg.Target, core.Options{Timeout: cfg.Timeout, Insecure: cfg.Insecure})
		if err != nil {
			return nil, fmt.Errorf("construct adapter %q: %w", cfg.Adapter, err)
		}
	}

	auth := cfg.AuthInstance
	if auth == nil && cfg.Auth != "" {
		provider, err := set.AuthProviders.Get(cfg.Auth)
		if err != nil {
			adapter.Close()
			return nil, err
		}
		auth = provider
	}

	log.Debug().Str("adapter", adapter.Name()).Bool("auth", auth != nil).Msg("facade constructed")
	return &Client{
		adapter:  adapter,
		auth:     auth,
		pipeline: pipe,
		timeout:  cfg.Timeout,
		insecure: cfg.Insecure,
	}, nil
}

// Do issues one request through the full pipeline.
func (c *Client) Do(ctx context.Context, req *core.Request) (*core.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx = monitoring.WithCallStart(ctx, time.Now())
	ctx = monitoring.WithCallInfo(ctx, req.Method, req.Target)
	if monitoring.RequestIDFromContext(ctx) == "" {
		ctx = monitoring.WithRequestIDContext(ctx, uuid.New().String())
	}

	return c.pipeline.Execute(ctx, req, c.dispatch)
}

// dispatch injects credentials and hands the request to the adapter.
// It runs inside the pipeline, after the request hooks.
func (c *Client) dispatch(ctx context.Context, req *core.Request) (*core.Response, error) {
	if c.auth != nil {
		injected, err := c.auth.Inject(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("auth %q: %w", c.auth.Name(), err)
		}
		if injected != nil {
			req = injected
		}
	}
	return c.adapter.Request(ctx, req, core.Options{Timeout: c.timeout, Insecure: c.insecure})
}

// Get issues a GET-style request.
func (c *Client) Get(ctx context.Context, target string) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "GET", Target: target})
}

// Post issues a POST-style request with a payload.
func (c *Client) Post(ctx context.Context, target string, body []byte) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "POST", Target: target, Body: body})
}

// Put issues a PUT-style request with a payload.
func (c *Client) Put(ctx context.Context, target string, body []byte) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "PUT", Target: target, Body: body})
}

// Delete issues a DELETE-style request.
func (c *Client) Delete(ctx context.Context, target string) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "DELETE", Target: target})
}

// Query issues a query-style request (SQL adapters map this onto a
// read statement; others treat it as a search verb).
func (c *Client) Query(ctx context.Context, statement string, args map[string]string) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "query", Target: statement, Meta: args})
}

// Search issues a search-style request.
func (c *Client) Search(ctx context.Context, target string, params map[string]string) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: "search", Target: target, Meta: params})
}

// Pages returns a pagination engine whose page fetches run through this
// Client's full pipeline.
func (c *Client) Pages(cfg paginate.Config, req *core.Request) (*paginate.Pager, error) {
	return paginate.New(cfg, req, func(ctx context.Context, pageReq *core.Request) (*core.Response, error) {
		return c.Do(ctx, pageReq)
	})
}

// Adapter exposes the underlying adapter name for diagnostics.
func (c *Client) Adapter() string { return c.adapter.Name() }

// Close releases the adapter's resources. Idempotent: adapters are
// required to tolerate repeated Close, including after a failed call.
func (c *Client) Close() error {
	return c.adapter.Close()
}
