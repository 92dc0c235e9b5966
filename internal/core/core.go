// Package core defines the capability contracts and the envelope types
// that cross them.
//
// DESIGN: Every back-end protocol is reached through the same three
// contracts: Adapter (dispatch), AuthProvider (credential injection),
// and the three hook kinds (request/response/error transforms). Adapters
// and hooks never exchange protocol-specific wire structures, only the
// Request/Response/Error envelope defined here.
//
// FLOW:
//  1. Façade builds a Request envelope
//  2. Request hooks rewrite it, AuthProvider injects credentials
//  3. Adapter.Request performs the protocol exchange
//  4. Response hooks rewrite the Response (or error hooks recover)
//
// To add a new protocol: implement Adapter and register it under a name.
package core

import (
	"context"
	"time"
)

// Request is the protocol-neutral outgoing envelope.
// Adapters map it onto their wire format; hooks may rewrite any field.
type Request struct {
	// Method is the protocol-appropriate verb ("GET", "query", "search").
	Method string

	// Target is the operation target: a URL path, a SQL statement,
	// a key pattern - whatever the adapter expects.
	Target string

	// Headers carry transport metadata. Adapters that have no header
	// concept may fold them into Meta or ignore them.
	Headers map[string]string

	// Body is the raw payload, nil when the operation has none.
	Body []byte

	// Meta carries adapter-specific options that are not part of the
	// payload (query parameters, bind arguments, page tokens).
	Meta map[string]string
}

// Clone returns a deep copy so hooks can rewrite a request without
// aliasing the caller's maps.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := &Request{
		Method: r.Method,
		Target: r.Target,
		Body:   append([]byte(nil), r.Body...),
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	if r.Meta != nil {
		c.Meta = make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// Header returns the named header or "".
func (r *Request) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[key]
}

// SetHeader sets a header, allocating the map on first use.
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// Response is the protocol-neutral result envelope.
type Response struct {
	// Success reports whether the adapter considers the exchange
	// successful. Partial success is modelled inside Data, never as a
	// third envelope shape.
	Success bool

	// Status is the protocol status indicator (HTTP status code,
	// affected row count, etc.). Zero when the protocol has none.
	Status int

	// Data is the raw response payload.
	Data []byte

	// Headers carry response transport metadata.
	Headers map[string]string

	// Meta carries adapter-provided out-of-band values, e.g. a
	// pagination cursor extracted from the protocol response.
	Meta map[string]string
}

// Header returns the named response header or "".
func (r *Response) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[key]
}

// Options are the per-call knobs a Façade passes down to its adapter.
type Options struct {
	// Timeout bounds the single call. Zero means no deadline beyond
	// whatever the caller's context carries.
	Timeout time.Duration

	// Insecure disables transport-level peer verification (TLS etc.).
	// The zero value keeps verification on. Adapters without such a
	// concept ignore it.
	Insecure bool
}

// Adapter performs the actual protocol exchange for one back end.
//
// Implementations own their connection or pool and release it in Close.
// Close is idempotent: safe to call zero or more times, and safe after
// a failed Request. Request returns a *Error for transport or protocol
// failure so hooks can reason about it without protocol knowledge.
type Adapter interface {
	// Name returns the registry identifier (e.g. "http", "sqlite").
	Name() string

	// Request performs one protocol exchange. The context carries the
	// caller's deadline and cancellation; adapters must honor it.
	Request(ctx context.Context, req *Request, opts Options) (*Response, error)

	// Close releases pooled resources. Idempotent.
	Close() error
}

// AuthProvider attaches credentials to an outgoing request.
//
// Inject must behave as a pure function over the request: no network
// I/O, no per-request mutable state. One provider is shared by many
// Façades concurrently without locking.
type AuthProvider interface {
	Name() string
	Inject(ctx context.Context, req *Request) (*Request, error)
}

// RequestHook rewrites an outgoing request before dispatch.
// It must not perform the dispatch itself.
type RequestHook interface {
	Priority() int
	HandleRequest(ctx context.Context, req *Request) (*Request, error)
}

// ResponseHook rewrites a response after a successful dispatch.
type ResponseHook interface {
	Priority() int
	HandleResponse(ctx context.Context, resp *Response) (*Response, error)
}

// ErrorHook observes a pipeline error. Returning a non-nil Response
// recovers: the substitute response becomes the call result and later
// error hooks are skipped. Returning (nil, err) propagates err (which
// may wrap the input) to the next error hook.
type ErrorHook interface {
	Priority() int
	HandleError(ctx context.Context, e *Error) (*Response, error)
}
