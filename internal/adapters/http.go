// Package adapters provides the built-in protocol adapters: HTTP, SQL
// (sqlite), and Redis.
//
// DESIGN: Adapters are simple pass-through wrappers. Each maps the
// protocol-neutral Request/Response envelope onto one wire protocol and
// surfaces failures as *core.Error, so hooks and the pipeline never see
// protocol-specific structures. Every adapter also ships a plugin
// registrar, so the built-ins load through the same catalog mechanism
// as third-party extensions.
package adapters

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/registry"
)

const (
	// maxResponseSize caps response reads to prevent OOM on
	// unexpectedly large payloads (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error bodies quoted in error messages.
	maxErrorBodyLen = 500

	defaultHTTPTimeout = 60 * time.Second
)

// HTTPAdapter speaks plain HTTP(S) against one base URL.
type HTTPAdapter struct {
	base      string
	client    *http.Client
	closeOnce sync.Once
}

// NewHTTP builds an HTTP adapter for the given base URL. TLS peer
// verification is on unless Options.Insecure explicitly disables it.
func NewHTTP(target string, opts core.Options) (core.Adapter, error) {
	if target == "" {
		return nil, fmt.Errorf("http adapter: target base URL required")
	}
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("http adapter: invalid base URL %q: %w", target, err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &HTTPAdapter{
		base: strings.TrimRight(target, "/"),
		// Timeout comes from the caller's context, not the client.
		client: &http.Client{Transport: transport},
	}, nil
}

// Name returns "http".
func (a *HTTPAdapter) Name() string { return "http" }

// Request performs one HTTP exchange. Envelope mapping:
//   - Method: HTTP verb; "query"/"search" become GET
//   - Target: path joined to the base URL
//   - Meta:   URL query parameters
//   - a non-2xx/3xx status surfaces as a transport error, never as a
//     half-failed Response
func (a *HTTPAdapter) Request(ctx context.Context, req *core.Request, opts core.Options) (*core.Response, error) {
	verb := strings.ToUpper(req.Method)
	switch verb {
	case "QUERY", "SEARCH", "":
		verb = http.MethodGet
	}

	target := a.buildURL(req)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, verb, target, body)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}

	if httpResp.StatusCode >= 400 {
		errBody := string(data)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, core.NewTransportError(req.Method, req.Target,
			fmt.Errorf("status %d: %s", httpResp.StatusCode, errBody))
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return &core.Response{
		Success: true,
		Status:  httpResp.StatusCode,
		Data:    data,
		Headers: headers,
	}, nil
}

// buildURL joins the target path to the base URL and folds Meta into
// query parameters.
func (a *HTTPAdapter) buildURL(req *core.Request) string {
	target := req.Target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = a.base + target
	}
	if len(req.Meta) == 0 {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	for k, v := range req.Meta {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Close releases idle connections. Idempotent.
func (a *HTTPAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.client.CloseIdleConnections()
	})
	return nil
}

// HTTPPlugin registers the HTTP adapter. It is the catalog entry point
// for the "http" built-in.
type HTTPPlugin struct{}

// RegisterAdapters registers the "http" adapter factory.
func (HTTPPlugin) RegisterAdapters(adapters *registry.Registry[registry.AdapterFactory]) error {
	return adapters.Register("http", NewHTTP)
}
