// Package hooks provides the built-in cross-cutting hooks: request
// tracing, timing logs, metrics, static headers, and cached fallback.
//
// DESIGN: Each hook is a small, stateless (or externally-synchronized)
// transform over the envelope, ordered by an explicit priority. Lower
// priority runs earlier on the request side and later on the response
// side, so a hook pair wraps the dispatch like a layer.
package hooks

import (
	"context"

	"github.com/google/uuid"

	"github.com/protogate/protogate/internal/core"
)

// TraceHeader is the request ID header the trace hook maintains.
const TraceHeader = "X-Request-Id"

// Trace assigns a request ID header when the caller did not provide
// one, so downstream logs and hooks can correlate.
type Trace struct {
	Prio int
}

// Name returns "trace".
func (Trace) Name() string { return "trace" }

// Priority implements core.RequestHook.
func (t Trace) Priority() int { return t.Prio }

// HandleRequest sets the trace header on a copy of the request.
func (t Trace) HandleRequest(_ context.Context, req *core.Request) (*core.Request, error) {
	if req.Header(TraceHeader) != "" {
		return req, nil
	}
	out := req.Clone()
	out.SetHeader(TraceHeader, uuid.New().String())
	return out, nil
}
