package hooks

import (
	"context"

	"github.com/protogate/protogate/internal/core"
)

// StaticHeaders appends a fixed header set to every outgoing request.
// Existing headers win: the hook never overwrites what the caller or an
// earlier hook set.
type StaticHeaders struct {
	Prio    int
	Headers map[string]string
}

// Name returns "static-headers".
func (StaticHeaders) Name() string { return "static-headers" }

// Priority implements core.RequestHook.
func (h StaticHeaders) Priority() int { return h.Prio }

// HandleRequest merges the static headers into a copy of the request.
func (h StaticHeaders) HandleRequest(_ context.Context, req *core.Request) (*core.Request, error) {
	if len(h.Headers) == 0 {
		return req, nil
	}
	out := req.Clone()
	for k, v := range h.Headers {
		if out.Header(k) == "" {
			out.SetHeader(k, v)
		}
	}
	return out, nil
}
