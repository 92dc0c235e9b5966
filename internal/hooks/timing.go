package hooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/monitoring"
)

// Timing is a request/response hook pair logging each call and its
// elapsed time. The façade stamps the call start into the context; the
// hooks only read it and never enforce a deadline themselves.
//
// Register both sides with the same low priority so the pair wraps the
// dispatch as the outermost layer.
type TimingStart struct {
	Prio int
}

// Name returns "timing-start".
func (TimingStart) Name() string { return "timing-start" }

// Priority implements core.RequestHook.
func (t TimingStart) Priority() int { return t.Prio }

// HandleRequest logs the outgoing call.
func (t TimingStart) HandleRequest(ctx context.Context, req *core.Request) (*core.Request, error) {
	log.Debug().
		Str("id", monitoring.RequestIDFromContext(ctx)).
		Str("method", req.Method).
		Str("target", req.Target).
		Msg("dispatching request")
	return req, nil
}

// TimingEnd logs status and duration on the response side.
type TimingEnd struct {
	Prio int
}

// Name returns "timing-end".
func (TimingEnd) Name() string { return "timing-end" }

// Priority implements core.ResponseHook.
func (t TimingEnd) Priority() int { return t.Prio }

// HandleResponse logs the completed call.
func (t TimingEnd) HandleResponse(ctx context.Context, resp *core.Response) (*core.Response, error) {
	event := log.Info().
		Str("id", monitoring.RequestIDFromContext(ctx)).
		Int("status", resp.Status).
		Bool("success", resp.Success)
	if start, ok := monitoring.CallStart(ctx); ok {
		event = event.Dur("duration", time.Since(start))
	}
	event.Msg("request completed")
	return resp, nil
}
