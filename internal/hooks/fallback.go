package hooks

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/monitoring"
	"github.com/protogate/protogate/internal/store"
)

// Fallback is a response/error hook pair serving the last known good
// response when the back end fails.
//
// The response side records every successful payload keyed by
// method+target; the error side recovers a transport failure with the
// cached copy, stamped so callers can tell it apart from a live
// response. Non-transport failures (broken hooks, internal errors)
// re-raise: the cache only papers over an unreachable back end.
type Fallback struct {
	Prio  int
	Cache store.Store
}

// NewFallback creates the pair's shared state over the given cache.
func NewFallback(cache store.Store, prio int) *Fallback {
	return &Fallback{Prio: prio, Cache: cache}
}

// Name returns "fallback".
func (*Fallback) Name() string { return "fallback" }

// Priority implements the hook contracts.
func (f *Fallback) Priority() int { return f.Prio }

// HandleResponse records the successful payload.
func (f *Fallback) HandleResponse(ctx context.Context, resp *core.Response) (*core.Response, error) {
	key := cacheKey(ctx)
	if key != "" && resp.Success && len(resp.Data) > 0 {
		if err := f.Cache.Set(key, resp.Data); err != nil {
			log.Warn().Err(err).Msg("fallback cache store failed")
		}
	}
	return resp, nil
}

// HandleError recovers a transport failure from cache, if possible.
func (f *Fallback) HandleError(ctx context.Context, e *core.Error) (*core.Response, error) {
	if e.Kind != core.KindTransport {
		return nil, e
	}
	cached, ok := f.Cache.Get(cacheKeyFor(e.Method, e.Target))
	if !ok {
		return nil, e
	}

	data := cached
	// Stamp JSON payloads so a caller can tell a cached response from a
	// live one; non-JSON payloads are served verbatim.
	if gjson.ValidBytes(cached) {
		if stamped, err := sjson.SetBytes(cached, "_fallback.served_from_cache", true); err == nil {
			data = stamped
		}
	}

	log.Warn().Str("method", e.Method).Str("target", e.Target).Msg("serving stale response from fallback cache")
	return &core.Response{
		Success: true,
		Data:    data,
		Meta:    map[string]string{"fallback": "true"},
	}, nil
}

// cacheKey derives the cache key from the call identity the façade
// stamped into the context.
func cacheKey(ctx context.Context) string {
	if info, ok := monitoring.CallInfoFromContext(ctx); ok {
		return cacheKeyFor(info.Method, info.Target)
	}
	return ""
}

func cacheKeyFor(method, target string) string {
	return method + " " + target
}
