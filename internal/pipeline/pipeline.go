// Package pipeline executes the ordered hook chains around an adapter
// dispatch.
//
// DESIGN: Each hook collection is sorted once at construction by
// ascending priority, ties broken by registration order. On a call:
//
//  1. The request folds through every request hook (ascending).
//  2. The adapter dispatches. On success the response folds through the
//     response hooks in REVERSE priority order, so the first hook to
//     touch the request is the last to touch the response: wrap/unwrap
//     symmetry without hooks coordinating explicitly.
//  3. Any error from steps 1-2 folds through the error hooks
//     (ascending). The first hook returning a substitute response stops
//     the fold; otherwise the (possibly wrapped) error propagates.
//
// A panicking hook, or one reporting its own failure as a *core.HookError,
// bypasses the remaining hooks immediately: a broken hook cannot be
// trusted to participate further.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/registry"
)

// Dispatch performs the adapter exchange at the center of the pipeline.
type Dispatch func(ctx context.Context, req *core.Request) (*core.Response, error)

// Pipeline holds the three sorted hook chains. Construct once, share
// freely: execution is stateless.
type Pipeline struct {
	request  []core.RequestHook
	response []core.ResponseHook
	errs     []core.ErrorHook
}

// New builds a pipeline from the given hook collections. The input
// slices are in registration order; New sorts copies of them.
func New(request []core.RequestHook, response []core.ResponseHook, errHooks []core.ErrorHook) *Pipeline {
	p := &Pipeline{
		request:  append([]core.RequestHook(nil), request...),
		response: append([]core.ResponseHook(nil), response...),
		errs:     append([]core.ErrorHook(nil), errHooks...),
	}
	sort.SliceStable(p.request, func(i, j int) bool { return p.request[i].Priority() < p.request[j].Priority() })
	sort.SliceStable(p.response, func(i, j int) bool { return p.response[i].Priority() < p.response[j].Priority() })
	sort.SliceStable(p.errs, func(i, j int) bool { return p.errs[i].Priority() < p.errs[j].Priority() })
	return p
}

// FromSet builds a pipeline from every hook registered in the Set,
// preserving registration order for priority ties.
func FromSet(set *registry.Set) *Pipeline {
	var request []core.RequestHook
	for _, name := range set.RequestHooks.Names() {
		if h, err := set.RequestHooks.Get(name); err == nil {
			request = append(request, h)
		}
	}
	var response []core.ResponseHook
	for _, name := range set.ResponseHooks.Names() {
		if h, err := set.ResponseHooks.Get(name); err == nil {
			response = append(response, h)
		}
	}
	var errHooks []core.ErrorHook
	for _, name := range set.ErrorHooks.Names() {
		if h, err := set.ErrorHooks.Get(name); err == nil {
			errHooks = append(errHooks, h)
		}
	}
	return New(request, response, errHooks)
}

// Execute runs one call through the pipeline.
func (p *Pipeline) Execute(ctx context.Context, req *core.Request, dispatch Dispatch) (resp *core.Response, err error) {
	req, err = p.foldRequest(ctx, req)
	if err != nil {
		var hookErr *core.HookError
		if errors.As(err, &hookErr) {
			return nil, err
		}
		return p.foldError(ctx, core.AsError(err, req.Method, req.Target))
	}

	resp, err = dispatch(ctx, req)
	if err != nil {
		return p.foldError(ctx, core.AsError(err, req.Method, req.Target))
	}

	resp, err = p.foldResponse(ctx, resp)
	if err != nil {
		var hookErr *core.HookError
		if errors.As(err, &hookErr) {
			return nil, err
		}
		return p.foldError(ctx, core.AsError(err, req.Method, req.Target))
	}
	return resp, nil
}

func (p *Pipeline) foldRequest(ctx context.Context, req *core.Request) (out *core.Request, err error) {
	out = req
	for _, h := range p.request {
		next, herr := p.callRequestHook(ctx, h, out)
		if herr != nil {
			return out, herr
		}
		if next != nil {
			out = next
		}
	}
	return out, nil
}

func (p *Pipeline) foldResponse(ctx context.Context, resp *core.Response) (out *core.Response, err error) {
	out = resp
	// Reverse priority order: unwrap in the opposite order of wrapping.
	for i := len(p.response) - 1; i >= 0; i-- {
		next, herr := p.callResponseHook(ctx, p.response[i], out)
		if herr != nil {
			return out, herr
		}
		if next != nil {
			out = next
		}
	}
	return out, nil
}

func (p *Pipeline) foldError(ctx context.Context, callErr *core.Error) (*core.Response, error) {
	current := callErr
	for _, h := range p.errs {
		recovered, next, herr := p.callErrorHook(ctx, h, current)
		if herr != nil {
			return nil, herr
		}
		if recovered != nil {
			log.Debug().Str("hook", hookName(h)).Msg("error hook recovered")
			return recovered, nil
		}
		if next != nil {
			current = rewrap(next, current)
		}
	}
	return nil, current
}

// rewrap coerces an error hook's re-raised error back into a
// *core.Error without losing what the hook added. A wrapped envelope
// keeps the inner kind and call context but takes the wrapper's message
// and cause; a fresh error inherits the kind of the error it replaced.
func rewrap(err error, prev *core.Error) *core.Error {
	if ce, ok := err.(*core.Error); ok {
		return ce
	}
	var inner *core.Error
	if errors.As(err, &inner) {
		return &core.Error{
			Kind:    inner.Kind,
			Message: err.Error(),
			Method:  inner.Method,
			Target:  inner.Target,
			Cause:   err,
		}
	}
	return &core.Error{
		Kind:    prev.Kind,
		Message: err.Error(),
		Method:  prev.Method,
		Target:  prev.Target,
		Cause:   err,
	}
}

func (p *Pipeline) callRequestHook(ctx context.Context, h core.RequestHook, req *core.Request) (out *core.Request, err error) {
	defer recoverHook(h, "request", &err)
	return h.HandleRequest(ctx, req)
}

func (p *Pipeline) callResponseHook(ctx context.Context, h core.ResponseHook, resp *core.Response) (out *core.Response, err error) {
	defer recoverHook(h, "response", &err)
	return h.HandleResponse(ctx, resp)
}

func (p *Pipeline) callErrorHook(ctx context.Context, h core.ErrorHook, callErr *core.Error) (recovered *core.Response, next error, hookErr error) {
	defer recoverHook(h, "error", &hookErr)
	resp, err := h.HandleError(ctx, callErr)
	if err != nil {
		var broken *core.HookError
		if errors.As(err, &broken) {
			return nil, nil, err
		}
	}
	return resp, err, nil
}

// recoverHook converts a hook panic into a *core.HookError.
func recoverHook(h any, stage string, err *error) {
	if r := recover(); r != nil {
		log.Error().Str("hook", hookName(h)).Str("stage", stage).Interface("panic", r).Msg("hook panicked")
		*err = &core.HookError{Hook: hookName(h), Stage: stage, Cause: fmt.Errorf("panic: %v", r)}
	}
}

func hookName(h any) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
