// Error taxonomy for the integration core.
//
// DESIGN: Every failure that crosses the Façade boundary is typed, so
// callers can discriminate "no such adapter" from "adapter reachable but
// the request failed" from "an extension is broken" with errors.Is/As.
package core

import (
	"errors"
	"fmt"
)

// Kind classifies an Error envelope.
type Kind string

const (
	// KindTransport marks an adapter-level protocol or transport failure.
	KindTransport Kind = "transport"

	// KindHook marks a failure produced by a hook rather than by the
	// exchange the hook was observing.
	KindHook Kind = "hook"

	// KindInternal marks everything else that reached the pipeline.
	KindInternal Kind = "internal"
)

// Error is the protocol-neutral failure envelope that flows through
// error hooks. It carries enough context (method, target) for a hook to
// make a recovery decision without protocol-specific knowledge.
type Error struct {
	Kind    Kind
	Message string
	Method  string
	Target  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s error: %s (%s %s)", e.Kind, e.Message, e.Method, e.Target)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// NewTransportError wraps an adapter failure with call context.
func NewTransportError(method, target string, cause error) *Error {
	msg := "request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindTransport, Message: msg, Method: method, Target: target, Cause: cause}
}

// AsError coerces any error into a *Error envelope, preserving one that
// already is.
func AsError(err error, method, target string) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Method: method, Target: target, Cause: err}
}

// HookError reports a misbehaving hook (as opposed to the error it was
// asked to handle). The pipeline propagates it immediately, bypassing
// the remaining hooks: a broken hook cannot be trusted to participate
// further.
type HookError struct {
	Hook  string
	Stage string // "request", "response", or "error"
	Cause error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook %q failed: %v", e.Stage, e.Hook, e.Cause)
}

func (e *HookError) Unwrap() error { return e.Cause }
