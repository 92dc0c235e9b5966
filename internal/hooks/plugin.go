package hooks

import (
	"fmt"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/plugin"
)

// Plugin registers a configured hook set through the loader, the same
// way a third-party extension would. Slice order is the registration
// order, which breaks priority ties in the pipeline.
type Plugin struct {
	Request  []core.RequestHook
	Response []core.ResponseHook
	Error    []core.ErrorHook
}

// RegisterHooks implements plugin.HookRegistrar.
func (p Plugin) RegisterHooks(view *plugin.HookView) error {
	for _, h := range p.Request {
		if err := view.Request.Register(hookName(h), h); err != nil {
			return err
		}
	}
	for _, h := range p.Response {
		if err := view.Response.Register(hookName(h), h); err != nil {
			return err
		}
	}
	for _, h := range p.Error {
		if err := view.Error.Register(hookName(h), h); err != nil {
			return err
		}
	}
	return nil
}

// Std returns the default hook set: outermost timing pair plus request
// tracing.
func Std() Plugin {
	return Plugin{
		Request:  []core.RequestHook{TimingStart{Prio: 0}, Trace{Prio: 10}},
		Response: []core.ResponseHook{TimingEnd{Prio: 0}},
	}
}

func hookName(h any) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
