// Package builtin wires the shipped adapters and hooks into a registry
// set or a plugin catalog.
//
// DESIGN: Built-ins go through the exact registrar contracts external
// plugins use, so nothing about them is special; they are simply
// pre-installed. Register() installs them directly (the common path);
// Catalog() exposes them as entry points for manifest-driven loading
// and for tests.
package builtin

import (
	"github.com/protogate/protogate/internal/adapters"
	"github.com/protogate/protogate/internal/hooks"
	"github.com/protogate/protogate/internal/plugin"
	"github.com/protogate/protogate/internal/registry"
)

// Register installs the built-in adapters and the standard hook set.
func Register(set *registry.Set) error {
	for _, r := range []plugin.AdapterRegistrar{
		adapters.HTTPPlugin{},
		adapters.SQLPlugin{},
		adapters.RedisPlugin{},
	} {
		if err := r.RegisterAdapters(set.Adapters); err != nil {
			return err
		}
	}

	return hooks.Std().RegisterHooks(&plugin.HookView{
		Request:  set.RequestHooks,
		Response: set.ResponseHooks,
		Error:    set.ErrorHooks,
	})
}

// Catalog returns the entry points for the built-in components, keyed
// the way a plugin manifest would name them.
func Catalog() *plugin.Catalog {
	c := plugin.NewCatalog()
	c.Add("builtin/http", func() (any, error) { return adapters.HTTPPlugin{}, nil })
	c.Add("builtin/sqlite", func() (any, error) { return adapters.SQLPlugin{}, nil })
	c.Add("builtin/redis", func() (any, error) { return adapters.RedisPlugin{}, nil })
	c.Add("builtin/hooks", func() (any, error) { return hooks.Std(), nil })
	return c
}
