// Package registry provides the name-keyed component collections the
// plugin loader populates and the Façade resolves against.
//
// DESIGN: One generic collection per capability kind, bundled into a
// Set owned by the process's composition root. No package-level
// globals: tests build a fresh Set, the loader receives one explicitly.
// Names are case-normalized (lowercase) and unique within a kind;
// a collision is a distinguishable error, never a silent overwrite.
//
// The Set is populated during the plugin load phase and read-mostly
// afterwards. All mutation is serialized behind each collection's
// mutex, so hot reloads see no partial registration.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/protogate/protogate/internal/core"
)

var (
	// ErrAlreadyRegistered reports a name collision within a kind.
	// The first registration wins; the second is rejected.
	ErrAlreadyRegistered = errors.New("component already registered")

	// ErrNotFound reports a lookup for a name absent from a kind.
	ErrNotFound = errors.New("component not found")
)

// AdapterFactory builds a live adapter for a target. The factory is
// what gets registered; construction is deferred until a Façade asks
// for the adapter by name.
type AdapterFactory func(target string, opts core.Options) (core.Adapter, error)

// Registry is an insertion-ordered, name-keyed collection of one
// component kind. The zero value is not usable; call New.
type Registry[T any] struct {
	kind    string
	mu      sync.RWMutex
	byName  map[string]T
	ordered []string
}

// New creates an empty collection for the named kind. The kind string
// only appears in error messages and diagnostics.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:   kind,
		byName: make(map[string]T),
	}
}

// Register adds a component under name. Names are lowercased before
// storage. Registering an existing name returns ErrAlreadyRegistered
// and leaves the first registration in place.
func (r *Registry[T]) Register(name string, component T) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("%s: empty component name", r.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("%s %q: %w", r.kind, key, ErrAlreadyRegistered)
	}
	r.byName[key] = component
	r.ordered = append(r.ordered, key)
	return nil
}

// Get returns the component registered under name, or ErrNotFound.
func (r *Registry[T]) Get(name string) (T, error) {
	key := normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	component, exists := r.byName[key]
	if !exists {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, key, ErrNotFound)
	}
	return component, nil
}

// Names returns the registered names in insertion order, for
// deterministic diagnostics.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ordered...)
}

// Len returns the number of registered components.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Set bundles the five capability collections. One Set per process
// under normal operation; tests create as many as they like.
type Set struct {
	Adapters      *Registry[AdapterFactory]
	AuthProviders *Registry[core.AuthProvider]
	RequestHooks  *Registry[core.RequestHook]
	ResponseHooks *Registry[core.ResponseHook]
	ErrorHooks    *Registry[core.ErrorHook]
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		Adapters:      New[AdapterFactory]("adapter"),
		AuthProviders: New[core.AuthProvider]("auth provider"),
		RequestHooks:  New[core.RequestHook]("request hook"),
		ResponseHooks: New[core.ResponseHook]("response hook"),
		ErrorHooks:    New[core.ErrorHook]("error hook"),
	}
}
