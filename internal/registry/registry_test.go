package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/registry"
)

type nopAdapter struct{ name string }

func (a nopAdapter) Name() string { return a.name }
func (a nopAdapter) Request(context.Context, *core.Request, core.Options) (*core.Response, error) {
	return &core.Response{Success: true}, nil
}
func (a nopAdapter) Close() error { return nil }

func factory(name string) registry.AdapterFactory {
	return func(target string, opts core.Options) (core.Adapter, error) {
		return nopAdapter{name: name}, nil
	}
}

// =============================================================================
// UNIQUENESS
// =============================================================================

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := registry.New[registry.AdapterFactory]("adapter")

	require.NoError(t, r.Register("oracle_db", factory("first")))
	err := r.Register("oracle_db", factory("second"))

	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)

	// The first registration must survive the collision.
	f, err := r.Get("oracle_db")
	require.NoError(t, err)
	adapter, err := f("", core.Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", adapter.Name())
}

func TestRegistry_NamesCaseNormalized(t *testing.T) {
	r := registry.New[registry.AdapterFactory]("adapter")

	require.NoError(t, r.Register("Oracle_DB", factory("first")))

	_, err := r.Get("oracle_db")
	assert.NoError(t, err)

	err = r.Register("ORACLE_DB", factory("second"))
	assert.ErrorIs(t, err, registry.ErrAlreadyRegistered)
}

func TestRegistry_EmptyNameRejected(t *testing.T) {
	r := registry.New[registry.AdapterFactory]("adapter")
	assert.Error(t, r.Register("  ", factory("x")))
}

// =============================================================================
// LOOKUP
// =============================================================================

func TestRegistry_GetMissing(t *testing.T) {
	r := registry.New[registry.AdapterFactory]("adapter")

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

// =============================================================================
// LISTING
// =============================================================================

func TestRegistry_NamesInsertionOrder(t *testing.T) {
	r := registry.New[registry.AdapterFactory]("adapter")

	require.NoError(t, r.Register("zeta", factory("z")))
	require.NoError(t, r.Register("alpha", factory("a")))
	require.NoError(t, r.Register("mike", factory("m")))

	assert.Equal(t, []string{"zeta", "alpha", "mike"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

// =============================================================================
// SET
// =============================================================================

func TestNewSet_AllKindsEmpty(t *testing.T) {
	set := registry.NewSet()

	assert.Empty(t, set.Adapters.Names())
	assert.Empty(t, set.AuthProviders.Names())
	assert.Empty(t, set.RequestHooks.Names())
	assert.Empty(t, set.ResponseHooks.Names())
	assert.Empty(t, set.ErrorHooks.Names())
}

func TestSet_KindsAreIndependent(t *testing.T) {
	set := registry.NewSet()

	require.NoError(t, set.Adapters.Register("shared", factory("a")))

	// The same name is free in every other kind.
	_, err := set.AuthProviders.Get("shared")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
