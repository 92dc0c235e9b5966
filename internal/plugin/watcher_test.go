package plugin_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/protogate/protogate/internal/plugin"
	"github.com/protogate/protogate/internal/registry"
)

func TestWatcher_HotLoadsNewManifest(t *testing.T) {
	dir := t.TempDir()

	catalog := plugin.NewCatalog()
	catalog.Add("ep/late", func() (any, error) { return adapterPlugin{adapterName: "late"}, nil })

	set := registry.NewSet()
	loader := plugin.NewLoader(set, catalog, dir)
	_, err := loader.Discover()
	require.NoError(t, err)

	watcher, err := plugin.NewWatcher(loader)
	require.NoError(t, err)
	defer watcher.Close()

	// Install a plugin after the watcher started.
	writeManifest(t, dir, "late.plugin.yaml", "name: late\nentrypoint: ep/late\n")

	require.Eventually(t, func() bool {
		_, err := set.Adapters.Get("late")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond, "watcher should load the new plugin")
}

func TestWatcher_ReappliesChangedManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "alpha.plugin.yaml", "name: alpha\nentrypoint: ep/alpha\nversion: 1.0.0\n")

	var builds atomic.Int32
	catalog := plugin.NewCatalog()
	catalog.Add("ep/alpha", func() (any, error) {
		builds.Add(1)
		return adapterPlugin{adapterName: "alpha"}, nil
	})

	set := registry.NewSet()
	loader := plugin.NewLoader(set, catalog, dir)
	_, err := loader.Discover()
	require.NoError(t, err)
	require.Len(t, loader.LoadAll().Loaded, 1)
	require.Equal(t, int32(1), builds.Load())

	watcher, err := plugin.NewWatcher(loader)
	require.NoError(t, err)
	defer watcher.Close()

	// An upgrade rewrites the manifest of the already-loaded plugin.
	writeManifest(t, dir, "alpha.plugin.yaml", "name: alpha\nentrypoint: ep/alpha\nversion: 1.1.0\n")

	require.Eventually(t, func() bool {
		return builds.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond, "a changed manifest must re-apply the loaded plugin")
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	loader := plugin.NewLoader(registry.NewSet(), plugin.NewCatalog(), t.TempDir())

	watcher, err := plugin.NewWatcher(loader)
	require.NoError(t, err)

	require.NoError(t, watcher.Close())
	require.NoError(t, watcher.Close())
}
