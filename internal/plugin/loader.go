package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/registry"
)

// State tracks a plugin record through its lifecycle. Transitions only
// move forward: discovered → loading → loaded | failed.
type State string

const (
	StateDiscovered State = "discovered"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateFailed     State = "failed"
)

// Record is one discovered plugin.
type Record struct {
	// Name is the manifest identifier; the loaded-set is keyed by it.
	Name string

	// Source is the manifest path the record came from.
	Source string

	// Entrypoint is the Catalog builder name.
	Entrypoint string

	State  State
	Reason string // failure reason when State == StateFailed
}

// Loaded reports whether the record completed loading.
func (r *Record) Loaded() bool { return r.State == StateLoaded }

// Builder constructs a plugin value. The value is probed for the
// optional registration capabilities below.
type Builder func() (any, error)

// AdapterRegistrar is the optional adapter-registration entry point.
type AdapterRegistrar interface {
	RegisterAdapters(adapters *registry.Registry[registry.AdapterFactory]) error
}

// AuthRegistrar is the optional auth-provider-registration entry point.
type AuthRegistrar interface {
	RegisterAuthProviders(providers *registry.Registry[core.AuthProvider]) error
}

// HookView is the narrow slice of the Set a hook-registering plugin
// sees.
type HookView struct {
	Request  *registry.Registry[core.RequestHook]
	Response *registry.Registry[core.ResponseHook]
	Error    *registry.Registry[core.ErrorHook]
}

// HookRegistrar is the optional hook-registration entry point.
type HookRegistrar interface {
	RegisterHooks(hooks *HookView) error
}

// Catalog maps entry-point names to builders. It plays the role of the
// process's import table: built-in components pre-populate one, tests
// assemble their own.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{builders: make(map[string]Builder)}
}

// Add registers a builder. Last writer wins; catalogs are assembled by
// the composition root, not by competing plugins.
func (c *Catalog) Add(entrypoint string, b Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[entrypoint] = b
}

// Resolve returns the builder for an entry point.
func (c *Catalog) Resolve(entrypoint string) (Builder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.builders[entrypoint]
	return b, ok
}

// Failure pairs a plugin name with the error that broke its load.
type Failure struct {
	Name string
	Err  error
}

// Summary reports one LoadAll pass.
type Summary struct {
	Loaded []string
	Failed []Failure
}

// Loader discovers manifests and drives plugin registration into one
// registry.Set. All mutation happens behind a single writer lock so a
// hot reload never exposes partial registration.
type Loader struct {
	mu      sync.Mutex
	set     *registry.Set
	catalog *Catalog
	dirs    []string
	records map[string]*Record
	order   []string
}

// NewLoader creates a loader over the given plugin directories.
func NewLoader(set *registry.Set, catalog *Catalog, dirs ...string) *Loader {
	return &Loader{
		set:     set,
		catalog: catalog,
		dirs:    dirs,
		records: make(map[string]*Record),
	}
}

// Discover scans the plugin directories for manifests and returns the
// current records in discovery order. It runs no plugin code and is
// safe to call repeatedly: records already known (by name) keep their
// state, so a loaded plugin stays loaded.
func (l *Loader) Discover() ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan plugin dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				path = filepath.Join(path, "plugin.yaml")
				if _, err := os.Stat(path); err != nil {
					continue
				}
			} else if entry.Name() != "plugin.yaml" && !strings.HasSuffix(entry.Name(), ".plugin.yaml") {
				continue
			}
			l.noteManifest(path)
		}
	}
	return l.snapshot(), nil
}

// noteManifest parses one manifest and records it (lock held).
func (l *Loader) noteManifest(path string) {
	m, err := ParseManifest(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("skipping unreadable plugin manifest")
		return
	}
	if _, known := l.records[m.Name]; known {
		return
	}
	l.records[m.Name] = &Record{
		Name:       m.Name,
		Source:     path,
		Entrypoint: m.Entrypoint,
		State:      StateDiscovered,
	}
	l.order = append(l.order, m.Name)
	log.Debug().Str("plugin", m.Name).Str("source", path).Msg("discovered plugin")
}

// Records returns the known records in discovery order.
func (l *Loader) Records() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Loader) snapshot() []*Record {
	out := make([]*Record, 0, len(l.order))
	for _, name := range l.order {
		r := *l.records[name]
		out = append(out, &r)
	}
	return out
}

// Load loads one discovered plugin by name. Loading an already-loaded
// plugin is a no-op: its registration callbacks do not run again, so
// re-running the cycle cannot double-register.
func (l *Loader) Load(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[name]
	if !ok {
		return fmt.Errorf("plugin %q: not discovered", name)
	}
	return l.loadLocked(rec)
}

// LoadAll loads every discovered record not yet loaded. One plugin's
// failure never aborts the others: failures are collected into the
// summary, not returned as an error, because a broken third-party
// extension must not disable the whole system.
func (l *Loader) LoadAll() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var summary Summary
	for _, name := range l.order {
		rec := l.records[name]
		if rec.Loaded() {
			continue
		}
		if err := l.loadLocked(rec); err != nil {
			summary.Failed = append(summary.Failed, Failure{Name: name, Err: err})
			continue
		}
		summary.Loaded = append(summary.Loaded, name)
	}
	return summary
}

// loadLocked runs one record through loading → loaded|failed.
func (l *Loader) loadLocked(rec *Record) error {
	if rec.Loaded() {
		return nil
	}
	rec.State = StateLoading

	builder, ok := l.catalog.Resolve(rec.Entrypoint)
	if !ok {
		return l.fail(rec, fmt.Errorf("entrypoint %q not in catalog", rec.Entrypoint))
	}

	value, err := builder()
	if err != nil {
		return l.fail(rec, fmt.Errorf("build: %w", err))
	}

	if err := l.registerLocked(value, false); err != nil {
		return l.fail(rec, err)
	}

	rec.State = StateLoaded
	rec.Reason = ""
	log.Info().Str("plugin", rec.Name).Msg("plugin loaded")
	return nil
}

func (l *Loader) fail(rec *Record, err error) error {
	rec.State = StateFailed
	rec.Reason = err.Error()
	log.Error().Err(err).Str("plugin", rec.Name).Msg("plugin load failed")
	return fmt.Errorf("plugin %q: %w", rec.Name, err)
}

// registerLocked probes the plugin value for the recognized
// registration capabilities and invokes the ones present. A value that
// implements none is accepted: unknown future capabilities are not an
// error. When suppressDup is set (re-load of an already-loaded record),
// name collisions from re-registration are swallowed, and only those.
func (l *Loader) registerLocked(value any, suppressDup bool) error {
	if r, ok := value.(AdapterRegistrar); ok {
		if err := r.RegisterAdapters(l.set.Adapters); err != nil && !suppressed(err, suppressDup) {
			return fmt.Errorf("register adapters: %w", err)
		}
	}
	if r, ok := value.(AuthRegistrar); ok {
		if err := r.RegisterAuthProviders(l.set.AuthProviders); err != nil && !suppressed(err, suppressDup) {
			return fmt.Errorf("register auth providers: %w", err)
		}
	}
	if r, ok := value.(HookRegistrar); ok {
		view := &HookView{
			Request:  l.set.RequestHooks,
			Response: l.set.ResponseHooks,
			Error:    l.set.ErrorHooks,
		}
		if err := r.RegisterHooks(view); err != nil && !suppressed(err, suppressDup) {
			return fmt.Errorf("register hooks: %w", err)
		}
	}
	return nil
}

// Reload re-runs an already-loaded plugin's registration, suppressing
// the AlreadyRegistered collisions its earlier load produced. Used by
// the watcher after a manifest change.
func (l *Loader) Reload(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[name]
	if !ok {
		return fmt.Errorf("plugin %q: not discovered", name)
	}
	if !rec.Loaded() {
		return l.loadLocked(rec)
	}

	builder, ok := l.catalog.Resolve(rec.Entrypoint)
	if !ok {
		return fmt.Errorf("plugin %q: entrypoint %q not in catalog", rec.Name, rec.Entrypoint)
	}
	value, err := builder()
	if err != nil {
		return fmt.Errorf("plugin %q: build: %w", rec.Name, err)
	}
	return l.registerLocked(value, true)
}

func suppressed(err error, suppressDup bool) bool {
	return suppressDup && errors.Is(err, registry.ErrAlreadyRegistered)
}
