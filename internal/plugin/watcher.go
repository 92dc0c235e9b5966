package plugin

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher hot-reloads plugins when manifests appear or change in the
// watched directories. All registry mutation still funnels through the
// loader's writer lock, so readers never observe a half-registered
// plugin.
type Watcher struct {
	loader *Loader
	fs     *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher starts watching the loader's plugin directories.
// Directories that do not exist yet are skipped; create them before
// starting the watcher if hot installs should be picked up.
func NewWatcher(loader *Loader) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range loader.dirs {
		if err := fs.Add(dir); err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("not watching plugin dir")
		}
	}

	w := &Watcher{loader: loader, fs: fs, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !manifestEvent(event) {
				continue
			}
			log.Info().Str("path", event.Name).Str("op", event.Op.String()).Msg("plugin manifest changed")
			if _, err := w.loader.Discover(); err != nil {
				log.Error().Err(err).Msg("plugin rediscovery failed")
				continue
			}
			summary := w.loader.LoadAll()
			for _, f := range summary.Failed {
				log.Error().Err(f.Err).Str("plugin", f.Name).Msg("hot load failed")
			}
			// LoadAll skips loaded records, so a change to an already
			// installed plugin's manifest re-applies through Reload.
			if m, err := ParseManifest(event.Name); err == nil {
				if err := w.loader.Reload(m.Name); err != nil {
					log.Error().Err(err).Str("plugin", m.Name).Msg("hot reload failed")
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("plugin watcher error")
		}
	}
}

// manifestEvent reports whether the event concerns a plugin manifest.
func manifestEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return false
	}
	name := event.Name
	return strings.HasSuffix(name, "plugin.yaml")
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.fs.Close()
}
