package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/observability"
)

// DefaultDebounce coalesces the burst of events produced by one save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes to a registry file. The parent directory is
// watched so that atomic replacements (rename over the target) are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *logrus.Logger
}

// NewWatcher creates a watcher for the document of store.
func NewWatcher(store *FileStore, debounce time.Duration, log *logrus.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logrus.New()
	}
	return &Watcher{
		path:     filepath.Clean(store.Path()),
		debounce: debounce,
		log:      log,
	}
}

// Run watches until ctx is done, calling onChange once per burst of writes
// to the registry file. onChange runs on the watcher goroutine; a panic in
// it is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.WithField("path", w.path).Info("Watching plugin registry for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.WithField("op", event.Op.String()).Debug("Plugin registry modified")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.notify(ctx, onChange)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) notify(ctx context.Context, onChange func(context.Context)) {
	defer observability.RecoverPanic(w.log, "registry watcher")
	onChange(ctx)
}
