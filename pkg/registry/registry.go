package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/observability"
)

// ErrUnknownPlugin is returned when an operation names an extension without
// a registry entry.
var ErrUnknownPlugin = errors.New("plugin not registered")

// Registry is the in-memory mirror of the persisted registry document. It is
// safe for concurrent use; writes are serialized and persisted before they
// become visible.
type Registry struct {
	store   Store
	log     *logrus.Logger
	metrics *observability.Metrics

	mu  sync.RWMutex
	doc Document
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates a Registry backed by store. It holds the default document until
// Load is called.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		log:   logrus.New(),
		doc:   defaultDocument(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the backing store.
func (r *Registry) Store() Store {
	return r.store
}

// Load reads the persisted document. When it is missing, unreadable or
// corrupt the default document is installed and persisted; the underlying
// error is returned for logging only and the Registry stays usable.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.store.Read(ctx)
	if err == nil {
		var doc Document
		doc, err = decodeDocument(data)
		if err == nil {
			r.doc = doc
			r.log.WithField("store", r.store.String()).Infof("Loaded plugin registry: %d plugins configured", len(doc.Plugins))
			return nil
		}
	}

	r.doc = defaultDocument()

	if errors.Is(err, ErrNotExist) {
		if saveErr := r.saveLocked(ctx); saveErr != nil {
			return saveErr
		}
		r.log.WithField("store", r.store.String()).Info("Created default plugin registry")
		return nil
	}

	r.log.WithError(err).WithField("store", r.store.String()).Error("Error loading plugin registry, falling back to defaults")
	if saveErr := r.saveLocked(ctx); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	return err
}

// Reload re-reads the persisted document. Unlike Load it never falls back
// to defaults: on error the in-memory document is left untouched.
func (r *Registry) Reload(ctx context.Context) error {
	data, err := r.store.Read(ctx)
	if err != nil {
		return err
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()

	return nil
}

// Save persists the full document.
func (r *Registry) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx)
}

func (r *Registry) saveLocked(ctx context.Context) error {
	data, err := r.doc.encode()
	if err == nil {
		err = r.store.Write(ctx, data)
	}
	r.metrics.RecordRegistrySave(err)

	if err != nil {
		r.log.WithError(err).WithField("store", r.store.String()).Error("Error saving plugin registry")
		return fmt.Errorf("save registry to %s: %w", r.store, err)
	}

	r.log.WithField("store", r.store.String()).Debug("Saved plugin registry")
	return nil
}

// Register makes sure name has an entry. A new name is auto-enabled with
// defaults as its settings and persisted (created is true). For an existing
// entry the enabled flag is left alone and only missing default keys are
// back-filled. The entry stays in memory even if persisting fails.
func (r *Registry) Register(ctx context.Context, name string, defaults map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.doc.Plugins[name]
	if !ok {
		r.doc.Plugins[name] = Entry{Enabled: true, Settings: CloneSettings(defaults)}
		r.doc.EnabledPlugins = append(removeName(r.doc.EnabledPlugins, name), name)
		r.log.WithField("plugin", name).Info("Auto-enabled new plugin")
		return true, r.saveLocked(ctx)
	}

	filled := 0
	for k, v := range defaults {
		if _, exists := entry.Settings[k]; !exists {
			entry.Settings[k] = cloneValue(v)
			filled++
		}
	}
	r.log.WithField("plugin", name).Debug("Registered existing plugin")

	if filled == 0 {
		return false, nil
	}
	return false, r.saveLocked(ctx)
}

// IsKnown reports whether name has an entry.
func (r *Registry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.doc.Plugins[name]
	return ok
}

// IsEnabled reports whether name is enabled. Unknown names are disabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Plugins[name].Enabled
}

// Enable enables name and persists the change. changed is false when the
// entry was already enabled. On a failed save the change is rolled back.
func (r *Registry) Enable(ctx context.Context, name string) (bool, error) {
	return r.setEnabled(ctx, name, true)
}

// Disable disables name and persists the change. See Enable.
func (r *Registry) Disable(ctx context.Context, name string) (bool, error) {
	return r.setEnabled(ctx, name, false)
}

func (r *Registry) setEnabled(ctx context.Context, name string, enabled bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.doc.Plugins[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if entry.Enabled == enabled {
		return false, nil
	}

	prevList := r.doc.EnabledPlugins

	entry.Enabled = enabled
	r.doc.Plugins[name] = entry
	if enabled {
		r.doc.EnabledPlugins = append(removeName(prevList, name), name)
	} else {
		r.doc.EnabledPlugins = removeName(prevList, name)
	}

	if err := r.saveLocked(ctx); err != nil {
		entry.Enabled = !enabled
		r.doc.Plugins[name] = entry
		r.doc.EnabledPlugins = prevList
		return false, err
	}

	return true, nil
}

// Config returns a copy of the entry for name, or a disabled entry with empty
// settings when name is unknown.
func (r *Registry) Config(name string) Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.doc.Plugins[name]
	if !ok {
		return Entry{Enabled: false, Settings: map[string]any{}}
	}
	return entry.clone()
}

// UpdateSettings merges settings into the entry for name and persists it.
// On a failed save the previous settings are restored.
func (r *Registry) UpdateSettings(ctx context.Context, name string, settings map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.doc.Plugins[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	prev := entry.Settings
	merged := CloneSettings(prev)
	for k, v := range settings {
		merged[k] = cloneValue(v)
	}
	entry.Settings = merged
	r.doc.Plugins[name] = entry

	if err := r.saveLocked(ctx); err != nil {
		entry.Settings = prev
		r.doc.Plugins[name] = entry
		return err
	}

	r.log.WithField("plugin", name).Info("Updated plugin settings")
	return nil
}

// EnabledNames returns the enabled names in list order.
func (r *Registry) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.doc.EnabledPlugins...)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.doc.Plugins))
	for name := range r.doc.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the document.
func (r *Registry) Snapshot() Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.clone()
}

// Ping checks that the store is reachable. An empty store is healthy.
func (r *Registry) Ping(ctx context.Context) error {
	_, err := r.store.Read(ctx)
	if err != nil && !errors.Is(err, ErrNotExist) {
		return err
	}
	return nil
}
