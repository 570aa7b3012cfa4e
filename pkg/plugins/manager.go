package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/async"
	"github.com/lumi-ai/lumi/pkg/events"
	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/registry"
)

// Hook names used in logs and metrics.
const (
	HookAttach            = "attach"
	HookInitialize        = "initialize"
	HookUnload            = "unload"
	HookOnLoad            = "on_load"
	HookOnEnable          = "on_enable"
	HookOnDisable         = "on_disable"
	HookOnMessageReceived = "on_message_received"
	HookOnMessageSent     = "on_message_sent"
	HookOnEmotionChanged  = "on_emotion_changed"
	HookOnMemoryStored    = "on_memory_stored"
	HookOnVoiceInput      = "on_voice_input"
	HookOnVoiceOutput     = "on_voice_output"
	HookOnDashboardUpdate = "on_dashboard_update"
)

// ErrAlreadyInitialized is returned by a second Initialize without Shutdown.
var ErrAlreadyInitialized = errors.New("plugin manager already initialized")

// Info is a snapshot of one loaded extension.
type Info struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Enabled     bool           `json:"enabled"`
	State       State          `json:"state"`
	Runtime     string         `json:"runtime"`
	Config      map[string]any `json:"config"`
}

type subscription struct {
	kind events.Kind
	id   events.SubscriptionID
}

// entry is one extension owned by the manager.
type entry struct {
	name   string
	pkg    *Package
	plugin Plugin
	host   *Host
	state  atomic.Int32
	subs   []subscription
}

func (e *entry) State() State {
	return State(e.state.Load())
}

func (e *entry) setState(s State) {
	e.state.Store(int32(s))
}

func (e *entry) active() bool {
	return e.State() == StateEnabled
}

// Manager discovers extensions, drives their lifecycle and dispatches host
// events to them. All methods are safe for concurrent use.
type Manager struct {
	registry      *registry.Registry
	loader        *Loader
	log           *logrus.Logger
	metrics       *observability.Metrics
	dataRoot      string
	unloadWorkers int
	unloadTimeout time.Duration

	bus    *events.Bus
	notify *events.Bus

	// adminMu serializes lifecycle and administrative operations.
	adminMu     sync.Mutex
	initialized bool

	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics sets the metrics sink for the manager and its loader.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithDataRoot sets the root of the per-extension data directories.
func WithDataRoot(dir string) Option {
	return func(m *Manager) {
		m.dataRoot = dir
	}
}

// WithUnloadWorkers sets how many extensions are unloaded concurrently.
func WithUnloadWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.unloadWorkers = n
		}
	}
}

// WithUnloadTimeout bounds each Unload call during Shutdown.
func WithUnloadTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.unloadTimeout = d
		}
	}
}

// NewManager creates a manager. Nothing is loaded until Initialize.
func NewManager(reg *registry.Registry, loader *Loader, opts ...Option) *Manager {
	m := &Manager{
		registry:      reg,
		loader:        loader,
		log:           logrus.New(),
		dataRoot:      "data",
		unloadWorkers: 4,
		unloadTimeout: 30 * time.Second,
		entries:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.bus = events.NewBus(m.log)
	m.notify = events.NewBus(m.log)
	m.loader.SetMetrics(m.metrics)

	return m
}

// Registry returns the registry backing the manager.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Notifications returns the host-facing bus carrying plugin_loaded and
// plugin_unloaded with the extension name as the only argument.
func (m *Manager) Notifications() *events.Bus {
	return m.notify
}

// Initialize loads the registry, discovers extension packages and brings
// every admitted extension up. Individual extension failures are logged and
// never returned; the error is non-nil only when ctx ends early or the
// manager is already initialized.
func (m *Manager) Initialize(ctx context.Context) error {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	if m.initialized {
		return ErrAlreadyInitialized
	}
	m.initialized = true

	m.log.Info("Initializing plugin manager")

	if err := m.registry.Load(ctx); err != nil {
		m.log.WithError(err).Warn("Plugin registry unavailable, using defaults")
	}

	m.log.Infof("Searching for plugins in: %v", m.loader.Roots())
	for _, d := range m.loader.Discover(ctx, m.admit) {
		if d.Err != nil {
			continue
		}
		m.register(ctx, d)
	}

	for _, e := range m.snapshot() {
		if ctx.Err() != nil {
			m.discard(e)
			m.log.WithField("plugin", e.name).Warn("Initialization cancelled, plugin removed")
			continue
		}
		m.activate(ctx, e)
	}

	names := m.Names()
	m.metrics.SetPluginsLoaded(len(names))
	m.log.Infof("Plugin manager initialized with %d plugins: %v", len(names), names)

	return ctx.Err()
}

// admit vetoes only extensions the registry knows and has disabled; new
// names pass so they can be auto-enabled.
func (m *Manager) admit(name string) bool {
	return !m.registry.IsKnown(name) || m.registry.IsEnabled(name)
}

// register instantiates a discovered package, records it in the registry and
// adds it to the table in the loaded state.
func (m *Manager) register(ctx context.Context, d Discovery) {
	log := m.log.WithField("plugin", d.Name)

	plugin, err := instantiate(d.Factory)
	if err != nil {
		log.WithError(err).Error("Failed to instantiate plugin")
		m.metrics.RecordDiscoverySkip(ReasonInstantiate)
		return
	}

	if _, err := m.registry.Register(ctx, d.Name, d.Package.Manifest.DefaultConfig); err != nil {
		log.WithError(err).Warn("Failed to persist plugin registration")
	}

	settings := m.registry.Config(d.Name).Settings
	if err := d.Package.ValidateSettings(settings); err != nil {
		log.WithError(err).Warn("Persisted settings do not match the plugin config schema")
	}

	e := &entry{
		name:   d.Name,
		pkg:    d.Package,
		plugin: plugin,
		host:   NewHost(d.Name, m.dataRoot, settings, m.log),
	}
	e.setState(StateDiscovered)

	if ha, ok := plugin.(HostAware); ok {
		if err := m.call(ctx, e, HookAttach, func(context.Context) error {
			ha.Attach(e.host)
			return nil
		}); err != nil {
			m.metrics.RecordDiscoverySkip(ReasonInstantiate)
			return
		}
	}

	m.mu.Lock()
	m.entries[e.name] = e
	m.order = append(m.order, e)
	m.mu.Unlock()

	m.subscribe(e)
	e.setState(StateLoaded)

	log.WithField("version", d.Package.Manifest.Version).Info("Loaded plugin")
}

func instantiate(factory Factory) (plugin Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
	}()

	plugin = factory()
	if plugin == nil {
		return nil, fmt.Errorf("factory returned nil plugin")
	}
	return plugin, nil
}

// activate runs Initialize, OnLoad and, when the registry says so, OnEnable.
// Any failure discards the extension without calling Unload.
func (m *Manager) activate(ctx context.Context, e *entry) {
	log := m.log.WithField("plugin", e.name)
	log.Info("Initializing plugin")

	err := m.call(ctx, e, HookInitialize, e.plugin.Initialize)
	if err == nil {
		e.setState(StateInitialized)
		if l, ok := e.plugin.(Loadable); ok {
			err = m.call(ctx, e, HookOnLoad, l.OnLoad)
		}
	}

	enabled := m.registry.IsEnabled(e.name)
	if err == nil && enabled {
		if en, ok := e.plugin.(Enableable); ok {
			err = m.call(ctx, e, HookOnEnable, en.OnEnable)
		}
	}

	if err != nil {
		m.discard(e)
		m.metrics.RecordDiscoverySkip(ReasonInitialize)
		log.Error("Failed to initialize plugin, removed")
		return
	}

	if enabled {
		e.setState(StateEnabled)
		log.Info("Initialized and enabled plugin")
	} else {
		e.setState(StateDisabled)
		log.Info("Initialized plugin (disabled)")
	}

	m.notify.Emit(ctx, events.PluginLoaded, e.name)
}

// discard removes e from the table and the bus.
func (m *Manager) discard(e *entry) {
	for _, sub := range e.subs {
		m.bus.Unsubscribe(sub.kind, sub.id)
	}
	e.subs = nil

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, e.name)
	order := make([]*entry, 0, len(m.order))
	for _, other := range m.order {
		if other != e {
			order = append(order, other)
		}
	}
	m.order = order
}

// snapshot copies the ordered table so hooks run outside the lock.
func (m *Manager) snapshot() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*entry(nil), m.order...)
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return e, nil
}

// Names returns the loaded extension names in table order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	for i, e := range m.order {
		names[i] = e.name
	}
	return names
}

// State returns the lifecycle state of a loaded extension.
func (m *Manager) State(name string) (State, bool) {
	e, err := m.lookup(name)
	if err != nil {
		return 0, false
	}
	return e.State(), true
}

// EnablePlugin enables a loaded extension. It is a no-op when the extension
// is already enabled. OnEnable runs before the registry is updated; if
// either fails the state is unchanged and the error returned.
func (m *Manager) EnablePlugin(ctx context.Context, name string) error {
	return m.setEnabled(ctx, name, true)
}

// DisablePlugin disables a loaded extension. See EnablePlugin.
func (m *Manager) DisablePlugin(ctx context.Context, name string) error {
	return m.setEnabled(ctx, name, false)
}

func (m *Manager) setEnabled(ctx context.Context, name string, enable bool) error {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	e, err := m.lookup(name)
	if err != nil {
		m.log.WithField("plugin", name).Warn("Cannot change plugin state: not found")
		return err
	}

	return m.transition(ctx, e, enable, true)
}

// transition moves e to enabled or disabled. Callers hold adminMu.
func (m *Manager) transition(ctx context.Context, e *entry, enable, persist bool) error {
	log := m.log.WithField("plugin", e.name)

	target := StateDisabled
	if enable {
		target = StateEnabled
	}
	if e.State() == target {
		log.Infof("Plugin already %s", target)
		return nil
	}

	if enable {
		if h, ok := e.plugin.(Enableable); ok {
			if err := m.call(ctx, e, HookOnEnable, h.OnEnable); err != nil {
				return err
			}
		}
	} else {
		if h, ok := e.plugin.(Disableable); ok {
			if err := m.call(ctx, e, HookOnDisable, h.OnDisable); err != nil {
				return err
			}
		}
	}

	if persist {
		var err error
		if enable {
			_, err = m.registry.Enable(ctx, e.name)
		} else {
			_, err = m.registry.Disable(ctx, e.name)
		}
		if err != nil {
			log.WithError(err).Error("Failed to persist plugin state")
			return err
		}
	}

	e.setState(target)
	log.Infof("Plugin %s", target)
	return nil
}

// UpdatePluginConfig merges settings into the extension's persisted settings
// after validating the result against the manifest config schema.
func (m *Manager) UpdatePluginConfig(ctx context.Context, name string, settings map[string]any) error {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	e, err := m.lookup(name)
	if err != nil {
		return err
	}

	merged := m.registry.Config(name).Settings
	for k, v := range settings {
		merged[k] = v
	}
	if err := e.pkg.ValidateSettings(merged); err != nil {
		return err
	}

	if err := m.registry.UpdateSettings(ctx, name, settings); err != nil {
		return err
	}
	e.host.setConfig(m.registry.Config(name).Settings)

	return nil
}

// SyncRegistry re-reads the registry and applies enable/disable changes and
// settings made outside this process to loaded extensions. A loaded
// extension whose entry was removed is registered again under the
// auto-enable policy. Extension code is never reloaded.
func (m *Manager) SyncRegistry(ctx context.Context) error {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	if err := m.registry.Reload(ctx); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	for _, e := range m.snapshot() {
		state := e.State()
		if state != StateEnabled && state != StateDisabled {
			continue
		}

		if !m.registry.IsKnown(e.name) {
			m.log.WithField("plugin", e.name).Warn("Registry entry removed for loaded plugin, registering it again")
			if _, err := m.registry.Register(ctx, e.name, e.pkg.Manifest.DefaultConfig); err != nil {
				m.log.WithField("plugin", e.name).WithError(err).Warn("Failed to persist plugin registration")
			}
		}

		e.host.setConfig(m.registry.Config(e.name).Settings)

		want := m.registry.IsEnabled(e.name)
		if want == (state == StateEnabled) {
			continue
		}
		if err := m.transition(ctx, e, want, false); err != nil {
			m.log.WithField("plugin", e.name).WithError(err).Warn("Failed to apply registry change")
		}
	}

	return nil
}

// PluginInfo returns a snapshot of every loaded extension in table order.
func (m *Manager) PluginInfo() []Info {
	entries := m.snapshot()
	infos := make([]Info, 0, len(entries))

	for _, e := range entries {
		state := e.State()
		infos = append(infos, Info{
			Name:        e.name,
			Version:     e.pkg.Manifest.Version,
			Description: e.pkg.Manifest.Description,
			Enabled:     state == StateEnabled,
			State:       state,
			Runtime:     e.pkg.Manifest.Runtime,
			Config:      m.registry.Config(e.name).Settings,
		})
	}

	return infos
}

// Shutdown unloads every extension concurrently, emits plugin_unloaded for
// each and clears the table. Unload failures are logged and swallowed.
func (m *Manager) Shutdown(ctx context.Context) {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	m.log.Info("Shutting down plugin manager")

	entries := m.snapshot()
	if len(entries) > 0 {
		errs := async.Batch(context.WithoutCancel(ctx), entries, m.unloadWorkers, "plugin unload", m.unloadTimeout,
			func(ctx context.Context, e *entry) error {
				err := m.call(ctx, e, HookUnload, e.plugin.Unload)
				e.setState(StateUnloaded)
				m.notify.Emit(ctx, events.PluginUnloaded, e.name)
				if err == nil {
					m.log.WithField("plugin", e.name).Info("Unloaded plugin")
				}
				return err
			})
		if len(errs) > 0 {
			m.log.Warnf("%d plugins failed to unload cleanly", len(errs))
		}
	}

	m.bus.ClearHandlers()

	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.order = nil
	m.mu.Unlock()

	m.initialized = false
	m.metrics.SetPluginsLoaded(0)
	m.log.Info("Plugin manager shutdown complete")
}

// call runs one extension hook with panic recovery, logging and metrics.
func (m *Manager) call(ctx context.Context, e *entry, hook string, fn func(context.Context) error) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
		m.metrics.RecordHook(e.name, hook, time.Since(start), err)
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"plugin": e.name,
				"hook":   hook,
			}).WithError(err).Error("Plugin hook failed")
			err = &HookError{Plugin: e.name, Hook: hook, Err: err}
		}
	}()

	return fn(ctx)
}
