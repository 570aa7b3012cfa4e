package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/registry"
)

// callLog records hook invocations as "plugin:hook".
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(plugin, hook string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, plugin+":"+hook)
}

func (l *callLog) count(plugin, hook string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == plugin+":"+hook {
			n++
		}
	}
	return n
}

// recorder implements every optional hook. Unset funcs are no-ops that
// report no result.
type recorder struct {
	Base
	name string
	log  *callLog

	initErr      error
	initPanic    bool
	initHook     func()
	onLoadErr    error
	onEnableErr  error
	onDisableErr error
	unloadErr    error

	transform func(string, Source) (string, bool, error)
	voiceIn   func([]byte) (string, bool, error)
	voiceOut  func(string) (string, bool, error)
	dashboard func() (Metrics, error)
	sent      func(string) error
	emotion   func(string, float64) error
	memory    func(string, string) error
}

func (r *recorder) Initialize(context.Context) error {
	r.log.add(r.name, HookInitialize)
	if r.initHook != nil {
		r.initHook()
	}
	if r.initPanic {
		panic("initialize exploded")
	}
	return r.initErr
}

func (r *recorder) Unload(context.Context) error {
	r.log.add(r.name, HookUnload)
	return r.unloadErr
}

func (r *recorder) OnLoad(context.Context) error {
	r.log.add(r.name, HookOnLoad)
	return r.onLoadErr
}

func (r *recorder) OnEnable(context.Context) error {
	r.log.add(r.name, HookOnEnable)
	return r.onEnableErr
}

func (r *recorder) OnDisable(context.Context) error {
	r.log.add(r.name, HookOnDisable)
	return r.onDisableErr
}

func (r *recorder) OnMessageReceived(_ context.Context, msg string, src Source) (string, bool, error) {
	r.log.add(r.name, HookOnMessageReceived)
	if r.transform == nil {
		return "", false, nil
	}
	return r.transform(msg, src)
}

func (r *recorder) OnMessageSent(_ context.Context, msg string) error {
	r.log.add(r.name, HookOnMessageSent)
	if r.sent == nil {
		return nil
	}
	return r.sent(msg)
}

func (r *recorder) OnEmotionChanged(_ context.Context, emotion string, intensity float64) error {
	r.log.add(r.name, HookOnEmotionChanged)
	if r.emotion == nil {
		return nil
	}
	return r.emotion(emotion, intensity)
}

func (r *recorder) OnMemoryStored(_ context.Context, kind, content string) error {
	r.log.add(r.name, HookOnMemoryStored)
	if r.memory == nil {
		return nil
	}
	return r.memory(kind, content)
}

func (r *recorder) OnVoiceInput(_ context.Context, audio []byte) (string, bool, error) {
	r.log.add(r.name, HookOnVoiceInput)
	if r.voiceIn == nil {
		return "", false, nil
	}
	return r.voiceIn(audio)
}

func (r *recorder) OnVoiceOutput(_ context.Context, text string) (string, bool, error) {
	r.log.add(r.name, HookOnVoiceOutput)
	if r.voiceOut == nil {
		return "", false, nil
	}
	return r.voiceOut(text)
}

func (r *recorder) OnDashboardUpdate(context.Context) (Metrics, error) {
	r.log.add(r.name, HookOnDashboardUpdate)
	if r.dashboard == nil {
		return nil, nil
	}
	return r.dashboard()
}

// minimal implements only the required contract.
type minimal struct {
	unloaded atomic.Bool
}

func (m *minimal) Initialize(context.Context) error { return nil }
func (m *minimal) Unload(context.Context) error {
	m.unloaded.Store(true)
	return nil
}

// failingStore is a registry.Store whose writes can be switched off.
type failingStore struct {
	mu       sync.Mutex
	data     []byte
	failSave bool
}

func (s *failingStore) Read(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, registry.ErrNotExist
	}
	return s.data, nil
}

func (s *failingStore) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *failingStore) String() string { return "failing" }

func (s *failingStore) setFail(v bool) {
	s.mu.Lock()
	s.failSave = v
	s.mu.Unlock()
}

// harness wires a manager over temp directories.
type harness struct {
	t        *testing.T
	dir      string
	roots    []string
	catalog  *Catalog
	calls    *callLog
	logBuf   *bytes.Buffer
	log      *logrus.Logger
	store    registry.Store
	registry *registry.Registry
	metrics  *observability.Metrics
	manager  *Manager
}

func newHarness(t *testing.T, rootNames ...string) *harness {
	t.Helper()
	if len(rootNames) == 0 {
		rootNames = []string{"core"}
	}

	dir := t.TempDir()
	h := &harness{
		t:       t,
		dir:     dir,
		catalog: NewCatalog(),
		calls:   &callLog{},
		logBuf:  &bytes.Buffer{},
		metrics: observability.NewMetrics(nil),
	}
	for _, name := range rootNames {
		root := filepath.Join(dir, "plugins", name)
		require.NoError(t, os.MkdirAll(root, 0755))
		h.roots = append(h.roots, root)
	}

	h.log = logrus.New()
	h.log.SetOutput(&syncWriter{buf: h.logBuf})
	h.log.SetLevel(logrus.DebugLevel)
	h.log.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	h.store = registry.NewFileStore(filepath.Join(dir, "config", "plugin_config.json"))
	return h
}

// syncWriter serializes concurrent log writes for the shared buffer.
type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (h *harness) logs() string {
	return h.logBuf.String()
}

// builtin writes a builtin package and registers a recorder factory for it.
func (h *harness) builtin(root int, name string, configure func(*recorder)) {
	h.t.Helper()
	h.writeManifest(root, name, fmt.Sprintf("version: 1.0.0\napi_version: 1.0.0\nruntime: builtin\nfactory: %s\ndescription: %s plugin\n", name, name))
	if _, ok := h.catalog.Get(name); ok {
		return
	}
	require.NoError(h.t, h.catalog.Register(name, func() Plugin {
		r := &recorder{name: name, log: h.calls}
		if configure != nil {
			configure(r)
		}
		return r
	}))
}

func (h *harness) writeManifest(root int, name, manifest string) string {
	h.t.Helper()
	dir := filepath.Join(h.roots[root], name)
	require.NoError(h.t, os.MkdirAll(dir, 0755))
	require.NoError(h.t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644))
	return dir
}

func (h *harness) seedRegistry(doc string) {
	h.t.Helper()
	require.NoError(h.t, h.store.Write(context.Background(), []byte(doc)))
}

func (h *harness) start(opts ...Option) *Manager {
	h.t.Helper()

	if h.registry == nil {
		h.registry = registry.New(h.store, registry.WithLogger(h.log), registry.WithMetrics(h.metrics))
	}
	loader := NewLoader(h.roots, h.log)
	loader.RegisterRuntime(NewCatalogLoader(h.catalog))

	base := []Option{
		WithLogger(h.log),
		WithMetrics(h.metrics),
		WithDataRoot(filepath.Join(h.dir, "data")),
	}
	h.manager = NewManager(h.registry, loader, append(base, opts...)...)
	require.NoError(h.t, h.manager.Initialize(context.Background()))
	h.t.Cleanup(func() { h.manager.Shutdown(context.Background()) })
	return h.manager
}

func infoNames(infos []Info) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}
