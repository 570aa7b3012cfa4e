package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/config"
	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/plugins"
	"github.com/lumi-ai/lumi/pkg/plugins/builtin"
	"github.com/lumi-ai/lumi/pkg/plugins/lua"
	"github.com/lumi-ai/lumi/pkg/registry"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Env is what every command runs against.
type Env struct {
	Config *config.Config
	Log    *logrus.Logger
	Out    io.Writer

	// Catalog overrides the builtin factory catalog. Nil means a fresh
	// catalog holding the builtin extensions.
	Catalog *plugins.Catalog
}

// NewEnv creates an Env writing command output to stdout.
func NewEnv(cfg *config.Config) *Env {
	return &Env{
		Config: cfg,
		Log: observability.NewLogger(
			cfg.Observability.LogLevel,
			cfg.Observability.LogFormat,
			os.Stderr,
		),
		Out: os.Stdout,
	}
}

// Runtime is the assembled plugin runtime.
type Runtime struct {
	Registry   *registry.Registry
	Loader     *plugins.Loader
	Manager    *plugins.Manager
	Metrics    *observability.Metrics
	Prometheus *prometheus.Registry

	// FileStore is set for the file backend.
	FileStore *registry.FileStore

	closers []func() error
}

// Close releases the registry store.
func (r *Runtime) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openStore returns the configured registry backend.
func (e *Env) openStore(ctx context.Context) (registry.Store, func() error, error) {
	switch e.Config.Registry.Backend {
	case config.BackendRedis:
		store, err := registry.DialRedisStore(ctx, e.Config.Registry.RedisURL, e.Config.Registry.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendFile, "":
		return registry.NewFileStore(e.Config.RegistryFile()), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend: %s", e.Config.Registry.Backend)
	}
}

// OpenRegistry opens and loads the registry without touching extensions.
func (e *Env) OpenRegistry(ctx context.Context) (*registry.Registry, func() error, error) {
	store, closer, err := e.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if closer == nil {
		closer = func() error { return nil }
	}

	reg := registry.New(store, registry.WithLogger(e.Log))
	if err := reg.Load(ctx); err != nil {
		e.Log.WithError(err).Warn("Plugin registry unavailable, using defaults")
	}
	return reg, closer, nil
}

// NewRuntime wires the registry, loader and manager. Extensions are not
// loaded until Manager.Initialize.
func (e *Env) NewRuntime(ctx context.Context) (*Runtime, error) {
	store, closer, err := e.openStore(ctx)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Prometheus: prometheus.NewRegistry()}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	if fs, ok := store.(*registry.FileStore); ok {
		rt.FileStore = fs
	}

	rt.Metrics = observability.NewMetrics(rt.Prometheus)
	rt.Registry = registry.New(store,
		registry.WithLogger(e.Log),
		registry.WithMetrics(rt.Metrics),
	)

	catalog := e.Catalog
	if catalog == nil {
		catalog = plugins.NewCatalog()
		if err := builtin.Register(catalog); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to register builtin plugins: %w", err)
		}
	}

	rt.Loader = plugins.NewLoader(e.Config.Plugins.Paths, e.Log)
	rt.Loader.RegisterRuntime(plugins.NewCatalogLoader(catalog))
	rt.Loader.RegisterRuntime(lua.NewLoader(e.Log))

	rt.Manager = plugins.NewManager(rt.Registry, rt.Loader,
		plugins.WithLogger(e.Log),
		plugins.WithMetrics(rt.Metrics),
		plugins.WithDataRoot(e.Config.Plugins.DataDir),
		plugins.WithUnloadWorkers(e.Config.Plugins.UnloadWorkers),
		plugins.WithUnloadTimeout(e.Config.Server.ShutdownTimeout),
	)

	return rt, nil
}

func (e *Env) output() io.Writer {
	if e == nil || e.Out == nil {
		return os.Stdout
	}
	return e.Out
}
