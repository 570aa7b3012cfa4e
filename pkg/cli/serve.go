package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumi-ai/lumi/pkg/api"
	"github.com/lumi-ai/lumi/pkg/async"
	"github.com/lumi-ai/lumi/pkg/dashboard"
	"github.com/lumi-ai/lumi/pkg/observability"
	"github.com/lumi-ai/lumi/pkg/registry"
)

// syncTimeout bounds one registry sync triggered by the watcher.
const syncTimeout = 30 * time.Second

func newServeCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "serve",
		Description: "Run the plugin runtime with the admin API",
		Usage:       "serve [-addr host:port]",
		env:         env,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		return runServe(ctx, cmd, args)
	}
	return cmd
}

func runServe(ctx context.Context, cmd *Command, args []string) error {
	flags := cmd.newFlagSet()
	addr := flags.String("addr", cmd.env.Config.Server.Addr, "Admin API listen address")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *addr, err)
	}

	return Serve(ctx, cmd.env, ln)
}

// Serve loads the extensions and serves the admin API on ln until ctx is
// done or a shutdown signal arrives. Extensions are unloaded before it
// returns.
func Serve(ctx context.Context, env *Env, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := env.Log
	async.SetLogger(log)

	rt, err := env.NewRuntime(ctx)
	if err != nil {
		ln.Close()
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Initialize(ctx); err != nil {
		ln.Close()
		return err
	}

	collector, err := dashboard.NewCollector(rt.Manager, env.Config.Plugins.DashboardSchedule, log)
	if err != nil {
		ln.Close()
		rt.Manager.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	health := observability.NewHealthChecker(Version, observability.DependencyCheck{
		Name:     "registry",
		Required: true,
		Check:    rt.Registry.Ping,
	})

	opts := []api.Option{
		api.WithDashboard(collector),
		api.WithHealth(health),
		api.WithLogger(log),
	}
	if env.Config.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetricsHandler(observability.Handler(rt.Prometheus)))
	}

	srv := &http.Server{
		Handler:      api.NewServer(rt.Manager, opts...),
		ReadTimeout:  env.Config.Server.ReadTimeout,
		WriteTimeout: env.Config.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(log, srv, env.Config.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		rt.Manager.Shutdown(ctx)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", ln.Addr().String()).Info("Admin API listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return collector.Run(gctx)
	})

	if env.Config.Registry.Watch && rt.FileStore != nil {
		watcher := registry.NewWatcher(rt.FileStore, registry.DefaultDebounce, log)
		g.Go(func() error {
			return watcher.Run(gctx, func(ctx context.Context) {
				async.SafeGo(ctx, syncTimeout, "registry-sync", rt.Manager.SyncRegistry)
			})
		})
	}

	g.Go(func() error {
		defer cancel()
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}
