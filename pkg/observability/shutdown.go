package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownManager handles graceful shutdown of services
type ShutdownManager struct {
	logger          *logrus.Logger
	server          *http.Server
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *logrus.Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		shutdownFuncs:   make([]ShutdownFunc, 0),
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown.
// Functions run sequentially in registration order.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is
// done, then runs Shutdown.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)
	case <-ctx.Done():
		sm.logger.Info("Context cancelled, starting graceful shutdown")
	}

	return sm.Shutdown()
}

// Shutdown stops the HTTP server, then runs the registered shutdown
// functions. Each phase gets its own shutdown timeout, and the functions run
// even when the server fails to drain.
func (sm *ShutdownManager) Shutdown() error {
	var serverErr error
	if sm.server != nil {
		serverErr = sm.shutdownServer()
	}
	return errors.Join(serverErr, sm.runShutdownFuncs())
}

func (sm *ShutdownManager) shutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	sm.logger.Info("Shutting down HTTP server")
	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.WithError(err).Error("HTTP server shutdown error")
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	sm.logger.Info("HTTP server shutdown complete")
	return nil
}

func (sm *ShutdownManager) runShutdownFuncs() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	sm.mu.Lock()
	funcs := sm.shutdownFuncs
	sm.mu.Unlock()

	done := make(chan []error, 1)
	go func() {
		var errs []error
		for i, fn := range funcs {
			if err := fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown function %d failed", i)
				errs = append(errs, err)
			}
		}
		done <- errs
	}()

	select {
	case errs := <-done:
		if len(errs) > 0 {
			return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
		}
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
