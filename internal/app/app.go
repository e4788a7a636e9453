// Package app wires configuration into a running relay: token store, refresh
// callback, auto-refreshing client, and the forward proxy serving it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/arkadyne/authrelay"
	"github.com/arkadyne/authrelay/internal/proxy"
	"github.com/arkadyne/authrelay/refreshfunc"
	"github.com/arkadyne/authrelay/tokenstore"
)

// App orchestrates the lifecycle of the proxy server and related services.
type App struct {
	cfg         *Config
	relay       *authrelay.Client
	proxy       *proxy.Proxy
	storeCloser io.Closer
	watchPath   string
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, closer, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	relay, err := newRelay(cfg, store)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to create relay client: %w", err)
	}

	proxyServer, err := proxy.New(relay.Transport(), proxy.WithBaseURL(cfg.Upstream.BaseURL))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	a := &App{
		cfg:         cfg,
		relay:       relay,
		proxy:       proxyServer,
		storeCloser: closer,
	}

	// Token files refreshed by sibling processes are worth noticing
	if fileStore, ok := store.(*tokenstore.FileStore); ok {
		a.watchPath = fileStore.Path()
	}

	return a, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection
// for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting relay proxy", "address", address, "upstream", a.cfg.Upstream.BaseURL)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if a.watchPath != "" {
		g.Go(func() error {
			err := tokenstore.Watch(gCtx, a.watchPath, func() {
				slog.InfoContext(gCtx, "token file changed externally")
			})
			if err != nil {
				// Watching is best-effort; a broken watcher must not take
				// the proxy down.
				slog.WarnContext(gCtx, "token file watch stopped", "error", err)
			}
			return nil
		})
	}

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if a.storeCloser != nil {
		if err := a.storeCloser.Close(); err != nil {
			slog.ErrorContext(shutdownCtx, "token store close failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newRelay creates the auto-refreshing client from application configuration.
// No I/O is performed - the token store is not touched until the first
// request is dispatched.
func newRelay(cfg *Config, store tokenstore.Store) (*authrelay.Client, error) {
	refresh := refreshfunc.Endpoint(
		cfg.Refresh.URL,
		cfg.Refresh.TokenPath,
		refreshfunc.StaticPayload(cfg.Refresh.Payload),
	)

	return authrelay.New(store, refresh,
		authrelay.WithHeader(cfg.Auth.HeaderName, cfg.Auth.HeaderScheme),
		authrelay.WithRefreshClient(&http.Client{Timeout: cfg.Refresh.Timeout}),
		authrelay.WithRefreshFailureHook(func(ctx context.Context, err error) {
			slog.ErrorContext(ctx, "token refresh rejected, stored token cleared", "error", err)
		}),
	)
}
