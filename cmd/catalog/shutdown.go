package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// runCatalog starts the server and blocks until shutdown.
func runCatalog(app *application, flags cliFlags, logger observability.Logger) {
	if err := app.server.Start(); err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	var watcher *config.Watcher
	if flags.watch {
		watcher = startConfigWatcher(app, flags.configPath, app.logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveErr := make(chan error, 1)
	go func() { serveErr <- app.server.Wait() }()

	select {
	case sig := <-sigCh:
		app.logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			app.logger.Error("server stopped unexpectedly", observability.Error(err))
		}
	}

	shutdown(app, watcher)
}

// shutdown stops every component within the configured shutdown timeout.
// The HTTP server goes first so in-flight requests still reach the store.
func shutdown(app *application, watcher *config.Watcher) {
	logger := app.logger

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Spec.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := app.cache.Close(); err != nil {
		logger.Error("failed to close cache", observability.Error(err))
	}

	if err := app.store.Close(); err != nil {
		logger.Error("failed to close catalog store", observability.Error(err))
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("ordcatalog stopped")
	_ = logger.Sync()
}
