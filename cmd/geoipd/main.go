// Command geoipd serves IP to country lookups over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/peerwatch/geoipdb"
	"github.com/peerwatch/geoipdb/internal/config"
	"github.com/peerwatch/geoipdb/internal/reload"
	"github.com/peerwatch/geoipdb/internal/server"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}

	logLevel, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("service stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("service starting", "log_level", cfg.LogLevel, "db_path", cfg.DBPath)

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	open := func(path string) (*geoipdb.Database, error) {
		countries, err := cfg.Cache.New()
		if err != nil {
			return nil, err
		}
		return geoipdb.Open(path, geoipdb.WithCountryCache(countries))
	}

	holder := reload.NewHolder(nil)
	defer func() {
		if err := holder.Close(); err != nil {
			slog.Warn("closing database failed", "error", err)
		}
	}()

	watcher := reload.NewWatcher(cfg.DBPath, holder, open, cfg.Reload.Debounce, logger, reg)
	if err := watcher.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if !cfg.Reload.Enabled {
			return
		}
		if err := watcher.Run(ctx); err != nil {
			slog.Error("database watcher failed, reload disabled", "error", err)
		}
	}()
	// The holder is closed on return, so the watcher must not install a
	// database after that.
	defer func() {
		stop()
		<-watchDone
	}()

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: server.NewRouter(holder, reg, logger),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("service started", "address", cfg.Server.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("service shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
