package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/usergate-io/usergate/internal/cache"
	"github.com/usergate-io/usergate/internal/config"
	"github.com/usergate-io/usergate/internal/domain"
	"github.com/usergate-io/usergate/internal/logging"
	"github.com/usergate-io/usergate/internal/metrics"
	"github.com/usergate-io/usergate/internal/server"
	"github.com/usergate-io/usergate/internal/service"
	"github.com/usergate-io/usergate/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	var m *metrics.Metrics
	if cfg.HTTP.MetricsEnabled {
		m = metrics.New("usergate")
	}

	store := cache.New[string, domain.UserRecord](cfg.Cache.DefaultTTL)
	client := upstream.NewHTTPClient(upstream.Options{
		BaseURL:        cfg.Upstream.BaseURL,
		ConnectTimeout: cfg.Upstream.ConnectTimeout,
		RequestTimeout: cfg.Upstream.RequestTimeout,
	}, logger)
	lookup := service.NewLookup(store, client, logger, m)

	router := server.NewRouter(logger, server.RouterDependencies{
		API:              server.NewHandlers(logger, lookup),
		MetricsEnabled:   cfg.HTTP.MetricsEnabled,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go cache.NewSweeper(store, cfg.Cache.SweepInterval, logger, m).Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(csv, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
