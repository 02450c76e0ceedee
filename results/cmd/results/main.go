package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelperf/modelperf/results/internal/api"
	"github.com/modelperf/modelperf/results/internal/auth"
	"github.com/modelperf/modelperf/results/internal/config"
	"github.com/modelperf/modelperf/results/internal/store"
	"github.com/modelperf/modelperf/results/internal/ws"
)

// broadcastInterval is how often the WebSocket hub pushes the run list.
const broadcastInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "results.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("modelperf-results starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Results.HTTPPort,
		"auth_mode", cfg.Results.Auth.Mode,
		"retention_ttl", cfg.Results.Retention.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run store with background TTL eviction.
	st := store.New(cfg.Results.Retention.TTL)
	go st.Run(ctx)

	// WebSocket hub broadcasting run progress to dashboard clients.
	hub := ws.New(st, broadcastInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API + WebSocket hub, behind API-key auth.
	guard := auth.Middleware(
		cfg.Results.Auth.Mode,
		cfg.Results.Auth.EffectiveHeader(),
		cfg.Results.Auth.Key(),
	)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", guard(api.New(st)))
	httpMux.Handle("/ws/stream", guard(hub))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Results.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Results.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("modelperf-results shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
