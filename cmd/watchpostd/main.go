package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/watchpost/watchpost/internal/api"
	"github.com/watchpost/watchpost/internal/bench"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/crypto"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/monitor"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/queue"
	"github.com/watchpost/watchpost/internal/store"
	"github.com/watchpost/watchpost/internal/ws"
)

const statusInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("watchpostd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())

	slog.Info("config loaded",
		"tick", cfg.Monitor.Tick,
		"max_concurrent_checks", cfg.Monitor.MaxConcurrentChecks,
		"failure_threshold", cfg.Monitor.FailureThreshold,
		"queue_workers", cfg.Queue.Workers,
		"bench_enabled", cfg.Bench.Enabled,
		"http_port", cfg.API.HTTPPort,
	)

	box, err := crypto.FromEnv(cfg.Security.MasterKeyEnv)
	if err != nil {
		slog.Error("failed to load master key", "err", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage.Path, box, cfg.Storage.HistoryRetention)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Storage.Path, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	var sink notify.Sink
	switch cfg.Notify.Mode {
	case "webhook":
		sink = notify.NewWebhook(cfg.Notify.WebhookURL())
	default:
		token := cfg.Notify.Token()
		if token == "" {
			slog.Error("bot token environment variable is empty", "env", cfg.Notify.TokenEnv)
			os.Exit(1)
		}
		sink = notify.NewTelegram(token)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	met := metrics.New()
	q := queue.New(sink, met, cfg.Queue)
	checker := probe.New(cfg.Monitor.ConnectionTimeout)
	tracker := monitor.NewTracker(st, q, cfg.Monitor.FailureThreshold, met)
	sched := monitor.NewScheduler(st, checker, tracker, met, cfg.Monitor)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			slog.Debug("component stopped", "component", name)
		}()
	}

	run("store", st.Run)
	run("queue", q.Run)
	run("scheduler", sched.Run)

	if cfg.Bench.Enabled {
		src := bench.NewHTTPSource(cfg.Bench.MainnetURL, cfg.Bench.TestnetURL)
		poller := bench.New(st, src, q, met, cfg.Bench)
		run("bench", poller.Run)
		slog.Info("benchmark poller enabled",
			"interval", cfg.Bench.Interval, "threshold", cfg.Bench.ThresholdSeconds)
	}

	handler := api.New(st, q, sched)
	hub := ws.New(handler.Status, statusInterval)
	run("ws", hub.Run)

	// Hot reload: only the log level applies live; Watch reports the sections
	// that wait for a restart.
	run("config-watch", func(ctx context.Context) {
		err := config.Watch(ctx, *configPath, cfg, func(next *config.Config) {
			level.Set(next.Level())
			slog.Info("config change applied", "log_level", next.LogLevel)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
	})

	auth := cfg.API.Auth
	mux := http.NewServeMux()
	mux.Handle("/api/", api.APIKeyMiddleware(auth.Mode, auth.EffectiveHeader(), auth.Key(), handler))
	mux.Handle("/metrics", met.Handler())
	mux.Handle("/ws", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.HTTPPort),
		Handler: mux,
	}
	go func() {
		slog.Info("admin HTTP server listening", "port", cfg.API.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("watchpostd shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	wg.Wait()
	slog.Info("watchpostd stopped")
}
