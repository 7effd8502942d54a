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

	"checkbot/internal/api"
	"checkbot/internal/check"
	"checkbot/internal/config"
	"checkbot/internal/limiter"
	"checkbot/internal/logger"
	"checkbot/internal/models"
	"checkbot/internal/observability"
	"checkbot/internal/onebot"
	"checkbot/internal/render"
	"checkbot/internal/status"
	"checkbot/internal/tempdir"
	"checkbot/internal/version"
	"checkbot/internal/withdraw"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
	exampleFile = flag.String("write-example", "", "Write an example configuration file and exit")
)

// ingressIdleTTL is how long an address may stay silent before its token
// bucket is dropped.
const ingressIdleTTL = 10 * time.Minute

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}
	if *exampleFile != "" {
		if err := config.SaveExample(*exampleFile); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := onebot.NewClient(cfg.OneBot.APIURL, cfg.OneBot.AccessToken, cfg.OneBot.APITimeout)
	dispatcher := onebot.NewDispatcher(client)

	tempDirs := registerTempDirs(cfg.TempDirs)
	cleaner := tempdir.NewCleaner(tempDirs, cfg.TempDirs.CleanupSchedule)
	if err := cleaner.Start(ctx); err != nil {
		slog.Error("Failed to start temp dir cleaner", "error", err)
		os.Exit(1)
	}
	defer cleaner.Stop()

	withdrawals := withdraw.NewRegistry()
	scheduler := withdraw.NewScheduler(withdrawals, client, cfg.Withdraw.Timeout)
	defer scheduler.Stop()

	collector, renderer, err := buildCheckDeps(cfg, dispatcher)
	if err != nil {
		slog.Error("Failed to initialize self check", "error", err)
		os.Exit(1)
	}
	check.New(cfg, check.Deps{
		Collector: collector,
		Renderer:  renderer,
		Withdraw:  scheduler,
	}).Register(dispatcher)

	var (
		throttle api.Throttle
		ingress  observability.Sizer
	)
	if cfg.Server.IngressRate > 0 {
		bucket := limiter.NewBucket(cfg.Server.IngressRate, cfg.Server.IngressBurst, ingressIdleTTL)
		defer bucket.Close()
		throttle = bucket
		ingress = bucket
	}

	handlers := api.NewHandlers(dispatcher, ver.Version)
	handlers.AddHealthCheck("dispatcher", func() models.ComponentHealth {
		return models.ComponentHealth{
			Status:  models.StatusHealthy,
			Details: map[string]any{"plugin_count": dispatcher.PluginCount()},
		}
	})
	handlers.AddHealthCheck("temp_dirs", func() models.ComponentHealth {
		health := models.ComponentHealth{
			Status:  models.StatusHealthy,
			Details: map[string]any{"registered": tempDirs.Len(), "cleaner_running": cleaner.IsRunning()},
		}
		if next := cleaner.NextRun(); next != nil {
			health.Details["next_cleanup"] = next.Format(time.RFC3339)
		}
		return health
	})
	handlers.AddHealthCheck("withdraw", func() models.ComponentHealth {
		return models.ComponentHealth{
			Status:  models.StatusHealthy,
			Details: map[string]any{"pending": scheduler.Pending()},
		}
	})

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, cfg.Server, cfg.OneBot.Secret, throttle, routeOpts...)

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		otelProvider.Registry().MustRegister(observability.NewTrackerCollector(tempDirs, withdrawals, ingress))
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting webhook server",
			"addr", server.Addr,
			"event_path", cfg.Server.EventPath,
			"trigger_mode", cfg.Check.TriggerMode,
			"version", ver.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := handlers.Wait(shutdownCtx); err != nil {
		slog.Warn("Abandoned in-flight events", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// registerTempDirs registers the configured scratch directories. A
// directory that cannot be walked is logged and skipped.
func registerTempDirs(cfg models.TempDirsConfig) *tempdir.Registry {
	registry := tempdir.NewRegistry()
	for _, dir := range cfg.Paths {
		if err := registry.Add(dir.Path, dir.Recursive); err != nil {
			slog.Warn("Failed to register temp dir", "path", dir.Path, "recursive", dir.Recursive, "error", err)
		}
	}
	slog.Info("Temp dirs registered", "count", registry.Len())
	return registry
}

// buildCheckDeps creates the status collector and renderer, instrumented
// when metrics are enabled.
func buildCheckDeps(cfg *models.Config, plugins status.PluginCounter) (check.Collector, render.Renderer, error) {
	nickname := "Bot"
	if len(cfg.OneBot.Nicknames) > 0 {
		nickname = cfg.OneBot.Nicknames[0]
	}

	statusCollector, err := status.NewCollector(cfg.Status, nickname, plugins)
	if err != nil {
		return nil, nil, err
	}
	var collector check.Collector = statusCollector
	var renderer render.Renderer = render.NewHTTPRenderer(cfg.Renderer.Endpoint, cfg.Renderer.Timeout)

	if cfg.Metrics.Enabled {
		ic, err := observability.NewInstrumentedCollector(collector)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to instrument status collector: %w", err)
		}
		ir, err := observability.NewInstrumentedRenderer(renderer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to instrument renderer: %w", err)
		}
		collector, renderer = ic, ir
	}
	return collector, renderer, nil
}
