package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/app"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/config"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/debug"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/handler"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/logging"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/messaging/kafka"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/middleware"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/orchestrator"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/scheduler"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/telemetry"
)

func main() {
	_, _ = maxprocs.Set()

	cfg := config.Load()
	logger, logCloser := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Telemetry
	providers, shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		ServiceName:      cfg.OTel.ServiceName,
		ExporterEndpoint: cfg.OTel.ExporterEndpoint,
		Probability:      cfg.OTel.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	metrics, err := telemetry.NewMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// Storage
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer closeStore()

	// Services
	bridge := app.NewBridge(cfg, providers, metrics)
	notifier := app.NewNotifier(cfg, metrics)

	var sched *scheduler.Scheduler
	var signaler orchestrator.Signaler
	switch {
	case len(cfg.KafkaBrokers) > 0:
		pub := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaSchedulerTopic)
		defer pub.Close()
		signaler = pub
		slog.Info("scheduler runs out of process", "topic", cfg.KafkaSchedulerTopic)
	case cfg.SchedulerEnabled:
		signaler = app.SignalFunc(func(ctx context.Context, aoiID string) error {
			return sched.Signal(ctx, aoiID)
		})
	}

	orch := orchestrator.New(bridge, store, notifier, cfg.ArtifactDir,
		orchestrator.WithSignaler(signaler),
		orchestrator.WithTracer(providers.Tracer),
		orchestrator.WithMetrics(metrics),
	)

	if len(cfg.KafkaBrokers) == 0 && cfg.SchedulerEnabled {
		sched = scheduler.New(store, orch, cfg.SchedulerInterval, scheduler.WithMetrics(metrics))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// Handlers
	var submitGuard func(http.Handler) http.Handler
	if cfg.SubmitRateLimit > 0 {
		submitGuard = middleware.RateLimit(cfg.SubmitRateLimit, cfg.SubmitRateBurst)
	}
	aoiHandler := handler.NewAOIHandler(orch, submitGuard)
	monHandler := handler.NewMonitorHandler(nil, orch)
	if sched != nil {
		monHandler = handler.NewMonitorHandler(sched, orch)
	}
	healthHandler := handler.NewHealthHandler(nil)
	if db, ok := store.(interface{ Ping(context.Context) error }); ok {
		healthHandler = handler.NewHealthHandler(db)
	}

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)

	healthHandler.RegisterRoutes(r)
	r.Route("/api/aoi", func(r chi.Router) {
		aoiHandler.RegisterRoutes(r)
		monHandler.RegisterRoutes(r)
	})

	go func() {
		if err := debug.Serve(ctx, cfg.DebugAddr); err != nil {
			slog.Error("debug server error", "error", err)
		}
	}()

	// Server with graceful shutdown. Submissions run for minutes, so the
	// write timeout follows the worker timeout.
	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: otelhttp.NewHandler(r, "aoi-api",
			otelhttp.WithTracerProvider(providers.Tracer),
			otelhttp.WithMeterProvider(providers.Meter),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.WorkerTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
			slog.Error("scheduler shutdown", "error", err)
		}
	}
	orch.Wait()
	return nil
}
