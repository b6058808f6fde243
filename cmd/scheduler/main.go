package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/app"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/config"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/debug"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/logging"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/messaging/kafka"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/orchestrator"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/scheduler"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/telemetry"
)

// The standalone scheduler replays monitoring tasks on its own interval and,
// when brokers are configured, wakes early on task events from the API.
func main() {
	_, _ = maxprocs.Set()

	cfg := config.Load()
	logger, logCloser := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()
	slog.SetDefault(logger.With("component", "scheduler"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("scheduler exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		ServiceName:      cfg.OTel.ServiceName + "-scheduler",
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

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer closeStore()

	orch := orchestrator.New(app.NewBridge(cfg, providers, metrics), store, app.NewNotifier(cfg, metrics), cfg.ArtifactDir,
		orchestrator.WithTracer(providers.Tracer),
		orchestrator.WithMetrics(metrics),
	)
	sched := scheduler.New(store, orch, cfg.SchedulerInterval, scheduler.WithMetrics(metrics))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	go func() {
		if err := debug.Serve(ctx, cfg.DebugAddr); err != nil {
			slog.Error("debug server error", "error", err)
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaSchedulerTopic, cfg.KafkaGroupID, sched)
		defer consumer.Close()
		go func() {
			slog.Info("consuming task events", "topic", cfg.KafkaSchedulerTopic, "group", cfg.KafkaGroupID)
			if err := consumer.Run(ctx); err != nil {
				slog.Error("task event consumer stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		slog.Error("scheduler shutdown", "error", err)
	}
	orch.Wait()
	return nil
}
