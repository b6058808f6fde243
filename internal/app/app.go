// Package app assembles the components shared by the API server and the
// standalone scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/config"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/database"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/notify"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/repository"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/worker"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/telemetry"
)

// TaskStore is satisfied by both the file-backed and the Postgres store.
type TaskStore interface {
	List(ctx context.Context) ([]model.MonitoringTask, error)
	Append(ctx context.Context, task model.MonitoringTask) error
	Clear(ctx context.Context) error
	MarkChecked(ctx context.Context, aoiID, date string) error
}

// OpenStore picks Postgres when a database URL is configured and the task
// document otherwise. The returned func releases the store.
func OpenStore(ctx context.Context, cfg *config.Config) (TaskStore, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("using file task store", "path", cfg.TasksFile)
		return repository.NewFileTaskStore(cfg.TasksFile), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("using postgres task store")
	return repository.NewTaskRepository(pool), pool.Close, nil
}

func NewBridge(cfg *config.Config, p telemetry.Providers, m *telemetry.Metrics) *worker.Bridge {
	return worker.New(cfg.WorkerRuntime, cfg.WorkerScriptsDir, cfg.WorkerTimeout,
		worker.WithTracer(p.Tracer),
		worker.WithMetrics(m),
	)
}

// NewNotifier wires every transport whose credentials are present. A
// transport that fails to initialize is skipped.
func NewNotifier(cfg *config.Config, m *telemetry.Metrics) *notify.Notifier {
	var transports []notify.Transport
	if cfg.EmailEnabled() {
		transports = append(transports,
			notify.NewSMTPTransport(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.User, cfg.Email.Password))
	}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramTransport(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			slog.Error("telegram transport disabled", "error", err)
		} else {
			transports = append(transports, tg)
		}
	}
	if len(transports) == 0 {
		slog.Warn("no alert transport configured, alerts will only be logged")
	}
	return notify.New(cfg.AlertRecipient, m, transports...)
}

// SignalFunc adapts a function to the orchestrator's scheduler signal.
type SignalFunc func(ctx context.Context, aoiID string) error

func (f SignalFunc) Signal(ctx context.Context, aoiID string) error {
	if f == nil {
		return fmt.Errorf("no scheduler to signal for %s", aoiID)
	}
	return f(ctx, aoiID)
}
