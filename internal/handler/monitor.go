package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

type schedulerStatus interface {
	Status() model.SchedulerStatus
}

type taskLister interface {
	Tasks(ctx context.Context) ([]model.MonitoringTask, error)
}

type MonitorHandler struct {
	scheduler schedulerStatus
	tasks     taskLister
}

// NewMonitorHandler exposes the monitoring state. scheduler is nil when
// the scheduler runs in a separate process.
func NewMonitorHandler(scheduler schedulerStatus, tasks taskLister) *MonitorHandler {
	return &MonitorHandler{scheduler: scheduler, tasks: tasks}
}

func (h *MonitorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/status", h.Status)
	r.Get("/monitor/tasks", h.List)
}

type monitorStatusResponse struct {
	Scheduler *model.SchedulerStatus `json:"scheduler"`
	TaskCount int                    `json:"task_count"`
}

func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.Tasks(r.Context())
	if err != nil {
		slog.Error("failed to list monitoring tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not read monitoring tasks.")
		return
	}
	resp := monitorStatusResponse{TaskCount: len(tasks)}
	if h.scheduler != nil {
		st := h.scheduler.Status()
		resp.Scheduler = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.Tasks(r.Context())
	if err != nil {
		slog.Error("failed to list monitoring tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not read monitoring tasks.")
		return
	}
	if tasks == nil {
		tasks = []model.MonitoringTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}
