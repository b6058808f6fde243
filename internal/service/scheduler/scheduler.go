// Package scheduler periodically replays the submission pipeline for due
// monitoring tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/repository"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// initialLookback is the baseline window for a task that was never checked.
const initialLookback = 37

type taskStore interface {
	List(ctx context.Context) ([]model.MonitoringTask, error)
	MarkChecked(ctx context.Context, aoiID, date string) error
}

type submitter interface {
	Submit(ctx context.Context, sub model.Submission) (*model.SubmitResponse, error)
}

type recorder interface {
	IncTasksChecked(ctx context.Context, outcome string)
	IncSchedulerCycles(ctx context.Context)
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(r recorder) Option {
	return func(s *Scheduler) { s.metrics = r }
}

type Scheduler struct {
	tasks    taskStore
	submit   submitter
	interval time.Duration
	now      func() time.Time
	metrics  recorder

	wake chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   model.SchedulerStatus
}

func New(tasks taskStore, submit submitter, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    tasks,
		submit:   submit,
		interval: interval,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background loop. The loop runs on its own context
// so it outlives the caller.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setRunning(true)

	go s.run(runCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to unwind or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	s.cancel = nil
	done := s.done
	s.mu.Unlock()

	s.setRunning(false)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) Status() model.SchedulerStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	st := s.status
	if st.LastRunAt != nil {
		t := *st.LastRunAt
		st.LastRunAt = &t
	}
	return st
}

// Signal asks the loop to run a cycle now. It never blocks; signals that
// arrive while one is pending are merged.
func (s *Scheduler) Signal(_ context.Context, aoiID string) error {
	select {
	case s.wake <- struct{}{}:
		slog.Debug("scheduler woken", "aoi_id", aoiID)
	default:
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	slog.Info("scheduler goroutine started", "interval", s.interval)
	defer close(done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler goroutine panicked", "error", r, "stack", string(debug.Stack()))
			s.mu.Lock()
			if s.cancel != nil {
				s.cancel()
				s.cancel = nil
			}
			s.mu.Unlock()
			s.statusMu.Lock()
			s.status.IsRunning = false
			s.status.LastError = fmt.Sprintf("panic: %v", r)
			s.status.UpdatedAt = s.now()
			s.statusMu.Unlock()
		}
	}()

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.wake:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce checks every due task a single time.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()
	if s.metrics != nil {
		s.metrics.IncSchedulerCycles(ctx)
	}

	tasks, err := s.tasks.List(ctx)
	if err != nil {
		slog.Error("failed to list monitoring tasks", "error", err)
		s.finishCycle(now, 0, 0, 0, 0, fmt.Sprintf("failed to list tasks: %v", err))
		return
	}

	var checked, alerts, failures int
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if !Due(task, now) {
			continue
		}
		triggered, err := s.check(ctx, task, now)
		if err != nil {
			failures++
			s.count(ctx, "failure")
			slog.Error("monitoring check failed", "aoi_id", task.AOIID, "error", err)
			continue
		}
		checked++
		s.count(ctx, "success")
		if triggered {
			alerts++
		}
	}

	slog.Info("scheduler cycle finished",
		"tasks", len(tasks), "checked", checked, "alerts", alerts, "failures", failures)

	lastErr := ""
	if failures > 0 {
		lastErr = fmt.Sprintf("%d task check(s) failed", failures)
	}
	s.finishCycle(now, len(tasks), checked, alerts, failures, lastErr)
}

func (s *Scheduler) check(ctx context.Context, task model.MonitoringTask, now time.Time) (bool, error) {
	start, end := Window(task, now)
	slog.Info("checking monitoring task", "aoi_id", task.AOIID, "start", start, "end", end)

	resp, err := s.submit.Submit(ctx, model.Submission{
		Geometry:  task.GeoJSON,
		StartDate: start,
		EndDate:   end,
		Threshold: task.Threshold,
		Methods:   task.Methods(),
		Recipient: task.EmailRecipient,
		Label:     task.AOIID,
	})
	if err != nil {
		return false, err
	}

	if err := s.tasks.MarkChecked(ctx, task.AOIID, end); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("monitoring task removed during check", "aoi_id", task.AOIID)
			return resp.AlertTriggered, nil
		}
		return resp.AlertTriggered, fmt.Errorf("mark checked: %w", err)
	}
	return resp.AlertTriggered, nil
}

func (s *Scheduler) count(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.IncTasksChecked(ctx, outcome)
	}
}

func (s *Scheduler) setRunning(running bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.IsRunning = running
	s.status.UpdatedAt = s.now()
}

func (s *Scheduler) finishCycle(at time.Time, tasks, checked, alerts, failures int, lastErr string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastRunAt = &at
	s.status.TasksInLastCycle = tasks
	s.status.CheckedInLastCycle = checked
	s.status.AlertsInLastCycle = alerts
	s.status.FailuresInLastCycle = failures
	s.status.LastError = lastErr
	s.status.UpdatedAt = s.now()
}
