// Package orchestrator runs AOI submissions end to end and manages
// monitoring tasks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/aggregate"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/alert"
	"github.com/rajkrsingh9/Gagan-Dhristi/internal/service/worker"
)

const (
	submitMessage = "Change detection tasks completed."
	notifyTimeout = time.Minute
	signalTimeout = 10 * time.Second
)

type invoker interface {
	Invoke(ctx context.Context, operation string, args ...string) (worker.Output, error)
}

type taskStore interface {
	List(ctx context.Context) ([]model.MonitoringTask, error)
	Append(ctx context.Context, task model.MonitoringTask) error
	Clear(ctx context.Context) error
}

type alertNotifier interface {
	Enabled() bool
	ResolveRecipient(explicit string) string
	Notify(ctx context.Context, alert model.Alert, recipient string) error
}

// Signaler wakes the monitoring scheduler after the task set changed.
type Signaler interface {
	Signal(ctx context.Context, aoiID string) error
}

type recorder interface {
	IncSubmissions(ctx context.Context, outcome string)
}

type Option func(*Orchestrator)

func WithSignaler(s Signaler) Option {
	return func(o *Orchestrator) { o.signal = s }
}

func WithTracer(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer("orchestrator") }
}

func WithMetrics(r recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type Orchestrator struct {
	worker      invoker
	tasks       taskStore
	notifier    alertNotifier
	artifactDir string

	signal  Signaler
	tracer  trace.Tracer
	metrics recorder
	now     func() time.Time

	// background tracks alert dispatches and scheduler signals.
	background sync.WaitGroup
}

func New(w invoker, tasks taskStore, n alertNotifier, artifactDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		worker:      w,
		tasks:       tasks,
		notifier:    n,
		artifactDir: artifactDir,
		tracer:      noop.NewTracerProvider().Tracer("orchestrator"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wait blocks until background alert dispatches and signals finish.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// Submit acquires imagery for the AOI, runs every requested detection
// method concurrently, combines their results and dispatches an alert
// when the combined change exceeds the threshold.
func (o *Orchestrator) Submit(ctx context.Context, sub model.Submission) (*model.SubmitResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.submit")
	defer span.End()

	if err := validateSubmission(&sub); err != nil {
		o.count(ctx, "invalid")
		return nil, err
	}
	span.SetAttributes(attribute.Int("aoi.methods", len(sub.Methods)))

	t1, t2, err := o.acquire(ctx, sub)
	if err != nil {
		o.count(ctx, "acquisition_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition failed")
		return nil, err
	}

	outcomes := o.detect(ctx, sub, t1, t2)
	combined := aggregate.Combine(outcomes)
	span.SetAttributes(
		attribute.Float64("aoi.combined_change", combined.Percentage),
		attribute.Int("aoi.contributing", combined.Contributing),
	)

	resp := &model.SubmitResponse{
		Status:         "success",
		Message:        submitMessage,
		NDVISummary:    combined.Summaries[model.MethodVegetation],
		UNetSummary:    combined.Summaries[model.MethodStructural],
		CVASummary:     combined.Summaries[model.MethodCVA],
		CombinedChange: combined.Percentage,
	}

	if alert.Triggered(combined, sub.Threshold) {
		resp.AlertTriggered = true
		o.dispatch(ctx, alert.Compose(sub.Label, combined, sub.Threshold, o.now()), sub.Recipient)
	}

	slog.Info("aoi submission completed",
		"aoi", labelOf(sub),
		"methods", len(sub.Methods),
		"contributing", combined.Contributing,
		"combined_change", combined.Percentage,
		"alert", resp.AlertTriggered,
	)
	o.count(ctx, "success")
	return resp, nil
}

func validateSubmission(sub *model.Submission) error {
	if len(sub.Methods) == 0 {
		return ErrNoDetectionMethod
	}
	seen := make(map[model.DetectionMethod]bool, len(sub.Methods))
	methods := sub.Methods[:0:0]
	for _, m := range sub.Methods {
		if !m.Valid() {
			return invalidf("Unknown detection method: %s.", m)
		}
		if !seen[m] {
			seen[m] = true
			methods = append(methods, m)
		}
	}
	sub.Methods = methods

	if len(strings.TrimSpace(string(sub.Geometry))) == 0 || string(sub.Geometry) == "null" {
		return ErrGeometryRequired
	}
	if sub.StartDate == "" || sub.EndDate == "" {
		return invalidf("Start and end dates are required.")
	}
	if sub.Threshold < 0 || sub.Threshold > 1 {
		return invalidf("Threshold must be between 0 and 1.")
	}
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context, sub model.Submission) (string, string, error) {
	out, err := o.worker.Invoke(ctx, acquisitionScript, string(sub.Geometry), sub.StartDate, sub.EndDate)
	if err != nil {
		payload := map[string]any{"status": "error", "message": "Image acquisition failed."}
		var werr *worker.Error
		if errors.As(err, &werr) {
			payload = werr.Payload()
		}
		return "", "", &AcquisitionError{Payload: payload, Err: err}
	}
	if out.Status() != "success" {
		return "", "", &AcquisitionError{Payload: out}
	}

	t1, t2 := out.String("t1_path"), out.String("t2_path")
	if t1 == "" || t2 == "" {
		return "", "", &AcquisitionError{Payload: map[string]any{
			"status":  "error",
			"message": "Image acquisition returned no image paths.",
			"details": map[string]any(out),
		}}
	}
	return t1, t2, nil
}

// detect runs the requested methods concurrently and waits for all of
// them. Each result lands in the slot of its method, so arrival order
// does not matter.
func (o *Orchestrator) detect(ctx context.Context, sub model.Submission, t1, t2 string) []model.MethodOutcome {
	outcomes := make([]model.MethodOutcome, len(model.DetectionMethods))
	threshold := sub.Threshold.String()

	var g errgroup.Group
	for i, m := range model.DetectionMethods {
		outcomes[i] = model.MethodOutcome{Method: m, Requested: sub.Requested(m)}
		if !outcomes[i].Requested {
			continue
		}
		e := engines[m]
		args := []string{t1, t2}
		if e.withThreshold {
			args = append(args, threshold)
		}
		g.Go(func() error {
			out, err := o.worker.Invoke(ctx, e.script, args...)
			res := toResult(m, e, out, err)
			if res.Status != model.ResultSuccess {
				slog.Warn("detection method failed", "method", m, "error", res.Error)
			}
			outcomes[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// dispatch sends the alert in the background. Failures are logged and
// never reach the caller.
func (o *Orchestrator) dispatch(ctx context.Context, a model.Alert, explicit string) {
	if o.notifier == nil || !o.notifier.Enabled() {
		slog.Warn("alert triggered but notifications are disabled", "aoi", a.AOILabel)
		return
	}
	recipient := o.notifier.ResolveRecipient(explicit)
	if recipient == "" {
		slog.Warn("alert triggered but no recipient configured", "aoi", a.AOILabel)
		return
	}

	bg := context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(bg, notifyTimeout)
		defer cancel()
		if err := o.notifier.Notify(ctx, a, recipient); err != nil {
			slog.Error("alert dispatch failed", "aoi", a.AOILabel, "recipient", recipient, "error", err)
		}
	}()
}

// StartMonitoring persists a new recurring check and wakes the scheduler.
func (o *Orchestrator) StartMonitoring(ctx context.Context, req model.MonitorRequest) (*model.MonitoringTask, error) {
	if req.Recipient == "" {
		return nil, ErrRecipientRequired
	}
	if len(strings.TrimSpace(string(req.Geometry))) == 0 || string(req.Geometry) == "null" {
		return nil, ErrGeometryRequired
	}
	if req.IntervalDays <= 0 {
		return nil, invalidf("Monitoring interval must be a positive number of days.")
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return nil, invalidf("Threshold must be between 0 and 1.")
	}
	for _, m := range req.Methods {
		if !m.Valid() {
			return nil, invalidf("Unknown detection method: %s.", m)
		}
	}

	task := model.MonitoringTask{
		AOIID:                  "aoi-" + uuid.NewString(),
		GeoJSON:                req.Geometry,
		MonitoringIntervalDays: req.IntervalDays,
		Threshold:              req.Threshold,
		EmailRecipient:         req.Recipient,
		DetectionMethods:       req.Methods,
		CreatedAt:              o.now().UTC(),
	}
	if err := o.tasks.Append(ctx, task); err != nil {
		return nil, &StoreError{Op: "append", Err: err}
	}
	slog.Info("monitoring task created",
		"aoi_id", task.AOIID, "interval_days", task.MonitoringIntervalDays, "recipient", task.EmailRecipient)

	o.notifyScheduler(ctx, task.AOIID)
	return &task, nil
}

func (o *Orchestrator) notifyScheduler(ctx context.Context, aoiID string) {
	if o.signal == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(bg, signalTimeout)
		defer cancel()
		if err := o.signal.Signal(ctx, aoiID); err != nil {
			slog.Error("failed to signal scheduler", "aoi_id", aoiID, "error", err)
		}
	}()
}

// StopMonitoring removes every monitoring task. There is no per-task stop.
func (o *Orchestrator) StopMonitoring(ctx context.Context) error {
	if err := o.tasks.Clear(ctx); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	slog.Info("monitoring stopped, all tasks cleared")
	return nil
}

func (o *Orchestrator) Tasks(ctx context.Context) ([]model.MonitoringTask, error) {
	tasks, err := o.tasks.List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return tasks, nil
}

// ResolveArtifact maps a requested file name to a regular file inside the
// artifact directory. Anything outside it, including symlinks that lead
// out of it, is reported as not found.
func (o *Orchestrator) ResolveArtifact(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", ErrArtifactNotFound
	}
	root, err := filepath.Abs(o.artifactDir)
	if err != nil {
		return "", fmt.Errorf("resolve artifact dir: %w", err)
	}
	if !within(root, filepath.Join(root, name)) {
		return "", ErrArtifactNotFound
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", ErrArtifactNotFound
	}
	path, err := filepath.EvalSymlinks(filepath.Join(root, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("artifact lookup failed", "name", name, "error", err)
		}
		return "", ErrArtifactNotFound
	}
	if !within(realRoot, path) {
		slog.Warn("artifact resolves outside the artifact dir", "name", name)
		return "", ErrArtifactNotFound
	}

	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrArtifactNotFound
	}
	return path, nil
}

// within reports whether path is strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	if o.metrics != nil {
		o.metrics.IncSubmissions(ctx, outcome)
	}
}

func labelOf(sub model.Submission) string {
	if sub.Label != "" {
		return sub.Label
	}
	return alert.DefaultLabel
}
