// Package worker runs external processing scripts and decodes the JSON
// object they print on stdout.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	ErrExecution = errors.New("worker process failed")
	ErrParse     = errors.New("worker output could not be parsed")
)

// Output is the decoded JSON object a worker printed.
type Output map[string]any

// Status returns the "status" field, or "" when absent.
func (o Output) Status() string {
	s, _ := o["status"].(string)
	return s
}

// String returns the named field when it is a string.
func (o Output) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Error describes a failed invocation. Kind is ErrExecution or ErrParse.
type Error struct {
	Operation string
	Kind      error
	Message   string
	// Details is stderr for execution failures and stdout for parse failures.
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Payload renders the error the way workers report failures themselves.
func (e *Error) Payload() map[string]any {
	return map[string]any{
		"status":  "error",
		"message": e.Message,
		"details": e.Details,
	}
}

type recorder interface {
	ObserveInvocation(ctx context.Context, operation, outcome string, d time.Duration)
}

type Option func(*Bridge)

func WithTracer(tp trace.TracerProvider) Option {
	return func(b *Bridge) { b.tracer = tp.Tracer("worker") }
}

func WithMetrics(r recorder) Option {
	return func(b *Bridge) { b.metrics = r }
}

// Bridge spawns "<runtime> <scriptsDir>/<operation> args..." per call.
// Invocations share no state and may run concurrently.
type Bridge struct {
	runtime    string
	scriptsDir string
	timeout    time.Duration
	tracer     trace.Tracer
	metrics    recorder
}

func New(runtime, scriptsDir string, timeout time.Duration, opts ...Option) *Bridge {
	b := &Bridge{
		runtime:    runtime,
		scriptsDir: scriptsDir,
		timeout:    timeout,
		tracer:     noop.NewTracerProvider().Tracer("worker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke runs the operation to completion and returns its result object.
func (b *Bridge) Invoke(ctx context.Context, operation string, args ...string) (Output, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	ctx, span := b.tracer.Start(ctx, "worker.invoke",
		trace.WithAttributes(attribute.String("worker.operation", operation)))
	defer span.End()

	start := time.Now()
	out, err := b.run(ctx, operation, args)
	elapsed := time.Since(start)

	outcome := "success"
	switch {
	case errors.Is(err, ErrExecution):
		outcome = "execution_error"
	case errors.Is(err, ErrParse):
		outcome = "parse_error"
	}
	if b.metrics != nil {
		b.metrics.ObserveInvocation(ctx, operation, outcome, elapsed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		slog.Error("worker invocation failed",
			"operation", operation, "outcome", outcome, "duration", elapsed, "error", err)
		return nil, err
	}

	slog.Debug("worker invocation finished", "operation", operation, "duration", elapsed)
	return out, nil
}

func (b *Bridge) run(ctx context.Context, operation string, args []string) (Output, error) {
	script := filepath.Join(b.scriptsDir, operation)
	cmd := exec.CommandContext(ctx, b.runtime, append([]string{script}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of the script may hold the output pipes after it is killed.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("Processing failed for %s.", operation)
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			msg = fmt.Sprintf("Processing timed out for %s.", operation)
			err = ctxErr
		}
		return nil, &Error{
			Operation: operation,
			Kind:      ErrExecution,
			Message:   msg,
			Details:   stderr.String(),
			Err:       err,
		}
	}

	return parseOutput(operation, stdout.String())
}
