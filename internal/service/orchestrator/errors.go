package orchestrator

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every *ValidationError.
var ErrInvalid = errors.New("invalid request")

// ValidationError rejects a request before any side effect. Message is
// safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

var (
	ErrNoDetectionMethod = &ValidationError{Message: "No detection method selected."}
	ErrRecipientRequired = &ValidationError{Message: "Email recipient is required for monitoring."}
	ErrGeometryRequired  = &ValidationError{Message: "Geometry is required."}

	ErrArtifactNotFound = errors.New("artifact not found")
)

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AcquisitionError aborts a submission before any detection method runs.
// Payload is what the acquisition worker reported.
type AcquisitionError struct {
	Payload map[string]any
	Err     error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image acquisition failed: %v", e.Err)
	}
	if msg, ok := e.Payload["message"].(string); ok && msg != "" {
		return "image acquisition failed: " + msg
	}
	return "image acquisition failed"
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// StoreError means a task mutation could not be persisted.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s monitoring tasks: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
