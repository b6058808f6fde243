// Package notify delivers change alerts over the configured transports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rajkrsingh9/Gagan-Dhristi/internal/model"
)

// ErrNoRecipient is returned when neither the request nor the process
// configuration names a recipient.
var ErrNoRecipient = errors.New("no alert recipient configured")

// Transport sends one rendered message.
type Transport interface {
	Name() string
	Send(ctx context.Context, recipient string, msg Message) error
}

type recorder interface {
	IncAlertsSent(ctx context.Context, transport string)
	IncAlertsFailed(ctx context.Context, transport string)
}

type Notifier struct {
	defaultRecipient string
	transports       []Transport
	metrics          recorder
}

func New(defaultRecipient string, metrics recorder, transports ...Transport) *Notifier {
	return &Notifier{
		defaultRecipient: defaultRecipient,
		transports:       transports,
		metrics:          metrics,
	}
}

// Enabled reports whether at least one transport is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.transports) > 0
}

// ResolveRecipient prefers the explicit recipient over the process default.
func (n *Notifier) ResolveRecipient(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return n.defaultRecipient
}

// Notify renders the alert and hands it to every transport once. Transport
// failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, alert model.Alert, recipient string) error {
	if !n.Enabled() {
		slog.Warn("alert not sent, no notification transport configured", "aoi", alert.AOILabel)
		return nil
	}
	recipient = n.ResolveRecipient(recipient)
	if recipient == "" {
		return ErrNoRecipient
	}

	msg, err := Render(alert)
	if err != nil {
		return fmt.Errorf("render alert: %w", err)
	}

	var errs []error
	for _, t := range n.transports {
		if err := t.Send(ctx, recipient, msg); err != nil {
			n.record(ctx, t.Name(), false)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		n.record(ctx, t.Name(), true)
		slog.Info("alert sent",
			"transport", t.Name(), "recipient", recipient, "aoi", alert.AOILabel,
			"combined_change", alert.CombinedChange)
	}
	return errors.Join(errs...)
}

func (n *Notifier) record(ctx context.Context, transport string, ok bool) {
	if n.metrics == nil {
		return
	}
	if ok {
		n.metrics.IncAlertsSent(ctx, transport)
		return
	}
	n.metrics.IncAlertsFailed(ctx, transport)
}
